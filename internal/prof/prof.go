// Package prof starts continuous profiling against a Pyroscope server.
package prof

import (
	"context"
	"runtime"

	"github.com/grafana/pyroscope-go"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
	"github.com/yannicklang1/eu-complience-hub-sub009/internal/xerrors"
)

type Options struct {
	Enabled       bool
	AppName       string
	ServerAddress string
	TenantID      string
	Tags          map[string]string

	// MutexFraction and BlockRate enable the matching runtime profiles when > 0.
	MutexFraction int
	BlockRate     int

	// OnActive is told when the profiler starts and stops.
	OnActive func(active bool)
}

func (o Options) profileTypes() []pyroscope.ProfileType {
	types := []pyroscope.ProfileType{
		pyroscope.ProfileCPU,
		pyroscope.ProfileAllocObjects,
		pyroscope.ProfileAllocSpace,
		pyroscope.ProfileInuseObjects,
		pyroscope.ProfileInuseSpace,
		pyroscope.ProfileGoroutines,
	}
	if o.MutexFraction > 0 {
		types = append(types, pyroscope.ProfileMutexCount, pyroscope.ProfileMutexDuration)
	}
	if o.BlockRate > 0 {
		types = append(types, pyroscope.ProfileBlockCount, pyroscope.ProfileBlockDuration)
	}
	return types
}

func (o Options) setActive(v bool) {
	if o.OnActive != nil {
		o.OnActive(v)
	}
}

// Start begins profiling. The returned stop func is always non-nil and safe
// to call more than once, including when err is set.
func Start(ctx context.Context, opts Options) (func(), error) {
	L := log.FromContext(ctx)
	opts.setActive(false)

	if !opts.Enabled {
		L.Debug(ctx, "profiling disabled")
		return func() {}, nil
	}
	if opts.ServerAddress == "" {
		err := xerrors.NewKind(xerrors.KindValidation, "profiling enabled without a server address")
		L.Error(ctx, err, "profiler options")
		return func() {}, err
	}

	if opts.MutexFraction > 0 {
		runtime.SetMutexProfileFraction(opts.MutexFraction)
	}
	if opts.BlockRate > 0 {
		runtime.SetBlockProfileRate(opts.BlockRate)
	}

	profiler, err := pyroscope.Start(pyroscope.Config{
		ApplicationName: opts.AppName,
		ServerAddress:   opts.ServerAddress,
		TenantID:        opts.TenantID,
		Tags:            opts.Tags,
		ProfileTypes:    opts.profileTypes(),
	})
	if err != nil {
		err = xerrors.Wrapf(err, "start profiler for %s", opts.ServerAddress)
		L.Error(ctx, err, "profiler start failed", "app_name", opts.AppName)
		return func() {}, err
	}

	opts.setActive(true)
	L.Info(ctx, "profiler started",
		"server_address", opts.ServerAddress,
		"app_name", opts.AppName,
	)

	stopped := false
	return func() {
		if stopped {
			return
		}
		stopped = true
		profiler.Stop() //nolint:errcheck
		opts.setActive(false)
		L.Info(context.Background(), "profiler stopped", "app_name", opts.AppName)
	}, nil
}
