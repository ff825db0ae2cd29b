// Package version exposes build metadata stamped in by -ldflags, falling back
// to the VCS settings the Go toolchain embeds.
package version

import (
	"runtime/debug"
	"strings"
)

// AppName identifies the service in metrics, traces and outbound user agents.
const AppName = "compliancehub"

var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

func Get() Info {
	out := Info{
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fromBuildInfo(&out, bi)
	}
	return out
}

// fromBuildInfo fills fields not stamped at link time. Explicit values win.
func fromBuildInfo(out *Info, bi *debug.BuildInfo) {
	if out.GoVersion == "" {
		out.GoVersion = bi.GoVersion
	}
	for _, s := range bi.Settings {
		if s.Value == "" {
			continue
		}
		switch s.Key {
		case "vcs.revision":
			if out.Commit == "none" {
				out.Commit = s.Value
			}
		case "vcs.time":
			if out.CommitDate == "" {
				out.CommitDate = s.Value
			}
			if out.BuildDate == "" {
				out.BuildDate = s.Value
			}
		case "vcs.modified":
			if out.VCSDirty == nil {
				dirty := s.Value == "true"
				out.VCSDirty = &dirty
			}
		}
	}
}

// Short is the version plus an abbreviated commit, e.g. "v1.4.0+3f2a9c1".
func (i Info) Short() string {
	c := i.Commit
	if c == "" || c == "none" {
		return i.Version
	}
	if len(c) > 7 {
		c = c[:7]
	}
	s := i.Version + "+" + c
	if i.VCSDirty != nil && *i.VCSDirty {
		s += ".dirty"
	}
	return s
}

// AppID is a user-agent safe identifier for outbound SDK calls.
func (i Info) AppID() string {
	return AppName + "/" + strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '+':
			return r
		}
		return '_'
	}, i.Short())
}
