package cfg

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
)

// EnvPrefix namespaces every environment variable: flag "redis-addr" reads
// HUB_REDIS_ADDR.
const EnvPrefix = "HUB_"

const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
	BlobS3      = "s3"
	BlobDir     = "dir"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int

	HTTPPort    int
	OpsPort     int
	EnablePprof bool

	EnableTracing   bool
	OTLPEndpoint    string
	TraceSample     float64
	EnablePyroscope bool
	PyroServer      string
	PyroTenantID    string

	StoreBackend  string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	BlobBackend string
	BlobDir     string
	S3Bucket    string
	S3Prefix    string

	AdminSecret              string
	AdminSecretSSMParam      string
	AdminSecretKMSCiphertext string

	RateLimitWindow      time.Duration
	RateLimitCleanup     time.Duration
	RateLimitAdminMax    int
	RateLimitFormMax     int
	RateLimitDownloadMax int
	RateLimitTokenMax    int
}

// Register binds all config fields to the given FlagSet with defaults inline
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")

	fs.IntVar(&c.HTTPPort, "http-port", 8080, "public API listen TCP port (1..65535)")
	fs.IntVar(&c.OpsPort, "ops-port", 9000, "metrics/health/pprof listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", false, "Enable pprof profiling (on ops port only)")

	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")

	fs.StringVar(&c.StoreBackend, "store-backend", StoreMemory, "row store: memory|redis")
	fs.StringVar(&c.RedisAddr, "redis-addr", "localhost:6379", "redis host:port")
	fs.StringVar(&c.RedisPassword, "redis-password", "", "redis password")
	fs.IntVar(&c.RedisDB, "redis-db", 0, "redis database number (0..15)")

	fs.StringVar(&c.BlobBackend, "blob-backend", BlobDir, "resource file store: s3|dir")
	fs.StringVar(&c.BlobDir, "blob-dir", "./resources", "directory served when blob-backend=dir")
	fs.StringVar(&c.S3Bucket, "s3-bucket", "", "s3 bucket holding resource files")
	fs.StringVar(&c.S3Prefix, "s3-prefix", "", "s3 key prefix for resource files")

	fs.StringVar(&c.AdminSecret, "admin-secret", "", "admin API secret (prefer the ssm or kms source)")
	fs.StringVar(&c.AdminSecretSSMParam, "admin-secret-ssm-param", "", "SSM SecureString parameter holding the admin secret")
	fs.StringVar(&c.AdminSecretKMSCiphertext, "admin-secret-kms-ciphertext", "", "base64 KMS ciphertext of the admin secret")

	fs.DurationVar(&c.RateLimitWindow, "ratelimit-window", time.Minute, "rate limit window length")
	fs.DurationVar(&c.RateLimitCleanup, "ratelimit-cleanup", 5*time.Minute, "expired window sweep interval (0 disables)")
	fs.IntVar(&c.RateLimitAdminMax, "ratelimit-admin-max", 5, "admin requests per client per window")
	fs.IntVar(&c.RateLimitFormMax, "ratelimit-form-max", 10, "subscribe submissions per client per window")
	fs.IntVar(&c.RateLimitDownloadMax, "ratelimit-download-max", 10, "downloads per client per window")
	fs.IntVar(&c.RateLimitTokenMax, "ratelimit-token-max", 10, "unsubscribe/confirm links per client per window")
}

// LoadDotEnv loads KEY=value pairs from path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// FillFromEnv sets any flag not explicitly passed on the CLI from
// environment variables. Flag "foo-bar" maps to PREFIX_FOO_BAR.
// Precedence: cli flag > env var > default.
func FillFromEnv(fs *flag.FlagSet, prefix string, logf func(string, ...any)) {
	explicit := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	fs.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		envVal, envSet := os.LookupEnv(key)
		if !envSet {
			return
		}
		if explicit[f.Name] {
			if logf != nil {
				logf("flag -%s: cli value overrides env %s", f.Name, key)
			}
			return
		}
		prev := f.Value.String()
		if err := fs.Set(f.Name, envVal); err != nil {
			_ = fs.Set(f.Name, prev)
			if logf != nil {
				logf("flag -%s: ignoring invalid env %s: %v", f.Name, key, err)
			}
		}
	})
}

// EnvKey maps a flag name to its environment variable.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ReplaceAll(strings.ToUpper(flagName), "-", "_")
}

// HasAdminSecretSource reports whether any admin secret source is set.
func (c App) HasAdminSecretSource() bool {
	return c.AdminSecret != "" || c.AdminSecretSSMParam != "" || c.AdminSecretKMSCiphertext != ""
}

// Validate checks that config values are within expected ranges and formats.
// Returns an error describing all invalid fields, or nil if all valid.
func Validate(c App) error {
	var errs []error

	// Ports
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort))
	}
	if c.OpsPort < 1 || c.OpsPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid OPS_PORT %d (must be 1..65535)", c.OpsPort))
	}
	if c.OpsPort == c.HTTPPort {
		errs = append(errs, fmt.Errorf("OPS_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort))
	}

	// Log levels
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("invalid LOG_LEVEL %q: %w", c.LogLevel, err))
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			errs = append(errs, fmt.Errorf("invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err))
		}
	}
	if c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64) {
		errs = append(errs, fmt.Errorf("MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks))
	}

	// Tracing
	if c.TraceSample < 0 || c.TraceSample > 1 {
		errs = append(errs, fmt.Errorf("invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample))
	}
	// grpc exporter wants host:port, no scheme
	if c.EnableTracing {
		if c.OTLPEndpoint == "" {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT required when ENABLE_TRACING=true"))
		} else if _, _, err := net.SplitHostPort(c.OTLPEndpoint); err != nil {
			errs = append(errs, fmt.Errorf("OTLP_ENDPOINT must be host:port (got %q): %v", c.OTLPEndpoint, err))
		}
	}

	// Pyroscope
	if c.EnablePyroscope {
		if c.PyroServer == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER required when ENABLE_PYROSCOPE=true"))
		} else if u, err := url.Parse(c.PyroServer); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("PYRO_SERVER must be a URL (got %q)", c.PyroServer))
		}
		if c.PyroTenantID == "" {
			errs = append(errs, fmt.Errorf("PYRO_TENANT required when ENABLE_PYROSCOPE=true"))
		}
	}

	// Row store
	switch c.StoreBackend {
	case StoreMemory:
	case StoreRedis:
		if _, _, err := net.SplitHostPort(c.RedisAddr); err != nil {
			errs = append(errs, fmt.Errorf("REDIS_ADDR must be host:port (got %q)", c.RedisAddr))
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			errs = append(errs, fmt.Errorf("REDIS_DB must be 0..15 (got %d)", c.RedisDB))
		}
	default:
		errs = append(errs, fmt.Errorf("STORE_BACKEND must be %s or %s (got %q)", StoreMemory, StoreRedis, c.StoreBackend))
	}

	// Blob store
	switch c.BlobBackend {
	case BlobDir:
		if c.BlobDir == "" {
			errs = append(errs, fmt.Errorf("BLOB_DIR required when BLOB_BACKEND=dir"))
		}
	case BlobS3:
		if c.S3Bucket == "" {
			errs = append(errs, fmt.Errorf("S3_BUCKET required when BLOB_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("BLOB_BACKEND must be %s or %s (got %q)", BlobS3, BlobDir, c.BlobBackend))
	}

	// Admin secret: at most one source; none leaves the admin API closed
	sources := 0
	for _, s := range []string{c.AdminSecret, c.AdminSecretSSMParam, c.AdminSecretKMSCiphertext} {
		if s != "" {
			sources++
		}
	}
	if sources > 1 {
		errs = append(errs, fmt.Errorf("set only one of ADMIN_SECRET, ADMIN_SECRET_SSM_PARAM, ADMIN_SECRET_KMS_CIPHERTEXT"))
	}

	// Rate limits
	if c.RateLimitWindow <= 0 {
		errs = append(errs, fmt.Errorf("RATELIMIT_WINDOW must be positive (got %s)", c.RateLimitWindow))
	}
	if c.RateLimitCleanup < 0 {
		errs = append(errs, fmt.Errorf("RATELIMIT_CLEANUP must not be negative (got %s)", c.RateLimitCleanup))
	}
	for name, v := range map[string]int{
		"RATELIMIT_ADMIN_MAX":    c.RateLimitAdminMax,
		"RATELIMIT_FORM_MAX":     c.RateLimitFormMax,
		"RATELIMIT_DOWNLOAD_MAX": c.RateLimitDownloadMax,
		"RATELIMIT_TOKEN_MAX":    c.RateLimitTokenMax,
	} {
		if v < 1 {
			errs = append(errs, fmt.Errorf("%s must be at least 1 (got %d)", name, v))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
