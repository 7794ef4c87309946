// Package config provides layered configuration loading for the Dropcode
// service. It merges defaults with DROPCODE_* environment variables and
// validates the result. Backend selection is a configuration decision:
// a non-empty database_url selects the remote Postgres store, otherwise the
// local SQLite store under data_dir is used.
package config

import (
	"fmt"
	"net"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DROPCODE_"

// Config holds the merged runtime configuration for the Dropcode service.
type Config struct {
	Addr                 string        `koanf:"addr" validate:"required,ip_port"`
	DataDir              string        `koanf:"data_dir" validate:"required,safe_dir"`
	DatabaseURL          string        `koanf:"database_url"`
	MaxFileBytes         int64         `koanf:"max_file_bytes" validate:"gt=0"`
	DefaultTTL           time.Duration `koanf:"default_ttl" validate:"gt=0"`
	DefaultMaxDownloads  int           `koanf:"default_max_downloads" validate:"ne=0"` // negative means unlimited
	SweepInterval        time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	MetricsFlushInterval time.Duration `koanf:"metrics_flush_interval" validate:"gt=0"`
	MetricsToken         string        `koanf:"metrics_token"`
}

// DefaultAppConfig holds secure, minimal sane defaults.
var DefaultAppConfig = Config{
	Addr:                 ":8080",
	DataDir:              "./data",
	MaxFileBytes:         25 << 20, // 25 MiB
	DefaultTTL:           7 * 24 * time.Hour,
	DefaultMaxDownloads:  100,
	SweepInterval:        time.Minute,
	MetricsFlushInterval: 5 * time.Second,
}

// Loader funcs are package variables so tests can inject failures.
var (
	defaultLoader = func(k *koanf.Koanf) error {
		return k.Load(structs.Provider(DefaultAppConfig, "koanf"), nil)
	}

	envLoader = func(k *koanf.Koanf) error {
		return k.Load(env.Provider(".", env.Opt{
			Prefix: envPrefix,
			TransformFunc: func(key, value string) (string, any) {
				return strings.ToLower(strings.TrimPrefix(key, envPrefix)), value
			},
		}), nil)
	}

	registerValidators = func(v *validator.Validate) error {
		if err := v.RegisterValidation("ip_port", validIPPort); err != nil {
			return err
		}
		return v.RegisterValidation("safe_dir", validSafeDir)
	}
)

// Load merges defaults and environment, decodes durations and human byte
// sizes, and validates the result.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := defaultLoader(k); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}
	if err := envLoader(k); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	dc := &mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			StringToByteSize(),
		),
		Result:           &cfg,
		WeaklyTypedInput: true,
	}
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", DecoderConfig: dc}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	v := validator.New()
	if err := registerValidators(v); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}
	if err := v.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// UseRemoteStore reports whether the remote Postgres backend is selected.
func (c *Config) UseRemoteStore() bool { return c.DatabaseURL != "" }

// SQLiteDSN builds the DSN for the local shares database under DataDir.
func (c *Config) SQLiteDSN() string {
	return "file:" + joinDir(c.DataDir, "dropcode.db") + sqlitePragmas
}

// MetricsDSN builds the DSN for the node-local metrics database. Metrics are
// per-node regardless of which share store backend is selected.
func (c *Config) MetricsDSN() string {
	return "file:" + joinDir(c.DataDir, "metrics.db") + sqlitePragmas
}

const sqlitePragmas = "?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000&_synchronous=FULL"

func joinDir(dir, file string) string {
	if dir == "" {
		return file
	}
	if dir[len(dir)-1] == '/' {
		return dir + file
	}
	return dir + "/" + file
}

// validIPPort accepts "IP:port" or ":port" with a numeric port in 1..65535.
// Hostnames are rejected; the listen address must be an explicit IP or
// wildcard.
func validIPPort(fl validator.FieldLevel) bool {
	host, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil {
		return false
	}
	if host != "" && net.ParseIP(host) == nil {
		return false
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return false
	}
	return p >= 1 && p <= 65535
}

// validSafeDir rejects empty, root, bare-dot, and any path traversing
// upward; accepts ordinary relative and absolute directories.
func validSafeDir(fl validator.FieldLevel) bool {
	p := fl.Field().String()
	if p == "" {
		return false
	}
	clean := filepath.Clean(p)
	if clean == "." || clean == "/" || clean == ".." {
		return false
	}
	for _, part := range strings.Split(clean, string(filepath.Separator)) {
		if part == ".." {
			return false
		}
	}
	return true
}

// StringToByteSize is a DecodeHookFunc converting human byte-size strings
// ("25MiB", "512K", "1048576") to int64 byte counts.
func StringToByteSize() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String || t != reflect.TypeOf(int64(0)) {
			return data, nil
		}
		return ParseSize(data.(string))
	}
}

// ParseSize converts a human-friendly size string into a byte count.
// Accepts plain integers (bytes) or IEC/short suffixes: KiB/MiB/GiB
// (case-insensitive) or K/M/G.
func ParseSize(s string) (int64, error) {
	orig := s
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" {
		return 0, fmt.Errorf("empty size string")
	}
	type unit struct {
		suffix string
		mult   int64
	}
	units := []unit{
		{"KIB", 1 << 10}, {"MIB", 1 << 20}, {"GIB", 1 << 30},
		{"K", 1 << 10}, {"M", 1 << 20}, {"G", 1 << 30},
	}
	for _, u := range units {
		if strings.HasSuffix(s, u.suffix) {
			numPart := strings.TrimSpace(s[:len(s)-len(u.suffix)])
			if numPart == "" {
				return 0, fmt.Errorf("parse size %q: missing number", orig)
			}
			n, err := parsePositiveInt(numPart)
			if err != nil {
				return 0, fmt.Errorf("parse size %q: %w", orig, err)
			}
			return n * u.mult, nil
		}
	}
	n, err := parsePositiveInt(s)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", orig, err)
	}
	return n, nil
}

func parsePositiveInt(raw string) (int64, error) {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative not allowed")
	}
	return n, nil
}
