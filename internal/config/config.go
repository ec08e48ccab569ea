// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads the accounts service configuration.
//
// Values are layered: flag defaults, then an optional YAML file, then flags
// set on the command line. Secrets never come from the file or flags; they
// are read from the environment, which may be seeded from a .env file.
package config

import (
	"errors"
	"io/fs"
	"math"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/accounts/internal/auth"
)

// Environment variables holding secrets.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTokenSecret = "ACCOUNTS_TOKEN_SECRET"
	EnvS3AccessKey = "ACCOUNTS_S3_ACCESS_KEY"
	EnvS3SecretKey = "ACCOUNTS_S3_SECRET_KEY"
)

// Config is the full service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Log      LogConfig      `koanf:"log"`
	Database DatabaseConfig `koanf:"database"`
	Token    TokenConfig    `koanf:"token"`
	Password PasswordConfig `koanf:"password"`
	S3       S3Config       `koanf:"s3"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	// MaxImageBytes bounds uploaded profile images.
	MaxImageBytes int64 `koanf:"max_image_bytes"`
}

// MetricsConfig configures the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// DatabaseConfig configures the PostgreSQL pool.
type DatabaseConfig struct {
	URL            string        `koanf:"-"`
	MaxConns       int           `koanf:"max_conns"`
	ConnectRetries int           `koanf:"connect_retries"`
	ConnectBackoff time.Duration `koanf:"connect_backoff"`
}

// TokenConfig configures token signing and the refresh cookie.
type TokenConfig struct {
	Secret       string        `koanf:"-"`
	Issuer       string        `koanf:"issuer"`
	AccessTTL    time.Duration `koanf:"access_ttl"`
	RefreshTTL   time.Duration `koanf:"refresh_ttl"`
	CookieName   string        `koanf:"cookie_name"`
	CookiePath   string        `koanf:"cookie_path"`
	CookieSecure bool          `koanf:"cookie_secure"`
}

// PasswordConfig sets the argon2id cost of new password hashes. Stored
// hashes made with other values are re-hashed at the next login.
type PasswordConfig struct {
	Iterations  int `koanf:"iterations"`
	MemoryKiB   int `koanf:"memory_kib"`
	Parallelism int `koanf:"parallelism"`
}

// S3Config configures profile image storage.
type S3Config struct {
	Endpoint     string `koanf:"endpoint"`
	Region       string `koanf:"region"`
	Bucket       string `koanf:"bucket"`
	Prefix       string `koanf:"prefix"`
	UsePathStyle bool   `koanf:"use_path_style"`
	AccessKey    string `koanf:"-"`
	SecretKey    string `koanf:"-"`
}

// Default values for configuration flags.
const (
	DefaultHTTPAddr        = ":8080"
	DefaultMetricsAddr     = "127.0.0.1:9101"
	DefaultLogFormat       = "json"
	DefaultLogLevel        = "info"
	DefaultShutdownTimeout = 10 * time.Second
	DefaultMaxImageBytes   = 5 << 20
	DefaultConnectRetries  = 5
	DefaultConnectBackoff  = 500 * time.Millisecond
	DefaultTokenIssuer     = "accounts"
	DefaultS3Region        = "us-east-1"
	DefaultS3Bucket        = "profile-images"
)

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":             "http.addr",
	"http-shutdown-timeout": "http.shutdown_timeout",
	"http-cors-origins":     "http.cors_origins",
	"http-max-image-bytes":  "http.max_image_bytes",
	"metrics-addr":          "metrics.addr",
	"log-format":            "log.format",
	"log-level":             "log.level",
	"db-max-conns":          "database.max_conns",
	"db-connect-retries":    "database.connect_retries",
	"db-connect-backoff":    "database.connect_backoff",
	"token-issuer":          "token.issuer",
	"token-access-ttl":      "token.access_ttl",
	"token-refresh-ttl":     "token.refresh_ttl",
	"token-cookie-name":     "token.cookie_name",
	"token-cookie-path":     "token.cookie_path",
	"token-cookie-secure":   "token.cookie_secure",
	"password-iterations":   "password.iterations",
	"password-memory-kib":   "password.memory_kib",
	"password-parallelism":  "password.parallelism",
	"s3-endpoint":           "s3.endpoint",
	"s3-region":             "s3.region",
	"s3-bucket":             "s3.bucket",
	"s3-prefix":             "s3.prefix",
	"s3-use-path-style":     "s3.use_path_style",
}

// RegisterFlags adds every configuration flag, with its default, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "HTTP API listen address")
	fs.Duration("http-shutdown-timeout", DefaultShutdownTimeout, "graceful shutdown timeout")
	fs.StringSlice("http-cors-origins", nil, "allowed CORS origins")
	fs.Int64("http-max-image-bytes", DefaultMaxImageBytes, "maximum profile image size in bytes")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics/health HTTP address (empty = disabled)")
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.Int("db-max-conns", 0, "maximum database connections (0 = driver default)")
	fs.Int("db-connect-retries", DefaultConnectRetries, "database connection attempts at startup")
	fs.Duration("db-connect-backoff", DefaultConnectBackoff, "first database retry delay")
	fs.String("token-issuer", DefaultTokenIssuer, "token issuer claim")
	fs.Duration("token-access-ttl", auth.DefaultAccessTokenTTL, "access token lifetime")
	fs.Duration("token-refresh-ttl", auth.DefaultRefreshTokenTTL, "refresh token lifetime")
	fs.String("token-cookie-name", auth.DefaultCookieName, "refresh cookie name")
	fs.String("token-cookie-path", auth.DefaultCookiePath, "refresh cookie path")
	fs.Bool("token-cookie-secure", true, "mark the refresh cookie Secure")
	defaults := auth.DefaultArgon2Params()
	fs.Int("password-iterations", int(defaults.Iterations), "argon2id passes for new password hashes")
	fs.Int("password-memory-kib", int(defaults.MemoryKiB), "argon2id memory in KiB for new password hashes")
	fs.Int("password-parallelism", int(defaults.Parallelism), "argon2id lanes for new password hashes")
	fs.String("s3-endpoint", "", "S3 endpoint URL (empty = AWS)")
	fs.String("s3-region", DefaultS3Region, "S3 region")
	fs.String("s3-bucket", DefaultS3Bucket, "S3 bucket for profile images")
	fs.String("s3-prefix", "", "object key prefix for profile images")
	fs.Bool("s3-use-path-style", false, "use path-style S3 addressing")
}

// Getenv looks up an environment variable.
type Getenv func(key string) string

// Load builds a Config from the file at path (optional), the flags in fs and
// the secrets returned by getenv.
func Load(path string, fs *pflag.FlagSet, getenv Getenv) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("path", path).
				Wrap(err)
		}
	}

	// Flags set on the command line override the file; untouched flags only
	// fill keys the file left unset.
	provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	})
	if err := k.Load(provider, nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "load flags").
			Wrap(err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").
			With("operation", "unmarshal").
			Wrap(err)
	}

	cfg.Database.URL = getenv(EnvDatabaseURL)
	cfg.Token.Secret = getenv(EnvTokenSecret)
	cfg.S3.AccessKey = getenv(EnvS3AccessKey)
	cfg.S3.SecretKey = getenv(EnvS3SecretKey)
	return &cfg, nil
}

// LoadEnvFile seeds the process environment from a .env file. Variables that
// are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return oops.Code("CONFIG_ENV_FILE_INVALID").
			With("path", path).
			Wrap(err)
	}
	return nil
}

// ValidateDatabase checks the settings needed to reach the database.
func (c *Config) ValidateDatabase() error {
	if c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvDatabaseURL).
			Errorf("%s environment variable is required", EnvDatabaseURL)
	}
	if c.Database.ConnectRetries < 1 {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.connect_retries").
			Errorf("at least one connection attempt is required")
	}
	if c.Database.MaxConns < 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.max_conns").
			Errorf("max connections cannot be negative")
	}
	return nil
}

// Validate checks everything the serve command needs.
func (c *Config) Validate() error {
	if err := c.ValidateDatabase(); err != nil {
		return err
	}
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "http.addr").
			Errorf("http address is required")
	}
	if c.HTTP.MaxImageBytes <= 0 {
		return oops.Code("CONFIG_INVALID").
			With("key", "http.max_image_bytes").
			Errorf("max image size must be positive")
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			With("value", c.Log.Format).
			Errorf("log format must be json or text")
	}
	if len(c.Token.Secret) < auth.MinSecretLength {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvTokenSecret).
			With("min_length", auth.MinSecretLength).
			Errorf("%s must be at least %d bytes", EnvTokenSecret, auth.MinSecretLength)
	}
	if c.Token.AccessTTL <= 0 || c.Token.AccessTTL >= c.Token.RefreshTTL {
		return oops.Code("CONFIG_INVALID").
			With("access_ttl", c.Token.AccessTTL.String()).
			With("refresh_ttl", c.Token.RefreshTTL.String()).
			Errorf("access token lifetime must be positive and shorter than refresh token lifetime")
	}
	if _, err := c.Argon2Params(); err != nil {
		return err
	}
	if c.S3.Bucket == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "s3.bucket").
			Errorf("s3 bucket is required")
	}
	if (c.S3.AccessKey == "") != (c.S3.SecretKey == "") {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvS3AccessKey+","+EnvS3SecretKey).
			Errorf("s3 access key and secret key must be set together")
	}
	return nil
}

// AuthTokenConfig converts the token settings for auth.NewTokenIssuer.
func (c *Config) AuthTokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:       []byte(c.Token.Secret),
		Issuer:       c.Token.Issuer,
		AccessTTL:    c.Token.AccessTTL,
		RefreshTTL:   c.Token.RefreshTTL,
		CookieName:   c.Token.CookieName,
		CookiePath:   c.Token.CookiePath,
		CookieSecure: c.Token.CookieSecure,
	}
}

// Argon2Params converts the password settings for auth.NewArgon2idHasher.
func (c *Config) Argon2Params() (auth.Argon2Params, error) {
	pw := c.Password
	if pw.Iterations < 1 || pw.MemoryKiB < 1 || pw.Parallelism < 1 || pw.Parallelism > 255 ||
		int64(pw.Iterations) > math.MaxUint32 || int64(pw.MemoryKiB) > math.MaxUint32 {
		return auth.Argon2Params{}, oops.Code("CONFIG_INVALID").
			With("key", "password").
			Errorf("password hashing parameters out of range")
	}
	params := auth.DefaultArgon2Params()
	params.Iterations = uint32(pw.Iterations)
	params.MemoryKiB = uint32(pw.MemoryKiB)
	params.Parallelism = uint8(pw.Parallelism)
	if err := params.Validate(); err != nil {
		return auth.Argon2Params{}, oops.Code("CONFIG_INVALID").
			With("key", "password").
			Errorf("invalid password hashing parameters: %v", err)
	}
	return params, nil
}
