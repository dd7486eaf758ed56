// Package config loads memreg settings from a YAML file, MEMREG_*
// environment variables and command-line flags, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/Kitoverdie1/uph-mem-system/pkg/attachments"
	"github.com/Kitoverdie1/uph-mem-system/pkg/audit"
	"github.com/Kitoverdie1/uph-mem-system/pkg/authz"
	"github.com/Kitoverdie1/uph-mem-system/pkg/cache"
	"github.com/Kitoverdie1/uph-mem-system/pkg/ha"
	"github.com/Kitoverdie1/uph-mem-system/pkg/inbox"
	"github.com/Kitoverdie1/uph-mem-system/pkg/jobs"
)

// EnvPrefix prefixes every environment override, e.g. MEMREG_SERVER_LISTEN.
const EnvPrefix = "MEMREG"

// Store backends.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMySQL    = "mysql"
	BackendRedis    = "redis"
)

// Config is the complete memreg configuration.
type Config struct {
	Log           LogConfig         `mapstructure:"log"`
	Store         StoreConfig       `mapstructure:"store"`
	Database      DatabaseConfig    `mapstructure:"database"`
	Server        ServerConfig      `mapstructure:"server"`
	Attachments   AttachmentsConfig `mapstructure:"attachments"`
	Jobs          JobsConfig        `mapstructure:"jobs"`
	Audit         AuditConfig       `mapstructure:"audit"`
	Cache         CacheConfig       `mapstructure:"cache"`
	Inbox         InboxConfig       `mapstructure:"inbox"`
	MigrationLock bool              `mapstructure:"migration_lock"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects where the registry document lives.
type StoreConfig struct {
	Backend      string `mapstructure:"backend"`
	Path         string `mapstructure:"path"`
	DSN          string `mapstructure:"dsn"`
	RedisURL     string `mapstructure:"redis_url"`
	Key          string `mapstructure:"key"`
	HistoryLimit int    `mapstructure:"history_limit"`
	// HistoryDir enables the git change log when set.
	HistoryDir string `mapstructure:"history_dir"`
}

// DatabaseConfig is the relational database holding jobs and audit events.
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type ServerConfig struct {
	Listen        string     `mapstructure:"listen"`
	CORSOrigins   []string   `mapstructure:"cors_origins"`
	MaxUploadMB   int        `mapstructure:"max_upload_mb"`
	PublicBaseURL string     `mapstructure:"public_base_url"`
	SpoolDir      string     `mapstructure:"spool_dir"`
	Auth          AuthConfig `mapstructure:"auth"`
}

// AuthConfig selects how callers are identified and authorized.
type AuthConfig struct {
	Mode             string    `mapstructure:"mode"`
	Authz            string    `mapstructure:"authz"`
	PrivilegedGroups []string  `mapstructure:"privileged_groups"`
	JWT              JWTConfig `mapstructure:"jwt"`
}

type JWTConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Secret        string `mapstructure:"secret"`
	RoleClaim     string `mapstructure:"role_claim"`
	AdminRole     string `mapstructure:"admin_role"`
	Issuer        string `mapstructure:"issuer"`
	Audience      string `mapstructure:"audience"`
}

type AttachmentsConfig struct {
	Backend string      `mapstructure:"backend"`
	Dir     string      `mapstructure:"dir"`
	Minio   MinioConfig `mapstructure:"minio"`
}

type MinioConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

type JobsConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxRetries    int           `mapstructure:"max_retries"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ClaimTimeout  time.Duration `mapstructure:"claim_timeout"`
	RetentionDays int           `mapstructure:"retention_days"`
}

type AuditConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	LogDenied     bool `mapstructure:"log_denied"`
	RetentionDays int  `mapstructure:"retention_days"`
}

// CacheConfig durations accept Go durations ("30s") or plain seconds.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	SummaryTTL  time.Duration `mapstructure:"summary_ttl"`
	ResponseTTL time.Duration `mapstructure:"response_ttl"`
	MaxSize     int           `mapstructure:"max_size"`
}

type InboxConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Dir      string        `mapstructure:"dir"`
	Debounce time.Duration `mapstructure:"debounce"`
	Policy   string        `mapstructure:"policy"`
}

// flagKeys binds command-line flags to configuration keys.
var flagKeys = map[string]string{
	"listen":    "server.listen",
	"store":     "store.backend",
	"data":      "store.path",
	"dsn":       "store.dsn",
	"log-level": "log.level",
}

// Load reads the configuration. path names a YAML file; when empty,
// ./memreg.yaml and ~/.config/memreg/memreg.yaml are tried and a missing
// file is not an error. flags may be nil.
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("config: failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("memreg")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "memreg"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(
		secondsToDurationHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("config: failed to decode: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults seeds every key. Component defaults come from their
// MEMREG_* environment readers.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")

	v.SetDefault("store.backend", BackendFile)
	v.SetDefault("store.path", filepath.Join("data", "db.json"))
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")
	v.SetDefault("store.key", "")
	v.SetDefault("store.history_limit", 20)
	v.SetDefault("store.history_dir", "")

	v.SetDefault("database.driver", BackendSQLite)
	v.SetDefault("database.dsn", filepath.Join("data", "memreg.db"))

	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.cors_origins", []string{"https://*", "http://*"})
	v.SetDefault("server.max_upload_mb", 25)
	v.SetDefault("server.public_base_url", "")
	v.SetDefault("server.spool_dir", filepath.Join("data", "spool"))
	v.SetDefault("server.auth.mode", string(authz.IdentityModeHeader))
	v.SetDefault("server.auth.authz", string(authz.AuthzModeRole))
	v.SetDefault("server.auth.privileged_groups", []string{"admins"})
	v.SetDefault("server.auth.jwt.public_key_path", "")
	v.SetDefault("server.auth.jwt.secret", "")
	v.SetDefault("server.auth.jwt.role_claim", "role")
	v.SetDefault("server.auth.jwt.admin_role", "admin")
	v.SetDefault("server.auth.jwt.issuer", "")
	v.SetDefault("server.auth.jwt.audience", "")

	v.SetDefault("attachments.backend", "local")
	v.SetDefault("attachments.dir", filepath.Join("data", "uploads"))
	v.SetDefault("attachments.minio.endpoint", "")
	v.SetDefault("attachments.minio.access_key", "")
	v.SetDefault("attachments.minio.secret_key", "")
	v.SetDefault("attachments.minio.bucket", "memreg")
	v.SetDefault("attachments.minio.use_ssl", false)

	j := jobs.JobConfigFromEnv()
	v.SetDefault("jobs.enabled", j.Enabled)
	v.SetDefault("jobs.concurrency", j.Concurrency)
	v.SetDefault("jobs.max_retries", j.MaxRetries)
	v.SetDefault("jobs.poll_interval", j.PollInterval)
	v.SetDefault("jobs.claim_timeout", j.ClaimTimeout)
	v.SetDefault("jobs.retention_days", j.RetentionDays)

	a := audit.AuditConfigFromEnv()
	v.SetDefault("audit.enabled", a.Enabled)
	v.SetDefault("audit.log_denied", a.LogDenied)
	v.SetDefault("audit.retention_days", a.RetentionDays)

	c := cache.CacheConfigFromEnv()
	v.SetDefault("cache.enabled", c.Enabled)
	v.SetDefault("cache.summary_ttl", c.SummaryTTL)
	v.SetDefault("cache.response_ttl", c.ResponseTTL)
	v.SetDefault("cache.max_size", c.MaxSize)

	in := inbox.ConfigFromEnv()
	v.SetDefault("inbox.enabled", in.Enabled)
	v.SetDefault("inbox.dir", in.Dir)
	v.SetDefault("inbox.debounce", in.Debounce)
	v.SetDefault("inbox.policy", in.Policy)

	v.SetDefault("migration_lock", ha.ConfigFromEnv().MigrationLockEnabled)
}

// secondsToDurationHook decodes bare numbers as seconds.
func secondsToDurationHook() mapstructure.DecodeHookFuncType {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch from.Kind() {
		case reflect.String:
			s := strings.TrimSpace(data.(string))
			if n, err := strconv.Atoi(s); err == nil {
				return time.Duration(n) * time.Second, nil
			}
		case reflect.Int, reflect.Int32, reflect.Int64:
			if from == reflect.TypeOf(time.Duration(0)) {
				return data, nil
			}
			return time.Duration(reflect.ValueOf(data).Int()) * time.Second, nil
		}
		return data, nil
	}
}

// Validate rejects unknown modes and missing settings.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case BackendFile:
		if c.Store.Path == "" {
			return errors.New("config: store.path is required for the file backend")
		}
	case BackendSQLite, BackendPostgres, BackendMySQL:
		if c.Store.DSN == "" {
			return fmt.Errorf("config: store.dsn is required for the %s backend", c.Store.Backend)
		}
	case BackendRedis:
		if c.Store.RedisURL == "" {
			return errors.New("config: store.redis_url is required for the redis backend")
		}
	default:
		return fmt.Errorf("config: unknown store backend %q (expected file, sqlite, postgres, mysql or redis)", c.Store.Backend)
	}

	switch c.Database.Driver {
	case BackendSQLite, BackendPostgres, BackendMySQL:
	default:
		return fmt.Errorf("config: unknown database driver %q (expected sqlite, postgres or mysql)", c.Database.Driver)
	}

	switch authz.IdentityMode(c.Server.Auth.Mode) {
	case authz.IdentityModeHeader:
	case authz.IdentityModeJWT:
		if c.Server.Auth.JWT.PublicKeyPath == "" && c.Server.Auth.JWT.Secret == "" {
			return errors.New("config: jwt auth needs server.auth.jwt.public_key_path or server.auth.jwt.secret")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q (expected header or jwt)", c.Server.Auth.Mode)
	}

	switch c.Attachments.Backend {
	case "local":
		if c.Attachments.Dir == "" {
			return errors.New("config: attachments.dir is required for local attachments")
		}
	case "minio":
		if c.Attachments.Minio.Endpoint == "" || c.Attachments.Minio.Bucket == "" {
			return errors.New("config: attachments.minio.endpoint and bucket are required")
		}
	default:
		return fmt.Errorf("config: unknown attachments backend %q (expected local or minio)", c.Attachments.Backend)
	}

	if c.Server.MaxUploadMB <= 0 {
		return errors.New("config: server.max_upload_mb must be positive")
	}
	return nil
}

// SlogLevel maps log.level to a slog level. Unknown names log at info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// DatabaseDSN returns the jobs and audit database, sharing the store's
// database when the registry itself lives in one of the same kind.
func (c *Config) DatabaseDSN() (driver, dsn string) {
	if c.Store.Backend == c.Database.Driver && c.Store.DSN != "" {
		return c.Store.Backend, c.Store.DSN
	}
	return c.Database.Driver, c.Database.DSN
}

func (c JobsConfig) JobConfig() *jobs.JobConfig {
	return &jobs.JobConfig{
		Concurrency:   c.Concurrency,
		MaxRetries:    c.MaxRetries,
		PollInterval:  c.PollInterval,
		ClaimTimeout:  c.ClaimTimeout,
		RetentionDays: c.RetentionDays,
		Enabled:       c.Enabled,
	}
}

func (c AuditConfig) AuditConfig() *audit.AuditConfig {
	return &audit.AuditConfig{
		Enabled:       c.Enabled,
		LogDenied:     c.LogDenied,
		RetentionDays: c.RetentionDays,
	}
}

func (c CacheConfig) CacheConfig() *cache.CacheConfig {
	return &cache.CacheConfig{
		Enabled:     c.Enabled,
		SummaryTTL:  c.SummaryTTL,
		ResponseTTL: c.ResponseTTL,
		MaxSize:     c.MaxSize,
	}
}

func (c InboxConfig) InboxConfig() inbox.Config {
	return inbox.Config{
		Enabled:  c.Enabled,
		Dir:      c.Dir,
		Debounce: c.Debounce,
		Policy:   c.Policy,
	}
}

func (c MinioConfig) MinioConfig() attachments.MinioConfig {
	return attachments.MinioConfig{
		Endpoint:  c.Endpoint,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Bucket:    c.Bucket,
		UseSSL:    c.UseSSL,
	}
}

// JWTConfig builds the bearer token settings.
func (c AuthConfig) JWTConfig(logger *slog.Logger) authz.JWTConfig {
	return authz.JWTConfig{
		PublicKeyPath:  c.JWT.PublicKeyPath,
		Secret:         c.JWT.Secret,
		RoleClaim:      c.JWT.RoleClaim,
		AdminRoleValue: c.JWT.AdminRole,
		Issuer:         c.JWT.Issuer,
		Audience:       c.JWT.Audience,
		Logger:         logger,
	}
}
