package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App          AppConfig
	Database     DatabaseConfig
	Redis        RedisConfig
	Log          LogConfig
	HTTP         HTTPConfig
	Scheduler    SchedulerConfig
	Billing      BillingConfig
	Notification NotificationConfig
	Cache        CacheConfig
	Storage      StorageConfig
	Telemetry    TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name     string
	Env      string
	Port     string
	Timezone string // IANA zone used to decide what "today" is
}

// Supported database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Driver          string // postgres or sqlite
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	SQLitePath      string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	AutoMigrate     bool
	LogLevel        string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxHeaderBytes  int
	TrustedProxies  []string
}

// SchedulerConfig holds the cron schedules of the batch jobs
type SchedulerConfig struct {
	Enabled           bool
	GenerateSchedule  string
	SweepSchedule     string
	RecomputeSchedule string
	NotifySchedule    string
	JobTimeout        time.Duration
	HistorySize       int
	// DistributedLock guards job runs with a Redis lock across instances
	DistributedLock bool
}

// BillingConfig seeds the persisted billing configuration on first start and
// tunes the payment ledger
type BillingConfig struct {
	DueDay              int
	GraceDays           int
	LateFeeRate         float64
	UpcomingWindowDays  int
	CutoffThresholdDays int
	ReminderLeadDays    int
	CutoffWarningDays   int
	ReceiptPrefix       string
	MaxApplyAttempts    int
	RetryBackoff        time.Duration
	LockWait            time.Duration
}

// NotificationConfig selects the notification channels
type NotificationConfig struct {
	LogChannel       bool
	WebsocketChannel bool
	DeliveryTimeout  time.Duration
	AllowedOrigins   []string
}

// CacheConfig holds cache settings
type CacheConfig struct {
	StatsTTL time.Duration
}

// StorageConfig holds S3-compatible object storage settings for report archives
type StorageConfig struct {
	Enabled           bool
	Endpoint          string
	Bucket            string
	AccessKey         string
	SecretKey         string
	Region            string
	UseSSL            bool
	UsePathStyle      bool
	PresignExpiration time.Duration
	ReportPrefix      string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	ServiceName       string
	Insecure          bool
	DBTraceEnabled    bool
	DBLogFullSQL      bool
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Pyroscope continuous profiling
	ProfilingEnabled bool
	ProfilingServer  string
	SpanProfiles     bool
}

// Load loads configuration from config.toml and environment variables.
// Priority (highest to lowest):
//  1. Environment variables with LEDGER_ prefix (e.g., LEDGER_DATABASE_PASSWORD)
//  2. config.toml
//  3. Built-in defaults
func Load() (*Config, error) {
	return LoadFrom(".", "./config", "/app")
}

// LoadFrom is Load with explicit search paths for config.toml
func LoadFrom(paths ...string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Zero is a meaningful value for these keys, so they get viper defaults
	// instead of zero-value substitution in applyDefaults.
	v.SetDefault("billing.grace_days", 3)
	v.SetDefault("billing.late_fee_rate", 0.05)
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("notification.log_channel", true)

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name:     v.GetString("app.name"),
			Env:      v.GetString("app.env"),
			Port:     v.GetString("app.port"),
			Timezone: v.GetString("app.timezone"),
		},
		Database: DatabaseConfig{
			Driver:          v.GetString("database.driver"),
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			SQLitePath:      v.GetString("database.sqlite_path"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			AutoMigrate:     v.GetBool("database.auto_migrate"),
			LogLevel:        v.GetString("database.log_level"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:     v.GetDuration("http.read_timeout"),
			WriteTimeout:    v.GetDuration("http.write_timeout"),
			IdleTimeout:     v.GetDuration("http.idle_timeout"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
			MaxHeaderBytes:  v.GetInt("http.max_header_bytes"),
			TrustedProxies:  v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:           v.GetBool("scheduler.enabled"),
			GenerateSchedule:  v.GetString("scheduler.generate_schedule"),
			SweepSchedule:     v.GetString("scheduler.sweep_schedule"),
			RecomputeSchedule: v.GetString("scheduler.recompute_schedule"),
			NotifySchedule:    v.GetString("scheduler.notify_schedule"),
			JobTimeout:        v.GetDuration("scheduler.job_timeout"),
			HistorySize:       v.GetInt("scheduler.history_size"),
			DistributedLock:   v.GetBool("scheduler.distributed_lock"),
		},
		Billing: BillingConfig{
			DueDay:              v.GetInt("billing.due_day"),
			GraceDays:           v.GetInt("billing.grace_days"),
			LateFeeRate:         v.GetFloat64("billing.late_fee_rate"),
			UpcomingWindowDays:  v.GetInt("billing.upcoming_window_days"),
			CutoffThresholdDays: v.GetInt("billing.cutoff_threshold_days"),
			ReminderLeadDays:    v.GetInt("billing.reminder_lead_days"),
			CutoffWarningDays:   v.GetInt("billing.cutoff_warning_days"),
			ReceiptPrefix:       v.GetString("billing.receipt_prefix"),
			MaxApplyAttempts:    v.GetInt("billing.max_apply_attempts"),
			RetryBackoff:        v.GetDuration("billing.retry_backoff"),
			LockWait:            v.GetDuration("billing.lock_wait"),
		},
		Notification: NotificationConfig{
			LogChannel:       v.GetBool("notification.log_channel"),
			WebsocketChannel: v.GetBool("notification.websocket_channel"),
			DeliveryTimeout:  v.GetDuration("notification.delivery_timeout"),
			AllowedOrigins:   v.GetStringSlice("notification.allowed_origins"),
		},
		Cache: CacheConfig{
			StatsTTL: v.GetDuration("cache.stats_ttl"),
		},
		Storage: StorageConfig{
			Enabled:           v.GetBool("storage.enabled"),
			Endpoint:          v.GetString("storage.endpoint"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			Region:            v.GetString("storage.region"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
			ReportPrefix:      v.GetString("storage.report_prefix"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			ProfilingServer:   v.GetString("telemetry.profiling_server"),
			SpanProfiles:      v.GetBool("telemetry.span_profiles"),
		},
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "subledger"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.App.Timezone == "" {
		cfg.App.Timezone = "UTC"
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = DriverPostgres
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "subledger"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "subledger.db"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}

	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout == 0 {
		cfg.HTTP.ShutdownTimeout = 30 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20
	}

	if cfg.Scheduler.GenerateSchedule == "" {
		cfg.Scheduler.GenerateSchedule = "0 2 * * *"
	}
	if cfg.Scheduler.SweepSchedule == "" {
		cfg.Scheduler.SweepSchedule = "15 2 * * *"
	}
	if cfg.Scheduler.RecomputeSchedule == "" {
		cfg.Scheduler.RecomputeSchedule = "30 2 * * *"
	}
	if cfg.Scheduler.NotifySchedule == "" {
		cfg.Scheduler.NotifySchedule = "0 3 * * *"
	}
	if cfg.Scheduler.JobTimeout == 0 {
		cfg.Scheduler.JobTimeout = 30 * time.Minute
	}
	if cfg.Scheduler.HistorySize == 0 {
		cfg.Scheduler.HistorySize = 20
	}

	if cfg.Billing.DueDay == 0 {
		cfg.Billing.DueDay = 5
	}
	if cfg.Billing.UpcomingWindowDays == 0 {
		cfg.Billing.UpcomingWindowDays = 5
	}
	if cfg.Billing.CutoffThresholdDays == 0 {
		cfg.Billing.CutoffThresholdDays = 5
	}
	if cfg.Billing.ReminderLeadDays == 0 {
		cfg.Billing.ReminderLeadDays = 5
	}
	if cfg.Billing.CutoffWarningDays == 0 {
		cfg.Billing.CutoffWarningDays = 5
	}
	if cfg.Billing.ReceiptPrefix == "" {
		cfg.Billing.ReceiptPrefix = "REC"
	}
	if cfg.Billing.MaxApplyAttempts == 0 {
		cfg.Billing.MaxApplyAttempts = 3
	}
	if cfg.Billing.RetryBackoff == 0 {
		cfg.Billing.RetryBackoff = 50 * time.Millisecond
	}
	if cfg.Billing.LockWait == 0 {
		cfg.Billing.LockWait = 2 * time.Second
	}

	if cfg.Notification.DeliveryTimeout == 0 {
		cfg.Notification.DeliveryTimeout = 10 * time.Second
	}

	if cfg.Cache.StatsTTL == 0 {
		cfg.Cache.StatsTTL = 5 * time.Minute
	}

	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "us-east-1"
	}
	if cfg.Storage.PresignExpiration == 0 {
		cfg.Storage.PresignExpiration = 15 * time.Minute
	}
	if cfg.Storage.ReportPrefix == "" {
		cfg.Storage.ReportPrefix = "reports/"
	}

	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
	if cfg.Telemetry.SamplingRatio == 0 {
		cfg.Telemetry.SamplingRatio = 1.0
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "subledger"
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = 60 * time.Second
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	switch c.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return fmt.Errorf("database.driver must be postgres or sqlite, got %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("app.timezone %q is not a valid IANA zone: %w", c.App.Timezone, err)
	}

	if c.Billing.DueDay < 1 || c.Billing.DueDay > 28 {
		return fmt.Errorf("billing.due_day must be between 1 and 28, got %d", c.Billing.DueDay)
	}
	if c.Billing.GraceDays < 0 {
		return fmt.Errorf("billing.grace_days cannot be negative")
	}
	if c.Billing.LateFeeRate < 0 || c.Billing.LateFeeRate >= 1 {
		return fmt.Errorf("billing.late_fee_rate must be in [0, 1), got %f", c.Billing.LateFeeRate)
	}
	if c.Billing.MaxApplyAttempts < 1 {
		return fmt.Errorf("billing.max_apply_attempts must be at least 1")
	}

	if c.Storage.Enabled && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket is required when storage is enabled")
	}
	if c.Scheduler.DistributedLock && !c.Redis.Enabled {
		return fmt.Errorf("scheduler.distributed_lock requires redis.enabled")
	}

	if c.App.Env == "production" {
		if c.Database.Driver == DriverPostgres && c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "" {
		return fmt.Errorf("telemetry.profiling_server is required when profiling is enabled")
	}
	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	return nil
}

// Location returns the configured time zone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.App.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
