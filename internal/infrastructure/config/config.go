package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Storage   StorageConfig
	Tracker   TrackerConfig
	Workflows WorkflowsConfig
	Swagger   SwaggerConfig
	Telemetry TelemetryConfig
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds JWT settings
type JWTConfig struct {
	Secret                 string
	AccessTokenExpiration  time.Duration
	RefreshTokenExpiration time.Duration
	Issuer                 string
	RefreshSecret          string
	MaxRefreshCount        int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
	MaxBodySize       int64 // zero disables the body limit
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration
	CORSAllowOrigins  []string
	CORSAllowMethods  []string
	CORSAllowHeaders  []string
	TrustedProxies    []string
}

// StorageConfig holds S3-compatible object storage settings for order
// delivery files
type StorageConfig struct {
	Endpoint          string        // Storage endpoint (e.g., "http://localhost:9000")
	Region            string        // AWS region (default: us-east-1)
	Bucket            string        // Bucket holding delivery objects (empty = stub resolver)
	AccessKey         string        // Static access key
	SecretKey         string        // Static secret key
	UseSSL            bool          // Use https when the endpoint has no scheme
	UsePathStyle      bool          // Path-style addressing (required for MinIO)
	PresignExpiration time.Duration // Lifetime of presigned download links
}

// TrackerConfig holds the task tracker integration settings: the OAuth
// identity provider, the tracker API, and the session/credential plumbing
type TrackerConfig struct {
	ClientID       string        // OAuth client id (empty = tracker not configured)
	ClientSecret   string        // OAuth client secret
	AuthURL        string        // Provider authorization endpoint
	TokenURL       string        // Provider token endpoint
	AccountsURL    string        // Provider authorization-introspection endpoint
	RedirectURI    string        // Callback URI registered with the provider
	Scopes         []string      // Requested authorization scopes
	APIBaseURL     string        // Tracker REST API base URL
	TimeoutSeconds int           // HTTP timeout for provider and tracker calls
	EncryptionKey  string        // Passphrase for refresh secret encryption at rest
	SelectionStore string        // Pending selection backend: "redis" or "memory"
	StateTTL       time.Duration // Lifetime of OAuth state nonces
}

// WorkflowsConfig holds per-product-type push workflow settings
type WorkflowsConfig struct {
	LeaseRunsheets  LeaseWorkflowConfig
	AbstractReports AbstractWorkflowConfig
}

// LeaseWorkflowConfig configures the lease-centric runsheet workflow.
// An empty project id leaves the product type unregistered.
type LeaseWorkflowConfig struct {
	ProjectID   string   // Destination tracker project id
	Agencies    []string // Lease agency filter (empty = all)
	ReportTypes []string // Report type filter (empty = all)
}

// AbstractWorkflowConfig configures the grouped abstract-report workflow.
// An empty project id leaves the product type unregistered.
type AbstractWorkflowConfig struct {
	ProjectID      string   // Destination tracker project id
	ReportTypes    []string // Report type filter (empty = all)
	Phases         []string // Ordered group names created in every list
	PerLeasePhases []string // Phases that also emit one task per lease
	AssigneeIDs    []string // Tracker member ids attached to fixed phase tasks
}

// SwaggerConfig holds Swagger documentation endpoint configuration
type SwaggerConfig struct {
	Enabled     bool     // Whether to enable Swagger endpoint
	RequireAuth bool     // Require authentication to access Swagger
	AllowedIPs  []string // IP whitelist (empty = allow all)
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only, disable in prod for security)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
	// Continuous profiling options
	ProfilingEnabled bool   // Enable Pyroscope continuous profiling
	PyroscopeAddress string // Pyroscope server address (e.g., "http://pyroscope:4040")
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with TITLEDESK_ prefix (e.g., TITLEDESK_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// No file is fine; defaults and the environment cover everything.
	}

	v.SetEnvPrefix("TITLEDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                 v.GetString("jwt.secret"),
			AccessTokenExpiration:  v.GetDuration("jwt.access_token_expiration"),
			RefreshTokenExpiration: v.GetDuration("jwt.refresh_token_expiration"),
			Issuer:                 v.GetString("jwt.issuer"),
			RefreshSecret:          v.GetString("jwt.refresh_secret"),
			MaxRefreshCount:        v.GetInt("jwt.max_refresh_count"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:       v.GetDuration("http.read_timeout"),
			WriteTimeout:      v.GetDuration("http.write_timeout"),
			IdleTimeout:       v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:    v.GetInt("http.max_header_bytes"),
			MaxBodySize:       v.GetInt64("http.max_body_size"),
			RateLimitEnabled:  v.GetBool("http.rate_limit_enabled"),
			RateLimitRequests: v.GetInt("http.rate_limit_requests"),
			RateLimitWindow:   v.GetDuration("http.rate_limit_window"),
			CORSAllowOrigins:  v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:  v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:  v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:    v.GetStringSlice("http.trusted_proxies"),
		},
		Storage: StorageConfig{
			Endpoint:          v.GetString("storage.endpoint"),
			Region:            v.GetString("storage.region"),
			Bucket:            v.GetString("storage.bucket"),
			AccessKey:         v.GetString("storage.access_key"),
			SecretKey:         v.GetString("storage.secret_key"),
			UseSSL:            v.GetBool("storage.use_ssl"),
			UsePathStyle:      v.GetBool("storage.use_path_style"),
			PresignExpiration: v.GetDuration("storage.presign_expiration"),
		},
		Tracker: TrackerConfig{
			ClientID:       v.GetString("tracker.client_id"),
			ClientSecret:   v.GetString("tracker.client_secret"),
			AuthURL:        v.GetString("tracker.auth_url"),
			TokenURL:       v.GetString("tracker.token_url"),
			AccountsURL:    v.GetString("tracker.accounts_url"),
			RedirectURI:    v.GetString("tracker.redirect_uri"),
			Scopes:         v.GetStringSlice("tracker.scopes"),
			APIBaseURL:     v.GetString("tracker.api_base_url"),
			TimeoutSeconds: v.GetInt("tracker.timeout_seconds"),
			EncryptionKey:  v.GetString("tracker.encryption_key"),
			SelectionStore: v.GetString("tracker.selection_store"),
			StateTTL:       v.GetDuration("tracker.state_ttl"),
		},
		Workflows: WorkflowsConfig{
			LeaseRunsheets: LeaseWorkflowConfig{
				ProjectID:   v.GetString("workflows.lease_runsheets.project_id"),
				Agencies:    v.GetStringSlice("workflows.lease_runsheets.agencies"),
				ReportTypes: v.GetStringSlice("workflows.lease_runsheets.report_types"),
			},
			AbstractReports: AbstractWorkflowConfig{
				ProjectID:      v.GetString("workflows.abstract_reports.project_id"),
				ReportTypes:    v.GetStringSlice("workflows.abstract_reports.report_types"),
				Phases:         v.GetStringSlice("workflows.abstract_reports.phases"),
				PerLeasePhases: v.GetStringSlice("workflows.abstract_reports.per_lease_phases"),
				AssigneeIDs:    v.GetStringSlice("workflows.abstract_reports.assignee_ids"),
			},
		},
		Swagger: SwaggerConfig{
			Enabled:     v.GetBool("swagger.enabled"),
			RequireAuth: v.GetBool("swagger.require_auth"),
			AllowedIPs:  v.GetStringSlice("swagger.allowed_ips"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
			ProfilingEnabled:  v.GetBool("telemetry.profiling_enabled"),
			PyroscopeAddress:  v.GetString("telemetry.pyroscope_address"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers the baked-in defaults with viper. File and
// environment values win over these; an explicitly configured zero is
// honored and left to validate, never silently replaced.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "titledesk-backend")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "titledesk")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.conn_max_idle_time", 30)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("jwt.access_token_expiration", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_expiration", 168*time.Hour)
	v.SetDefault("jwt.issuer", "titledesk-backend")
	v.SetDefault("jwt.max_refresh_count", 10)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)
	v.SetDefault("http.max_body_size", 1<<20)
	v.SetDefault("http.rate_limit_requests", 100)
	v.SetDefault("http.rate_limit_window", time.Minute)
	// Cross-origin requests stay blocked until origins are configured, so
	// http.cors_allow_origins carries no default.
	v.SetDefault("http.cors_allow_methods", []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"})
	v.SetDefault("http.cors_allow_headers", []string{"Content-Type", "Authorization", "X-Request-ID"})

	// Endpoint and presign expiration also fall back inside the storage
	// constructor; only the region default lives here.
	v.SetDefault("storage.region", "us-east-1")

	v.SetDefault("tracker.timeout_seconds", 30)
	v.SetDefault("tracker.selection_store", "redis")
	v.SetDefault("tracker.state_ttl", 10*time.Minute)

	// Report type filters follow the product split; the abstract workflow
	// ships with the standard five-phase plant.
	v.SetDefault("workflows.lease_runsheets.report_types", []string{"runsheet"})
	v.SetDefault("workflows.abstract_reports.report_types", []string{"abstract"})
	v.SetDefault("workflows.abstract_reports.phases", []string{
		"Runsheet Review",
		"Examination",
		"Abstract Assembly",
		"Quality Check",
		"Delivery",
	})
	v.SetDefault("workflows.abstract_reports.per_lease_phases", []string{"Runsheet Review"})

	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "titledesk-backend")
	v.SetDefault("telemetry.db_slow_query_threshold", 200*time.Millisecond)
}

// validate performs validation on the configuration
func (c *Config) validate() error {
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

	if c.JWT.AccessTokenExpiration <= 0 || c.JWT.RefreshTokenExpiration <= 0 {
		return fmt.Errorf("jwt token expirations must be positive")
	}

	if c.HTTP.RateLimitEnabled {
		if c.HTTP.RateLimitRequests <= 0 {
			return fmt.Errorf("http.rate_limit_requests must be positive when rate limiting is enabled")
		}
		if c.HTTP.RateLimitWindow <= 0 {
			return fmt.Errorf("http.rate_limit_window must be positive when rate limiting is enabled")
		}
	}

	// Selection store backend must be one we can build
	if c.Tracker.SelectionStore != "redis" && c.Tracker.SelectionStore != "memory" {
		return fmt.Errorf("tracker.selection_store must be \"redis\" or \"memory\", got %q", c.Tracker.SelectionStore)
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if c.Telemetry.ProfilingEnabled && c.Telemetry.PyroscopeAddress == "" {
		return fmt.Errorf("telemetry.pyroscope_address is required when profiling is enabled")
	}

	if c.App.Env == "production" {
		return c.validateProduction()
	}
	return nil
}

// validateProduction enforces the hardening rules that only apply once the
// app declares itself production.
func (c *Config) validateProduction() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("jwt.secret must be at least 32 characters in production")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("database.password is required in production")
	}
	if c.Database.SSLMode == "disable" {
		return fmt.Errorf("database.sslmode cannot be 'disable' in production")
	}
	// Refresh secrets are encrypted at rest; a configured tracker without
	// a strong key would silently weaken that
	if c.Tracker.ClientID != "" && len(c.Tracker.EncryptionKey) < 32 {
		return fmt.Errorf("tracker.encryption_key must be at least 32 characters in production")
	}
	for _, origin := range c.HTTP.CORSAllowOrigins {
		if origin == "*" {
			return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
		}
	}
	if c.Swagger.Enabled && !c.Swagger.RequireAuth && len(c.Swagger.AllowedIPs) == 0 {
		return fmt.Errorf("swagger endpoint must be disabled, require authentication, or have IP restriction in production")
	}
	if c.Telemetry.DBLogFullSQL {
		return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
	}
	return nil
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
