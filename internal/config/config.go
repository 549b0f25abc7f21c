package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the process configuration shared by the API server and the jobs CLI.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Lmstfy        LmstfyConfig        `mapstructure:"lmstfy"`
	Scheduler     SchedulerConfig     `mapstructure:"scheduler"`
	Stripe        StripeConfig        `mapstructure:"stripe"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Claims        ClaimsConfig        `mapstructure:"claims"`
	Investigation InvestigationConfig `mapstructure:"investigation"`
	Refund        RefundConfig        `mapstructure:"refund"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Env         string `mapstructure:"env"`
	Port        string `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	CORSOrigins string `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
}

// DSN renders the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
}

type RedisConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	Password     string        `mapstructure:"password"`
	DB           int           `mapstructure:"db"`
	StatsTTL     time.Duration `mapstructure:"stats_ttl"`
	EventsStream string        `mapstructure:"events_stream"`
	EventsMaxLen int64         `mapstructure:"events_max_len"`
}

type LmstfyConfig struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Namespace   string        `mapstructure:"namespace"`
	Token       string        `mapstructure:"token"`
	Queue       string        `mapstructure:"queue"`
	TTL         time.Duration `mapstructure:"ttl"`
	TTR         time.Duration `mapstructure:"ttr"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
	Tries       int           `mapstructure:"tries"`
}

// SchedulerConfig selects the job scheduler. "lmstfy" is durable; "local" is
// a single-node bolt file and is only suitable for development.
type SchedulerConfig struct {
	Driver       string        `mapstructure:"driver"`
	LocalPath    string        `mapstructure:"local_path"`
	TickInterval time.Duration `mapstructure:"tick_interval"`
}

type StripeConfig struct {
	SecretKey string        `mapstructure:"secret_key"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type ClaimsConfig struct {
	ResponseWindow       time.Duration `mapstructure:"response_window"`
	InvestigationWindow  time.Duration `mapstructure:"investigation_window"`
	AutoResolveThreshold float64       `mapstructure:"auto_resolve_threshold"`
	HighPriorityAmount   float64       `mapstructure:"high_priority_amount"`
	UrgentPriorityAmount float64       `mapstructure:"urgent_priority_amount"`
	BatchSize            int           `mapstructure:"batch_size"`
}

type InvestigationConfig struct {
	FraudThreshold     int           `mapstructure:"fraud_threshold"`
	HighValueThreshold float64       `mapstructure:"high_value_threshold"`
	RecentClaimsWindow time.Duration `mapstructure:"recent_claims_window"`
	RecentClaimsLimit  int           `mapstructure:"recent_claims_limit"`
	LateReportingDays  int           `mapstructure:"late_reporting_days"`
}

type RefundConfig struct {
	MaxRetries     int           `mapstructure:"max_retries"`
	MaxPolls       int           `mapstructure:"max_polls"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay"`
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	GatewayTimeout time.Duration `mapstructure:"gateway_timeout"`
	LockTTL        time.Duration `mapstructure:"lock_ttl"`
	StalledAfter   time.Duration `mapstructure:"stalled_after"`
}

// LoadEnv loads variables from a .env file if present.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file found: %v", err)
	}
}

// Load builds the configuration from defaults, an optional YAML file and the
// environment. Environment keys use underscores, e.g. DATABASE_HOST.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config failed: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config failed: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "disputehub")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "3000")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.cors_origins", "http://localhost:5173")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.name", "disputehub")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", 30*time.Minute)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", "6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.stats_ttl", 10*time.Minute)
	v.SetDefault("redis.events_stream", "disputehub.events")
	v.SetDefault("redis.events_max_len", 100000)

	v.SetDefault("lmstfy.host", "localhost")
	v.SetDefault("lmstfy.port", 7777)
	v.SetDefault("lmstfy.namespace", "disputehub")
	v.SetDefault("lmstfy.token", "")
	v.SetDefault("lmstfy.queue", "refund-jobs")
	v.SetDefault("lmstfy.ttl", 72*time.Hour)
	v.SetDefault("lmstfy.ttr", 2*time.Minute)
	v.SetDefault("lmstfy.poll_timeout", 10*time.Second)
	v.SetDefault("lmstfy.tries", 3)

	v.SetDefault("scheduler.driver", "lmstfy")
	v.SetDefault("scheduler.local_path", "disputehub-jobs.db")
	v.SetDefault("scheduler.tick_interval", time.Second)

	v.SetDefault("stripe.secret_key", "")
	v.SetDefault("stripe.timeout", 30*time.Second)

	v.SetDefault("jwt.secret", "")

	v.SetDefault("claims.response_window", 48*time.Hour)
	v.SetDefault("claims.investigation_window", 72*time.Hour)
	v.SetDefault("claims.auto_resolve_threshold", 50)
	v.SetDefault("claims.high_priority_amount", 500)
	v.SetDefault("claims.urgent_priority_amount", 1000)
	v.SetDefault("claims.batch_size", 100)

	v.SetDefault("investigation.fraud_threshold", 60)
	v.SetDefault("investigation.high_value_threshold", 500)
	v.SetDefault("investigation.recent_claims_window", 30*24*time.Hour)
	v.SetDefault("investigation.recent_claims_limit", 20)
	v.SetDefault("investigation.late_reporting_days", 14)

	v.SetDefault("refund.max_retries", 3)
	v.SetDefault("refund.max_polls", 5)
	v.SetDefault("refund.retry_base_delay", time.Minute)
	v.SetDefault("refund.poll_interval", 2*time.Minute)
	v.SetDefault("refund.gateway_timeout", 30*time.Second)
	v.SetDefault("refund.lock_ttl", 5*time.Minute)
	v.SetDefault("refund.stalled_after", 30*time.Minute)
}

// Validate checks the settings the process cannot start without.
func (c *Config) Validate() error {
	if c.App.Name == "" {
		return fmt.Errorf("app.name is required")
	}
	switch c.Scheduler.Driver {
	case "lmstfy":
		if c.Lmstfy.Host == "" || c.Lmstfy.Queue == "" {
			return fmt.Errorf("lmstfy.host and lmstfy.queue are required for the lmstfy scheduler")
		}
	case "local":
		if c.Scheduler.LocalPath == "" {
			return fmt.Errorf("scheduler.local_path is required for the local scheduler")
		}
	default:
		return fmt.Errorf("unknown scheduler driver %q", c.Scheduler.Driver)
	}
	if c.IsProduction() && c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required in production")
	}
	if c.Refund.MaxRetries < 0 || c.Refund.MaxPolls <= 0 {
		return fmt.Errorf("refund retry and poll budgets must be positive")
	}
	return nil
}

// IsProduction checks if the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}
