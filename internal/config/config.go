package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/spf13/viper"

	"github.com/lipanganya/doctime-api/internal/email"
	"github.com/lipanganya/doctime-api/pkg/messaging/redis"
	"github.com/lipanganya/doctime-api/pkg/sms"
	"github.com/lipanganya/doctime-api/pkg/worker"
)

const (
	ProfileDevelopment = "development"
	ProfileProduction  = "production"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Redis     RedisConfig     `mapstructure:"redis"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	CORS      CORSConfig      `mapstructure:"cors"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Cache     CacheConfig     `mapstructure:"cache"`
	OTP       OTPConfig       `mapstructure:"otp"`
	Referral  ReferralConfig  `mapstructure:"referral"`
	Log       LogConfig       `mapstructure:"log"`

	Secrets Secrets `mapstructure:"-"`
}

type AppConfig struct {
	Name    string `mapstructure:"name"`
	Profile string `mapstructure:"profile"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	HealthPort      int           `mapstructure:"health_port"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int    `mapstructure:"max_conns"`
}

func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

type JWTConfig struct {
	Secret      string `mapstructure:"secret"`
	Issuer      string `mapstructure:"issuer"`
	ExpiryHours int    `mapstructure:"expiry_hours"`
}

func (c JWTConfig) TTL() time.Duration {
	return time.Duration(c.ExpiryHours) * time.Hour
}

type RedisConfig struct {
	URL          string        `mapstructure:"url"`
	MaxRetries   int           `mapstructure:"max_retries"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	PoolSize     int           `mapstructure:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns"`
	Channel      string        `mapstructure:"channel"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"rps"`
	Burst             int     `mapstructure:"burst"`
	AuthPerMinute     int     `mapstructure:"auth_per_minute"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"origins"`
}

type OutboxConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PollInterval    time.Duration `mapstructure:"poll_interval"`
	RetryAttempts   int           `mapstructure:"retry_attempts"`
	RetryDelay      time.Duration `mapstructure:"retry_delay"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	Retention       time.Duration `mapstructure:"retention"`
}

type SchedulerConfig struct {
	AutoCompleteInterval  time.Duration `mapstructure:"auto_complete_interval"`
	AutoCompleteBatch     int           `mapstructure:"auto_complete_batch"`
	ActivityRetentionDays int           `mapstructure:"activity_retention_days"`
	CleanupInterval       time.Duration `mapstructure:"cleanup_interval"`
}

type CacheConfig struct {
	ReferenceTTL time.Duration `mapstructure:"reference_ttl"`
}

type OTPConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type ReferralConfig struct {
	AppLink string `mapstructure:"app_link"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Secrets never live in the config file.
type Secrets struct {
	AdvantaAPIKey    string `envconfig:"ADVANTA_API_KEY"`
	AdvantaPartnerID string `envconfig:"ADVANTA_PARTNER_ID"`
	AdvantaShortcode string `envconfig:"ADVANTA_SHORTCODE" default:"WOLFGANG"`
	AdvantaBaseURL   string `envconfig:"ADVANTA_BASE_URL" default:"https://quicksms.advantasms.com"`
	EnableSMS        bool   `envconfig:"ENABLE_SMS" default:"false"`

	SMTPHost     string `envconfig:"SMTP_HOST"`
	SMTPPort     int    `envconfig:"SMTP_PORT" default:"587"`
	SMTPUser     string `envconfig:"SMTP_USER"`
	SMTPPassword string `envconfig:"SMTP_PASSWORD"`
	SMTPFrom     string `envconfig:"SMTP_FROM"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "doctime-api")
	v.SetDefault("app.profile", ProfileDevelopment)

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.request_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.health_port", 8081)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.name", "doctime")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)

	v.SetDefault("jwt.issuer", "doctime")
	v.SetDefault("jwt.expiry_hours", 720)

	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.retry_backoff", 100*time.Millisecond)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.channel", "doctime.events")

	v.SetDefault("rate_limit.rps", 20)
	v.SetDefault("rate_limit.burst", 40)
	v.SetDefault("rate_limit.auth_per_minute", 10)

	v.SetDefault("cors.origins", []string{"*"})

	v.SetDefault("outbox.batch_size", 100)
	v.SetDefault("outbox.poll_interval", 5*time.Second)
	v.SetDefault("outbox.retry_attempts", 3)
	v.SetDefault("outbox.retry_delay", time.Second)
	v.SetDefault("outbox.cleanup_interval", time.Hour)
	v.SetDefault("outbox.retention", 24*time.Hour)

	v.SetDefault("scheduler.auto_complete_interval", time.Hour)
	v.SetDefault("scheduler.auto_complete_batch", 500)
	v.SetDefault("scheduler.activity_retention_days", 365)
	v.SetDefault("scheduler.cleanup_interval", 24*time.Hour)

	v.SetDefault("cache.reference_ttl", 5*time.Minute)
	v.SetDefault("otp.ttl", 10*time.Minute)
	v.SetDefault("referral.app_link", "https://expo.dev/@lipanganya/doctime")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Load reads config.yaml (when present) and the environment. A missing file
// is not an error; every key has a default.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")
	v.AddConfigPath("/app/config")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")
	_ = v.BindEnv("database.password", "DATABASE_PASSWORD", "DB_PASSWORD")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("failed to load secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("jwt.secret is required (JWT_SECRET)")
	}
	switch c.App.Profile {
	case ProfileDevelopment, ProfileProduction:
	default:
		return fmt.Errorf("unknown app.profile %q", c.App.Profile)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Profile == ProfileProduction
}

// SMSDeliveryEnabled reports whether real SMS should be sent. Outside
// production messages are only logged unless ENABLE_SMS is set.
func (c *Config) SMSDeliveryEnabled() bool {
	return c.IsProduction() || c.Secrets.EnableSMS
}

func (c *OutboxConfig) ToWorkerConfig() worker.OutboxProcessorConfig {
	return worker.OutboxProcessorConfig{
		BatchSize:     c.BatchSize,
		PollInterval:  c.PollInterval,
		RetryAttempts: c.RetryAttempts,
		RetryDelay:    c.RetryDelay,
	}
}

func (c *RedisConfig) ToBrokerConfig() redis.Config {
	return redis.Config{
		URL:          c.URL,
		MaxRetries:   c.MaxRetries,
		RetryBackoff: c.RetryBackoff,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
	}
}

func (s Secrets) SMSConfig() sms.Config {
	return sms.Config{
		BaseURL:   s.AdvantaBaseURL,
		APIKey:    s.AdvantaAPIKey,
		PartnerID: s.AdvantaPartnerID,
		Shortcode: s.AdvantaShortcode,
	}
}

func (s Secrets) EmailConfig() email.Config {
	return email.Config{
		Host:     s.SMTPHost,
		Port:     s.SMTPPort,
		Username: s.SMTPUser,
		Password: s.SMTPPassword,
		From:     s.SMTPFrom,
	}
}
