package config

import (
	"errors"
	"io/fs"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Environment string `mapstructure:"environment" validate:"oneof=development production"`
	Address     string `mapstructure:"address"`
	Port        int    `mapstructure:"port" validate:"min=1,max=65535"`
	LogLevel    string `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`

	DatabasePath string `mapstructure:"database_path" validate:"required"`

	BackupDir           string        `mapstructure:"backup_dir" validate:"required"`
	BackupMaxAge        time.Duration `mapstructure:"backup_max_age" validate:"min=0"`
	BackupKeepScheduled int           `mapstructure:"backup_keep_scheduled" validate:"min=1"`
	BackupS3Bucket      string        `mapstructure:"backup_s3_bucket"`
	BackupS3Region      string        `mapstructure:"backup_s3_region"`
	BackupS3Endpoint    string        `mapstructure:"backup_s3_endpoint"`
	BackupS3Prefix      string        `mapstructure:"backup_s3_prefix"`
	BackupS3AccessKey   string        `mapstructure:"backup_s3_access_key"`
	BackupS3SecretKey   string        `mapstructure:"backup_s3_secret_key"`
	CronSecret          string        `mapstructure:"cron_secret"`

	SessionSecret string        `mapstructure:"session_secret" validate:"required_if=Environment production"`
	SessionTTL    time.Duration `mapstructure:"session_ttl" validate:"min=1m"`
	AdminEmail    string        `mapstructure:"admin_email" validate:"omitempty,email"`
	AdminPassword string        `mapstructure:"admin_password"`

	CanonicalHost      string   `mapstructure:"canonical_host" validate:"required,hostname"`
	BareDomains        []string `mapstructure:"bare_domains"`
	TrustedProxies     []string `mapstructure:"trusted_proxies"`
	TrustCloudflare    bool     `mapstructure:"trust_cloudflare"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	RateLimitWindow        time.Duration `mapstructure:"rate_limit_window" validate:"min=1s"`
	RateLimitSensitive     int           `mapstructure:"rate_limit_sensitive" validate:"min=1"`
	RateLimitGeneral       int           `mapstructure:"rate_limit_general" validate:"min=1"`
	RateLimitSweepInterval time.Duration `mapstructure:"rate_limit_sweep_interval" validate:"min=1s"`
	RateLimitStaleAfter    time.Duration `mapstructure:"rate_limit_stale_after" validate:"min=1s"`

	ResendAPIKey  string        `mapstructure:"resend_api_key"`
	ResendBaseURL string        `mapstructure:"resend_base_url" validate:"required,url"`
	MailFrom      string        `mapstructure:"mail_from" validate:"required,email"`
	SiteURL       string        `mapstructure:"site_url" validate:"required,url"`
	DripBatchSize int           `mapstructure:"drip_batch_size" validate:"min=1"`
	DripLease     time.Duration `mapstructure:"drip_lease" validate:"min=1s"`

	VisitRetention time.Duration `mapstructure:"visit_retention" validate:"min=1h"`
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == EnvDevelopment
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", EnvProduction)
	v.SetDefault("address", "0.0.0.0")
	v.SetDefault("port", 8080)
	v.SetDefault("log_level", "info")

	v.SetDefault("database_path", "risegen.db")

	v.SetDefault("backup_dir", "backups")
	v.SetDefault("backup_max_age", 30*24*time.Hour)
	v.SetDefault("backup_keep_scheduled", 10)
	v.SetDefault("backup_s3_bucket", "")
	v.SetDefault("backup_s3_region", "eu-central-1")
	v.SetDefault("backup_s3_endpoint", "")
	v.SetDefault("backup_s3_prefix", "backups/")
	v.SetDefault("backup_s3_access_key", "")
	v.SetDefault("backup_s3_secret_key", "")
	v.SetDefault("cron_secret", "")

	v.SetDefault("session_secret", "")
	v.SetDefault("session_ttl", 12*time.Hour)
	v.SetDefault("admin_email", "")
	v.SetDefault("admin_password", "")

	v.SetDefault("canonical_host", "www.risegen.pl")
	v.SetDefault("bare_domains", []string{"risegen.pl"})
	v.SetDefault("trusted_proxies", []string{})
	v.SetDefault("trust_cloudflare", false)
	v.SetDefault("cors_allowed_origins", []string{"https://www.risegen.pl"})

	v.SetDefault("rate_limit_window", time.Minute)
	v.SetDefault("rate_limit_sensitive", 10)
	v.SetDefault("rate_limit_general", 100)
	v.SetDefault("rate_limit_sweep_interval", 5*time.Minute)
	v.SetDefault("rate_limit_stale_after", 10*time.Minute)

	v.SetDefault("resend_api_key", "")
	v.SetDefault("resend_base_url", "https://api.resend.com")
	v.SetDefault("mail_from", "kontakt@risegen.pl")
	v.SetDefault("site_url", "https://www.risegen.pl")
	v.SetDefault("drip_batch_size", 10)
	v.SetDefault("drip_lease", 5*time.Minute)

	v.SetDefault("visit_retention", 90*24*time.Hour)
}

// Load reads an optional .env file, then the environment, and validates the
// result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	var config Config

	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// MissingSettings lists settings that the site can start without but that
// disable a feature.
func (c *Config) MissingSettings() []string {
	var missing []string
	if c.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}
	if c.ResendAPIKey == "" {
		missing = append(missing, "RESEND_API_KEY")
	}
	if c.CronSecret == "" {
		missing = append(missing, "CRON_SECRET")
	}
	return missing
}
