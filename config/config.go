package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	SMTP     SMTPConfig     `yaml:"smtp"`
	Uploads  UploadsConfig  `yaml:"uploads"`
}

type HTTPConfig struct {
	Address         string `yaml:"address"`
	SwaggerDir      string `yaml:"swagger_dir"`
	ShutdownTimeout int    `yaml:"shutdown_timeout_seconds"`
	Mode            string `yaml:"mode"`
}

type DatabaseConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	Name        string `yaml:"name"`
	SSLMode     string `yaml:"ssl_mode"`
	AutoMigrate bool   `yaml:"auto_migrate"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	TicketsTopic       string   `yaml:"tickets_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	SearchCacheTTL   int `yaml:"search_cache_ttl_seconds"`
	AirlinesCacheTTL int `yaml:"airlines_cache_ttl_seconds"`
	IdempotencyTTL   int `yaml:"idempotency_ttl_hours"`
}

func (b BookingConfig) SearchCacheDuration() time.Duration {
	return time.Duration(b.SearchCacheTTL) * time.Second
}

func (b BookingConfig) AirlinesCacheDuration() time.Duration {
	return time.Duration(b.AirlinesCacheTTL) * time.Second
}

func (b BookingConfig) IdempotencyDuration() time.Duration {
	return time.Duration(b.IdempotencyTTL) * time.Hour
}

type AuthConfig struct {
	JWTSecret      string `yaml:"jwt_secret"`
	TokenTTLHours  int    `yaml:"token_ttl_hours"`
	BcryptCost     int    `yaml:"bcrypt_cost"`
	BootstrapAdmin string `yaml:"bootstrap_admin_email"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type UploadsConfig struct {
	Dir        string `yaml:"dir"`
	PublicPath string `yaml:"public_path"`
	MaxBytes   int64  `yaml:"max_bytes"`
}

// LoadConfig reads the YAML file at path. Values of the form ${VAR} are
// taken from the environment, which is seeded from .env when present.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 5
	}
	if c.HTTP.Mode == "" {
		c.HTTP.Mode = "release"
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "skybooking-notifier"
	}
	if c.Booking.SearchCacheTTL == 0 {
		c.Booking.SearchCacheTTL = 30
	}
	if c.Booking.AirlinesCacheTTL == 0 {
		c.Booking.AirlinesCacheTTL = 300
	}
	if c.Booking.IdempotencyTTL == 0 {
		c.Booking.IdempotencyTTL = 24
	}
	if c.Auth.TokenTTLHours == 0 {
		c.Auth.TokenTTLHours = 24
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
	if c.SMTP.Port == 0 {
		c.SMTP.Port = 587
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Uploads.PublicPath == "" {
		c.Uploads.PublicPath = "/uploads"
	}
	if c.Uploads.MaxBytes == 0 {
		c.Uploads.MaxBytes = 5 << 20
	}
}

func (c *Config) validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required")
	}
	return nil
}
