package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Server   ServerConfig   `yaml:"server"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Midtrans MidtransConfig `yaml:"midtrans"`
	Email    EmailConfig    `yaml:"email"`
	Platform PlatformConfig `yaml:"platform"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"ssl_mode"`
}

type JWTConfig struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	Host        string   `yaml:"host"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MidtransConfig struct {
	ServerKey    string `yaml:"server_key"`
	BaseURL      string `yaml:"base_url"`
	IsProduction bool   `yaml:"is_production"`
}

type EmailConfig struct {
	ResendAPIKey     string `yaml:"resend_api_key"`
	MailerSendAPIKey string `yaml:"mailersend_api_key"`
	FromEmail        string `yaml:"from_email"`
	FromName         string `yaml:"from_name"`
}

// PlatformConfig holds the pricing knobs of the patungan platform itself.
type PlatformConfig struct {
	// FlatAdminFee is charged per member when the app does not define
	// an admin_fee_percentage.
	FlatAdminFee        int64 `yaml:"flat_admin_fee"`
	PaymentTimeoutHours int   `yaml:"payment_timeout_hours"`
}

var AppConfig *Config

func LoadConfig() error {
	// .env values become process env before the YAML lookup.
	_ = godotenv.Load()

	configPaths := []string{
		"secret/app.yaml",
		"app.yaml",
		"config/app.yaml",
	}

	var configPath string
	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			configPath = path
			break
		}
	}

	config := &Config{}
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnvOverrides(config)
	setDefaults(config)

	AppConfig = config
	return nil
}

func applyEnvOverrides(config *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		config.Database.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Database.Port = port
		}
	}
	if v := os.Getenv("DB_USER"); v != "" {
		config.Database.User = v
	}
	if v := os.Getenv("DB_PASSWORD"); v != "" {
		config.Database.Password = v
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		config.Database.Name = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		config.JWT.Secret = v
	}
	if v := os.Getenv("MIDTRANS_SERVER_KEY"); v != "" {
		config.Midtrans.ServerKey = v
	}
	if v := os.Getenv("RESEND_API_KEY"); v != "" {
		config.Email.ResendAPIKey = v
	}
	if v := os.Getenv("MAILERSEND_API_KEY"); v != "" {
		config.Email.MailerSendAPIKey = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		config.Redis.Host = v
	}
}

func setDefaults(config *Config) {
	if config.Database.Host == "" {
		config.Database.Host = "localhost"
	}
	if config.Database.Port == 0 {
		config.Database.Port = 5432
	}
	if config.Database.User == "" {
		config.Database.User = "salome_user"
	}
	if config.Database.Name == "" {
		config.Database.Name = "salome_db"
	}
	if config.Database.SSLMode == "" {
		config.Database.SSLMode = "disable"
	}

	if config.JWT.Secret == "" {
		config.JWT.Secret = "salome-super-secret-jwt-key-change-in-production"
	}
	if config.JWT.Expiry == "" {
		config.JWT.Expiry = "24h"
	}

	if config.Server.Port == 0 {
		config.Server.Port = 8080
	}
	if config.Server.Host == "" {
		config.Server.Host = "localhost"
	}
	if len(config.Server.CORSOrigins) == 0 {
		config.Server.CORSOrigins = []string{"http://localhost:3000"}
	}

	if config.Redis.Host == "" {
		config.Redis.Host = "localhost"
	}
	if config.Redis.Port == 0 {
		config.Redis.Port = 6379
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}

	if config.Midtrans.BaseURL == "" {
		config.Midtrans.BaseURL = "https://api.sandbox.midtrans.com"
	}

	if config.Email.FromEmail == "" {
		config.Email.FromEmail = "noreply@salome.id"
	}
	if config.Email.FromName == "" {
		config.Email.FromName = "SALOME Platform"
	}

	if config.Platform.FlatAdminFee == 0 {
		config.Platform.FlatAdminFee = 3500
	}
	if config.Platform.PaymentTimeoutHours == 0 {
		config.Platform.PaymentTimeoutHours = 24
	}
}

func GetConfig() *Config {
	if AppConfig == nil {
		if err := LoadConfig(); err != nil {
			config := &Config{}
			setDefaults(config)
			AppConfig = config
		}
	}
	return AppConfig
}
