package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string        `mapstructure:"PORT"`
	ShutdownTimeout time.Duration `mapstructure:"SHUTDOWN_TIMEOUT"`
	AllowedOrigins  string        `mapstructure:"ALLOWED_ORIGINS"`
	AppBaseURL      string        `mapstructure:"APP_BASE_URL"`
	JWTSecret       string        `mapstructure:"JWT_SECRET"`

	DB_URL        string `mapstructure:"DB_URL"`
	DBAutoMigrate bool   `mapstructure:"DB_AUTO_MIGRATE"`

	PaystackSecretKey     string        `mapstructure:"PAYSTACK_SECRET_KEY"`
	PaystackBaseURL       string        `mapstructure:"PAYSTACK_BASE_URL"`
	PaystackPreferredBank string        `mapstructure:"PAYSTACK_PREFERRED_BANK"`
	ProviderTimeout       time.Duration `mapstructure:"PROVIDER_TIMEOUT"`
	RetryBatchSize        int           `mapstructure:"RETRY_BATCH_SIZE"`

	SendgridAPIKey string `mapstructure:"SENDGRID_API_KEY"`
	MailFromEmail  string `mapstructure:"MAIL_FROM_EMAIL"`
	MailFromName   string `mapstructure:"MAIL_FROM_NAME"`

	TelegramBotToken string `mapstructure:"TELEGRAM_BOT_TOKEN"`
	AdminChatID      int64  `mapstructure:"ADMIN_CHAT_ID"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"PORT":                    "4000",
	"SHUTDOWN_TIMEOUT":        "15s",
	"ALLOWED_ORIGINS":         "http://localhost:3000",
	"APP_BASE_URL":            "http://localhost:3000",
	"JWT_SECRET":              "",
	"DB_URL":                  "",
	"DB_AUTO_MIGRATE":         true,
	"PAYSTACK_SECRET_KEY":     "",
	"PAYSTACK_BASE_URL":       "https://api.paystack.co",
	"PAYSTACK_PREFERRED_BANK": "wema-bank",
	"PROVIDER_TIMEOUT":        "30s",
	"RETRY_BATCH_SIZE":        100,
	"SENDGRID_API_KEY":        "",
	"MAIL_FROM_EMAIL":         "no-reply@localhost",
	"MAIL_FROM_NAME":          "Community Investments",
	"TELEGRAM_BOT_TOKEN":      "",
	"ADMIN_CHAT_ID":           0,
	"LOG_LEVEL":               "info",
	"LOG_FORMAT":              "text",
}

// LoadConfig reads an env-style file at path when it exists and lets the
// process environment override every key.
func LoadConfig(path string) (config Config, err error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return config, fmt.Errorf("failed to resolve config path: %w", err)
	}

	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.AddConfigPath(filepath.Dir(absPath))
	v.SetConfigName(filepath.Base(absPath))
	v.SetConfigType("env")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
			return config, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(&config); err != nil {
		return config, fmt.Errorf("failed to decode config: %w", err)
	}

	return config, nil
}

// Validate reports the first required setting that is missing.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"DB_URL", c.DB_URL},
		{"PAYSTACK_SECRET_KEY", c.PaystackSecretKey},
		{"JWT_SECRET", c.JWTSecret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%s is required", r.key)
		}
	}
	return nil
}

func (c Config) Origins() []string {
	var origins []string
	for _, part := range strings.Split(c.AllowedOrigins, ",") {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		origins = append(origins, origin)
	}
	return origins
}
