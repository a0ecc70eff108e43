package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-usersys"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// AppConfig is the demo configuration, read from config.yml, .env and
// USERSYS_ prefixed environment variables
type AppConfig struct {
	Addr      string          `mapstructure:"addr"`
	DSN       string          `mapstructure:"dsn"`
	LogLevel  string          `mapstructure:"log_level"`
	RedisAddr string          `mapstructure:"redis_addr"`
	Insecure  bool            `mapstructure:"insecure_cookies"`
	Debug     bool            `mapstructure:"debug"`
	Auth      usersys.Options `mapstructure:"auth"`
}

func loadConfig(path string) (*AppConfig, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			fmt.Printf("[config] warning: failed to load .env: %v\n", err)
		}
	}

	v := viper.New()
	v.SetEnvPrefix("usersys")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := usersys.DefaultOptions()
	v.SetDefault("addr", ":8572")
	v.SetDefault("dsn", "file::memory:?cache=shared")
	v.SetDefault("log_level", "info")
	v.SetDefault("redis_addr", "")
	v.SetDefault("insecure_cookies", true)
	v.SetDefault("debug", false)
	v.SetDefault("auth.public_account_creation", defaults.PublicAccountCreation)
	v.SetDefault("auth.email_is_login", false)
	v.SetDefault("auth.verify_email_required", true)
	v.SetDefault("auth.token_min_length", defaults.TokenMinLength)
	v.SetDefault("auth.token_max_length", defaults.TokenMaxLength)
	v.SetDefault("auth.token_duration", defaults.TokenDuration)
	v.SetDefault("auth.min_passphrase_length", defaults.MinPassphraseLength)
	v.SetDefault("auth.default_destination", "/dashboard")
	v.SetDefault("auth.session_duration", 24*time.Hour)
	v.SetDefault("auth.signing_key", "change-me-please-this-is-a-demo")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Auth.Validate(); err != nil {
		return nil, fmt.Errorf("invalid auth config: %w", err)
	}

	return cfg, nil
}
