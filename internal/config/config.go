// Package config loads service configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full service configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig configures the HTTP command surface.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig selects the store. An empty URL runs the in-memory
// store (development only; nothing survives a restart).
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// AuthConfig configures operator authentication on the command surface.
type AuthConfig struct {
	Disabled          bool       `mapstructure:"disabled"`
	BootstrapUsername string     `mapstructure:"bootstrap_username"`
	BootstrapPassword string     `mapstructure:"bootstrap_password"`
	TokenTTLHours     int        `mapstructure:"token_ttl_hours"`
	OIDC              OIDCConfig `mapstructure:"oidc"`
}

// OIDCConfig enables SSO login when Issuer is set.
type OIDCConfig struct {
	Issuer       string `mapstructure:"issuer"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURL  string `mapstructure:"redirect_url"`
}

// SchedulerConfig configures the autonomous timers.
type SchedulerConfig struct {
	WeekStart string `mapstructure:"week_start"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// WeekStartDay resolves the configured weekday name.
func (c SchedulerConfig) WeekStartDay() (time.Weekday, error) {
	d, ok := weekdays[strings.ToLower(c.WeekStart)]
	if !ok {
		return 0, fmt.Errorf("invalid week_start %q", c.WeekStart)
	}
	return d, nil
}

// TokenTTL returns the login-token lifetime.
func (c AuthConfig) TokenTTL() time.Duration {
	return time.Duration(c.TokenTTLHours) * time.Hour
}

// Load reads attendance.yaml (or the file at path, when given) and
// ATTENDANCE_* environment overrides, e.g. ATTENDANCE_DATABASE_URL.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Every key needs a default, even an empty one: AutomaticEnv only
	// surfaces ATTENDANCE_* overrides into Unmarshal for known keys.
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("database.url", "")
	v.SetDefault("auth.disabled", false)
	v.SetDefault("auth.bootstrap_username", "")
	v.SetDefault("auth.bootstrap_password", "")
	v.SetDefault("auth.token_ttl_hours", 24)
	v.SetDefault("auth.oidc.issuer", "")
	v.SetDefault("auth.oidc.client_id", "")
	v.SetDefault("auth.oidc.client_secret", "")
	v.SetDefault("auth.oidc.redirect_url", "")
	v.SetDefault("scheduler.week_start", "monday")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("attendance")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/attendance")
	}

	v.SetEnvPrefix("attendance")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Scheduler.WeekStartDay(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
