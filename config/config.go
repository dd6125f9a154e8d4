// Package config loads service configuration from an optional YAML file
// and LEAVE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/warp/leave-engine/generic"
	"github.com/warp/leave-engine/logging"
	"github.com/warp/leave-engine/notify"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig      `mapstructure:"server"`
	Database DatabaseConfig    `mapstructure:"database"`
	Logger   logging.Config    `mapstructure:"logger"`
	Award    AwardConfig       `mapstructure:"award"`
	SMTP     notify.SMTPConfig `mapstructure:"smtp"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// Addr is host:port for http.Server.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"` // sqlite
	DSN    string `mapstructure:"dsn"`  // postgres
}

type AwardConfig struct {
	EntitlementDays   int           `mapstructure:"entitlement_days"`
	AnnualLeaveTypeID string        `mapstructure:"annual_leave_type_id"`
	AutoAward         bool          `mapstructure:"auto_award"`
	CheckInterval     time.Duration `mapstructure:"check_interval"`
}

// Load reads configPath (skipped when empty) and applies environment
// overrides such as LEAVE_SERVER_PORT.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("LEAVE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})

	v.SetDefault("database.driver", DriverSQLite)
	v.SetDefault("database.path", "data/leave.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")

	v.SetDefault("award.entitlement_days", 30)
	v.SetDefault("award.annual_leave_type_id", "annual")
	v.SetDefault("award.auto_award", true)
	v.SetDefault("award.check_interval", time.Hour)

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "leave@localhost")
	v.SetDefault("smtp.enabled", false)
}

// bindEnvVars maps conventional unprefixed variables for secrets.
func bindEnvVars(v *viper.Viper) {
	_ = v.BindEnv("database.dsn", "LEAVE_DATABASE_DSN", "DATABASE_URL")
	_ = v.BindEnv("smtp.password", "LEAVE_SMTP_PASSWORD", "SMTP_PASSWORD")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, errors.New("database.path is required for sqlite"))
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for postgres"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown database.driver %q", c.Database.Driver))
	}

	if c.Award.EntitlementDays <= 0 {
		errs = append(errs, errors.New("award.entitlement_days must be positive"))
	}
	if c.Award.AnnualLeaveTypeID == "" {
		errs = append(errs, errors.New("award.annual_leave_type_id is required"))
	}
	if c.Award.AutoAward && c.Award.CheckInterval <= 0 {
		errs = append(errs, errors.New("award.check_interval must be positive when auto_award is on"))
	}

	if c.SMTP.Enabled && (c.SMTP.Host == "" || c.SMTP.From == "") {
		errs = append(errs, errors.New("smtp.host and smtp.from are required when smtp is enabled"))
	}

	if len(errs) > 0 {
		return &generic.ValidationError{Field: "config", Message: errors.Join(errs...).Error()}
	}
	return nil
}
