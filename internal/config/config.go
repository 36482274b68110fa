package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	JWTSecret   string   `mapstructure:"JWT_SECRET"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// Alert thresholds, overridable per request via query parameters.
	BedOccupancyThreshold float64 `mapstructure:"BED_OCCUPANCY_THRESHOLD"`
	ICUOccupancyThreshold float64 `mapstructure:"ICU_OCCUPANCY_THRESHOLD"`
	DoctorUtilThreshold   float64 `mapstructure:"DOCTOR_UTILIZATION_THRESHOLD"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BED_OCCUPANCY_THRESHOLD", 85)
	v.SetDefault("ICU_OCCUPANCY_THRESHOLD", 90)
	v.SetDefault("DOCTOR_UTILIZATION_THRESHOLD", 95)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("JWT_SECRET")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("BED_OCCUPANCY_THRESHOLD")
	v.BindEnv("ICU_OCCUPANCY_THRESHOLD")
	v.BindEnv("DOCTOR_UTILIZATION_THRESHOLD")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. Outside development
// a JWT secret is required so real bearer authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required when ENV=%q. Refusing to start without authentication configuration", c.Env)
	}
	if c.BedOccupancyThreshold <= 0 || c.BedOccupancyThreshold > 100 {
		return fmt.Errorf("BED_OCCUPANCY_THRESHOLD must be in (0,100], got %v", c.BedOccupancyThreshold)
	}
	if c.ICUOccupancyThreshold <= 0 || c.ICUOccupancyThreshold > 100 {
		return fmt.Errorf("ICU_OCCUPANCY_THRESHOLD must be in (0,100], got %v", c.ICUOccupancyThreshold)
	}
	if c.DoctorUtilThreshold <= 0 || c.DoctorUtilThreshold > 100 {
		return fmt.Errorf("DOCTOR_UTILIZATION_THRESHOLD must be in (0,100], got %v", c.DoctorUtilThreshold)
	}
	return nil
}
