// Package config loads runtime settings from the environment through viper.
package config

import (
	"fmt"
	"math"
	"strings"

	"dashgate/internal/models"
	"dashgate/internal/password"
	"dashgate/internal/repositories"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const defaultDashboards = "Historical Trends=https://app.powerbi.com/view?r=eyJrIjoiYzViNjE4YTAtZDc2Mi00MzY2LTkxYjUtZDI0NzM0M2JhOTUzIiwidCI6IjkzZTljMTgyLTdhOWMtNGI4YS04YzY1LTM3OTMyNDZlYzgzMyJ9," +
	"Real-Time AQI Dashboard=https://app.powerbi.com/view?r=eyJrIjoiNmU4MDY4ZDUtYzA1MS00MmE1LWIxNjItOTAwNzI4NjEwNDUzIiwidCI6IjkzZTljMTgyLTdhOWMtNGI4YS04YzY1LTM3OTMyNDZlYzgzMyJ9"

// Config holds all runtime settings.
type Config struct {
	AppPort     string
	LogLevel    string
	RabbitMQURL string

	Database repositories.DatabaseConfig

	PasswordHash string
	BcryptCost   int
	Argon2id     password.Argon2idParams

	Dashboards []models.Dashboard
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("APP_PORT", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("RABBITMQ_URL", "")
	v.SetDefault("DB_DRIVER", string(repositories.DriverSQLite))
	v.SetDefault("DATABASE_DSN", "userdb.db")
	v.SetDefault("DB_DEBUG", false)
	v.SetDefault("PASSWORD_HASH", password.AlgorithmArgon2id)
	v.SetDefault("BCRYPT_COST", 10)
	def := password.DefaultArgon2idParams()
	v.SetDefault("ARGON2_TIME", def.Time)
	v.SetDefault("ARGON2_MEMORY_KIB", def.MemoryKiB)
	v.SetDefault("ARGON2_PARALLELISM", def.Parallelism)
	v.SetDefault("DASHBOARDS", defaultDashboards)
}

// Load reads the configuration from v, which should already have its
// defaults and environment binding in place.
func Load(v *viper.Viper) (*Config, error) {
	dashboards, err := ParseDashboards(v.GetString("DASHBOARDS"))
	if err != nil {
		return nil, err
	}
	parallelism := v.GetUint("ARGON2_PARALLELISM")
	if parallelism > math.MaxUint8 {
		return nil, fmt.Errorf("ARGON2_PARALLELISM must be at most %d, got %d", math.MaxUint8, parallelism)
	}

	cfg := &Config{
		AppPort:     v.GetString("APP_PORT"),
		LogLevel:    v.GetString("LOG_LEVEL"),
		RabbitMQURL: v.GetString("RABBITMQ_URL"),
		Database: repositories.DatabaseConfig{
			Driver: repositories.DriverType(strings.ToLower(v.GetString("DB_DRIVER"))),
			DSN:    v.GetString("DATABASE_DSN"),
			Debug:  v.GetBool("DB_DEBUG"),
		},
		PasswordHash: strings.ToLower(v.GetString("PASSWORD_HASH")),
		BcryptCost:   v.GetInt("BCRYPT_COST"),
		Argon2id: password.Argon2idParams{
			Time:        v.GetUint32("ARGON2_TIME"),
			MemoryKiB:   v.GetUint32("ARGON2_MEMORY_KIB"),
			Parallelism: uint8(parallelism),
		},
		Dashboards: dashboards,
	}

	switch cfg.Database.Driver {
	case repositories.DriverSQLite, repositories.DriverPostgres, repositories.DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER '%s'", cfg.Database.Driver)
	}
	if cfg.Database.DSN == "" {
		return nil, fmt.Errorf("DATABASE_DSN must not be empty")
	}
	return cfg, nil
}

// NewHasher builds the password hasher selected by PASSWORD_HASH.
func (c *Config) NewHasher() (password.Hasher, error) {
	hasher, err := password.New(c.PasswordHash, password.Options{
		Argon2id:   c.Argon2id,
		BcryptCost: c.BcryptCost,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid PASSWORD_HASH: %w", err)
	}
	return hasher, nil
}

// ParseDashboards parses comma separated "name=url" entries.
func ParseDashboards(raw string) ([]models.Dashboard, error) {
	validate := validator.New()
	var dashboards []models.Dashboard
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, url, ok := strings.Cut(entry, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid dashboard entry '%s', expected name=url", entry)
		}
		dashboard := models.Dashboard{Name: name, URL: url}
		if err := validate.Struct(dashboard); err != nil {
			return nil, fmt.Errorf("invalid dashboard '%s': %w", name, err)
		}
		dashboards = append(dashboards, dashboard)
	}
	return dashboards, nil
}
