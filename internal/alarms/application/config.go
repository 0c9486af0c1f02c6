package application

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines dashboard configuration.
type Config struct {
	HTTPAddr        string   `yaml:"http_addr"`
	ManagerURL      string   `yaml:"manager_url"`
	CollectorHost   string   `yaml:"collector_host"`
	CommentsHost    string   `yaml:"comments_host"`
	RefreshInterval int      `yaml:"refresh_interval_seconds"`
	JWTSecret       string   `yaml:"jwt_secret"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// LoadConfig loads config from yaml or env.
func LoadConfig() (Config, error) {
	cfg := Config{
		HTTPAddr:        getenvDefault("ALARMBOARD_HTTP_ADDR", ":8080"),
		ManagerURL:      os.Getenv("ALARMBOARD_MANAGER_URL"),
		CollectorHost:   getenvDefault("ALARMBOARD_COLLECTOR_HOST", "localhost"),
		CommentsHost:    os.Getenv("ALARMBOARD_COMMENTS_HOST"),
		RefreshInterval: getenvIntDefault("ALARMBOARD_REFRESH_SECONDS", 60),
		JWTSecret:       os.Getenv("ALARMBOARD_JWT_SECRET"),
		CORSOrigins:     splitCSV(getenvDefault("ALARMBOARD_CORS_ORIGINS", "")),
	}

	if path := os.Getenv("ALARMBOARD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.CommentsHost == "" {
		cfg.CommentsHost = cfg.CollectorHost
	}
	if cfg.RefreshInterval < 5 {
		cfg.RefreshInterval = 60
	}
	if cfg.ManagerURL == "" {
		return cfg, errors.New("alarmboard: manager URL required")
	}
	return cfg, nil
}

// RefreshEvery returns the auto refresh period.
func (c Config) RefreshEvery() time.Duration {
	return time.Duration(c.RefreshInterval) * time.Second
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	var result []string
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			result = append(result, part)
		}
	}
	return result
}
