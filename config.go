package main

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration, read from a yaml file with
// environment variables taking precedence over file values.
type Config struct {
	Addr           string   `yaml:"addr"`
	DatabasePath   string   `yaml:"database_path"`
	JWTSecret      string   `yaml:"jwt_secret"`
	LogLevel       string   `yaml:"log_level"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:           ":3001",
		DatabasePath:   "./boardcast.db",
		JWTSecret:      "change-me-in-production",
		LogLevel:       "info",
		AllowedOrigins: []string{"*"},
	}
}

// LoadConfig reads path if it exists, fills in defaults for anything
// missing, then applies environment overrides.
func LoadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if raw, err := os.ReadFile(path); err == nil {
		var fileConfig Config
		if err := yaml.Unmarshal(raw, &fileConfig); err != nil {
			return nil, err
		}
		if fileConfig.Addr != "" {
			config.Addr = fileConfig.Addr
		}
		if fileConfig.DatabasePath != "" {
			config.DatabasePath = fileConfig.DatabasePath
		}
		if fileConfig.JWTSecret != "" {
			config.JWTSecret = fileConfig.JWTSecret
		}
		if fileConfig.LogLevel != "" {
			config.LogLevel = fileConfig.LogLevel
		}
		if len(fileConfig.AllowedOrigins) > 0 {
			config.AllowedOrigins = fileConfig.AllowedOrigins
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	if addr := os.Getenv("BOARDCAST_ADDR"); addr != "" {
		config.Addr = addr
	}
	if path := os.Getenv("BOARDCAST_DB"); path != "" {
		config.DatabasePath = path
	}
	if secret := os.Getenv("BOARDCAST_JWT_SECRET"); secret != "" {
		config.JWTSecret = secret
	}
	if level := os.Getenv("BOARDCAST_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if origins := os.Getenv("BOARDCAST_ALLOWED_ORIGINS"); origins != "" {
		config.AllowedOrigins = strings.Split(origins, ",")
	}

	return config, nil
}
