package main

import (
	"fmt"
	"strings"
	"time"

	"zzik-backend/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	Verification VerificationConfig `yaml:"verification"`

	QrSecret    string `yaml:"qrSecret"`
	AdminAPIKey string `yaml:"adminApiKey"`
	EventsURL   string `yaml:"eventsUrl"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type VerificationConfig struct {
	MaxGpsAge         time.Duration `yaml:"maxGpsAge"`
	MaxAccuracyMeters float64       `yaml:"maxAccuracyMeters"`
	MaxDistanceMeters float64       `yaml:"maxDistanceMeters"`
	RunTTL            time.Duration `yaml:"runTtl"`
	NonceTTL          time.Duration `yaml:"nonceTtl"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.SetDefault("verification.maxGpsAge", "5m")
	viper.SetDefault("verification.maxAccuracyMeters", 50.0)
	viper.SetDefault("verification.maxDistanceMeters", 100.0)
	viper.SetDefault("verification.runTtl", "1h")
	viper.SetDefault("verification.nonceTtl", "24h")
	viper.SetDefault("logLevel", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
