package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database struct {
		Path string
	}
	Server struct {
		Port      int
		JWTSecret string
	}
	Scheduler struct {
		Interval      time.Duration
		LeaseDuration time.Duration
		CallTimeout   time.Duration
		Timezone      string // IANA name, e.g. "Europe/Berlin"
	}
	Email struct {
		SMTPHost string
		SMTPPort int
		From     string
		Password string
	}
	Slack struct {
		Token   string
		Channel string
	}
}

// LoadConfig loads the configuration from config.yaml
func LoadConfig() *Config {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("database.path", "data/ledgereye.db")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("scheduler.interval", "30s")
	viper.SetDefault("scheduler.leaseduration", "5m")
	viper.SetDefault("scheduler.calltimeout", "2m")
	viper.SetDefault("scheduler.timezone", "UTC")

	var config Config

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, write one with the defaults
			if err := os.MkdirAll("data", 0755); err != nil {
				fmt.Printf("Warning: Failed to create data directory: %v\n", err)
			}
			if err := viper.SafeWriteConfig(); err != nil {
				fmt.Printf("Warning: Failed to write default config: %v\n", err)
			}
		} else {
			fmt.Printf("Error reading config file: %v\n", err)
		}
	}

	if err := viper.Unmarshal(&config); err != nil {
		fmt.Printf("Error unmarshaling config: %v\n", err)
	}

	return &config
}

// Timezone resolves the configured scheduler timezone, falling back to UTC.
func (c *Config) Timezone() *time.Location {
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		fmt.Printf("Warning: unknown timezone %q, using UTC\n", c.Scheduler.Timezone)
		return time.UTC
	}
	return loc
}
