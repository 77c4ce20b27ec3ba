// Package config holds runtime settings for the daemon and the client.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries the settings for both roles of the binary: the daemon
// reads Store and HTTP, the client reads Broker, Store and Session.
type Config struct {
	HTTP    *HTTPConfig    `json:"http"`
	Store   *StoreConfig   `json:"store"`
	Broker  *BrokerConfig  `json:"broker"`
	Session *SessionConfig `json:"session"`
}

type HTTPConfig struct {
	Host         string        `json:"host"`
	Port         int           `json:"port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
}

type StoreConfig struct {
	// Path is the SQLite file used by the daemon.
	Path string `json:"path"`
	// BaseURL is where clients reach the REST surface.
	BaseURL string `json:"base_url"`
}

type BrokerConfig struct {
	// BaseURL is the HTTP base clients derive the socket endpoint from.
	BaseURL string `json:"base_url"`
}

type SessionConfig struct {
	ReconnectInterval time.Duration `json:"reconnect_interval"`
	PollInterval      time.Duration `json:"poll_interval"`
}

func DefaultConfig() *Config {
	return &Config{
		HTTP: &HTTPConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Store: &StoreConfig{
			Path:    "./counselchat.db",
			BaseURL: "http://localhost:8080",
		},
		Broker: &BrokerConfig{
			BaseURL: "http://localhost:8080",
		},
		Session: &SessionConfig{
			ReconnectInterval: 5 * time.Second,
			PollInterval:      5 * time.Second,
		},
	}
}

func (c *Config) Validate() error {
	if c.HTTP == nil {
		return fmt.Errorf("HTTP configuration is required")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}
	if c.HTTP.Host == "" {
		return fmt.Errorf("HTTP host cannot be empty")
	}
	if c.HTTP.ReadTimeout <= 0 {
		return fmt.Errorf("HTTP read timeout must be positive")
	}
	if c.HTTP.WriteTimeout <= 0 {
		return fmt.Errorf("HTTP write timeout must be positive")
	}
	if c.Store == nil {
		return fmt.Errorf("store configuration is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store path cannot be empty")
	}
	if c.Store.BaseURL == "" {
		return fmt.Errorf("store base URL cannot be empty")
	}
	if c.Broker == nil {
		return fmt.Errorf("broker configuration is required")
	}
	if c.Broker.BaseURL == "" {
		return fmt.Errorf("broker base URL cannot be empty")
	}
	if c.Session == nil {
		return fmt.Errorf("session configuration is required")
	}
	if c.Session.ReconnectInterval <= 0 {
		return fmt.Errorf("session reconnect interval must be positive")
	}
	if c.Session.PollInterval <= 0 {
		return fmt.Errorf("session poll interval must be positive")
	}
	return nil
}

// LoadFromEnv reads settings from COUNSELCHAT_* environment variables
// on top of the defaults. A .env file in the working directory is
// loaded first when present; missing file is not an error.
func LoadFromEnv() *Config {
	_ = godotenv.Load()

	config := DefaultConfig()

	if host := os.Getenv("COUNSELCHAT_HTTP_HOST"); host != "" {
		config.HTTP.Host = host
	}
	if port := os.Getenv("COUNSELCHAT_HTTP_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.HTTP.Port = p
		}
	}
	if readTimeout := os.Getenv("COUNSELCHAT_HTTP_READ_TIMEOUT"); readTimeout != "" {
		if timeout, err := time.ParseDuration(readTimeout); err == nil {
			config.HTTP.ReadTimeout = timeout
		}
	}
	if writeTimeout := os.Getenv("COUNSELCHAT_HTTP_WRITE_TIMEOUT"); writeTimeout != "" {
		if timeout, err := time.ParseDuration(writeTimeout); err == nil {
			config.HTTP.WriteTimeout = timeout
		}
	}
	if path := os.Getenv("COUNSELCHAT_STORE_PATH"); path != "" {
		config.Store.Path = path
	}
	if baseURL := os.Getenv("COUNSELCHAT_STORE_URL"); baseURL != "" {
		config.Store.BaseURL = baseURL
	}
	if baseURL := os.Getenv("COUNSELCHAT_BROKER_URL"); baseURL != "" {
		config.Broker.BaseURL = baseURL
	}
	if interval := os.Getenv("COUNSELCHAT_RECONNECT_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Session.ReconnectInterval = d
		}
	}
	if interval := os.Getenv("COUNSELCHAT_POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil {
			config.Session.PollInterval = d
		}
	}

	return config
}
