package sntpd

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

var ErrInvalidPort = errors.New("sntpd: invalid port")

// ValidatePort enforces the accepted listen port range. Port 1 itself is
// rejected along with 65535 and everything outside.
func ValidatePort(port int) error {
	if port <= 1 || port >= 65535 {
		return fmt.Errorf("%w: %d (must satisfy 1 < port < 65535)", ErrInvalidPort, port)
	}
	return nil
}

// FileConfig is the YAML configuration file layout. All fields are
// optional; CLI flags take precedence over file values.
type FileConfig struct {
	Server struct {
		Port         int    `yaml:"port"`
		BindAddress  string `yaml:"bind_address"`
		DelaySeconds int    `yaml:"delay_seconds"`
		Workers      int    `yaml:"workers"`
		QueueSize    int    `yaml:"queue_size"`
	} `yaml:"server"`

	RateLimit struct {
		PerSecond float64 `yaml:"per_second"`
		Burst     int     `yaml:"burst"`
	} `yaml:"rate_limit"`

	Monitor struct {
		Addr string `yaml:"addr"`
	} `yaml:"monitor"`

	Logging struct {
		Debug bool `yaml:"debug"`
	} `yaml:"logging"`
}

// LoadFile reads and validates a YAML configuration file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := fc.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &fc, nil
}

func (fc *FileConfig) Validate() error {
	if fc.Server.Port != 0 {
		if err := ValidatePort(fc.Server.Port); err != nil {
			return err
		}
	}
	if fc.Server.Workers < 0 {
		return fmt.Errorf("server config: workers must not be negative")
	}
	if fc.Server.QueueSize < 0 {
		return fmt.Errorf("server config: queue_size must not be negative")
	}
	if fc.RateLimit.PerSecond < 0 {
		return fmt.Errorf("rate_limit config: per_second must not be negative")
	}
	return nil
}

// ServerConfig converts the file values into a Config, leaving zero values
// for anything unset so normalize() can fill the defaults.
func (fc *FileConfig) ServerConfig() Config {
	cfg := Config{
		Delay:              time.Duration(fc.Server.DelaySeconds) * time.Second,
		Workers:            fc.Server.Workers,
		QueueSize:          fc.Server.QueueSize,
		RateLimitPerSecond: fc.RateLimit.PerSecond,
		RateLimitBurst:     fc.RateLimit.Burst,
		Debug:              fc.Logging.Debug,
	}
	if fc.Server.Port != 0 {
		host := fc.Server.BindAddress
		if host == "" {
			host = "0.0.0.0"
		}
		cfg.ListenAddr = net.JoinHostPort(host, strconv.Itoa(fc.Server.Port))
	} else if fc.Server.BindAddress != "" {
		cfg.ListenAddr = net.JoinHostPort(fc.Server.BindAddress, "123")
	}
	return cfg
}
