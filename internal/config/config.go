// Package config loads the runtime configuration for the text tools server
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pcurtin/mcp-texttools/internal/logging"
)

// Defaults for the tool execution limits
const (
	DefaultMaxTextLength = 1_000_000
	DefaultToolTimeout   = 30 * time.Second
	DefaultSSEAddress    = ":8080"
	DefaultSSEHeartbeat  = 15 * time.Second
)

// Config holds all server configuration
type Config struct {
	// ServerName is reported during initialization and on /health
	ServerName string `mapstructure:"server_name"`

	// MaxTextLength is the maximum accepted input size in characters
	MaxTextLength int `mapstructure:"max_text_length"`

	// ToolTimeout bounds the execution time of a single tool call
	ToolTimeout time.Duration `mapstructure:"tool_timeout"`

	// LogLevel is one of trace, debug, info, warn, error, fatal
	LogLevel string `mapstructure:"log_level"`

	SSE SSEConfig `mapstructure:"sse"`
}

// SSEConfig holds the HTTP/SSE transport settings
type SSEConfig struct {
	// Address is the listen address for the HTTP server
	Address string `mapstructure:"address"`

	// Heartbeat is the interval between keep-alive comments on open streams
	Heartbeat time.Duration `mapstructure:"heartbeat"`
}

// Load reads configuration from an optional YAML file and environment
// variables. An empty path enables the default search locations.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	// Configure environment variables before reading the config file
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	envMappings := map[string]string{
		"server_name":     "TEXTTOOLS_SERVER_NAME",
		"max_text_length": "TEXTTOOLS_MAX_TEXT_LENGTH",
		"tool_timeout":    "TEXTTOOLS_TOOL_TIMEOUT",
		"log_level":       "TEXTTOOLS_LOG_LEVEL",
		"sse.address":     "TEXTTOOLS_SSE_ADDRESS",
		"sse.heartbeat":   "TEXTTOOLS_SSE_HEARTBEAT",
	}

	for configKey, envVar := range envMappings {
		if err := v.BindEnv(configKey, envVar); err != nil {
			return nil, fmt.Errorf("binding %s to %s: %w", configKey, envVar, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("texttools")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.mcp-texttools")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found, environment variables and defaults apply
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server_name", "mcp-texttools")
	v.SetDefault("max_text_length", DefaultMaxTextLength)
	v.SetDefault("tool_timeout", DefaultToolTimeout)
	v.SetDefault("log_level", "info")
	v.SetDefault("sse.address", DefaultSSEAddress)
	v.SetDefault("sse.heartbeat", DefaultSSEHeartbeat)
}

func validate(config *Config) error {
	var invalid []string

	if config.MaxTextLength <= 0 {
		invalid = append(invalid, fmt.Sprintf("max_text_length must be positive, got %d", config.MaxTextLength))
	}
	if config.ToolTimeout <= 0 {
		invalid = append(invalid, fmt.Sprintf("tool_timeout must be positive, got %s", config.ToolTimeout))
	}
	if config.SSE.Heartbeat <= 0 {
		invalid = append(invalid, fmt.Sprintf("sse.heartbeat must be positive, got %s", config.SSE.Heartbeat))
	}
	if config.SSE.Address == "" {
		invalid = append(invalid, "sse.address must not be empty")
	}
	if _, err := logging.ParseLevel(config.LogLevel); err != nil {
		invalid = append(invalid, err.Error())
	}

	if len(invalid) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(invalid, "; "))
	}

	return nil
}
