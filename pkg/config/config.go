// Package config loads server configuration from environment variables.
package config

import (
	"os"
	"strings"
)

// Config holds server configuration.
type Config struct {
	Port          string
	LogLevel      string
	SchemaVersion string
	Presets       []string
	PresetDir     string
	MatchMode     string
}

// Load loads configuration from environment variables.
func Load() *Config {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "INFO"
	}

	schema := os.Getenv("CASEGUARD_SCHEMA")
	if schema == "" {
		schema = "v2"
	}

	var presets []string
	if raw := os.Getenv("CASEGUARD_PRESETS"); raw != "" {
		for _, name := range strings.Split(raw, ",") {
			if name = strings.TrimSpace(name); name != "" {
				presets = append(presets, name)
			}
		}
	}

	matchMode := os.Getenv("CASEGUARD_MATCH_MODE")
	if matchMode == "" {
		matchMode = "first_match"
	}

	return &Config{
		Port:          port,
		LogLevel:      logLevel,
		SchemaVersion: schema,
		Presets:       presets,
		PresetDir:     os.Getenv("CASEGUARD_PRESET_DIR"),
		MatchMode:     matchMode,
	}
}
