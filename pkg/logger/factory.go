package logger

import (
	"os"
	"strings"
)

const envPrefix = "UPGRADEWATCH_"

// InitFromEnv configures the global logger from LOG_* or UPGRADEWATCH_LOG_* variables.
func InitFromEnv() error {
	config := Config{
		Level:      envOrDefault("LOG_LEVEL", "info"),
		Format:     envOrDefault("LOG_FORMAT", "console"),
		OutputPath: envOrDefault("LOG_OUTPUT", "stdout"),
	}

	if os.Getenv("DEBUG") != "" || os.Getenv(envPrefix+"DEBUG") != "" {
		config.Level = "debug"
	}

	return Configure(config)
}

// envOrDefault prefers the prefixed variable over the bare one.
func envOrDefault(name, fallback string) string {
	if val := os.Getenv(envPrefix + name); val != "" {
		return val
	}

	if val := os.Getenv(name); val != "" {
		return val
	}

	return fallback
}

// NewForPackage creates a named child of the global logger.
func NewForPackage(packageName string) Logger {
	return Get().Named(packageName)
}

// IsDebugEnabled reports whether the global logger emits debug entries.
func IsDebugEnabled() bool {
	return strings.EqualFold(Get().GetLevel(), "debug")
}

// CreateTestLogger returns a debug console logger.
func CreateTestLogger() Logger {
	logger, _ := New(Config{Level: "debug", Format: "console", OutputPath: "stdout"})

	return logger
}
