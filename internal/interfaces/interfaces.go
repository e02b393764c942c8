package interfaces

import (
	"upgradewatch/internal/config"
	"upgradewatch/pkg/logger"
)

// Logger interface for logging operations across all internal packages.
type Logger = logger.Logger

// Config interface for configuration access across all internal packages.
type Config interface {
	GetAmbariConfig() config.AmbariConfig
	GetPollingConfig() config.PollingConfig
	GetServerConfig() config.ServerConfig
}
