package gate

import (
	"github.com/portaoweb/portao-core/internal/infrastructure/config"
	"github.com/portaoweb/portao-core/internal/infrastructure/logging"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "discard"}, "test")
}
