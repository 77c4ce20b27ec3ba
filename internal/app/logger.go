package app

import (
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Development output unless
// COUNSELCHAT_ENV=production selects JSON logging.
func NewLogger() (*zap.Logger, error) {
	if os.Getenv("COUNSELCHAT_ENV") == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
