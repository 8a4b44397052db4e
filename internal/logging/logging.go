package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// New builds the production JSON logger at the given level name
// (debug, info, warn, error).
func New(level string) (*zap.Logger, error) {
	parsed, err := zap.ParseAtomicLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = parsed
	return cfg.Build()
}
