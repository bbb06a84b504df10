package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/pkg/utils"
)

// setup loads config and wires components for a one-shot command. Logging
// stays silent unless --debug or the config's debug flag is set.
func setup(flags *rootFlags, mode componentMode) (*Components, func(), error) {
	cfg, _, err := loadConfig(flags.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := zap.NewNop()
	if flags.debug || cfg.Debug {
		if logger, err = utils.NewLogger(true); err != nil {
			return nil, nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	c, err := initializeComponents(cfg, logger, mode)
	if err != nil {
		return nil, nil, err
	}
	return c, func() {
		c.Close()
		_ = logger.Sync()
	}, nil
}
