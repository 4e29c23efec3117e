// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/luxfi/ipc"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	logFileFlag  *string

	once   sync.Once
	config ipc.Config
	logger *zap.Logger
	err    error
}

func newCommandContext(configFlag, logLevelFlag, logFileFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		logFileFlag:  logFileFlag,
	}
}

// ensure loads the configuration and builds the logger once per process.
// Flags override the file and the environment.
func (c *commandContext) ensure() (ipc.Config, *zap.Logger, error) {
	c.once.Do(func() {
		cfg, err := ipc.ReadConfig(strings.TrimSpace(*c.configFlag))
		if err != nil {
			c.err = err
			return
		}
		if v := strings.TrimSpace(*c.logLevelFlag); v != "" {
			cfg.LogLevel = v
		}
		if v := strings.TrimSpace(*c.logFileFlag); v != "" {
			cfg.LogFile = v
		}
		if err := cfg.Validate(); err != nil {
			c.err = err
			return
		}
		level, err := cfg.Level()
		if err != nil {
			c.err = err
			return
		}
		c.config = cfg
		c.logger = newLogger(level, cfg.LogFile)
	})
	return c.config, c.logger, c.err
}

func (c *commandContext) close() {
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
