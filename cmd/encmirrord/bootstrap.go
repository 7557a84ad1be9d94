package main

import (
	"context"
	"fmt"

	"encmirror/internal/config"
	"encmirror/internal/daemon"
	"encmirror/internal/logging"
)

type runOptions struct {
	configPath string
	// ready, when set, is called once the daemon is serving.
	ready func(*daemon.Daemon)
}

// run loads configuration, starts the daemon, and blocks until ctx ends.
func run(ctx context.Context, opts runOptions) error {
	cfg, resolved, exists, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if !exists {
		logger.Info("no config file found, using defaults", logging.String("path", resolved))
	}

	d, err := daemon.New(daemon.Options{Config: cfg, Logger: logger})
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warn("daemon close", logging.Error(err))
		}
	}()

	if err := d.Start(ctx); err != nil {
		return err
	}
	if opts.ready != nil {
		opts.ready(d)
	}

	<-ctx.Done()
	logger.Info("encmirrord shutting down")
	return nil
}
