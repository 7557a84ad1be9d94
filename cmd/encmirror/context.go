package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"encmirror/internal/config"
	"encmirror/internal/logging"
	"encmirror/internal/replica"
)

type commandContext struct {
	configFlag *string
	apiFlag    *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, apiFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		apiFlag:    apiFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil {
		if bind := strings.TrimSpace(*c.apiFlag); bind != "" {
			return bind, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(cfg.Paths.APIBind) == "" {
		return "", nil
	}
	return cfg.APIURL(), nil
}

func (c *commandContext) client() (*replica.Client, error) {
	address, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	var token string
	if cfg, err := c.ensureConfig(); err == nil {
		token = cfg.Paths.APIToken
	}
	client, err := replica.NewClient(address, token)
	if err != nil {
		return nil, fmt.Errorf("api address %q: %w", address, err)
	}
	if client == nil {
		return nil, errors.New("api_bind is empty; enable the encmirrord HTTP API to use this command")
	}
	return client, nil
}

// wrapAPIError turns transport failures into an actionable message.
func (c *commandContext) wrapAPIError(err error) error {
	if err == nil {
		return nil
	}
	if replica.IsAPIUnavailable(err) {
		address, _ := c.apiAddress()
		return fmt.Errorf("connect to encmirrord at %s: is the daemon running? (%w)", address, err)
	}
	return err
}

// logger reports warnings from local helpers on stderr so they never mix
// with command output.
func (c *commandContext) logger() *slog.Logger {
	logger, err := logging.New(logging.Options{Level: "warn", Format: "console", OutputPaths: []string{"stderr"}})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
