package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateMirror(); err != nil {
		return err
	}
	if err := c.validatePreview(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		return errors.New("paths.state_dir must be set")
	}
	if strings.TrimSpace(c.Paths.IngestSocket) == "" {
		return errors.New("paths.ingest_socket must be set")
	}
	return nil
}

func (c *Config) validateMirror() error {
	if c.Mirror.ChangeHistory < 1 {
		return errors.New("mirror.change_history must be positive")
	}
	if c.Mirror.ConsoleLines < 1 {
		return errors.New("mirror.console_lines must be positive")
	}
	if c.Mirror.MessageHistory < 1 {
		return errors.New("mirror.message_history must be positive")
	}
	return nil
}

func (c *Config) validatePreview() error {
	if c.Preview.SessionTTLSeconds < 1 {
		return errors.New("preview.session_ttl_seconds must be positive")
	}
	if c.Preview.FrameTimeout < 1 {
		return errors.New("preview.frame_timeout must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 1 {
		return errors.New("notifications.request_timeout must be positive")
	}
	switch c.Notifications.MinLevel {
	case "info", "error":
	default:
		return fmt.Errorf("notifications.min_level: unsupported value %q", c.Notifications.MinLevel)
	}
	if topic := c.Notifications.NtfyTopic; topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be a full http(s) URL, got %q", topic)
	}
	return nil
}
