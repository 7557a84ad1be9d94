package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeMirror(); err != nil {
		return err
	}
	c.normalizePreview()
	c.normalizeLogging()
	c.normalizeNotifications()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IngestSocket) == "" {
		c.Paths.IngestSocket = filepath.Join(c.Paths.StateDir, "ingest.sock")
	}
	if c.Paths.IngestSocket, err = expandPath(c.Paths.IngestSocket); err != nil {
		return fmt.Errorf("paths.ingest_socket: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	if c.Paths.APIToken == "" {
		if value, ok := os.LookupEnv("ENCMIRROR_API_TOKEN"); ok {
			c.Paths.APIToken = strings.TrimSpace(value)
		}
	}

	disks := make([]string, 0, len(c.Paths.DiskPaths))
	for _, p := range c.Paths.DiskPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		expanded, err := expandPath(p)
		if err != nil {
			return fmt.Errorf("paths.disk_paths: %w", err)
		}
		disks = append(disks, expanded)
	}
	if len(disks) == 0 {
		disks = append(disks, c.Paths.StateDir)
	}
	c.Paths.DiskPaths = disks
	return nil
}

func (c *Config) normalizeMirror() error {
	if c.Mirror.ChangeHistory == 0 {
		c.Mirror.ChangeHistory = defaultChangeHistory
	}
	if c.Mirror.ConsoleLines == 0 {
		c.Mirror.ConsoleLines = defaultConsoleLines
	}
	if c.Mirror.MessageHistory == 0 {
		c.Mirror.MessageHistory = defaultMessageHistory
	}
	archive := strings.TrimSpace(c.Mirror.MessageArchive)
	if archive == "" {
		c.Mirror.MessageArchive = ""
		return nil
	}
	expanded, err := expandPath(archive)
	if err != nil {
		return fmt.Errorf("mirror.message_archive: %w", err)
	}
	c.Mirror.MessageArchive = expanded
	return nil
}

func (c *Config) normalizePreview() {
	if c.Preview.SessionTTLSeconds == 0 {
		c.Preview.SessionTTLSeconds = defaultSessionTTLSeconds
	}
	if c.Preview.FrameTimeout == 0 {
		c.Preview.FrameTimeout = defaultFrameTimeout
	}
	c.Preview.FFmpegBinary = strings.TrimSpace(c.Preview.FFmpegBinary)
	if c.Preview.FFmpegBinary == "" {
		c.Preview.FFmpegBinary = defaultFFmpegBinary
	}
	c.Preview.FFprobeBinary = strings.TrimSpace(c.Preview.FFprobeBinary)
	if c.Preview.FFprobeBinary == "" {
		c.Preview.FFprobeBinary = defaultFFprobeBinary
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	c.Notifications.MinLevel = strings.ToLower(strings.TrimSpace(c.Notifications.MinLevel))
	if c.Notifications.MinLevel == "" {
		c.Notifications.MinLevel = defaultNotifyLevel
	}
}
