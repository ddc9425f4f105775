package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeQueue()
	c.normalizeNetwork()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	c.Backend.BaseURL = strings.TrimRight(strings.TrimSpace(c.Backend.BaseURL), "/")
	c.Backend.AuthToken = strings.TrimSpace(c.Backend.AuthToken)
	if c.Backend.AuthToken == "" {
		if token, ok := os.LookupEnv("COURIER_AUTH_TOKEN"); ok {
			c.Backend.AuthToken = strings.TrimSpace(token)
		}
	}
	if c.Backend.RequestTimeout <= 0 {
		c.Backend.RequestTimeout = defaultRequestTimeout
	}
	if strings.TrimSpace(c.Backend.UploadContentType) == "" {
		c.Backend.UploadContentType = defaultUploadContentType
	}
}

func (c *Config) normalizeQueue() {
	if c.Queue.PollInterval <= 0 {
		c.Queue.PollInterval = defaultPollInterval
	}
	if c.Queue.OnlineSettleDelay < 0 {
		c.Queue.OnlineSettleDelay = defaultOnlineSettleDelay
	}
	if c.Queue.CompletedRetention <= 0 {
		c.Queue.CompletedRetention = defaultCompletedRetention
	}
	if c.Queue.PhotoMaxAttempts <= 0 {
		c.Queue.PhotoMaxAttempts = defaultPhotoMaxAttempts
	}
	if c.Queue.ActionMaxAttempts <= 0 {
		c.Queue.ActionMaxAttempts = defaultActionMaxAttempts
	}
}

func (c *Config) normalizeNetwork() {
	c.Network.ProbeURL = strings.TrimSpace(c.Network.ProbeURL)
	if c.Network.ProbeURL == "" {
		c.Network.ProbeURL = c.Backend.BaseURL
	}
	if c.Network.ProbeInterval <= 0 {
		c.Network.ProbeInterval = defaultProbeInterval
	}
	if c.Network.ProbeTimeout <= 0 {
		c.Network.ProbeTimeout = defaultProbeTimeout
	}
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "console", "json":
	default:
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
