package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateQueue(); err != nil {
		return err
	}
	if err := c.validateTranscode(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBackend() error {
	if c.Backend.BaseURL == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/courier/config.toml"
		}
		return fmt.Errorf("backend.base_url is required. Edit %s (create with 'courier config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Backend.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	return nil
}

func (c *Config) validateQueue() error {
	if c.Queue.PhotoMaxAttempts < c.Queue.ActionMaxAttempts {
		return errors.New("queue.photo_max_attempts must not be lower than queue.action_max_attempts")
	}
	return nil
}

func (c *Config) validateTranscode() error {
	if c.Transcode.Quality < 1 || c.Transcode.Quality > 100 {
		return errors.New("transcode.quality must be between 1 and 100")
	}
	if c.Transcode.MaxWidth < 0 {
		return errors.New("transcode.max_width must not be negative")
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if strings.TrimSpace(c.Network.ProbeURL) == "" {
		return errors.New("network.probe_url must be set when backend.base_url is empty")
	}
	return nil
}
