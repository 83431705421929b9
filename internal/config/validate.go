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
	if err := c.validateSearch(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateExtract(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.DataDir == "" {
		return errors.New("paths.data_dir must be set")
	}
	if c.Paths.DocumentsDir == "" {
		return errors.New("paths.documents_dir must be set")
	}
	return nil
}

func (c *Config) validateSearch() error {
	if c.Search.BaseURL == "" {
		return errors.New("search.base_url must be set")
	}
	if !strings.HasPrefix(c.Search.BaseURL, "http://") && !strings.HasPrefix(c.Search.BaseURL, "https://") {
		return fmt.Errorf("search.base_url must be an http(s) URL, got %q", c.Search.BaseURL)
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.RequestTimeout <= 0 {
		return errors.New("download.request_timeout must be positive")
	}
	if c.Download.MaxBytes <= 0 {
		return errors.New("download.max_bytes must be positive")
	}
	return nil
}

func (c *Config) validateExtract() error {
	if c.Extract.MaxPages <= 0 {
		return errors.New("extract.max_pages must be positive")
	}
	if len(c.Extract.Keywords) == 0 {
		return errors.New("extract.keywords must not be empty")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
