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
	c.normalizeRender()
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout == 0 {
		c.Notifications.RequestTimeout = defaultNtfyTimeout
	}
	return c.normalizeMetrics()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = expandPath(strings.TrimSpace(c.Paths.HistoryDB)); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if c.Paths.OutputDir, err = expandPath(strings.TrimSpace(c.Paths.OutputDir)); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRender() {
	if value, ok := os.LookupEnv("TRACKEXPORT_ENGINE"); ok && strings.TrimSpace(value) != "" {
		c.Render.EngineBinary = strings.TrimSpace(value)
	}
	c.Render.EngineBinary = strings.TrimSpace(c.Render.EngineBinary)
	if c.Render.EngineBinary == "" {
		c.Render.EngineBinary = defaultEngineBinary
	}
	c.Render.Format = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(c.Render.Format)), ".")
	c.Render.Depth = strings.ToLower(strings.TrimSpace(c.Render.Depth))
	if c.Render.Depth == "" {
		c.Render.Depth = defaultDepth
	}
	c.Render.Interpolation = strings.ToLower(strings.TrimSpace(c.Render.Interpolation))
	if c.Render.Interpolation == "" {
		c.Render.Interpolation = defaultInterpolation
	}
	c.Render.Oversampling = strings.ToLower(strings.TrimSpace(c.Render.Oversampling))
	if c.Render.Oversampling == "" {
		c.Render.Oversampling = defaultOversampling
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.Textfile, err = expandPath(strings.TrimSpace(c.Metrics.Textfile)); err != nil {
		return fmt.Errorf("metrics.textfile: %w", err)
	}
	return nil
}
