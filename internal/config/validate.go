package config

import (
	"fmt"
	"slices"
	"strings"
)

var (
	allowedSampleRates = []int{44100, 48000, 88200, 96000, 192000}
	allowedBitrates    = []int{64, 128, 160, 192, 256, 320}
	allowedFormats     = []string{"", "wav", "ogg", "mp3", "flac"}
	allowedDepths      = []string{"16", "24", "32f"}
	allowedLogFormats  = []string{"console", "json"}
	allowedLogLevels   = []string{"debug", "info", "warn", "error"}
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRender(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return c.validateNotifications()
}

func (c *Config) validateRender() error {
	if !slices.Contains(allowedSampleRates, c.Render.SampleRate) {
		return fmt.Errorf("render.sample_rate must be one of %v, got %d", allowedSampleRates, c.Render.SampleRate)
	}
	if !slices.Contains(allowedBitrates, c.Render.Bitrate) {
		return fmt.Errorf("render.bitrate must be one of %v, got %d", allowedBitrates, c.Render.Bitrate)
	}
	if !slices.Contains(allowedFormats, c.Render.Format) {
		return fmt.Errorf("render.format %q is not supported (wav, ogg, mp3, flac)", c.Render.Format)
	}
	if !slices.Contains(allowedDepths, c.Render.Depth) {
		return fmt.Errorf("render.depth must be one of %v, got %q", allowedDepths, c.Render.Depth)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !slices.Contains(allowedLogFormats, c.Logging.Format) {
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if !slices.Contains(allowedLogLevels, c.Logging.Level) {
		return fmt.Errorf("logging.level must be one of %v, got %q", allowedLogLevels, c.Logging.Level)
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout < 0 {
		return fmt.Errorf("notifications.request_timeout must be positive, got %d", c.Notifications.RequestTimeout)
	}
	topic := c.Notifications.NtfyTopic
	if topic != "" && !strings.HasPrefix(topic, "http://") && !strings.HasPrefix(topic, "https://") {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}
