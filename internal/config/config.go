// Package config provides configuration for the playlist generator.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/savid/xumo/internal/xumo"
)

// Config holds the application configuration.
type Config struct {
	// Output
	OutputDir        string
	PlaylistFilename string
	GuideFilename    string
	GuideURL         string

	// Vendor API
	GeoID      string
	PagingMode string
	PageSize   int
	MaxPages   int
	GuideDays  int

	// Request pacing, requests per second across all vendor calls.
	RequestRate float64

	LogLevel string

	// Serve mode
	BindAddr        string
	Port            int
	RefreshInterval time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir:        "playlists",
		PlaylistFilename: "xumo_playlist.m3u",
		GuideFilename:    "xumo_epg.xml.gz",
		GeoID:            "us",
		PagingMode:       string(xumo.PageByOffset),
		PageSize:         50,
		MaxPages:         9,
		GuideDays:        2,
		RequestRate:      6,
		LogLevel:         "info",
		BindAddr:         "0.0.0.0",
		Port:             8080,
		RefreshInterval:  6 * time.Hour,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory is required")
	}

	if c.PlaylistFilename == "" || c.GuideFilename == "" {
		return errors.New("playlist and guide filenames are required")
	}

	if c.GuideURL != "" {
		if _, err := url.Parse(c.GuideURL); err != nil {
			return fmt.Errorf("invalid guide URL: %w", err)
		}
	}

	switch xumo.PagingMode(c.PagingMode) {
	case xumo.PageByOffset, xumo.PageByHour:
	default:
		return fmt.Errorf("paging mode must be %q or %q, got %q", xumo.PageByOffset, xumo.PageByHour, c.PagingMode)
	}

	if c.PageSize < 1 {
		return errors.New("page size must be at least 1")
	}

	if c.MaxPages < 1 {
		return errors.New("max pages must be at least 1")
	}

	if c.GuideDays < 1 {
		return errors.New("guide days must be at least 1")
	}

	if c.RequestRate <= 0 {
		return errors.New("request rate must be positive")
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.RefreshInterval < time.Minute {
		return errors.New("refresh interval must be at least one minute")
	}

	return nil
}

// ListenAddr returns the full listen address for serve mode.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.BindAddr, c.Port)
}

// Endpoints returns the vendor API surface for this config.
func (c *Config) Endpoints() xumo.Endpoints {
	endpoints := xumo.DefaultEndpoints()
	endpoints.GeoID = c.GeoID

	return endpoints
}

// Paging returns the EPG pagination settings for this config.
func (c *Config) Paging() xumo.Paging {
	return xumo.Paging{
		Mode:     xumo.PagingMode(c.PagingMode),
		PageSize: c.PageSize,
		MaxPages: c.MaxPages,
	}
}
