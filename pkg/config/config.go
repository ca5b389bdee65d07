// Package config loads the muxscope YAML configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roffe/muxscope"
)

type Config struct {
	Decoder        string        `yaml:"decoder"`
	Rows           int           `yaml:"rows"`
	Cols           int           `yaml:"cols"`
	Channels       int           `yaml:"channels"`
	FullScale      int           `yaml:"full_scale"`
	ReportID       *uint8        `yaml:"report_id"`
	QueueSize      int           `yaml:"queue_size"`
	Overflow       string        `yaml:"overflow"`
	InfoEvery      *int          `yaml:"info_every"`
	PollIntervalMs int           `yaml:"poll_interval_ms"`
	Markers        MarkersConfig `yaml:"markers"`
	Serial         SerialConfig  `yaml:"serial"`
	HID            HIDConfig     `yaml:"hid"`
}

// ---- MARKERS ----

type MarkersConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// ---- TRANSPORTS ----

type SerialConfig struct {
	Port          string `yaml:"port"`
	Baudrate      int    `yaml:"baudrate"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

type HIDConfig struct {
	VendorID      uint16 `yaml:"vendor_id"`
	ProductID     uint16 `yaml:"product_id"`
	Interface     *int   `yaml:"interface"`
	ReportSize    int    `yaml:"report_size"`
	ReadTimeoutMs int    `yaml:"read_timeout_ms"`
}

type preset struct {
	rows, cols, fullScale int
}

var presets = map[string]preset{
	"dashblock":   {rows: 5, cols: 8, fullScale: 4095},
	"markerblock": {rows: 5, cols: 16, fullScale: 3300},
	"csv":         {rows: 5, cols: 16, fullScale: 3300},
	"hidreport":   {rows: 5, cols: 16, fullScale: 3300},
}

const DefaultDecoder = "dashblock"

// Default returns a normalized configuration for the named decoder.
func Default(decoder string) *Config {
	cfg := &Config{Decoder: decoder}
	Normalize(cfg)
	return cfg
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	cfg, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse is Load for an already opened reader. Unknown keys are an error.
func Parse(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", muxscope.ErrInvalidConfig, err)
	}
	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) OverflowPolicy() muxscope.OverflowPolicy {
	if strings.EqualFold(cfg.Overflow, "block") {
		return muxscope.Block
	}
	return muxscope.DropNewest
}

func (cfg *Config) PollInterval() time.Duration {
	return time.Duration(cfg.PollIntervalMs) * time.Millisecond
}

func (cfg *Config) DecoderConfig() *muxscope.DecoderConfig {
	dc := &muxscope.DecoderConfig{
		Rows:        cfg.Rows,
		Cols:        cfg.Cols,
		Channels:    cfg.Channels,
		StartMarker: cfg.Markers.Start,
		EndMarker:   cfg.Markers.End,
	}
	if cfg.ReportID != nil {
		dc.ReportID = *cfg.ReportID
	}
	return dc
}

func (cfg *Config) SessionConfig() muxscope.SessionConfig {
	return muxscope.SessionConfig{
		Rows:      cfg.Rows,
		Cols:      cfg.Cols,
		QueueSize: cfg.QueueSize,
		Overflow:  cfg.OverflowPolicy(),
	}
}

func (cfg *Config) ReaderConfig(name string) muxscope.ReaderConfig {
	rc := muxscope.ReaderConfig{Name: name, InfoEvery: muxscope.DefaultInfoEvery}
	if cfg.InfoEvery != nil {
		rc.InfoEvery = *cfg.InfoEvery
	}
	return rc
}

func (cfg *Config) SerialConfig() muxscope.SerialConfig {
	return muxscope.SerialConfig{
		Port:        cfg.Serial.Port,
		Baudrate:    cfg.Serial.Baudrate,
		ReadTimeout: time.Duration(cfg.Serial.ReadTimeoutMs) * time.Millisecond,
	}
}
