package config

import (
	"strings"

	"github.com/roffe/muxscope"
)

const (
	defaultPollIntervalMs = 50
	defaultReadTimeoutMs  = 100
	defaultHIDInterface   = 3
	defaultReportSize     = 65
)

// Normalize fills unset values from the decoder preset and derives the
// channel count. It mutates cfg and is called before Validate.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	cfg.Decoder = strings.ToLower(strings.TrimSpace(cfg.Decoder))
	if cfg.Decoder == "" {
		cfg.Decoder = DefaultDecoder
	}
	if p, ok := presets[cfg.Decoder]; ok {
		if cfg.Rows == 0 {
			cfg.Rows = p.rows
		}
		if cfg.Cols == 0 {
			cfg.Cols = p.cols
		}
		if cfg.FullScale == 0 {
			cfg.FullScale = p.fullScale
		}
	}
	if cfg.Channels == 0 {
		cfg.Channels = cfg.Rows * cfg.Cols
	}
	if cfg.ReportID == nil {
		id := uint8(muxscope.DefaultReportID)
		cfg.ReportID = &id
	}
	if cfg.QueueSize == 0 {
		cfg.QueueSize = muxscope.DefaultQueueSize
	}
	if cfg.Overflow == "" {
		cfg.Overflow = muxscope.DropNewest.String()
	}
	cfg.Overflow = strings.ToLower(cfg.Overflow)
	if cfg.InfoEvery == nil {
		n := muxscope.DefaultInfoEvery
		cfg.InfoEvery = &n
	}
	if cfg.PollIntervalMs == 0 {
		cfg.PollIntervalMs = defaultPollIntervalMs
	}
	if cfg.Markers.Start == "" {
		cfg.Markers.Start = muxscope.DefaultStartMarker
	}
	if cfg.Markers.End == "" {
		cfg.Markers.End = muxscope.DefaultEndMarker
	}

	// ---- transports ----

	if cfg.Serial.Baudrate == 0 {
		cfg.Serial.Baudrate = muxscope.DefaultBaudrate
	}
	if cfg.Serial.ReadTimeoutMs == 0 {
		cfg.Serial.ReadTimeoutMs = defaultReadTimeoutMs
	}
	if cfg.HID.VendorID == 0 {
		cfg.HID.VendorID = 0xCAFE
	}
	if cfg.HID.ProductID == 0 {
		cfg.HID.ProductID = 0x4001
	}
	if cfg.HID.Interface == nil {
		n := defaultHIDInterface
		cfg.HID.Interface = &n
	}
	if cfg.HID.ReportSize == 0 {
		cfg.HID.ReportSize = defaultReportSize
	}
	if cfg.HID.ReadTimeoutMs == 0 {
		cfg.HID.ReadTimeoutMs = defaultReadTimeoutMs
	}
}
