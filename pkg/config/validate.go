package config

import (
	"fmt"

	"github.com/roffe/muxscope"
)

// Validate checks configuration correctness. It performs declarative
// validation only and never mutates cfg.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", muxscope.ErrInvalidConfig)
	}
	if _, err := muxscope.LookupDecoder(cfg.Decoder); err != nil {
		return err
	}
	if cfg.Rows <= 0 || cfg.Cols <= 0 {
		return invalid("grid must be at least 1x1, got %dx%d", cfg.Rows, cfg.Cols)
	}
	if cfg.Channels != cfg.Rows*cfg.Cols {
		return invalid("channels %d does not match %dx%d grid", cfg.Channels, cfg.Rows, cfg.Cols)
	}
	if cfg.FullScale <= 0 {
		return invalid("full_scale must be > 0")
	}
	if cfg.QueueSize < 0 {
		return invalid("queue_size must not be negative")
	}
	switch cfg.Overflow {
	case "", "drop", "block":
	default:
		return invalid("overflow must be drop or block, got %q", cfg.Overflow)
	}
	if cfg.InfoEvery != nil && *cfg.InfoEvery < 0 {
		return invalid("info_every must not be negative")
	}
	if cfg.PollIntervalMs < 0 {
		return invalid("poll_interval_ms must not be negative")
	}
	if cfg.Markers.Start != "" && cfg.Markers.Start == cfg.Markers.End {
		return invalid("start and end markers must differ")
	}

	// ---- transports ----

	if cfg.Serial.Baudrate < 0 {
		return invalid("serial baudrate must not be negative")
	}
	if cfg.Serial.ReadTimeoutMs < 0 || cfg.HID.ReadTimeoutMs < 0 {
		return invalid("read_timeout_ms must not be negative")
	}
	if cfg.HID.ReportSize < 0 || cfg.HID.ReportSize == 1 {
		return invalid("hid report_size %d leaves no payload", cfg.HID.ReportSize)
	}
	return nil
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{muxscope.ErrInvalidConfig}, args...)...)
}
