package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go"
	"github.com/manifoldco/promptui"
	"github.com/rs/zerolog/log"

	"github.com/roffe/muxscope"
	"github.com/roffe/muxscope/pkg/config"
	"github.com/roffe/muxscope/pkg/hidsource"
)

const (
	openAttempts = 3
	openDelay    = 500 * time.Millisecond
)

// openSource opens the transport the configured decoder reads from,
// retrying a couple of times since the device may still be enumerating.
func openSource(ctx context.Context, cfg *config.Config) (muxscope.Source, error) {
	info, err := muxscope.LookupDecoder(cfg.Decoder)
	if err != nil {
		return nil, err
	}
	if info.Transport == muxscope.TransportLines {
		port, err := resolvePort(cfg.Serial.Port)
		if err != nil {
			return nil, err
		}
		cfg.Serial.Port = port
	}

	var src muxscope.Source
	err = retry.Do(func() error {
		switch info.Transport {
		case muxscope.TransportReports:
			s, err := hidsource.Open(hidConfig(cfg))
			if err != nil {
				return err
			}
			src = s
		default:
			s, err := muxscope.OpenSerial(cfg.SerialConfig())
			if err != nil {
				return err
			}
			src = s
		}
		return nil
	},
		retry.Context(ctx),
		retry.Attempts(openAttempts),
		retry.Delay(openDelay),
		retry.DelayType(retry.FixedDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warn().Err(err).Uint("attempt", n+1).Msg("open failed")
		}),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return src, nil
}

func hidConfig(cfg *config.Config) hidsource.Config {
	c := hidsource.Config{
		VendorID:    cfg.HID.VendorID,
		ProductID:   cfg.HID.ProductID,
		Interface:   hidsource.DefaultInterface,
		ReportSize:  cfg.HID.ReportSize,
		ReadTimeout: time.Duration(cfg.HID.ReadTimeoutMs) * time.Millisecond,
	}
	if cfg.HID.Interface != nil {
		c.Interface = *cfg.HID.Interface
	}
	return c
}

// resolvePort turns "*" into a port picked by the user.
func resolvePort(port string) (string, error) {
	switch port {
	case "":
		return "", errors.New("no com-port given, use --port or --port '*' to pick one")
	case "*":
	default:
		return port, nil
	}
	ports, err := muxscope.ListSerialPorts()
	if err != nil {
		return "", err
	}
	if len(ports) == 0 {
		return "", errors.New("no serial ports found")
	}
	items := make([]string, len(ports))
	for i, p := range ports {
		items[i] = p.String()
	}
	prompt := promptui.Select{
		Label:    "Select com-port",
		HideHelp: true,
		Items:    items,
	}
	idx, _, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	return ports[idx].Name, nil
}

// newSession opens the source and binds it to a fresh session.
func newSession(ctx context.Context, cfg *config.Config) (*muxscope.Session, *muxscope.Reader, error) {
	dec, err := muxscope.NewDecoder(cfg.Decoder, cfg.DecoderConfig())
	if err != nil {
		return nil, nil, err
	}
	sess, err := muxscope.NewSession(cfg.SessionConfig())
	if err != nil {
		return nil, nil, err
	}
	src, err := openSource(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	r := sess.AddReader("", src, dec, cfg.ReaderConfig(""))
	return sess, r, nil
}
