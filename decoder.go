package muxscope

import (
	"fmt"
	"sort"
	"strings"
	"sync/atomic"
)

// Decoder turns units read from a Source into complete frames. Feed never
// blocks and never fails; malformed units are dropped and counted. Feed and
// Reset belong to the owning Reader, Stats is safe from any goroutine.
type Decoder interface {
	Feed(unit []byte) []Frame
	Reset()
	Stats() DecoderStats
}

type Transport int

const (
	TransportLines Transport = iota
	TransportReports
)

func (t Transport) String() string {
	switch t {
	case TransportLines:
		return "lines"
	case TransportReports:
		return "reports"
	default:
		return "unknown"
	}
}

type DecoderStats struct {
	Units   uint64
	Frames  uint64
	Dropped uint64
}

func (st DecoderStats) String() string {
	return fmt.Sprintf("units: %d frames: %d dropped: %d", st.Units, st.Frames, st.Dropped)
}

// baseDecoder carries the counters shared by all decoders. Feed runs on the
// reader goroutine while Stats may be called by the consumer.
type baseDecoder struct {
	units   atomic.Uint64
	frames  atomic.Uint64
	dropped atomic.Uint64
}

func (b *baseDecoder) Stats() DecoderStats {
	return DecoderStats{
		Units:   b.units.Load(),
		Frames:  b.frames.Load(),
		Dropped: b.dropped.Load(),
	}
}

func (b *baseDecoder) unit() {
	b.units.Add(1)
}

func (b *baseDecoder) drop() {
	b.dropped.Add(1)
}

func (b *baseDecoder) emitted(n int) {
	b.frames.Add(uint64(n))
}

type DecoderConfig struct {
	Rows     int
	Cols     int
	Channels int
	// ReportID is the expected leading byte of binary reports
	ReportID byte
	// StartMarker and EndMarker delimit marker blocks
	StartMarker string
	EndMarker   string
}

// ChannelCount returns Channels, or Rows*Cols when Channels is unset.
func (cfg *DecoderConfig) ChannelCount() int {
	if cfg.Channels > 0 {
		return cfg.Channels
	}
	return cfg.Rows * cfg.Cols
}

type DecoderInfo struct {
	Name        string
	Description string
	Transport   Transport
	New         func(*DecoderConfig) (Decoder, error)
}

func (d *DecoderInfo) String() string {
	return fmt.Sprintf("%s | %s, transport: %s", d.Name, d.Description, d.Transport)
}

var decoderMap = make(map[string]*DecoderInfo)

func RegisterDecoder(info *DecoderInfo) error {
	name := strings.ToLower(info.Name)
	if _, found := decoderMap[name]; found {
		return fmt.Errorf("decoder %s already registered", info.Name)
	}
	decoderMap[name] = info
	return nil
}

func NewDecoder(name string, cfg *DecoderConfig) (Decoder, error) {
	info, err := LookupDecoder(name)
	if err != nil {
		return nil, err
	}
	return info.New(cfg)
}

func LookupDecoder(name string) (*DecoderInfo, error) {
	if info, found := decoderMap[strings.ToLower(name)]; found {
		return info, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownDecoder, name)
}

func ListDecoderNames() []string {
	var out []string
	for name := range decoderMap {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func ListDecoders() []DecoderInfo {
	var out []DecoderInfo
	for _, name := range ListDecoderNames() {
		out = append(out, *decoderMap[name])
	}
	return out
}

func channelCount(cfg *DecoderConfig) (int, error) {
	if cfg == nil {
		return 0, fmt.Errorf("%w: nil decoder config", ErrInvalidConfig)
	}
	n := cfg.ChannelCount()
	if n <= 0 {
		return 0, fmt.Errorf("%w: channel count must be > 0", ErrInvalidConfig)
	}
	return n, nil
}
