package muxscope

import (
	"strconv"
	"strings"
)

const (
	DefaultStartMarker = "===ADC_START==="
	DefaultEndMarker   = "===ADC_END==="
)

// MarkerBlock decodes blocks of "CH <k>:<v>" lines between a start and an end
// marker line. A block is only emitted if every channel was reported.
type MarkerBlock struct {
	baseDecoder
	channels   int
	start, end string
	inBlock    bool
	values     map[int]uint16
}

func init() {
	if err := RegisterDecoder(&DecoderInfo{
		Name:        "markerblock",
		Description: "CH <k>:<v> lines between start/end markers, complete blocks only",
		Transport:   TransportLines,
		New:         NewMarkerBlock,
	}); err != nil {
		panic(err)
	}
}

func NewMarkerBlock(cfg *DecoderConfig) (Decoder, error) {
	n, err := channelCount(cfg)
	if err != nil {
		return nil, err
	}
	mb := &MarkerBlock{
		channels: n,
		start:    cfg.StartMarker,
		end:      cfg.EndMarker,
		values:   make(map[int]uint16, n),
	}
	if mb.start == "" {
		mb.start = DefaultStartMarker
	}
	if mb.end == "" {
		mb.end = DefaultEndMarker
	}
	return mb, nil
}

func (mb *MarkerBlock) Feed(unit []byte) []Frame {
	mb.unit()
	line := strings.TrimSpace(string(unit))
	switch line {
	case "":
		return nil
	case mb.start:
		mb.inBlock = true
		mb.clear()
		return nil
	case mb.end:
		if !mb.inBlock {
			mb.drop()
			return nil
		}
		mb.inBlock = false
		if len(mb.values) != mb.channels {
			mb.drop()
			mb.clear()
			return nil
		}
		values := make([]uint16, mb.channels)
		for i := range values {
			values[i] = mb.values[i]
		}
		mb.clear()
		mb.emitted(1)
		return []Frame{{Values: values}}
	}
	if !mb.inBlock {
		return nil
	}
	ch, v, err := mb.parseLine(line)
	if err != nil {
		mb.drop()
		return nil
	}
	mb.values[ch] = v
	return nil
}

func (mb *MarkerBlock) Reset() {
	mb.inBlock = false
	mb.clear()
}

func (mb *MarkerBlock) clear() {
	for k := range mb.values {
		delete(mb.values, k)
	}
}

func (mb *MarkerBlock) parseLine(line string) (int, uint16, error) {
	if !strings.HasPrefix(line, "CH ") {
		return 0, 0, malformed("not a channel line: %q", line)
	}
	parts := strings.Split(line[3:], ":")
	if len(parts) != 2 {
		return 0, 0, malformed("channel line %q", line)
	}
	ch, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return 0, 0, malformed("channel %q", parts[0])
	}
	if ch < 0 || ch >= mb.channels {
		return 0, 0, malformed("channel %d out of range", ch)
	}
	v, err := strconv.ParseUint(strings.TrimSpace(parts[1]), 10, 16)
	if err != nil {
		return 0, 0, malformed("value %q", parts[1])
	}
	return ch, uint16(v), nil
}
