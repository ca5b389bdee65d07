package muxscope

import (
	"strconv"
	"strings"
)

// CSV decodes one frame per line: "<timestamp_ms>,<ch0>,<ch1>,...". Fields
// after the last channel are ignored.
type CSV struct {
	baseDecoder
	channels int
}

func init() {
	if err := RegisterDecoder(&DecoderInfo{
		Name:        "csv",
		Description: "timestamp followed by one comma separated value per channel",
		Transport:   TransportLines,
		New:         NewCSV,
	}); err != nil {
		panic(err)
	}
}

func NewCSV(cfg *DecoderConfig) (Decoder, error) {
	n, err := channelCount(cfg)
	if err != nil {
		return nil, err
	}
	return &CSV{channels: n}, nil
}

func (c *CSV) Feed(unit []byte) []Frame {
	c.unit()
	f, err := c.decodeLine(string(unit))
	if err != nil {
		c.drop()
		return nil
	}
	c.emitted(1)
	return []Frame{f}
}

func (c *CSV) Reset() {}

func (c *CSV) decodeLine(line string) (Frame, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < c.channels+1 {
		return Frame{}, malformed("%d fields, need %d", len(fields), c.channels+1)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(fields[0]), 10, 64)
	if err != nil {
		return Frame{}, malformed("timestamp %q", fields[0])
	}
	values := make([]uint16, c.channels)
	for i := range values {
		v, err := strconv.ParseUint(strings.TrimSpace(fields[i+1]), 10, 16)
		if err != nil {
			return Frame{}, malformed("channel %d value %q", i, fields[i+1])
		}
		values[i] = uint16(v)
	}
	return Frame{Values: values, DeviceTime: ts}, nil
}
