package muxscope

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// DashBlock decodes scan blocks printed line by line and terminated by a line
// of dashes:
//
//	MUX 1 | CH1: 4096 | CH3: 3972 |
//	MUX 2 | CH8: 12 |
//	-----------
//
// Cells not mentioned in a block read 0 in the emitted frame.
type DashBlock struct {
	baseDecoder
	rows, cols int
	lines      []string
}

const (
	blockSeparator = '-'
	// MaxBlockLines bounds the lines buffered while no separator arrives, the
	// oldest line is dropped once it is reached
	MaxBlockLines = 256
)

var (
	reMux   = regexp.MustCompile(`(?i)^\s*MUX\s*(\d+)`)
	reChVal = regexp.MustCompile(`CH(\d+):\s*(\d+)`)
)

func init() {
	if err := RegisterDecoder(&DecoderInfo{
		Name:        "dashblock",
		Description: "MUX/CH text blocks terminated by a dash line",
		Transport:   TransportLines,
		New:         NewDashBlock,
	}); err != nil {
		panic(err)
	}
}

func NewDashBlock(cfg *DecoderConfig) (Decoder, error) {
	if cfg == nil || cfg.Rows <= 0 || cfg.Cols <= 0 {
		return nil, fmt.Errorf("%w: dashblock needs rows and cols", ErrInvalidConfig)
	}
	if n := cfg.ChannelCount(); n != cfg.Rows*cfg.Cols {
		return nil, fmt.Errorf("%w: dashblock channel count %d != %dx%d", ErrInvalidConfig, n, cfg.Rows, cfg.Cols)
	}
	return &DashBlock{
		rows:  cfg.Rows,
		cols:  cfg.Cols,
		lines: make([]string, 0, cfg.Rows+1),
	}, nil
}

func (d *DashBlock) Feed(unit []byte) []Frame {
	d.unit()
	line := string(unit)
	if !isSeparator(line) {
		if len(d.lines) >= MaxBlockLines {
			n := copy(d.lines, d.lines[1:])
			d.lines = d.lines[:n]
			d.drop()
		}
		d.lines = append(d.lines, line)
		return nil
	}
	if len(d.lines) == 0 {
		return nil
	}
	f := d.parseBlock(d.lines)
	d.lines = d.lines[:0]
	d.emitted(1)
	return []Frame{f}
}

func (d *DashBlock) Reset() {
	d.lines = d.lines[:0]
}

func isSeparator(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) > 0 && trimmed[0] == blockSeparator
}

func (d *DashBlock) parseBlock(lines []string) Frame {
	values := make([]uint16, d.rows*d.cols)
	for _, line := range lines {
		if err := d.parseLine(line, values); err != nil {
			d.drop()
		}
	}
	return Frame{Values: values}
}

// parseLine writes every CH<k>:<v> pair of a MUX line into values. Pairs with
// an out of range channel are skipped, the line is only rejected if it is not
// a MUX line at all.
func (d *DashBlock) parseLine(line string, values []uint16) error {
	m := reMux.FindStringSubmatch(line)
	if m == nil {
		return malformed("not a mux line: %q", line)
	}
	mux, err := strconv.Atoi(m[1])
	if err != nil || mux < 1 || mux > d.rows {
		return malformed("mux %q out of range", m[1])
	}
	row := mux - 1
	for _, chm := range reChVal.FindAllStringSubmatch(line, -1) {
		ch, err := strconv.Atoi(chm[1])
		if err != nil || ch < 1 || ch > d.cols {
			continue
		}
		v, err := strconv.ParseUint(chm[2], 10, 16)
		if err != nil {
			continue
		}
		values[row*d.cols+ch-1] = uint16(v)
	}
	return nil
}
