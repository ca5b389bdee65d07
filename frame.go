package muxscope

import (
	"fmt"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Frame is one decoded acquisition cycle. Values is indexed by canonical
// channel number and always holds exactly ChannelCount readings.
type Frame struct {
	Values []uint16
	// Device timestamp in milliseconds, only set by wire formats carrying one
	DeviceTime int64
	Received   time.Time
}

func NewFrame(values []uint16) *Frame {
	return &Frame{Values: values}
}

func (f *Frame) ChannelCount() int {
	return len(f.Values)
}

// Value returns the reading of channel ch or 0 if ch is outside the frame.
func (f *Frame) Value(ch int) uint16 {
	if ch < 0 || ch >= len(f.Values) {
		return 0
	}
	return f.Values[ch]
}

func (f *Frame) Equal(o *Frame) bool {
	if f == nil || o == nil {
		return f == o
	}
	if len(f.Values) != len(o.Values) {
		return false
	}
	for i, v := range f.Values {
		if o.Values[i] != v {
			return false
		}
	}
	return true
}

func (f *Frame) Clone() *Frame {
	vals := make([]uint16, len(f.Values))
	copy(vals, f.Values)
	return &Frame{
		Values:     vals,
		DeviceTime: f.DeviceTime,
		Received:   f.Received,
	}
}

var (
	bandLow  = color.New(color.FgGreen).SprintfFunc()
	bandMid  = color.New(color.FgYellow).SprintfFunc()
	bandHigh = color.New(color.FgRed).SprintfFunc()
	dimmed   = color.New(color.FgHiBlack).SprintfFunc()
)

// Band returns the color band of value relative to fullScale:
// 0 = idle, 1 = low, 2 = mid, 3 = high.
func Band(value uint16, fullScale int) int {
	if value == 0 {
		return 0
	}
	if fullScale <= 0 {
		return 1
	}
	frac := float64(value) / float64(fullScale)
	switch {
	case frac < 0.33:
		return 1
	case frac < 0.66:
		return 2
	default:
		return 3
	}
}

// ColorCell renders one value padded to width with the band color.
func ColorCell(value uint16, fullScale, width int) string {
	s := fmt.Sprintf("%*d", width, value)
	switch Band(value, fullScale) {
	case 0:
		return dimmed("%*s", width, "-")
	case 1:
		return bandLow(s)
	case 2:
		return bandMid(s)
	default:
		return bandHigh(s)
	}
}

func (f *Frame) String() string {
	var out strings.Builder
	out.WriteString(fmt.Sprintf("%3d ch || ", len(f.Values)))
	if f.DeviceTime != 0 {
		out.WriteString(fmt.Sprintf("t=%d || ", f.DeviceTime))
	}
	for i, v := range f.Values {
		out.WriteString(fmt.Sprintf("%4d", v))
		if i != len(f.Values)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}

// ColorString renders the frame as rows of cols values, each banded against
// fullScale.
func (f *Frame) ColorString(cols, fullScale int) string {
	if cols <= 0 {
		cols = len(f.Values)
	}
	var out strings.Builder
	for i, v := range f.Values {
		if i%cols == 0 {
			if i > 0 {
				out.WriteString("\n")
			}
			out.WriteString(fmt.Sprintf("MUX%-2d || ", i/cols+1))
		}
		out.WriteString(ColorCell(v, fullScale, 4))
		if (i+1)%cols != 0 && i != len(f.Values)-1 {
			out.WriteString(" ")
		}
	}
	return out.String()
}
