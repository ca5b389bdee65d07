package muxscope

import "fmt"

// ChannelGrid is a rows x cols view of the most recently applied Frame.
// It is owned by the consumer and not safe for concurrent use.
type ChannelGrid struct {
	rows, cols int
	values     []uint16
	frames     uint64
	last       *Frame
}

func NewChannelGrid(rows, cols int) (*ChannelGrid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidConfig, rows, cols)
	}
	return &ChannelGrid{
		rows:   rows,
		cols:   cols,
		values: make([]uint16, rows*cols),
	}, nil
}

func (g *ChannelGrid) Rows() int {
	return g.rows
}

func (g *ChannelGrid) Cols() int {
	return g.cols
}

// ApplyFrame replaces every cell with the values of f.
func (g *ChannelGrid) ApplyFrame(f *Frame) error {
	if f == nil {
		return &ShapeError{Want: g.rows * g.cols, Got: 0}
	}
	if f.ChannelCount() != g.rows*g.cols {
		return &ShapeError{Want: g.rows * g.cols, Got: f.ChannelCount()}
	}
	vals := make([]uint16, len(f.Values))
	copy(vals, f.Values)
	g.values = vals
	g.last = f
	g.frames++
	return nil
}

func (g *ChannelGrid) CellValue(row, col int) (uint16, error) {
	if row < 0 || row >= g.rows || col < 0 || col >= g.cols {
		return 0, &RangeError{Row: row, Col: col, Rows: g.rows, Cols: g.cols}
	}
	idx := row*g.cols + col
	if idx >= len(g.values) {
		return 0, nil
	}
	return g.values[idx], nil
}

// Values returns a copy of the cells in channel order.
func (g *ChannelGrid) Values() []uint16 {
	out := make([]uint16, len(g.values))
	copy(out, g.values)
	return out
}

// Active returns the number of cells holding a non-zero reading.
func (g *ChannelGrid) Active() int {
	n := 0
	for _, v := range g.values {
		if v > 0 {
			n++
		}
	}
	return n
}

// Frames returns how many frames have been applied.
func (g *ChannelGrid) Frames() uint64 {
	return g.frames
}

// Last returns the last applied frame or nil.
func (g *ChannelGrid) Last() *Frame {
	return g.last
}
