package muxscope

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedInput   = errors.New("malformed input")
	ErrShapeMismatch    = errors.New("frame shape mismatch")
	ErrOutOfRange       = errors.New("cell out of range")
	ErrEventChannelFull = errors.New("event channel full")
	ErrUnknownDecoder   = errors.New("unknown decoder")
	ErrInvalidConfig    = errors.New("invalid config")
)

// TransportError is returned when a Source fails to open or a read fails.
// It is fatal to the Reader owning the source.
type TransportError struct {
	Source string
	Op     string
	Err    error
}

func (e *TransportError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Source, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransportError reports whether err is, or wraps, a *TransportError
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

type ShapeError struct {
	Want int
	Got  int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("%v: grid holds %d channels, frame has %d", ErrShapeMismatch, e.Want, e.Got)
}

func (e *ShapeError) Is(target error) bool {
	return target == ErrShapeMismatch
}

type RangeError struct {
	Row, Col   int
	Rows, Cols int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%v: row %d col %d outside %dx%d grid", ErrOutOfRange, e.Row, e.Col, e.Rows, e.Cols)
}

func (e *RangeError) Is(target error) bool {
	return target == ErrOutOfRange
}

func malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrMalformedInput}, args...)...)
}
