package muxscope

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

const (
	MaxLineLength = 4096
	readChunkSize = 256
)

// LineSource splits a byte stream into text lines. The underlying reader is
// expected to return 0, nil when its read timeout expires, like a serial port
// does. Both \n and \r\n line endings are accepted and invalid UTF-8 is
// replaced rather than rejected.
type LineSource struct {
	name    string
	rw      io.ReadCloser
	buf     []byte
	readBuf []byte
	lines   [][]byte
	// set while the current line exceeded MaxLineLength and is being skipped
	discarding bool
	overlong   uint64
}

func NewLineSource(name string, r io.ReadCloser) *LineSource {
	return &LineSource{
		name:    name,
		rw:      r,
		buf:     make([]byte, 0, 1024),
		readBuf: make([]byte, readChunkSize),
	}
}

func (ls *LineSource) Name() string {
	return ls.name
}

// ReadUnit returns the next complete line without its terminator.
func (ls *LineSource) ReadUnit() ([]byte, error) {
	if line, ok := ls.pop(); ok {
		return line, nil
	}
	n, err := ls.rw.Read(ls.readBuf)
	if n > 0 {
		ls.split(ls.readBuf[:n])
	}
	if err != nil {
		if err == io.EOF && len(ls.buf) > 0 && !ls.discarding {
			ls.lines = append(ls.lines, cleanLine(ls.buf))
			ls.buf = ls.buf[:0]
		}
		if line, ok := ls.pop(); ok {
			return line, nil
		}
		return nil, err
	}
	if line, ok := ls.pop(); ok {
		return line, nil
	}
	return nil, nil
}

func (ls *LineSource) pop() ([]byte, bool) {
	if len(ls.lines) == 0 {
		return nil, false
	}
	line := ls.lines[0]
	ls.lines[0] = nil
	ls.lines = ls.lines[1:]
	return line, true
}

// split processes the read data and keeps any partial line in buf.
func (ls *LineSource) split(data []byte) {
	for len(data) > 0 {
		i := bytes.IndexByte(data, '\n')
		if i < 0 {
			ls.appendPartial(data)
			return
		}
		ls.appendPartial(data[:i])
		data = data[i+1:]
		if ls.discarding {
			ls.discarding = false
			ls.buf = ls.buf[:0]
			continue
		}
		ls.lines = append(ls.lines, cleanLine(ls.buf))
		ls.buf = ls.buf[:0]
	}
}

func (ls *LineSource) appendPartial(b []byte) {
	if ls.discarding {
		return
	}
	if len(ls.buf)+len(b) > MaxLineLength {
		ls.discarding = true
		ls.overlong++
		ls.buf = ls.buf[:0]
		return
	}
	ls.buf = append(ls.buf, b...)
}

// Overlong returns how many lines were discarded for exceeding MaxLineLength.
func (ls *LineSource) Overlong() uint64 {
	return ls.overlong
}

func cleanLine(b []byte) []byte {
	b = bytes.TrimSuffix(b, []byte{'\r'})
	if utf8.Valid(b) {
		out := make([]byte, len(b))
		copy(out, b)
		return out
	}
	return []byte(strings.ToValidUTF8(string(b), string(utf8.RuneError)))
}

// RequestScan asks the firmware for a fresh scan by writing 's'.
func (ls *LineSource) RequestScan() error {
	w, ok := ls.rw.(io.Writer)
	if !ok {
		return fmt.Errorf("source %s is read only", ls.name)
	}
	if _, err := w.Write([]byte{'s'}); err != nil {
		return &TransportError{Source: ls.name, Op: "write", Err: err}
	}
	return nil
}

func (ls *LineSource) Close() error {
	return ls.rw.Close()
}
