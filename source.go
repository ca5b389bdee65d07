package muxscope

// Source is an already opened transport. ReadUnit blocks for at most the
// source's read timeout and returns one unit: a text line or a report buffer.
// A nil unit with a nil error means nothing arrived before the timeout.
type Source interface {
	ReadUnit() ([]byte, error)
	Close() error
}

// ScanRequester is implemented by sources that can ask the device for a new
// scan out of band.
type ScanRequester interface {
	RequestScan() error
}

// Named is implemented by sources that can describe where they read from.
type Named interface {
	Name() string
}

func sourceName(src Source) string {
	if n, ok := src.(Named); ok {
		return n.Name()
	}
	return ""
}
