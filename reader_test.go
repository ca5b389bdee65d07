package muxscope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu      sync.Mutex
	units   [][]byte
	err     error
	timeout time.Duration
	closed  int
	scans   int
}

func (f *fakeSource) ReadUnit() ([]byte, error) {
	f.mu.Lock()
	if len(f.units) > 0 {
		u := f.units[0]
		f.units = f.units[1:]
		f.mu.Unlock()
		return u, nil
	}
	err := f.err
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	time.Sleep(f.timeout)
	return nil, nil
}

func (f *fakeSource) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed++
	return nil
}

func (f *fakeSource) RequestScan() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scans++
	return nil
}

func (f *fakeSource) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func newCSVDecoder(t *testing.T, channels int) Decoder {
	t.Helper()
	dec, err := NewCSV(&DecoderConfig{Channels: channels})
	if err != nil {
		t.Fatal(err)
	}
	return dec
}

func countTypes(evs []Event) map[EventType]int {
	out := make(map[EventType]int)
	for _, ev := range evs {
		out[ev.Type]++
	}
	return out
}

func TestReaderEOF(t *testing.T) {
	src := &fakeSource{
		units: lines("1,1,2", "garbage", "2,3,4", "3,5,6"),
		err:   io.EOF,
	}
	events := NewEventChannel(64, DropNewest)
	stamp := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	r := NewReader(ReaderConfig{Name: "csv0", Now: func() time.Time { return stamp }}, src, newCSVDecoder(t, 2), events)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	evs := events.Drain()
	types := countTypes(evs)
	if types[EventTypePayload] != 3 || types[EventTypeInfo] != 2 || types[EventTypeError] != 0 {
		t.Fatalf("unexpected events %v", evs)
	}
	last := evs[len(evs)-2]
	if last.Source != "csv0" || !last.Frame.Equal(NewFrame([]uint16{5, 6})) {
		t.Errorf("unexpected last payload %v", last)
	}
	if !last.Frame.Received.Equal(stamp) || last.Frame.DeviceTime != 3 {
		t.Errorf("frame not stamped: %+v", last.Frame)
	}
	if src.closeCount() != 1 {
		t.Errorf("source closed %d times", src.closeCount())
	}
	if st := r.Decoder().Stats(); st.Dropped != 1 {
		t.Errorf("dropped = %d, want 1", st.Dropped)
	}
}

func TestReaderTransportError(t *testing.T) {
	boom := errors.New("device disconnected")
	src := &fakeSource{units: lines("1,1"), err: boom}
	events := NewEventChannel(8, DropNewest)
	r := NewReader(ReaderConfig{Name: "ttyACM0"}, src, newCSVDecoder(t, 1), events)

	err := r.Run(context.Background())
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if te.Op != "read" || !errors.Is(err, boom) {
		t.Errorf("unexpected transport error %v", te)
	}
	types := countTypes(events.Drain())
	if types[EventTypeError] != 1 || types[EventTypePayload] != 1 {
		t.Errorf("unexpected event counts %v", types)
	}
	if src.closeCount() != 1 {
		t.Errorf("source closed %d times", src.closeCount())
	}
}

func TestReaderErrorWaitsForRoom(t *testing.T) {
	boom := errors.New("gone")
	// the start event fills the queue, the error event must still arrive
	src := &fakeSource{err: boom}
	events := NewEventChannel(1, DropNewest)
	r := NewReader(ReaderConfig{}, src, newCSVDecoder(t, 1), events)

	done := make(chan error, 1)
	go func() { done <- r.Run(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	first := <-events.C()
	if first.Type != EventTypeInfo {
		t.Fatalf("first event = %s", first)
	}
	select {
	case err := <-done:
		if !IsTransportError(err) {
			t.Fatalf("expected transport error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not finish")
	}
	evs := events.Drain()
	if len(evs) != 1 || evs[0].Type != EventTypeError {
		t.Fatalf("expected the error event, got %v", evs)
	}
}

func TestReaderStopWithinReadTimeout(t *testing.T) {
	const timeout = 10 * time.Millisecond
	src := &fakeSource{timeout: timeout}
	events := NewEventChannel(8, DropNewest)
	r := NewReader(ReaderConfig{Name: "idle"}, src, newCSVDecoder(t, 1), events)

	r.Start(context.Background())
	time.Sleep(3 * timeout)
	start := time.Now()
	r.Stop()
	if d := time.Since(start); d > 5*timeout {
		t.Errorf("stop took %s", d)
	}
	select {
	case <-r.Done():
	default:
		t.Fatal("Done not closed after Stop")
	}
	if r.Err() != nil {
		t.Errorf("Err() = %v after clean stop", r.Err())
	}
	r.Stop()
	if src.closeCount() != 1 {
		t.Errorf("source closed %d times", src.closeCount())
	}
}

func TestReaderBlockPolicyCancel(t *testing.T) {
	units := make([][]byte, 100)
	for i := range units {
		units[i] = []byte("1,1")
	}
	src := &fakeSource{units: units, timeout: time.Millisecond}
	events := NewEventChannel(4, Block)
	r := NewReader(ReaderConfig{}, src, newCSVDecoder(t, 1), events)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	time.Sleep(20 * time.Millisecond)
	if events.Len() != events.Cap() {
		t.Fatalf("queue not full: %d/%d", events.Len(), events.Cap())
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("blocked reader ignored cancellation")
	}
	if src.closeCount() != 1 {
		t.Errorf("source closed %d times", src.closeCount())
	}
}

func TestReaderInfoEvery(t *testing.T) {
	src := &fakeSource{units: lines("1,1", "1,2", "1,3", "1,4", "1,5"), err: io.EOF}
	events := NewEventChannel(64, DropNewest)
	r := NewReader(ReaderConfig{InfoEvery: 2}, src, newCSVDecoder(t, 1), events)
	r.Run(context.Background())
	// start, after 2 and 4 frames, end of input
	if n := countTypes(events.Drain())[EventTypeInfo]; n != 4 {
		t.Errorf("info events = %d, want 4", n)
	}
}

func TestReaderRequestScan(t *testing.T) {
	src := &fakeSource{}
	r := NewReader(ReaderConfig{}, src, newCSVDecoder(t, 1), NewEventChannel(1, DropNewest))
	if err := r.RequestScan(); err != nil {
		t.Fatal(err)
	}
	if src.scans != 1 {
		t.Errorf("scans = %d", src.scans)
	}
	if r.Name() != "reader" {
		t.Errorf("default name = %q", r.Name())
	}
}

// Stats is read by the consumer while the reader goroutine decodes, run with
// -race to catch unsynchronized counters.
func TestReaderStatsWhileRunning(t *testing.T) {
	const n = 5000
	units := make([][]byte, n)
	for i := range units {
		units[i] = []byte(fmt.Sprintf("%d,7", i))
	}
	events := NewEventChannel(16, DropNewest)
	r := NewReader(ReaderConfig{Name: "csv0"}, &fakeSource{units: units, err: io.EOF}, newCSVDecoder(t, 1), events)
	r.Start(context.Background())

	var last uint64
	for running := true; running; {
		select {
		case <-r.Done():
			running = false
		default:
		}
		st := r.Stats()
		if st.Units < last {
			t.Fatalf("units went backwards: %d < %d", st.Units, last)
		}
		last = st.Units
		events.Drain()
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	if st := r.Stats(); st.Units != n || st.Frames != n {
		t.Errorf("stats = %+v, want %d units and frames", st, n)
	}
}
