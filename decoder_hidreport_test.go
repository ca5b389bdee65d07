package muxscope

import (
	"encoding/binary"
	"testing"
)

// report builds a report of size bytes: id followed by payload, zero padded.
func report(id byte, payload []byte, size int) []byte {
	out := make([]byte, size)
	out[0] = id
	copy(out[1:], payload)
	return out
}

func payload(values ...uint16) []byte {
	out := make([]byte, len(values)*2)
	for i, v := range values {
		binary.LittleEndian.PutUint16(out[i*2:], v)
	}
	return out
}

func newHID(t *testing.T, channels int) *HIDReport {
	t.Helper()
	dec, err := NewHIDReport(&DecoderConfig{Channels: channels, ReportID: DefaultReportID})
	if err != nil {
		t.Fatal(err)
	}
	return dec.(*HIDReport)
}

func TestHIDReportTwoReports(t *testing.T) {
	// 64 channels fill exactly two 65 byte reports
	dec := newHID(t, 64)
	values := make([]uint16, 64)
	for i := range values {
		values[i] = uint16(i*100 + 1)
	}
	data := payload(values...)

	if frames := dec.Feed(report(0x02, data[:64], 65)); len(frames) != 0 {
		t.Fatalf("first half emitted %d frames", len(frames))
	}
	if dec.Pending() != 64 {
		t.Fatalf("pending = %d, want 64", dec.Pending())
	}
	frames := dec.Feed(report(0x02, data[64:], 65))
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}
	if !frames[0].Equal(NewFrame(values)) {
		t.Errorf("values = %v, want %v", frames[0].Values, values)
	}
	if dec.Pending() != 0 {
		t.Errorf("pending = %d after full frame", dec.Pending())
	}
}

func TestHIDReportWrongID(t *testing.T) {
	dec := newHID(t, 4)
	dec.Feed(report(0x02, payload(1, 2), 5))
	if frames := dec.Feed(report(0x01, payload(9, 9, 9, 9), 9)); len(frames) != 0 {
		t.Fatalf("wrong id emitted %v", frames)
	}
	if dec.Pending() != 4 {
		t.Fatalf("wrong id touched the accumulator, pending = %d", dec.Pending())
	}
	dec.Feed(nil)
	frames := dec.Feed(report(0x02, payload(3, 4), 5))
	if len(frames) != 1 || !frames[0].Equal(NewFrame([]uint16{1, 2, 3, 4})) {
		t.Fatalf("unexpected frames %v", frames)
	}
	if st := dec.Stats(); st.Dropped != 2 {
		t.Errorf("dropped = %d, want 2", st.Dropped)
	}
}

func TestHIDReportRemainder(t *testing.T) {
	// 3 channels is 6 bytes, a 16 byte payload holds two frames and 4 spare bytes
	dec := newHID(t, 3)
	frames := dec.Feed(report(0x02, payload(1, 2, 3, 4, 5, 6, 7, 8), 17))
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}
	if !frames[1].Equal(NewFrame([]uint16{4, 5, 6})) {
		t.Errorf("second frame = %v", frames[1].Values)
	}
	if dec.Pending() != 4 {
		t.Fatalf("pending = %d, want 4", dec.Pending())
	}
	frames = dec.Feed(report(0x02, payload(9), 3))
	if len(frames) != 1 || !frames[0].Equal(NewFrame([]uint16{7, 8, 9})) {
		t.Fatalf("remainder not carried over: %v", frames)
	}
	dec.Feed(report(0x02, payload(1), 3))
	dec.Reset()
	if dec.Pending() != 0 {
		t.Errorf("reset left %d bytes", dec.Pending())
	}
}
