package hidsource

import (
	"errors"
	"testing"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/roffe/muxscope"
)

type fakeDevice struct {
	reports [][]byte
	err     error
	closed  int
}

func (f *fakeDevice) ReadWithTimeout(p []byte, timeout time.Duration) (int, error) {
	if len(f.reports) == 0 {
		if f.err != nil {
			return 0, f.err
		}
		return 0, hid.ErrTimeout
	}
	r := f.reports[0]
	f.reports = f.reports[1:]
	return copy(p, r), nil
}

func (f *fakeDevice) Close() error {
	f.closed++
	return nil
}

func TestReadUnitTimeout(t *testing.T) {
	src := newSource("test", &fakeDevice{}, DefaultConfig())
	unit, err := src.ReadUnit()
	if err != nil {
		t.Fatalf("expected no error on timeout, got %v", err)
	}
	if unit != nil {
		t.Fatalf("expected nil unit on timeout, got %v", unit)
	}
}

func TestReadUnitCopiesReport(t *testing.T) {
	dev := &fakeDevice{reports: [][]byte{{0x02, 0x01, 0x00}, {0x02, 0xff}}}
	src := newSource("test", dev, DefaultConfig())

	first, err := src.ReadUnit()
	if err != nil {
		t.Fatal(err)
	}
	second, err := src.ReadUnit()
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 3 || first[1] != 0x01 {
		t.Errorf("first report clobbered: %v", first)
	}
	if len(second) != 2 || second[1] != 0xff {
		t.Errorf("unexpected second report: %v", second)
	}
}

func TestReadUnitError(t *testing.T) {
	boom := errors.New("device unplugged")
	src := newSource("test", &fakeDevice{err: boom}, DefaultConfig())
	_, err := src.ReadUnit()
	if !muxscope.IsTransportError(err) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("transport error does not wrap cause: %v", err)
	}
}

func TestReadUnitInterrupted(t *testing.T) {
	for _, msg := range []string{"Interrupted system call", "hid_read_timeout: Interrupted system call"} {
		src := newSource("test", &fakeDevice{err: errors.New(msg)}, DefaultConfig())
		unit, err := src.ReadUnit()
		if err != nil || unit != nil {
			t.Errorf("%q: got %v, %v, want nil, nil", msg, unit, err)
		}
	}
}

func TestCloseOnce(t *testing.T) {
	dev := &fakeDevice{}
	src := newSource("test", dev, DefaultConfig())
	src.Close()
	src.Close()
	if dev.closed != 1 {
		t.Errorf("device closed %d times", dev.closed)
	}
}

func TestPick(t *testing.T) {
	devs := []DeviceInfo{
		{Path: "a", Interface: 0},
		{Path: "b", Interface: 3},
	}
	windows := []DeviceInfo{
		{Path: `\\?\hid#vid_cafe&pid_4001&mi_00#7&1`, Interface: -1},
		{Path: `\\?\hid#vid_cafe&pid_4001&mi_03#7&2`, Interface: -1},
	}
	tests := []struct {
		name  string
		devs  []DeviceInfo
		iface int
		want  string
		ok    bool
	}{
		{"by number", devs, 3, "b", true},
		{"any", devs, -1, "a", true},
		{"missing", devs, 5, "", false},
		{"none", nil, 3, "", false},
		{"by path", windows, 3, windows[1].Path, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := pick(tt.devs, tt.iface)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if got.Path != tt.want {
				t.Errorf("path = %q, want %q", got.Path, tt.want)
			}
		})
	}
}
