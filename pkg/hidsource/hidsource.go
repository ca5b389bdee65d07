// Package hidsource reads vendor HID reports from the scanner firmware.
package hidsource

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sstallion/go-hid"

	"github.com/roffe/muxscope"
)

const (
	DefaultVendorID    = 0xCAFE
	DefaultProductID   = 0x4001
	DefaultInterface   = 3
	DefaultReportSize  = 65
	DefaultReadTimeout = 100 * time.Millisecond
)

var ErrNotFound = errors.New("no matching hid device")

type Config struct {
	VendorID  uint16
	ProductID uint16
	// Interface is the USB interface number of the vendor HID function,
	// a negative value accepts the first matching device
	Interface   int
	ReportSize  int
	ReadTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		VendorID:    DefaultVendorID,
		ProductID:   DefaultProductID,
		Interface:   DefaultInterface,
		ReportSize:  DefaultReportSize,
		ReadTimeout: DefaultReadTimeout,
	}
}

func (cfg *Config) normalize() {
	if cfg.VendorID == 0 {
		cfg.VendorID = DefaultVendorID
	}
	if cfg.ProductID == 0 {
		cfg.ProductID = DefaultProductID
	}
	if cfg.ReportSize <= 0 {
		cfg.ReportSize = DefaultReportSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
}

type DeviceInfo struct {
	Path      string
	VendorID  uint16
	ProductID uint16
	Interface int
	Product   string
	Vendor    string
	Serial    string
}

func (d DeviceInfo) String() string {
	return fmt.Sprintf("%04X:%04X if%d %s %s (%s)", d.VendorID, d.ProductID, d.Interface, d.Vendor, d.Product, d.Path)
}

// device is the part of *hid.Device the source uses
type device interface {
	ReadWithTimeout(p []byte, timeout time.Duration) (int, error)
	Close() error
}

var initOnce sync.Once
var initErr error

func initHID() error {
	initOnce.Do(func() {
		initErr = hid.Init()
	})
	return initErr
}

// List returns every HID interface matching vid and pid, 0 matches any.
func List(vid, pid uint16) ([]DeviceInfo, error) {
	if err := initHID(); err != nil {
		return nil, fmt.Errorf("hid init: %w", err)
	}
	var out []DeviceInfo
	err := hid.Enumerate(vid, pid, func(info *hid.DeviceInfo) error {
		out = append(out, DeviceInfo{
			Path:      info.Path,
			VendorID:  info.VendorID,
			ProductID: info.ProductID,
			Interface: info.InterfaceNbr,
			Product:   info.ProductStr,
			Vendor:    info.MfrStr,
			Serial:    info.SerialNbr,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// pick returns the device exposing the wanted interface. Some platforms
// report interface -1 and only carry it in the path as "mi_XX".
func pick(devs []DeviceInfo, iface int) (DeviceInfo, bool) {
	if len(devs) == 0 {
		return DeviceInfo{}, false
	}
	if iface < 0 {
		return devs[0], true
	}
	for _, d := range devs {
		if d.Interface == iface {
			return d, true
		}
	}
	tag := fmt.Sprintf("mi_%02x", iface)
	for _, d := range devs {
		if d.Interface < 0 && strings.Contains(strings.ToLower(d.Path), tag) {
			return d, true
		}
	}
	return DeviceInfo{}, false
}

// Source reads one report per ReadUnit.
type Source struct {
	name    string
	dev     device
	timeout time.Duration
	buf     []byte

	closeOnce sync.Once
	closeErr  error
}

// Open finds the configured device and opens it by path.
func Open(cfg Config) (*Source, error) {
	cfg.normalize()
	devs, err := List(cfg.VendorID, cfg.ProductID)
	if err != nil {
		return nil, &muxscope.TransportError{Op: "open", Err: err}
	}
	info, ok := pick(devs, cfg.Interface)
	if !ok {
		return nil, &muxscope.TransportError{
			Source: fmt.Sprintf("%04X:%04X", cfg.VendorID, cfg.ProductID),
			Op:     "open",
			Err:    fmt.Errorf("%w on interface %d", ErrNotFound, cfg.Interface),
		}
	}
	d, err := hid.OpenPath(info.Path)
	if err != nil {
		return nil, &muxscope.TransportError{Source: info.Path, Op: "open", Err: err}
	}
	return newSource(fmt.Sprintf("hid %04X:%04X", cfg.VendorID, cfg.ProductID), d, cfg), nil
}

func newSource(name string, dev device, cfg Config) *Source {
	cfg.normalize()
	return &Source{
		name:    name,
		dev:     dev,
		timeout: cfg.ReadTimeout,
		buf:     make([]byte, cfg.ReportSize),
	}
}

func (s *Source) Name() string {
	return s.name
}

// ReadUnit returns a copy of the next report, or nil, nil on timeout.
func (s *Source) ReadUnit() ([]byte, error) {
	n, err := s.dev.ReadWithTimeout(s.buf, s.timeout)
	if err != nil {
		if errors.Is(err, hid.ErrTimeout) || isInterrupted(err) {
			return nil, nil
		}
		return nil, &muxscope.TransportError{Source: s.name, Op: "read", Err: err}
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	copy(out, s.buf[:n])
	return out, nil
}

// isInterrupted matches the strerror(EINTR) text hidapi on linux returns when
// a signal interrupts hid_read_timeout. go-hid has no sentinel for it.
func isInterrupted(err error) bool {
	return strings.Contains(err.Error(), "Interrupted system call")
}

func (s *Source) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.dev.Close()
	})
	return s.closeErr
}
