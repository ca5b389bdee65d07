package muxscope

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

const (
	DefaultBaudrate    = 115200
	DefaultReadTimeout = 100 * time.Millisecond
)

type SerialConfig struct {
	Port        string
	Baudrate    int
	ReadTimeout time.Duration
}

// OpenSerial opens a CDC/serial port at 8N1 and wraps it in a LineSource.
func OpenSerial(cfg SerialConfig) (*LineSource, error) {
	if cfg.Port == "" {
		return nil, &TransportError{Op: "open", Err: errors.New("no serial port given")}
	}
	if cfg.Baudrate == 0 {
		cfg.Baudrate = DefaultBaudrate
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	portName := cfg.Port
	if runtime.GOOS == "windows" {
		portName = strings.ToUpper(portName)
	}
	mode := &serial.Mode{
		BaudRate: cfg.Baudrate,
		Parity:   serial.NoParity,
		DataBits: 8,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &TransportError{Source: portName, Op: "open", Err: err}
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, &TransportError{Source: portName, Op: "open", Err: fmt.Errorf("set read timeout: %w", err)}
	}
	p.ResetInputBuffer()
	return NewLineSource(portName, p), nil
}

type PortInfo struct {
	Name         string
	IsUSB        bool
	VID, PID     string
	SerialNumber string
	Product      string
}

func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	return fmt.Sprintf("%s (USB %s:%s %s)", p.Name, p.VID, p.PID, p.Product)
}

// ListSerialPorts returns the serial ports present on the system.
func ListSerialPorts() ([]PortInfo, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	out := make([]PortInfo, 0, len(ports))
	for _, port := range ports {
		out = append(out, PortInfo{
			Name:         port.Name,
			IsUSB:        port.IsUSB,
			VID:          port.VID,
			PID:          port.PID,
			SerialNumber: port.SerialNumber,
			Product:      port.Product,
		})
	}
	return out, nil
}
