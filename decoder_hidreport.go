package muxscope

import "encoding/binary"

const DefaultReportID = 0x02

// HIDReport reassembles frames of little-endian uint16 values that the device
// splits over fixed size reports. Frames do not need to align with reports,
// leftover bytes are kept for the next report.
type HIDReport struct {
	baseDecoder
	channels int
	reportID byte
	acc      []byte
}

func init() {
	if err := RegisterDecoder(&DecoderInfo{
		Name:        "hidreport",
		Description: "binary uint16 LE payload chunked over vendor HID reports",
		Transport:   TransportReports,
		New:         NewHIDReport,
	}); err != nil {
		panic(err)
	}
}

func NewHIDReport(cfg *DecoderConfig) (Decoder, error) {
	n, err := channelCount(cfg)
	if err != nil {
		return nil, err
	}
	return &HIDReport{
		channels: n,
		reportID: cfg.ReportID,
		acc:      make([]byte, 0, n*4),
	}, nil
}

func (h *HIDReport) Feed(report []byte) []Frame {
	h.unit()
	if len(report) == 0 || report[0] != h.reportID {
		h.drop()
		return nil
	}
	h.acc = append(h.acc, report[1:]...)

	size := h.channels * 2
	var out []Frame
	for len(h.acc) >= size {
		values := make([]uint16, h.channels)
		for i := range values {
			values[i] = binary.LittleEndian.Uint16(h.acc[i*2:])
		}
		out = append(out, Frame{Values: values})
		// shift the remainder to the front so acc does not grow
		n := copy(h.acc, h.acc[size:])
		h.acc = h.acc[:n]
	}
	h.emitted(len(out))
	return out
}

func (h *HIDReport) Reset() {
	h.acc = h.acc[:0]
}

// Pending returns the number of accumulated bytes not yet part of a frame.
func (h *HIDReport) Pending() int {
	return len(h.acc)
}
