package spectrum

import (
	"math"
	"time"
)

// CaptureSession represents a single recorded streaming session.
// Each session captures metadata about which server and mode were monitored.
type CaptureSession struct {
	ID        int64     `json:"ID"`                      // Unique identifier for the session
	StartTime time.Time `json:"startTime"`               // When the capture began
	Server    string    `json:"server"`                  // Stream server the frames were received from
	Mode      Mode      `json:"mode"`                    // Demodulation mode active at session start
	Config    *string   `json:"config,string,omitempty"` // Optional client configuration in JSON format
}

// Frame is one snapshot of per-bin power values across the received span.
// Frames are immutable once decoded; a new frame supersedes the old one wholesale.
type Frame struct {
	Frequencies     []float64 `json:"freqs"`       // Bin frequencies in MHz, strictly increasing
	Power           []float64 `json:"power"`       // Bin power in dB, same length as Frequencies
	CenterFrequency float64   `json:"center_freq"` // Receiver center frequency in MHz
	PeakFrequency   float64   `json:"peak_freq"`   // Frequency of the strongest bin in MHz
	PeakPower       float64   `json:"peak_power"`  // Power of the strongest bin in dB
}

// Len returns the number of bins in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Power)
}

// Span returns the first and last bin frequency.
func (f *Frame) Span() (start, end float64) {
	if f.Len() == 0 {
		return 0, 0
	}
	return f.Frequencies[0], f.Frequencies[len(f.Frequencies)-1]
}

// TimedFrame is a frame with the instant it was received.
type TimedFrame struct {
	Timestamp time.Time
	Frame     *Frame
}

// DigitalCall is a single decoded transmission reported by the digital monitor.
type DigitalCall struct {
	Time    string `json:"time"`
	Message string `json:"message"`
}

// DigitalEvent is passed through untouched to the digital overlay.
type DigitalEvent struct {
	FreqMHz float64       `json:"freq_mhz"`
	Mode    string        `json:"mode"`
	Calls   []DigitalCall `json:"calls"`
}

// Bookmark is a named frequency marker shown on the spectrum.
type Bookmark struct {
	Name         string  `json:"name" yaml:"name"`
	FrequencyMHz float64 `json:"frequency_mhz" yaml:"frequencyMHz"`
	Mode         Mode    `json:"mode" yaml:"mode"`
	BandwidthKHz float64 `json:"bandwidth_khz" yaml:"bandwidthKHz"`
	Description  string  `json:"description" yaml:"description"`
}

// PowerPercent maps a peak power reading in dB onto a 0-100 meter,
// where -50 dB is empty and 0 dB is full.
func PowerPercent(db float64) float64 {
	return math.Max(0, math.Min(100, (db+50)/50*100))
}
