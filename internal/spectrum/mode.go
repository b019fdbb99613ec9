package spectrum

import (
	"fmt"
	"strings"
)

const (
	ModeWFM Mode = "wfm"
	ModeFM  Mode = "fm"
	ModeNFM Mode = "nfm"
	ModeAM  Mode = "am"

	// DefaultBandwidthKHz is used for modes without a configured bandwidth.
	DefaultBandwidthKHz = 25.0
)

var validModes = map[Mode]struct{}{
	ModeWFM: {},
	ModeFM:  {},
	ModeNFM: {},
	ModeAM:  {},
}

// Mode is the demodulation mode the receiver is tuned with.
type Mode string

func (m Mode) String() string {
	return string(m)
}

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := validModes[m]; !ok {
		return "", fmt.Errorf("invalid mode: %s", s)
	}
	return m, nil
}

// Bandwidths maps a mode to its demodulation filter width in kHz.
type Bandwidths map[Mode]float64

// DefaultBandwidths returns the filter widths of the stock demodulators.
func DefaultBandwidths() Bandwidths {
	return Bandwidths{
		ModeWFM: 200,
		ModeFM:  200,
		ModeNFM: 12.5,
		ModeAM:  25,
	}
}

// KHz returns the filter width for the mode, falling back to DefaultBandwidthKHz.
func (b Bandwidths) KHz(m Mode) float64 {
	if bw, ok := b[m]; ok && bw > 0 {
		return bw
	}
	return DefaultBandwidthKHz
}

// MHz returns the filter width for the mode in MHz.
func (b Bandwidths) MHz(m Mode) float64 {
	return b.KHz(m) / 1000
}
