package view

import (
	"fmt"
	"math"
)

const (
	// MinTuneMHz and MaxTuneMHz bound the frequencies reachable with NudgeDigit.
	MinTuneMHz = 24.0
	MaxTuneMHz = 1766.0

	freqDigits = 9
)

// PlaceValues are the Hz values of the digits of a frequency readout, from
// hundreds of MHz down to single Hz.
var PlaceValues = [freqDigits]float64{1e8, 1e7, 1e6, 1e5, 1e4, 1e3, 100, 10, 1}

// NudgeDigit steps the frequency by one unit of the given readout digit, up
// for dir > 0 and down otherwise. The result is clamped to the tunable range.
func NudgeDigit(mhz float64, digit int, dir int) (float64, error) {
	if digit < 0 || digit >= freqDigits {
		return 0, fmt.Errorf("digit %d out of range", digit)
	}

	step := PlaceValues[digit]
	if dir <= 0 {
		step = -step
	}

	hz := mhz*1e6 + step
	return math.Max(MinTuneMHz, math.Min(MaxTuneMHz, hz/1e6)), nil
}

// FormatDigits renders a frequency as the nine-digit Hz readout.
func FormatDigits(mhz float64) string {
	hz := int64(math.Round(mhz * 1e6))
	s := fmt.Sprintf("%09d", hz)
	return s[len(s)-freqDigits:]
}
