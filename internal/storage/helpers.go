package storage

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && !errors.Is(cErr, sql.ErrTxDone) && *err == nil {
		*err = cErr
	}
}

// encodeFloats packs values as little-endian IEEE 754 doubles.
func encodeFloats(values []float64) []byte {
	p := make([]byte, 8*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint64(p[i*8:], math.Float64bits(v))
	}
	return p
}

func decodeFloats(p []byte, n int) ([]float64, error) {
	if len(p) != 8*n {
		return nil, fmt.Errorf("expected %d bytes for %d values, got %d", 8*n, n, len(p))
	}
	values := make([]float64, n)
	for i := range values {
		values[i] = math.Float64frombits(binary.LittleEndian.Uint64(p[i*8:]))
	}
	return values, nil
}

func toFrameData(sessionID int64, tf *spectrum.TimedFrame) *frameData {
	f := tf.Frame
	return &frameData{
		SessionID:  sessionID,
		Timestamp:  tf.Timestamp.UnixNano(),
		CenterFreq: f.CenterFrequency,
		PeakFreq:   f.PeakFrequency,
		PeakPower:  f.PeakPower,
		NumBins:    f.Len(),
		Freqs:      encodeFloats(f.Frequencies),
		Power:      encodeFloats(f.Power),
	}
}

func toTimedFrame(d *frameData) (*spectrum.TimedFrame, error) {
	freqs, err := decodeFloats(d.Freqs, d.NumBins)
	if err != nil {
		return nil, fmt.Errorf("decoding frequencies: %w", err)
	}
	power, err := decodeFloats(d.Power, d.NumBins)
	if err != nil {
		return nil, fmt.Errorf("decoding power: %w", err)
	}

	return &spectrum.TimedFrame{
		Timestamp: time.Unix(0, d.Timestamp).UTC(),
		Frame: &spectrum.Frame{
			Frequencies:     freqs,
			Power:           power,
			CenterFrequency: d.CenterFreq,
			PeakFrequency:   d.PeakFreq,
			PeakPower:       d.PeakPower,
		},
	}, nil
}

func toCaptureSession(d *sessionData) (*spectrum.CaptureSession, error) {
	mode, err := spectrum.ParseMode(d.Mode)
	if err != nil {
		return nil, fmt.Errorf("parsing session mode: %w", err)
	}

	sess := spectrum.CaptureSession{
		ID:        d.ID,
		StartTime: d.StartTime,
		Server:    d.Server,
		Mode:      mode,
	}
	if d.Config.Valid {
		sess.Config = &d.Config.String
	}
	return &sess, nil
}
