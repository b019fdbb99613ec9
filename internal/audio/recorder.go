package audio

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	bitDepth     = 16
	wavFormatPCM = 1
	monoChannels = 1
)

// Recorder captures the raw PCM stream into a 16-bit mono WAV file. Chunks are
// written in arrival order, without the gap compensation applied for playback.
type Recorder struct {
	mu      sync.Mutex
	file    *os.File
	encoder *wav.Encoder
	format  *audio.Format
	frames  int
	closed  bool
}

// NewRecorder creates (or truncates) the WAV file at path.
func NewRecorder(path string, rate int) (*Recorder, error) {
	if rate <= 0 {
		rate = SampleRate
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating wav file: %w", err)
	}

	return &Recorder{
		file:    f,
		encoder: wav.NewEncoder(f, rate, bitDepth, monoChannels, wavFormatPCM),
		format:  &audio.Format{NumChannels: monoChannels, SampleRate: rate},
	}, nil
}

// Write appends a chunk to the recording.
func (r *Recorder) Write(chunk []int16) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrDeviceClosed
	}

	buf := &audio.IntBuffer{
		Format:         r.format,
		Data:           make([]int, len(chunk)),
		SourceBitDepth: bitDepth,
	}
	for i, s := range chunk {
		buf.Data[i] = int(s)
	}

	if err := r.encoder.Write(buf); err != nil {
		return fmt.Errorf("writing wav samples: %w", err)
	}
	r.frames += len(chunk)
	return nil
}

// Frames returns the number of samples recorded so far.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	if err := r.encoder.Close(); err != nil {
		errs = append(errs, fmt.Errorf("finalising wav: %w", err))
	}
	if err := r.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing wav file: %w", err))
	}
	return errors.Join(errs...)
}
