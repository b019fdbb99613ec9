package storage

import (
	"context"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// Store persists capture sessions and the spectral frames received during them.
type Store interface {
	// CreateSession starts a new capture session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - server: Stream server the frames are received from
	//   - mode: Demodulation mode at the start of the capture
	//   - config: Optional client configuration. Can be string, []byte, or JSON-serializable object
	CreateSession(ctx context.Context, server string, mode spectrum.Mode, config any) (sessionID int64, err error)

	// Session retrieves a capture session by its ID.
	Session(ctx context.Context, id int64) (session *spectrum.CaptureSession, err error)

	// Sessions returns all capture sessions ordered by start time.
	Sessions(ctx context.Context) (sessions []*spectrum.CaptureSession, err error)

	// StoreFrame saves one spectral frame of a session. Frames without bins
	// are skipped.
	StoreFrame(ctx context.Context, sessionID int64, frame *spectrum.TimedFrame) error

	// ReadFrames returns a reader over the frames of a session in the order
	// they were received. The reader must be closed after use.
	ReadFrames(ctx context.Context, sessionID int64, opts ...ReaderOption) (FrameReader, error)

	// Close releases all database connections. It is safe to call Close
	// multiple times.
	Close() error
}

// FrameReader iterates over stored frames.
type FrameReader interface {
	// Session returns the capture session the reader is accessing.
	Session() *spectrum.CaptureSession

	// Next advances the iterator and returns true if there is another frame
	// to read, false when the iteration is complete or an error occurred.
	Next(context.Context) bool

	// Current returns the current frame. The result is undefined after Next
	// returned false.
	Current() *spectrum.TimedFrame

	// TimeRange returns the effective time range covered by the reader.
	TimeRange() (start, end time.Time)

	// Error returns the error that stopped the iteration, if any.
	Error() error

	// Close releases the resources held by the reader.
	Close() error
}
