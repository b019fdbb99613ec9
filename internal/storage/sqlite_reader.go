package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// ErrNoData indicates either that no frames exist for the given parameters,
// or that all available frames have been read.
var ErrNoData = errors.New("no data available")

// ReaderOption configures a frame reader with filtering criteria.
type ReaderOption func(*SqliteFrameReader)

// WithStartTime excludes frames received before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &t
	}
}

// WithEndTime excludes frames received after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteFrameReader) {
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

// SqliteFrameReader implements FrameReader for the SQLite backend.
type SqliteFrameReader struct {
	db *sql.DB

	sessionID int64
	session   *spectrum.CaptureSession

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter

	current *spectrum.TimedFrame
	rows    *sql.Rows
	err     error
}

func newSqliteFrameReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteFrameReader, error) {
	fr := &SqliteFrameReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(fr)
	}
	if err := fr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return fr, nil
}

func (fr *SqliteFrameReader) init(ctx context.Context) error {
	if fr.db == nil {
		return errors.New("database connection required")
	}
	if fr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: fr.loadSession},
		{msg: "initializing filters", fn: fr.initFilters},
		{msg: "initializing query", fn: fr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (fr *SqliteFrameReader) loadSession(ctx context.Context) (err error) {
	fr.session, err = loadSession(ctx, fr.db, fr.sessionID)
	return
}

// initFilters validates the requested time range and fills the open ends
// from the frames stored for the session.
func (fr *SqliteFrameReader) initFilters(ctx context.Context) (err error) {
	if fr.startTime != nil && fr.endTime != nil {
		if fr.startTime.After(*fr.endTime) {
			return fmt.Errorf("start time %s is after end time %s", fr.startTime, fr.endTime)
		}
		return nil
	}

	stmt, err := fr.db.PrepareContext(ctx, selectTimeRangeSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var first, last, count int64
	if err = stmt.QueryRowContext(ctx, fr.sessionID).Scan(&first, &last, &count); err != nil {
		return fmt.Errorf("scanning time range: %w", err)
	}
	if count == 0 {
		return ErrNoData
	}

	if fr.startTime == nil {
		t := time.Unix(0, first)
		fr.startTime = &t
	}
	if fr.endTime == nil {
		t := time.Unix(0, last)
		fr.endTime = &t
	}
	if fr.startTime.After(*fr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", fr.startTime, fr.endTime)
	}
	return nil
}

func (fr *SqliteFrameReader) initQuery(ctx context.Context) (err error) {
	fr.rows, err = fr.db.QueryContext(ctx, selectFramesSQL, fr.sessionID, fr.startTime.UnixNano(), fr.endTime.UnixNano())
	return
}

// TimeRange returns the effective time range of the reader.
func (fr *SqliteFrameReader) TimeRange() (start, end time.Time) {
	return fr.startTime.UTC(), fr.endTime.UTC()
}

func (fr *SqliteFrameReader) Session() *spectrum.CaptureSession {
	return fr.session
}

func (fr *SqliteFrameReader) Next(ctx context.Context) bool {
	if fr.err != nil || fr.rows == nil {
		return false
	}

	select {
	case <-ctx.Done():
		fr.err = ctx.Err()
		return false
	default:
	}

	if !fr.rows.Next() {
		fr.current = nil
		fr.err = ErrNoData
		return false
	}

	var data frameData
	err := fr.rows.Scan(
		&data.Timestamp,
		&data.CenterFreq,
		&data.PeakFreq,
		&data.PeakPower,
		&data.NumBins,
		&data.Freqs,
		&data.Power,
	)
	if err != nil {
		fr.err = fmt.Errorf("scanning frame: %w", err)
		return false
	}

	if fr.current, fr.err = toTimedFrame(&data); fr.err != nil {
		return false
	}
	return true
}

func (fr *SqliteFrameReader) Current() *spectrum.TimedFrame {
	return fr.current
}

func (fr *SqliteFrameReader) Error() error {
	if fr.err != nil && !errors.Is(fr.err, ErrNoData) {
		return fr.err
	}
	if fr.rows != nil {
		return fr.rows.Err()
	}
	return nil
}

func (fr *SqliteFrameReader) Close() error {
	if fr.rows != nil {
		err := fr.rows.Close()
		fr.current = nil
		fr.rows = nil
		return err
	}
	return nil
}
