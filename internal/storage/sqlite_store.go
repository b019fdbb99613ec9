package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"github.com/roman-kulish/radio-monitor/internal/spectrum"
)

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a store backed by the Sqlite database at dbPath.
// Connections are opened lazily and the schema is created on first write.
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1)

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, server string, mode spectrum.Mode, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch c := config.(type) {
		case string:
			configData.Valid = true
			configData.String = c

		case []byte:
			configData.Valid = true
			configData.String = string(c)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, server, mode.String(), configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *spectrum.CaptureSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}
	return loadSession(ctx, db, id)
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *spectrum.CaptureSession, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var data sessionData
	if err = stmt.QueryRowContext(ctx, id).Scan(&data.ID, &data.StartTime, &data.Server, &data.Mode, &data.Config); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = fmt.Errorf("session %d: %w", id, ErrNoData)
			return
		}
		err = fmt.Errorf("scanning session: %w", err)
		return
	}

	return toCaptureSession(&data)
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*spectrum.CaptureSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var data sessionData
		if err = rows.Scan(&data.ID, &data.StartTime, &data.Server, &data.Mode, &data.Config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}

		var sess *spectrum.CaptureSession
		if sess, err = toCaptureSession(&data); err != nil {
			return
		}
		sessions = append(sessions, sess)
	}
	err = rows.Err()
	return
}

func (s *SqliteStore) StoreFrame(ctx context.Context, sessionID int64, frame *spectrum.TimedFrame) (err error) {
	if frame == nil || frame.Frame.Len() == 0 {
		return
	}
	if len(frame.Frame.Frequencies) != len(frame.Frame.Power) {
		return fmt.Errorf("frame has %d frequencies and %d power values", len(frame.Frame.Frequencies), len(frame.Frame.Power))
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	data := toFrameData(sessionID, frame)
	_, err = tx.ExecContext(
		ctx,
		insertFrameSQL,
		data.SessionID,
		data.Timestamp,
		data.CenterFreq,
		data.PeakFreq,
		data.PeakPower,
		data.NumBins,
		data.Freqs,
		data.Power,
	)
	if err != nil {
		return fmt.Errorf("inserting frame: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// ReadFrames creates a FrameReader over the frames of a capture session,
// optionally limited to a time range (WithStartTime, WithEndTime, WithTimeRange).
//
// The returned reader must be closed after use to release database resources.
// Each reader instance should only be used from a single goroutine.
//
// Returns ErrNoData if the session doesn't exist.
func (s *SqliteStore) ReadFrames(ctx context.Context, sessionID int64, opts ...ReaderOption) (FrameReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteFrameReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var indexErr, writeErr, readErr error

		if s.writeDB != nil {
			if err := runSQLCommand(s.writeDB, initIndexesSQL); err != nil {
				indexErr = fmt.Errorf("creating indexes: %w", err)
			}

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(indexErr, writeErr, readErr)
	})

	return s.closeErr
}
