package storage

import (
	"database/sql"
	"time"
)

type sessionData struct {
	ID        int64
	StartTime time.Time
	Server    string
	Mode      string
	Config    sql.NullString
}

type frameData struct {
	SessionID  int64
	Timestamp  int64 // unix nanoseconds
	CenterFreq float64
	PeakFreq   float64
	PeakPower  float64
	NumBins    int
	Freqs      []byte
	Power      []byte
}
