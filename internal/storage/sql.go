package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions
(
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    start_time DATETIME NOT NULL,
    server     TEXT     NOT NULL,
    mode       TEXT     NOT NULL,
    config     TEXT
);

CREATE TABLE IF NOT EXISTS frames
(
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id  INTEGER NOT NULL REFERENCES sessions (id),
    timestamp   INTEGER NOT NULL,
    center_freq REAL    NOT NULL,
    peak_freq   REAL    NOT NULL,
    peak_power  REAL    NOT NULL,
    num_bins    INTEGER NOT NULL,
    freqs       BLOB    NOT NULL,
    power       BLOB    NOT NULL
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_frames_session_timestamp ON frames (session_id, timestamp);`

	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      server,
                      mode,
                      config)
VALUES (CURRENT_TIMESTAMP, ?, ?, ?)`

	selectSessionSQL = `
SELECT 
    id, 
    start_time, 
    server, 
    mode, 
    config 
FROM sessions 
WHERE 
    id = ?`

	selectSessionsSQL = `
SELECT 
    id, 
    start_time, 
    server, 
    mode, 
    config 
FROM sessions
ORDER BY start_time, id`

	insertFrameSQL = `
INSERT INTO frames (session_id,
                    timestamp,
                    center_freq,
                    peak_freq,
                    peak_power,
                    num_bins,
                    freqs,
                    power)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	selectTimeRangeSQL = `
SELECT
    COALESCE(MIN(timestamp), 0),
    COALESCE(MAX(timestamp), 0),
    COUNT(*)
FROM frames
WHERE
    session_id = ?`

	selectFramesSQL = `
SELECT
    timestamp,
    center_freq,
    peak_freq,
    peak_power,
    num_bins,
    freqs,
    power
FROM frames
WHERE
    session_id = ?
    AND timestamp BETWEEN ? AND ?
ORDER BY timestamp, id`
)
