package storage

const (
	initSchemaSQL = `
CREATE TABLE IF NOT EXISTS sessions (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    uuid       TEXT     NOT NULL UNIQUE,
    start_time DATETIME NOT NULL,
    end_time   DATETIME,
    topic      TEXT     NOT NULL,
    config     TEXT,
    iterations INTEGER  NOT NULL DEFAULT 0,
    samples    INTEGER  NOT NULL DEFAULT 0,
    timeouts   INTEGER  NOT NULL DEFAULT 0,
    errors     INTEGER  NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS samples (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id   INTEGER NOT NULL REFERENCES sessions (id),
    timestamp_ns INTEGER NOT NULL,
    accel_x      REAL    NOT NULL,
    accel_y      REAL    NOT NULL,
    accel_z      REAL    NOT NULL,
    gyro_x       REAL    NOT NULL,
    gyro_y       REAL    NOT NULL,
    gyro_z       REAL    NOT NULL,
    accel_dt_us  INTEGER NOT NULL,
    gyro_dt_us   INTEGER NOT NULL,
    clipping     INTEGER NOT NULL DEFAULT 0
);`

	initIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_samples_session_timestamp ON samples (session_id, timestamp_ns);`

	insertSessionSQL = `
INSERT INTO sessions (
                      uuid,
                      start_time,
                      topic,
                      config)
VALUES (?, ?, ?, ?)`

	finishSessionSQL = `
UPDATE sessions
SET end_time   = ?,
    iterations = ?,
    samples    = ?,
    timeouts   = ?,
    errors     = ?
WHERE id = ?`

	selectSessionSQL = `
SELECT
    id,
    uuid,
    start_time,
    end_time,
    topic,
    config,
    iterations,
    samples,
    timeouts,
    errors
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    uuid,
    start_time,
    end_time,
    topic,
    config,
    iterations,
    samples,
    timeouts,
    errors
FROM sessions
ORDER BY start_time`

	insertSampleSQL = `
INSERT INTO samples (session_id,
                     timestamp_ns,
                     accel_x,
                     accel_y,
                     accel_z,
                     gyro_x,
                     gyro_y,
                     gyro_z,
                     accel_dt_us,
                     gyro_dt_us,
                     clipping)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	selectSamplesSQL = `
SELECT
    timestamp_ns,
    accel_x,
    accel_y,
    accel_z,
    gyro_x,
    gyro_y,
    gyro_z,
    accel_dt_us,
    gyro_dt_us,
    clipping
FROM samples
WHERE
    session_id = ?
    AND timestamp_ns BETWEEN ? AND ?
ORDER BY timestamp_ns
LIMIT ?`
)
