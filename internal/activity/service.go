package activity

import (
	"bytes"
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

const schema = `
CREATE TABLE IF NOT EXISTS calibrations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source TEXT,
	sport TEXT,
	start TEXT,
	recorded_distance REAL,
	recorded_duration REAL,
	distance REAL,
	duration REAL,
	distance_factor REAL,
	time_factor REAL,
	average_pace REAL,
	splits BLOB,
	tcx BLOB,
	tcx_hash TEXT UNIQUE,
	created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP)`

const columns = `id, source, sport, start, recorded_distance, recorded_duration,
	distance, duration, distance_factor, time_factor, average_pace, splits, tcx, created_at`

// Service keeps the history of calibrations in sqlite. The schema is
// created on first use, so a database file only appears once history is
// actually read or written.
type Service struct {
	db     *sql.DB
	logger *slog.Logger

	mu       sync.Mutex
	migrated bool
}

func NewService(db *sql.DB, logger *slog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger,
	}
}

func (a *Service) Migrate(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.migrated {
		return nil
	}

	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error creating table: %w", err)
	}
	a.migrated = true
	return nil
}

// Add stores c, replacing any earlier calibration that produced the same
// file.
func (a *Service) Add(ctx context.Context, c Calibration) (int64, error) {
	if err := a.Migrate(ctx); err != nil {
		return 0, err
	}

	sha := sha256.Sum256(c.TCX)
	hash := hex.EncodeToString(sha[:])

	existingRow := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM calibrations WHERE tcx_hash = ?", hash)
	var count int
	if err := existingRow.Scan(&count); err != nil {
		return 0, err
	}
	if count > 0 {
		_, err := a.db.ExecContext(ctx, "DELETE FROM calibrations WHERE tcx_hash = ?", hash)
		if err != nil {
			return 0, err
		}
		a.logger.Info("Deleted existing calibration", slog.String("hash", hash))
	}

	var buffer bytes.Buffer
	enc := gob.NewEncoder(&buffer)
	if err := enc.Encode(splitsBlob{Splits: c.Splits}); err != nil {
		return 0, err
	}

	res, err := a.db.ExecContext(ctx, `
    INSERT INTO calibrations
    (source,
    sport,
    start,
    recorded_distance,
    recorded_duration,
    distance,
    duration,
    distance_factor,
    time_factor,
    average_pace,
    splits,
    tcx,
    tcx_hash)
    VALUES
    (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Source,
		c.Sport,
		c.Start.UTC().Format(time.RFC3339Nano),
		c.RecordedDistance,
		c.RecordedDuration,
		c.Distance,
		c.Duration,
		c.DistanceFactor,
		c.TimeFactor,
		c.AveragePace,
		buffer.Bytes(),
		c.TCX,
		hash,
	)
	if err != nil {
		return 0, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}

	if affected != 1 {
		return 0, fmt.Errorf("expected 1 row to be affected, got %d", affected)
	}

	return res.LastInsertId()
}

func (a *Service) Get(ctx context.Context) ([]Calibration, error) {
	if err := a.Migrate(ctx); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryContext(ctx, "SELECT "+columns+" FROM calibrations ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calibrations := []Calibration{}
	for rows.Next() {
		c, err := scanCalibration(rows)
		if err != nil {
			return nil, err
		}
		calibrations = append(calibrations, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return calibrations, nil
}

func (a *Service) GetByID(ctx context.Context, id int64) (Calibration, error) {
	if err := a.Migrate(ctx); err != nil {
		return Calibration{}, err
	}

	row := a.db.QueryRowContext(ctx, "SELECT "+columns+" FROM calibrations WHERE id = ?", id)
	c, err := scanCalibration(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Calibration{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return c, err
}

// splitsBlob wraps the splits so an empty list still encodes.
type splitsBlob struct {
	Splits []Split
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCalibration(s scanner) (Calibration, error) {
	var c Calibration
	var startVal string
	var splitsVal []byte
	if err := s.Scan(&c.ID, &c.Source, &c.Sport, &startVal, &c.RecordedDistance, &c.RecordedDuration,
		&c.Distance, &c.Duration, &c.DistanceFactor, &c.TimeFactor, &c.AveragePace, &splitsVal, &c.TCX, &c.Created); err != nil {
		return Calibration{}, err
	}

	start, err := time.Parse(time.RFC3339Nano, startVal)
	if err != nil {
		return Calibration{}, err
	}
	c.Start = start

	var blob splitsBlob
	dec := gob.NewDecoder(bytes.NewBuffer(splitsVal))
	if err := dec.Decode(&blob); err != nil {
		return Calibration{}, err
	}
	c.Splits = blob.Splits

	return c, nil
}
