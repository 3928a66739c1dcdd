// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package store keeps decoded records in a sqlite database, one run per
// processed archive.
package store

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/icescint/udaqtool/internal/output"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a migrated sqlite database
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and applies pending migrations
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// a single connection keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrateUp() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	// m is not closed: that would close the shared connection

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// migrateLogger implements migrate.Logger
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	log.Printf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Close closes the database
func (s *Store) Close() error {
	return s.db.Close()
}

// Run stores the records of one archive. It implements output.Sink.
type Run struct {
	ID         string
	store      *Store
	thresholds []float64
}

// BeginRun registers a new run and returns its sink
func (s *Store) BeginRun(archive, checksumOrder string, thresholds []float64) (*Run, error) {
	encoded, err := json.Marshal(thresholds)
	if err != nil {
		return nil, fmt.Errorf("failed to encode thresholds: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.Exec(
		`INSERT INTO runs (run_id, archive, checksum_order, thresholds) VALUES (?, ?, ?, ?)`,
		id, archive, checksumOrder, string(encoded),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}
	return &Run{ID: id, store: s, thresholds: thresholds}, nil
}

// WriteMonitor implements output.Sink
func (r *Run) WriteMonitor(m output.MonitorReading) error {
	_, err := r.store.db.Exec(
		`INSERT INTO monitor_readings (run_id, channel, time, temp) VALUES (?, ?, ?, ?)`,
		r.ID, m.Channel, m.Time, m.Temp,
	)
	if err != nil {
		return fmt.Errorf("failed to store monitor reading: %w", err)
	}
	return nil
}

// WriteHitRate implements output.Sink
func (r *Run) WriteHitRate(h output.HitRateRecord) error {
	if len(h.Results) != len(r.thresholds) {
		return fmt.Errorf("hit rate record has %d results, run has %d thresholds", len(h.Results), len(r.thresholds))
	}

	tx, err := r.store.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i, rate := range h.Results {
		_, err := tx.Exec(
			`INSERT INTO hit_rates (run_id, channel, time, threshold_index, threshold_mip, rate) VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, h.Channel, h.Time, i, r.thresholds[i], rate,
		)
		if err != nil {
			return fmt.Errorf("failed to store hit rate: %w", err)
		}
	}
	return tx.Commit()
}

// Finish records the member and failure totals of the run
func (r *Run) Finish(members, failures int) error {
	_, err := r.store.db.Exec(
		`UPDATE runs SET finished_at = CURRENT_TIMESTAMP, members = ?, failures = ? WHERE run_id = ?`,
		members, failures, r.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	return nil
}

// MonitorReadings returns the monitor readings of a run in insertion order
func (s *Store) MonitorReadings(runID string) ([]output.MonitorReading, error) {
	rows, err := s.db.Query(
		`SELECT channel, time, temp FROM monitor_readings WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query monitor readings: %w", err)
	}
	defer rows.Close()

	var readings []output.MonitorReading
	for rows.Next() {
		var m output.MonitorReading
		if err := rows.Scan(&m.Channel, &m.Time, &m.Temp); err != nil {
			return nil, err
		}
		readings = append(readings, m)
	}
	return readings, rows.Err()
}

// HitRates returns the hit rate records of a run in insertion order
func (s *Store) HitRates(runID string) ([]output.HitRateRecord, error) {
	rows, err := s.db.Query(
		`SELECT channel, time, threshold_index, rate FROM hit_rates WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query hit rates: %w", err)
	}
	defer rows.Close()

	var records []output.HitRateRecord
	for rows.Next() {
		var channel, index int
		var t, rate float64
		if err := rows.Scan(&channel, &t, &index, &rate); err != nil {
			return nil, err
		}
		if index == 0 {
			records = append(records, output.HitRateRecord{Channel: channel, Time: t})
		}
		if len(records) == 0 {
			return nil, fmt.Errorf("hit rate rows of run %s do not start at threshold 0", runID)
		}
		last := &records[len(records)-1]
		last.Results = append(last.Results, rate)
	}
	return records, rows.Err()
}

// RunInfo is the summary row of a run
type RunInfo struct {
	ID            string
	Archive       string
	ChecksumOrder string
	Members       int
	Failures      int
	Finished      bool
}

// GetRun returns the summary row of a run
func (s *Store) GetRun(runID string) (RunInfo, error) {
	var info RunInfo
	var finished sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, archive, checksum_order, members, failures, finished_at FROM runs WHERE run_id = ?`, runID,
	).Scan(&info.ID, &info.Archive, &info.ChecksumOrder, &info.Members, &info.Failures, &finished)
	if err != nil {
		return RunInfo{}, fmt.Errorf("failed to load run %s: %w", runID, err)
	}
	info.Finished = finished.Valid
	return info, nil
}
