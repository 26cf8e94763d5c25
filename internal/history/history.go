package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// History stores webhook deliveries in SQLite.
type History struct {
	db *sql.DB
}

// NewHistory opens (or creates) the database at dbPath.
func NewHistory(dbPath string) (*History, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite has a single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	h := &History{db: db}
	if err := h.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return h, nil
}

// Close closes the database connection
func (h *History) Close() error {
	return h.db.Close()
}

func (h *History) initSchema() error {
	_, err := h.db.Exec(`
		CREATE TABLE IF NOT EXISTS deliveries (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			delivery_id TEXT NOT NULL DEFAULT '',
			event TEXT NOT NULL DEFAULT '',
			ref TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			status_code INTEGER NOT NULL,
			signature_status TEXT NOT NULL DEFAULT '',
			received_at TEXT NOT NULL,
			duration_seconds REAL,
			commit_hash TEXT,
			error_message TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = h.db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_deliveries_action
		ON deliveries(action)
	`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// RecordDelivery inserts a delivery and returns its row ID. A zero
// ReceivedAt is replaced with the current time.
func (h *History) RecordDelivery(ctx context.Context, d *Delivery) (int64, error) {
	receivedAt := d.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	result, err := h.db.ExecContext(ctx, `
		INSERT INTO deliveries
		(delivery_id, event, ref, action, status_code, signature_status,
		 received_at, duration_seconds, commit_hash, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		d.DeliveryID,
		d.Event,
		d.Ref,
		d.Action,
		d.StatusCode,
		d.SignatureStatus,
		receivedAt.UTC().Format(time.RFC3339Nano),
		d.DurationSeconds,
		d.CommitHash,
		d.ErrorMessage,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert delivery: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID: %w", err)
	}

	return id, nil
}

// GetLatestDelivery returns the most recent delivery, or nil when the
// table is empty.
func (h *History) GetLatestDelivery(ctx context.Context) (*Delivery, error) {
	row := h.db.QueryRowContext(ctx, `
		SELECT id, delivery_id, event, ref, action, status_code, signature_status,
		       received_at, duration_seconds, commit_hash, error_message
		FROM deliveries
		ORDER BY id DESC
		LIMIT 1
	`)

	d, err := scanDelivery(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest delivery: %w", err)
	}

	return d, nil
}

// ListDeliveries returns up to limit deliveries, newest first. limit must
// be positive.
func (h *History) ListDeliveries(ctx context.Context, limit int) ([]Delivery, error) {
	if limit < 1 {
		return nil, fmt.Errorf("invalid limit %d: must be at least 1", limit)
	}

	rows, err := h.db.QueryContext(ctx, `
		SELECT id, delivery_id, event, ref, action, status_code, signature_status,
		       received_at, duration_seconds, commit_hash, error_message
		FROM deliveries
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query deliveries: %w", err)
	}
	defer rows.Close()

	deliveries := []Delivery{}
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan delivery: %w", err)
		}
		deliveries = append(deliveries, *d)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return deliveries, nil
}

// CountByAction returns the number of deliveries per action.
func (h *History) CountByAction(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT action, COUNT(*)
		FROM deliveries
		GROUP BY action
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count deliveries: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[action] = n
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return counts, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanDelivery(s scanner) (*Delivery, error) {
	var d Delivery
	var receivedAt string

	err := s.Scan(
		&d.ID,
		&d.DeliveryID,
		&d.Event,
		&d.Ref,
		&d.Action,
		&d.StatusCode,
		&d.SignatureStatus,
		&receivedAt,
		&d.DurationSeconds,
		&d.CommitHash,
		&d.ErrorMessage,
	)
	if err != nil {
		return nil, err
	}

	d.ReceivedAt, err = time.Parse(time.RFC3339Nano, receivedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse received_at timestamp: %w", err)
	}

	return &d, nil
}
