// Package journal keeps a SQLite history of file transfers and robot
// positions seen on the link.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/muurk/farmlink/internal/logging"
	"github.com/muurk/farmlink/internal/protocol"
	"github.com/muurk/farmlink/internal/stream"
	"github.com/muurk/farmlink/internal/telemetry"
)

// Transfer statuses
const (
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// TransferRecord is one row of the transfers table
type TransferRecord struct {
	ID         int64
	ReceivedAt time.Time
	Status     string
	FileName   string
	Kind       string
	Size       int
	Chunks     int
	ChecksumOK bool
	Error      string
}

// PositionRecord is one row of the positions table
type PositionRecord struct {
	ID         int64
	ObservedAt time.Time
	X          float64
	Y          float64
}

// Journal records stream events. It implements stream.Handler for
// completed and failed transfers and position updates.
type Journal struct {
	stream.NopHandler

	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the journal database at path
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("journal: ensure dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("journal: schema: %w", err)
	}

	logging.Debug("Journal opened", zap.String("path", path))
	return &Journal{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS transfers (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    received_at INTEGER NOT NULL,
    status TEXT NOT NULL,
    file_name TEXT,
    kind TEXT,
    size INTEGER,
    chunks INTEGER,
    checksum_ok INTEGER,
    error TEXT
);
CREATE TABLE IF NOT EXISTS positions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    observed_at INTEGER NOT NULL,
    x REAL NOT NULL,
    y REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_positions_observed ON positions(observed_at);`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// TransferComplete records a successful transfer
func (j *Journal) TransferComplete(t *protocol.CompletedTransfer) {
	received := t.ReceivedAt
	if received.IsZero() {
		received = j.now()
	}
	_, err := j.db.Exec(`
INSERT INTO transfers (received_at, status, file_name, kind, size, chunks, checksum_ok, error)
VALUES (?, ?, ?, ?, ?, ?, ?, '')`,
		received.UTC().UnixMilli(),
		StatusComplete,
		t.FileName,
		t.Kind(),
		len(t.Raw),
		t.Chunks,
		boolToInt(t.ChecksumOK),
	)
	if err != nil {
		logging.Error("Failed to journal transfer", zap.Error(err))
	}
}

// TransferFailed records an aborted transfer
func (j *Journal) TransferFailed(cause error) {
	_, err := j.db.Exec(`
INSERT INTO transfers (received_at, status, file_name, kind, size, chunks, checksum_ok, error)
VALUES (?, ?, '', '', 0, 0, 0, ?)`,
		j.now().UTC().UnixMilli(),
		StatusFailed,
		cause.Error(),
	)
	if err != nil {
		logging.Error("Failed to journal transfer failure", zap.Error(err))
	}
}

// PositionUpdate records a robot position
func (j *Journal) PositionUpdate(ev telemetry.Event) {
	_, err := j.db.Exec(`INSERT INTO positions (observed_at, x, y) VALUES (?, ?, ?)`,
		j.now().UTC().UnixMilli(), ev.X, ev.Y)
	if err != nil {
		logging.Error("Failed to journal position", zap.Error(err))
	}
}

// RecentTransfers returns up to limit transfers, newest first
func (j *Journal) RecentTransfers(limit int) ([]TransferRecord, error) {
	rows, err := j.db.Query(`
SELECT id, received_at, status, file_name, kind, size, chunks, checksum_ok, error
FROM transfers ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query transfers: %w", err)
	}
	defer rows.Close()

	var out []TransferRecord
	for rows.Next() {
		var (
			r          TransferRecord
			receivedAt int64
			checksumOK int
		)
		if err := rows.Scan(&r.ID, &receivedAt, &r.Status, &r.FileName, &r.Kind,
			&r.Size, &r.Chunks, &checksumOK, &r.Error); err != nil {
			return nil, fmt.Errorf("journal: scan transfer: %w", err)
		}
		r.ReceivedAt = time.UnixMilli(receivedAt)
		r.ChecksumOK = checksumOK != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecentPositions returns up to limit positions, newest first
func (j *Journal) RecentPositions(limit int) ([]PositionRecord, error) {
	rows, err := j.db.Query(`
SELECT id, observed_at, x, y FROM positions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("journal: query positions: %w", err)
	}
	defer rows.Close()

	var out []PositionRecord
	for rows.Next() {
		var (
			r          PositionRecord
			observedAt int64
		)
		if err := rows.Scan(&r.ID, &observedAt, &r.X, &r.Y); err != nil {
			return nil, fmt.Errorf("journal: scan position: %w", err)
		}
		r.ObservedAt = time.UnixMilli(observedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
