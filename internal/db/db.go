// Package db records bridge sessions, transmitted actuator frames, and
// firmware telemetry in a local sqlite database.
package db

import (
	"compress/gzip"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/canflyzhou/Stewart-Platform/internal/kinematics"
	"github.com/canflyzhou/Stewart-Platform/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the bridge database at path and applies
// any pending migrations.
func NewDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	db := &DB{sqlDB}
	if err := db.migrateUp(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return db, nil
}

// migrateUp applies all pending migrations from the embedded migration
// files. Returns nil when the schema is already current.
func (db *DB) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("prepare migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	// Note: we don't close m because it would close the underlying DB
	// connection.

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// StartSession records the beginning of a bridge session.
func (db *DB) StartSession(sessionID string) error {
	_, err := db.Exec(`INSERT INTO sessions (session_id) VALUES (?)`, sessionID)
	return err
}

// EndSession stamps the session's end time.
func (db *DB) EndSession(sessionID string) error {
	_, err := db.Exec(
		`UPDATE sessions SET ended_at = CURRENT_TIMESTAMP WHERE session_id = ?`,
		sessionID)
	return err
}

// RecordTransmission stores one transmitted command frame with the actuator
// lengths it carried (pre-truncation).
func (db *DB) RecordTransmission(sessionID, frame string, lengths [kinematics.NumActuators]float64) error {
	_, err := db.Exec(`
		INSERT INTO transmissions (session_id, frame, len_0, len_1, len_2, len_3, len_4, len_5)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sessionID, frame,
		lengths[0], lengths[1], lengths[2], lengths[3], lengths[4], lengths[5])
	return err
}

// RecordTimeout stores a write-timeout event against the session.
func (db *DB) RecordTimeout(sessionID string) error {
	return db.recordLinkEvent(sessionID, "write_timeout", "")
}

// RecordTelemetry stores one telemetry line received from the firmware.
func (db *DB) RecordTelemetry(sessionID, kind, payload string) error {
	return db.recordLinkEvent(sessionID, kind, payload)
}

func (db *DB) recordLinkEvent(sessionID, kind, payload string) error {
	_, err := db.Exec(`
		INSERT INTO link_events (session_id, kind, payload)
		VALUES (?, ?, ?)`,
		sessionID, kind, payload)
	return err
}

// Transmission is one recorded command frame.
type Transmission struct {
	ID        int64                            `json:"id"`
	SessionID string                           `json:"session_id"`
	Frame     string                           `json:"frame"`
	Lengths   [kinematics.NumActuators]float64 `json:"lengths"`
	CreatedAt string                           `json:"created_at"`
}

// RecentTransmissions returns up to limit transmissions, newest first.
func (db *DB) RecentTransmissions(limit int) ([]Transmission, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(`
		SELECT transmission_id, session_id, frame,
		       len_0, len_1, len_2, len_3, len_4, len_5, created_at
		FROM transmissions
		ORDER BY transmission_id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []Transmission
	for rows.Next() {
		var tx Transmission
		if err := rows.Scan(
			&tx.ID, &tx.SessionID, &tx.Frame,
			&tx.Lengths[0], &tx.Lengths[1], &tx.Lengths[2],
			&tx.Lengths[3], &tx.Lengths[4], &tx.Lengths[5],
			&tx.CreatedAt,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

// Stats summarises the database contents for the stats endpoint.
type Stats struct {
	Sessions      int64 `json:"sessions"`
	Transmissions int64 `json:"transmissions"`
	Timeouts      int64 `json:"timeouts"`
	LinkEvents    int64 `json:"link_events"`
}

// GetStats returns row counts across the bridge tables.
func (db *DB) GetStats() (Stats, error) {
	var s Stats
	if err := db.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&s.Sessions); err != nil {
		return s, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM transmissions`).Scan(&s.Transmissions); err != nil {
		return s, err
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM link_events`).Scan(&s.LinkEvents); err != nil {
		return s, err
	}
	err := db.QueryRow(
		`SELECT COUNT(*) FROM link_events WHERE kind = 'write_timeout'`).Scan(&s.Timeouts)
	return s, err
}

// AttachAdminRoutes attaches admin debugging endpoints to the given HTTP mux
// served at /debug/. These routes are accessible only over localhost/via
// Tailscale and are not publicly accessible.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.Handle("db-stats", "Bridge database row counts", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetStats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to collect stats: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			monitoring.Logf("db: failed to encode stats: %v", err)
		}
	}))

	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unixTime := time.Now().Unix()
		backupPath := fmt.Sprintf("backup-%d.db", unixTime)
		if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
			http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", backupPath))
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Header().Set("Content-Encoding", "gzip")

		backupFile, err := os.Open(backupPath)
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
			return
		}

		// close the backup file after sending it
		// and remove it from the filesystem
		defer func() {
			backupFile.Close()
			if err := os.Remove(backupPath); err != nil {
				monitoring.Logf("db: failed to remove backup file: %v", err)
			}
		}()

		gzipWriter := gzip.NewWriter(w)
		defer gzipWriter.Close()

		if _, err := io.Copy(gzipWriter, backupFile); err != nil {
			http.Error(w, fmt.Sprintf("Failed to write backup file: %v", err), http.StatusInternalServerError)
			return
		}
	}))
}
