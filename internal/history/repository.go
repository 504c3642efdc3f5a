// Package history keeps a SQLite log of install attempts.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"zortoshub/internal/logger"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// Repository provides database operations for install history
type Repository struct {
	db *sql.DB
}

// NewRepository opens (creating if needed) the database at dbPath
func NewRepository(dbPath string) (*Repository, error) {
	logger.Debug("[DEBUG] Opening history database %s\n", dbPath)

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Repository{db: db}, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// Record inserts e and sets its ID. A zero InstalledAt is stamped with now.
func (r *Repository) Record(ctx context.Context, e *Entry) error {
	if e.InstalledAt.IsZero() {
		e.InstalledAt = time.Now().UTC()
	}

	query := `
		INSERT INTO installs (app_id, app_name, url, file_path, mount_path, bytes, digest, status, error_message, installed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	result, err := r.db.ExecContext(ctx, query,
		e.AppID, e.AppName, e.URL, e.FilePath, e.MountPath, e.Bytes, e.Digest,
		e.Status, e.ErrorMessage, e.InstalledAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to insert install: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id

	logger.Debug("[DEBUG] Recorded install #%d of %s (%s)\n", e.ID, e.AppID, e.Status)
	return nil
}

// List returns the most recent entries first. limit <= 0 returns everything.
func (r *Repository) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, app_id, app_name, url, file_path, mount_path, bytes, digest, status, error_message, installed_at
		FROM installs ORDER BY installed_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query installs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var filePath, mountPath, digest, errorMessage sql.NullString
		var installedAt string
		if err := rows.Scan(&e.ID, &e.AppID, &e.AppName, &e.URL, &filePath, &mountPath,
			&e.Bytes, &digest, &e.Status, &errorMessage, &installedAt); err != nil {
			return nil, fmt.Errorf("failed to scan install: %w", err)
		}
		e.FilePath = filePath.String
		e.MountPath = mountPath.String
		e.Digest = digest.String
		e.ErrorMessage = errorMessage.String
		if e.InstalledAt, err = time.Parse(timeLayout, installedAt); err != nil {
			return nil, fmt.Errorf("bad timestamp on install #%d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// LastSuccess returns the newest non-failed entry for appID, or nil.
func (r *Repository) LastSuccess(ctx context.Context, appID string) (*Entry, error) {
	var e Entry
	var installedAt string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, app_id, status, installed_at FROM installs
		WHERE app_id = ? AND status != ?
		ORDER BY installed_at DESC, id DESC LIMIT 1
	`, appID, StatusFailed).Scan(&e.ID, &e.AppID, &e.Status, &installedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query install of %s: %w", appID, err)
	}
	if e.InstalledAt, err = time.Parse(timeLayout, installedAt); err != nil {
		return nil, fmt.Errorf("bad timestamp on install #%d: %w", e.ID, err)
	}
	return &e, nil
}
