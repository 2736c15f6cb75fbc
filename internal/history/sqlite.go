package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hession/searchbridge/internal/websearch"
)

// SQLiteStore SQLite history storage implementation
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite storage
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}

	if err := store.initTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database tables: %w", err)
	}

	return store, nil
}

// initTables initializes database tables
func (s *SQLiteStore) initTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS searches (
			id TEXT PRIMARY KEY,
			query TEXT NOT NULL,
			engine TEXT NOT NULL,
			total_results INTEGER NOT NULL DEFAULT 0,
			search_time REAL NOT NULL DEFAULT 0,
			error TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_created_at ON searches(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_searches_engine ON searches(engine)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute SQL: %s, error: %w", query, err)
		}
	}

	return nil
}

// Record saves an executed search
func (s *SQLiteStore) Record(resp websearch.Response) (*Entry, error) {
	entry := &Entry{
		ID:           uuid.New().String(),
		Query:        resp.Query,
		Engine:       resp.Engine,
		TotalResults: resp.TotalResults,
		SearchTime:   resp.SearchTime,
		Error:        resp.Error,
		CreatedAt:    time.Now().UTC(),
	}

	var errText sql.NullString
	if entry.Error != "" {
		errText = sql.NullString{String: entry.Error, Valid: true}
	}

	_, err := s.db.Exec(
		`INSERT INTO searches (id, query, engine, total_results, search_time, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Query, entry.Engine, entry.TotalResults, entry.SearchTime, errText, entry.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record search: %w", err)
	}

	return entry, nil
}

// Get gets an entry by ID
func (s *SQLiteStore) Get(id string) (*Entry, error) {
	row := s.db.QueryRow(
		`SELECT id, query, engine, total_results, search_time, error, created_at
		 FROM searches WHERE id = ?`,
		id,
	)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get search: %w", err)
	}
	return entry, nil
}

// Recent gets the newest entries first
func (s *SQLiteStore) Recent(limit int) ([]*Entry, error) {
	rows, err := s.db.Query(
		`SELECT id, query, engine, total_results, search_time, error, created_at
		 FROM searches
		 ORDER BY created_at DESC, rowid DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Prune keeps only the newest keep entries
func (s *SQLiteStore) Prune(keep int) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM searches WHERE rowid NOT IN (
			SELECT rowid FROM searches ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`,
		keep,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to prune searches: %w", err)
	}
	return result.RowsAffected()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var entry Entry
	var errText sql.NullString
	if err := row.Scan(&entry.ID, &entry.Query, &entry.Engine, &entry.TotalResults,
		&entry.SearchTime, &errText, &entry.CreatedAt); err != nil {
		return nil, err
	}
	if errText.Valid {
		entry.Error = errText.String
	}
	return &entry, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
