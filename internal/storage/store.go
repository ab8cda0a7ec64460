package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// CachedAnalysis is a persisted analysis result, keyed by image content hash.
type CachedAnalysis struct {
	Filename    string
	Title       string
	Description string
	Tags        []string
}

// Store defines the interface for the analysis cache.
type Store interface {
	GetAnalysis(imageHash string) (*CachedAnalysis, error)
	SetAnalysis(imageHash string, entry *CachedAnalysis) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore opens (or creates) the analysis cache database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	query := `
	CREATE TABLE IF NOT EXISTS analysis_cache (
		image_hash TEXT PRIMARY KEY,
		filename TEXT NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		tags TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create analysis_cache table: %w", err)
	}
	return nil
}

// GetAnalysis returns the cached analysis for an image hash.
// Returns nil, nil if there is no cached entry.
func (s *SQLiteStore) GetAnalysis(imageHash string) (*CachedAnalysis, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entry CachedAnalysis
	var tagsJSON string
	err := s.db.QueryRow(
		"SELECT filename, title, description, tags FROM analysis_cache WHERE image_hash = ?",
		imageHash,
	).Scan(&entry.Filename, &entry.Title, &entry.Description, &tagsJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis cache: %w", err)
	}

	if err := json.Unmarshal([]byte(tagsJSON), &entry.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached tags: %w", err)
	}
	return &entry, nil
}

// SetAnalysis stores (or replaces) the cached analysis for an image hash.
func (s *SQLiteStore) SetAnalysis(imageHash string, entry *CachedAnalysis) error {
	tagsJSON, err := json.Marshal(entry.Tags)
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO analysis_cache (image_hash, filename, title, description, tags, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		imageHash, entry.Filename, entry.Title, entry.Description, string(tagsJSON), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to write analysis cache: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
