// Package prefs persists each user's chosen language.
package prefs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/aviabot/core/logger"
)

// Store reads and writes one language code per user. Get returns "" for unknown users.
type Store interface {
	Get(ctx context.Context, userID int64) (string, error)
	Set(ctx context.Context, userID int64, language string) error
}

// SQLStore keeps preferences in the user_languages table.
type SQLStore struct {
	db *sqlx.DB
}

// NewSQLStore wraps an open connection; the schema comes from migrations.
func NewSQLStore(db *sqlx.DB) *SQLStore {
	return &SQLStore{db: db}
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, userID int64) (string, error) {
	var lang string
	err := s.db.GetContext(ctx, &lang, s.db.Rebind(`SELECT language FROM user_languages WHERE user_id = ?`), userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("prefs get: %w", err)
	}
	return lang, nil
}

// Set implements Store.
func (s *SQLStore) Set(ctx context.Context, userID int64, language string) error {
	q := s.db.Rebind(`INSERT INTO user_languages (user_id, language, updated_at)
VALUES (?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (user_id) DO UPDATE SET language = excluded.language, updated_at = CURRENT_TIMESTAMP`)
	if _, err := s.db.ExecContext(ctx, q, userID, language); err != nil {
		return fmt.Errorf("prefs set: %w", err)
	}
	logger.Debug(ctx, logger.CompPrefs, "prefs.saved",
		slog.Int64("user_id", userID),
		slog.String("lang", language),
	)
	return nil
}

// MemoryStore is a process-local Store used when no database is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[int64]string
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[int64]string)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, userID int64) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[userID], nil
}

// Set implements Store.
func (m *MemoryStore) Set(_ context.Context, userID int64, language string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = language
	return nil
}
