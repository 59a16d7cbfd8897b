// Package drafts keeps the local collection of inspection responses.
//
// The whole collection lives as one JSON array under a single key. Every
// write replaces the full array; there is no per-record update.
package drafts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/chmdznr/fieldsync/internal/db"
	"github.com/chmdznr/fieldsync/pkg/models"
	"go.uber.org/zap"
)

// ResponsesKey is the storage key holding the serialized collection.
const ResponsesKey = "form_responses"

var (
	// ErrDuplicateID is returned when a write would store two records with the same id.
	ErrDuplicateID = errors.New("duplicate record id")
	// ErrCorrupt is returned when the stored collection cannot be read back.
	ErrCorrupt = errors.New("stored collection is unreadable")
)

// KV is the local key/value storage the collection is persisted in.
// Get returns db.ErrNotFound for a key that holds no value.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Put(ctx context.Context, key, value string) error
}

// Store is the local draft store. All methods are safe for concurrent use;
// read-modify-write sequences are serialized by Update.
type Store struct {
	kv     KV
	key    string
	logger *zap.Logger
	mu     sync.Mutex
}

// NewStore creates a store persisting under ResponsesKey.
func NewStore(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{kv: kv, key: ResponsesKey, logger: logger}
}

// LoadAll returns every stored record. It never fails: a missing,
// unreadable or malformed value yields an empty collection.
func (s *Store) LoadAll(ctx context.Context) []models.ResponseRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSoft(ctx)
}

// SaveAll replaces the stored collection with records.
func (s *Store) SaveAll(ctx context.Context, records []models.ResponseRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, records)
}

// Update runs fn against the current collection while holding the store
// lock and persists its result when fn reports a change. A collection that
// could not be read is handed to fn as empty but is never overwritten.
func (s *Store) Update(ctx context.Context, fn func([]models.ResponseRecord) ([]models.ResponseRecord, bool, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, loadErr := s.load(ctx)
	if loadErr != nil {
		s.logger.Warn("treating stored responses as empty", zap.String("key", s.key), zap.Error(loadErr))
		records = []models.ResponseRecord{}
	}

	updated, changed, err := fn(records)
	if err != nil || !changed {
		return err
	}
	if loadErr != nil {
		return fmt.Errorf("refusing to overwrite %q: %w", s.key, loadErr)
	}
	return s.save(ctx, updated)
}

// Append adds a new record to the collection.
func (s *Store) Append(ctx context.Context, record models.ResponseRecord) error {
	return s.Update(ctx, func(records []models.ResponseRecord) ([]models.ResponseRecord, bool, error) {
		for _, r := range records {
			if r.ID == record.ID {
				return nil, false, fmt.Errorf("%w: %s", ErrDuplicateID, record.ID)
			}
		}
		return append(records, record), true, nil
	})
}

func (s *Store) loadSoft(ctx context.Context) []models.ResponseRecord {
	records, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("treating stored responses as empty", zap.String("key", s.key), zap.Error(err))
		return []models.ResponseRecord{}
	}
	return records
}

func (s *Store) load(ctx context.Context) ([]models.ResponseRecord, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, db.ErrNotFound) {
		return []models.ResponseRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if raw == "" || raw == "null" {
		return []models.ResponseRecord{}, nil
	}

	var records []models.ResponseRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if records == nil {
		records = []models.ResponseRecord{}
	}
	return records, nil
}

// CheckUniqueIDs returns ErrDuplicateID for the first id that appears twice.
func CheckUniqueIDs(records []models.ResponseRecord) error {
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateID, r.ID)
		}
		seen[r.ID] = struct{}{}
	}
	return nil
}

func (s *Store) save(ctx context.Context, records []models.ResponseRecord) error {
	if err := CheckUniqueIDs(records); err != nil {
		return err
	}
	if records == nil {
		records = []models.ResponseRecord{}
	}

	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode responses: %w", err)
	}
	if err := s.kv.Put(ctx, s.key, string(data)); err != nil {
		return fmt.Errorf("failed to save responses: %w", err)
	}
	s.logger.Debug("saved responses", zap.Int("records", len(records)))
	return nil
}
