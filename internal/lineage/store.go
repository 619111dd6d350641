package lineage

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// ErrNotLoaded is returned by lookups before the first successful refresh.
var ErrNotLoaded = errors.New("lineage batch not loaded")

// Store holds the current lineage batch. The view only changes when Refresh
// is called explicitly.
type Store struct {
	mu       sync.RWMutex
	source   Source
	batch    *Batch
	index    map[string]int
	loadedAt time.Time
	logger   *slog.Logger
}

// NewStore creates a store reading from source.
func NewStore(source Source, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{source: source, logger: logger}
}

// Refresh reloads the batch from the source. On failure the previous batch
// is kept.
func (s *Store) Refresh(ctx context.Context) error {
	rc, err := s.source.Open(ctx)
	if err != nil {
		return err
	}
	defer rc.Close()

	batch, err := Load(rc)
	if err != nil {
		return err
	}

	index := make(map[string]int, len(batch.Records))
	for i, rec := range batch.Records {
		index[rec.BookID] = i
	}

	s.mu.Lock()
	s.batch = batch
	s.index = index
	s.loadedAt = time.Now().UTC()
	s.mu.Unlock()

	s.logger.Info("lineage batch loaded", "source", s.source.String(), "records", len(batch.Records))
	return nil
}

// Loaded reports whether a batch is available.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.batch != nil
}

// LoadedAt returns when the current batch was loaded.
func (s *Store) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Source returns the configured source.
func (s *Store) Source() Source {
	return s.source
}

// Records returns a copy of all records in batch order.
func (s *Store) Records() ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil, ErrNotLoaded
	}
	out := make([]Record, len(s.batch.Records))
	copy(out, s.batch.Records)
	return out, nil
}

// Get returns the record with exactly this book ID.
func (s *Store) Get(bookID string) (Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return Record{}, false, ErrNotLoaded
	}
	i, ok := s.index[bookID]
	if !ok {
		return Record{}, false, nil
	}
	return s.batch.Records[i], true, nil
}

// ForBook returns every record for a base book ID, including re-runs stored
// under suffixed identifiers (base_<suffix>). Results are sorted by ID.
func (s *Store) ForBook(base string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.batch == nil {
		return nil, ErrNotLoaded
	}
	var out []Record
	for _, rec := range s.batch.Records {
		if rec.BookID == base || strings.HasPrefix(rec.BookID, base+"_") {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookID < out[j].BookID })
	return out, nil
}
