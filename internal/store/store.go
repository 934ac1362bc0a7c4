// Package store persists the latest dataset of each kind in a single
// key/value slot.
//
// A slot holds one JSON record:
//
//	{"timestamp": "<RFC 3339>", "headers": [...], "rows": [{...}, ...]}
//
// Saving overwrites the slot; there is no history. The byte layout is the
// same for every Backend so a slot can be moved between backends verbatim.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
)

var (
	// ErrNotFound is returned by a Backend for a key with no value.
	ErrNotFound = errors.New("key not found")

	// ErrAbsent means the slot holds no usable dataset.
	ErrAbsent = errors.New("no stored dataset")

	// ErrCorruptRecord marks a stored record that failed validation. Load
	// returns it wrapped together with ErrAbsent.
	ErrCorruptRecord = errors.New("corrupt persisted record")

	// ErrStorageFull means the write was rejected for lack of space.
	ErrStorageFull = errors.New("storage full")
)

// Backend is a byte-oriented key/value store.
type Backend interface {
	Put(ctx context.Context, key string, value []byte) error
	// Get returns ErrNotFound when the key has no value.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete is a no-op for a missing key.
	Delete(ctx context.Context, key string) error
	Close() error
}

// Keys names the slot of each kind.
type Keys struct {
	Main    string
	History string
}

// DefaultKeys are the slot names used since the first release.
var DefaultKeys = Keys{Main: "APP_HR_DATABASE_V1", History: "APP_HR_HISTORY_V1"}

func (k Keys) For(kind dataset.Kind) (string, error) {
	switch kind {
	case dataset.KindMain:
		return k.Main, nil
	case dataset.KindHistory:
		return k.History, nil
	}
	return "", fmt.Errorf("%w: %q", dataset.ErrUnknownKind, kind)
}

// DefaultQuota is the largest record Save accepts unless configured.
const DefaultQuota = 5 << 20

// Store saves and loads datasets through a Backend.
type Store struct {
	backend Backend
	keys    Keys
	quota   int64
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithKeys overrides the slot names.
func WithKeys(k Keys) Option { return func(s *Store) { s.keys = k } }

// WithQuota caps the encoded record size. Zero or less disables the cap.
func WithQuota(bytes int64) Option { return func(s *Store) { s.quota = bytes } }

// WithClock sets the time source used to stamp saves.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WithLogger sets the logger used to report corrupt records.
func WithLogger(l *slog.Logger) Option { return func(s *Store) { s.logger = l } }

// New wraps a backend.
func New(b Backend, opts ...Option) *Store {
	s := &Store{
		backend: b,
		keys:    DefaultKeys,
		quota:   DefaultQuota,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Save stamps ds.SavedAt and overwrites the slot for kind. On failure the
// slot and ds are left as they were.
func (s *Store) Save(ctx context.Context, kind dataset.Kind, ds *dataset.Dataset) error {
	key, err := s.keys.For(kind)
	if err != nil {
		return err
	}

	savedAt := s.now().UTC().Truncate(time.Millisecond)
	data, err := encodeRecord(ds, savedAt)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", kind, err)
	}
	if s.quota > 0 && int64(len(data)) > s.quota {
		return fmt.Errorf("%w: %s record is %d bytes, limit %d", ErrStorageFull, kind, len(data), s.quota)
	}

	if err := s.backend.Put(ctx, key, data); err != nil {
		return fmt.Errorf("save %s: %w", kind, err)
	}
	ds.SavedAt = savedAt
	return nil
}

// Load returns the stored dataset for kind, or an error matching ErrAbsent
// when there is none. A record that fails validation is logged and also
// reported as absent.
func (s *Store) Load(ctx context.Context, kind dataset.Kind) (*dataset.Dataset, error) {
	key, err := s.keys.For(kind)
	if err != nil {
		return nil, err
	}

	data, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrAbsent
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", kind, err)
	}

	ds, err := decodeRecord(data)
	if err != nil {
		s.logger.Warn("discarding corrupt stored dataset",
			"kind", kind,
			"key", key,
			"bytes", len(data),
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrAbsent, err)
	}
	return ds, nil
}

// Clear empties the slot for kind. Clearing an empty slot succeeds.
func (s *Store) Clear(ctx context.Context, kind dataset.Kind) error {
	key, err := s.keys.For(kind)
	if err != nil {
		return err
	}
	if err := s.backend.Delete(ctx, key); err != nil {
		return fmt.Errorf("clear %s: %w", kind, err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
