package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/facet"
	"github.com/JonMunkholm/tabview/internal/parse"
	"github.com/JonMunkholm/tabview/internal/store"
)

var (
	ErrUploadNotFound = errors.New("upload not found")
	ErrSuperseded     = errors.New("superseded by a newer upload")
)

// Options configures a Service. Zero fields take the defaults below.
type Options struct {
	Parse         parse.Options
	MaxConcurrent int
	MaxWait       time.Duration
	UploadTimeout time.Duration
	// ResultTTL is how long a finished upload stays queryable by ID.
	ResultTTL time.Duration
	// AuditCapacity bounds the in-memory audit log.
	AuditCapacity int
}

const (
	DefaultUploadTimeout = 5 * time.Minute
	DefaultResultTTL     = 5 * time.Minute
)

// Service owns the two dataset contexts and runs uploads against them.
type Service struct {
	store   DatasetStore
	opts    Options
	limiter *UploadLimiter
	audit   *AuditLog
	slots   map[dataset.Kind]*slot

	mu      sync.RWMutex
	uploads map[string]*activeUpload
}

// slot tracks one kind. current is swapped atomically so readers never
// lock; commitMu orders every writer (uploads, clear, filter changes).
type slot struct {
	kind     dataset.Kind
	current  atomic.Pointer[DatasetContext]
	seq      atomic.Uint64
	commitMu sync.Mutex

	inflightMu     sync.Mutex
	inflightSeq    uint64
	cancelInflight context.CancelFunc
}

// NewService creates a Service with both kinds empty. Call Boot to load
// what the store holds.
func NewService(st DatasetStore, opts Options) *Service {
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = DefaultUploadTimeout
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = DefaultResultTTL
	}
	if opts.Parse.SheetName == "" && opts.Parse.SheetMarker == "" {
		opts.Parse = parse.DefaultOptions()
	}

	s := &Service{
		store:   st,
		opts:    opts,
		limiter: NewUploadLimiter(opts.MaxConcurrent, opts.MaxWait),
		audit:   NewAuditLog(opts.AuditCapacity),
		slots:   make(map[dataset.Kind]*slot, len(dataset.Kinds)),
		uploads: make(map[string]*activeUpload),
	}
	for _, k := range dataset.Kinds {
		sl := &slot{kind: k}
		sl.current.Store(newDatasetContext(k, nil))
		s.slots[k] = sl
	}
	return s
}

// Boot loads the stored dataset of every kind. A missing or corrupt
// record leaves that kind empty; only backend failures are returned.
func (s *Service) Boot(ctx context.Context) error {
	for _, k := range dataset.Kinds {
		ds, err := s.store.Load(ctx, k)
		switch {
		case errors.Is(err, store.ErrCorruptRecord):
			slog.Warn("stored dataset unreadable, starting empty", "kind", k, "error", err)
			continue
		case errors.Is(err, store.ErrAbsent):
			slog.Info("no stored dataset", "kind", k)
			continue
		case err != nil:
			return fmt.Errorf("boot %s: %w", k, err)
		}

		sl := s.slots[k]
		sl.commitMu.Lock()
		sl.current.Store(newDatasetContext(k, ds))
		sl.commitMu.Unlock()
		slog.Info("restored dataset", "kind", k, "rows", len(ds.Rows), "saved_at", ds.SavedAt)
	}
	return nil
}

func (s *Service) slot(kind dataset.Kind) (*slot, error) {
	sl, ok := s.slots[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %q", dataset.ErrUnknownKind, kind)
	}
	return sl, nil
}

// Context returns the current context of kind. The value is shared and
// must not be modified.
func (s *Service) Context(kind dataset.Kind) (*DatasetContext, error) {
	sl, err := s.slot(kind)
	if err != nil {
		return nil, err
	}
	return sl.current.Load(), nil
}

// Status summarizes every kind in display order.
func (s *Service) Status() []DatasetStatus {
	out := make([]DatasetStatus, 0, len(dataset.Kinds))
	for _, k := range dataset.Kinds {
		out = append(out, s.slots[k].current.Load().Status())
	}
	return out
}

// Clear empties the stored slot and the in-memory context of kind. Any
// upload for kind still in flight is cancelled and will not commit.
func (s *Service) Clear(ctx context.Context, kind dataset.Kind) error {
	sl, err := s.slot(kind)
	if err != nil {
		return err
	}
	sl.supersede()

	sl.commitMu.Lock()
	defer sl.commitMu.Unlock()

	if err := s.store.Clear(ctx, kind); err != nil {
		return err
	}
	sl.current.Store(newDatasetContext(kind, nil))
	s.audit.Record(ctx, AuditEntry{Action: ActionDatasetClear, Kind: kind})
	slog.Info("dataset cleared", append(clientAttrs(ctx), "kind", kind)...)
	return nil
}

// SetSearch replaces the search term of kind.
func (s *Service) SetSearch(kind dataset.Kind, term string) (*DatasetContext, error) {
	return s.update(kind, func(c *DatasetContext) (*DatasetContext, error) {
		return c.withSearch(term), nil
	})
}

// ToggleFacet checks or unchecks one facet value of kind.
func (s *Service) ToggleFacet(kind dataset.Kind, column, value string, on bool) (*DatasetContext, error) {
	return s.update(kind, func(c *DatasetContext) (*DatasetContext, error) {
		sel, err := c.Selection.Toggle(c.Facets, column, value, on)
		if err != nil {
			return nil, err
		}
		return c.withSelection(sel), nil
	})
}

// SetFilters replaces the whole selection of kind. Pairs the facets do not
// offer are rejected.
func (s *Service) SetFilters(kind dataset.Kind, pairs map[string][]string) (*DatasetContext, error) {
	return s.update(kind, func(c *DatasetContext) (*DatasetContext, error) {
		sel, err := facet.FromPairs(c.Facets, pairs, true)
		if err != nil {
			return nil, err
		}
		return c.withSelection(sel), nil
	})
}

// ResetFilters unchecks every facet value of kind. The search term stays.
func (s *Service) ResetFilters(kind dataset.Kind) (*DatasetContext, error) {
	return s.update(kind, func(c *DatasetContext) (*DatasetContext, error) {
		return c.withSelection(c.Selection.Reset()), nil
	})
}

func (s *Service) update(kind dataset.Kind, fn func(*DatasetContext) (*DatasetContext, error)) (*DatasetContext, error) {
	sl, err := s.slot(kind)
	if err != nil {
		return nil, err
	}
	sl.commitMu.Lock()
	defer sl.commitMu.Unlock()

	next, err := fn(sl.current.Load())
	if err != nil {
		return nil, err
	}
	sl.current.Store(next)
	return next, nil
}

// LimiterStatus reports upload slot usage.
func (s *Service) LimiterStatus() UploadLimiterStatus {
	return s.limiter.Status()
}

// WaitForUploads blocks until no upload is running or ctx ends.
func (s *Service) WaitForUploads(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

// begin starts a new upload generation for the slot, cancelling the
// previous in-flight one.
func (sl *slot) begin(parent context.Context, timeout time.Duration) (context.Context, uint64, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	seq := sl.seq.Add(1)

	sl.inflightMu.Lock()
	if sl.cancelInflight != nil {
		sl.cancelInflight()
	}
	sl.inflightSeq = seq
	sl.cancelInflight = cancel
	sl.inflightMu.Unlock()

	return ctx, seq, cancel
}

// end forgets the cancel func of seq if it is still the in-flight one.
func (sl *slot) end(seq uint64) {
	sl.inflightMu.Lock()
	if sl.inflightSeq == seq {
		sl.cancelInflight = nil
	}
	sl.inflightMu.Unlock()
}

// supersede invalidates whatever upload is in flight.
func (sl *slot) supersede() {
	sl.seq.Add(1)
	sl.inflightMu.Lock()
	if sl.cancelInflight != nil {
		sl.cancelInflight()
		sl.cancelInflight = nil
	}
	sl.inflightMu.Unlock()
}

func (sl *slot) latest(seq uint64) bool {
	return sl.seq.Load() == seq
}
