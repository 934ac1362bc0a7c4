package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/parse"
)

// activeUpload tracks one upload from start until its result expires.
type activeUpload struct {
	ID       string
	Kind     dataset.Kind
	FileName string
	Cancel   context.CancelFunc

	mu        sync.Mutex
	progress  UploadProgress
	lastPct   int
	result    *UploadResult
	done      chan struct{}
	listeners []chan UploadProgress
}

func newActiveUpload(kind dataset.Kind, fileName string, size int64, cancel context.CancelFunc) *activeUpload {
	id := uuid.New().String()
	return &activeUpload{
		ID:       id,
		Kind:     kind,
		FileName: fileName,
		Cancel:   cancel,
		progress: UploadProgress{
			UploadID:   id,
			Kind:       kind,
			Phase:      PhaseStarting,
			FileName:   fileName,
			BytesTotal: size,
		},
		done: make(chan struct{}),
	}
}

// StartUpload replaces the dataset of kind in the background and returns
// the upload ID at once. The file type is checked before anything else so
// an unsupported file never occupies an upload slot.
//
// Returns ErrTooManyUploads if no slot frees up within the wait time.
func (s *Service) StartUpload(ctx context.Context, kind dataset.Kind, fileName string, data []byte) (string, error) {
	sl, err := s.slot(kind)
	if err != nil {
		return "", err
	}
	format, err := parse.FormatForFile(fileName)
	if err != nil {
		return "", err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return "", err
	}

	// The upload outlives the request but keeps its values for logging.
	uploadCtx, seq, cancel := sl.begin(context.WithoutCancel(ctx), s.opts.UploadTimeout)
	up := newActiveUpload(kind, fileName, int64(len(data)), cancel)
	s.register(up)

	go func() {
		defer s.limiter.Release()
		defer func() {
			if r := recover(); r != nil {
				slog.Error("panic in upload", "upload_id", up.ID, "kind", kind, "panic", r)
				sl.end(seq)
				cancel()
				err := fmt.Errorf("internal error: %v", r)
				up.finish(&UploadResult{
					UploadID: up.ID,
					Kind:     kind,
					FileName: fileName,
					Phase:    PhaseFailed,
					Error:    FormatUserError(err),
					Err:      err,
				})
				s.cleanup(up.ID, s.opts.ResultTTL)
			}
		}()
		s.run(uploadCtx, sl, seq, up, bytes.NewReader(data), format)
	}()

	return up.ID, nil
}

// Upload replaces the dataset of kind and waits for the outcome. The
// returned error is the result's error, if any.
func (s *Service) Upload(ctx context.Context, kind dataset.Kind, fileName string, r io.Reader, size int64) (*UploadResult, error) {
	sl, err := s.slot(kind)
	if err != nil {
		return nil, err
	}
	format, err := parse.FormatForFile(fileName)
	if err != nil {
		return nil, err
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	uploadCtx, seq, cancel := sl.begin(ctx, s.opts.UploadTimeout)
	up := newActiveUpload(kind, fileName, size, cancel)
	s.register(up)

	res := s.run(uploadCtx, sl, seq, up, r, format)
	return res, res.Err
}

func (s *Service) register(up *activeUpload) {
	s.mu.Lock()
	s.uploads[up.ID] = up
	s.mu.Unlock()
}

// run parses, saves and publishes one upload. It always finishes up.
func (s *Service) run(ctx context.Context, sl *slot, seq uint64, up *activeUpload, r io.Reader, format parse.Format) *UploadResult {
	defer up.Cancel()
	defer sl.end(seq)

	start := time.Now()
	log := slog.With(append(clientAttrs(ctx), "upload_id", up.ID, "kind", sl.kind, "file", up.FileName)...)
	log.Info("upload started", "bytes", up.snapshot().BytesTotal)

	up.setPhase(PhaseReading)
	cr := parse.NewCountingReader(r, up.snapshot().BytesTotal)
	cr.OnRead = up.reportBytes

	ds, err := parse.Parse(ctx, cr, format, s.opts.Parse)
	if err == nil {
		up.setPhase(PhaseSaving)
		err = s.commit(ctx, sl, seq, ds, up)
	}

	res := &UploadResult{
		UploadID: up.ID,
		Kind:     sl.kind,
		FileName: up.FileName,
		Duration: time.Since(start),
	}
	if err != nil {
		res.Phase = failurePhase(sl, seq, err)
		if res.Phase == PhaseSuperseded && !errors.Is(err, ErrSuperseded) {
			err = fmt.Errorf("%w: %w", ErrSuperseded, err)
		}
		res.Err = err
		res.Error = FormatUserError(err)
		log.Warn("upload did not commit", "phase", res.Phase, "error", err, "duration", res.Duration)
	} else {
		res.Phase = PhaseComplete
		res.Rows = len(ds.Rows)
		res.Columns = len(ds.Headers)
		res.SavedAt = ds.SavedAt
		log.Info("upload complete", "rows", res.Rows, "columns", res.Columns, "duration", res.Duration)
	}

	s.auditUpload(ctx, res)
	up.finish(res)
	s.cleanup(up.ID, s.opts.ResultTTL)
	return res
}

// commit persists ds and then publishes it. Nothing is published when the
// save fails, so memory and storage never disagree.
func (s *Service) commit(ctx context.Context, sl *slot, seq uint64, ds *dataset.Dataset, up *activeUpload) error {
	sl.commitMu.Lock()
	defer sl.commitMu.Unlock()

	if !sl.latest(seq) {
		return ErrSuperseded
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Once started, a save runs to completion even if a newer upload
	// cancels ctx; the newer one commits after us under commitMu.
	if err := s.store.Save(context.WithoutCancel(ctx), sl.kind, ds); err != nil {
		return err
	}

	up.setPhase(PhaseIndexing)
	sl.current.Store(newDatasetContext(sl.kind, ds))
	return nil
}

func failurePhase(sl *slot, seq uint64, err error) UploadPhase {
	switch {
	case errors.Is(err, ErrSuperseded), !sl.latest(seq):
		return PhaseSuperseded
	case errors.Is(err, context.Canceled):
		return PhaseCancelled
	default:
		return PhaseFailed
	}
}

// SubscribeProgress returns a channel that receives progress updates.
// The channel is closed when the upload finishes. A slow reader only
// ever misses intermediate updates, never the final one.
func (s *Service) SubscribeProgress(uploadID string) (<-chan UploadProgress, error) {
	up, err := s.lookup(uploadID)
	if err != nil {
		return nil, err
	}
	return up.subscribe(), nil
}

// CancelUpload cancels an in-progress upload.
func (s *Service) CancelUpload(uploadID string) error {
	up, err := s.lookup(uploadID)
	if err != nil {
		return err
	}
	up.Cancel()
	return nil
}

// GetUploadResult returns the result of an upload, waiting for it to
// finish or for ctx to end.
func (s *Service) GetUploadResult(ctx context.Context, uploadID string) (*UploadResult, error) {
	up, err := s.lookup(uploadID)
	if err != nil {
		return nil, err
	}
	select {
	case <-up.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	up.mu.Lock()
	defer up.mu.Unlock()
	return up.result, nil
}

// GetUploadProgress returns the current progress without blocking.
func (s *Service) GetUploadProgress(uploadID string) (UploadProgress, error) {
	up, err := s.lookup(uploadID)
	if err != nil {
		return UploadProgress{}, err
	}
	return up.snapshot(), nil
}

// ActiveUploads lists uploads that have not finished, oldest ID first.
func (s *Service) ActiveUploads() []UploadProgress {
	s.mu.RLock()
	out := make([]UploadProgress, 0, len(s.uploads))
	for _, up := range s.uploads {
		if p := up.snapshot(); !p.Phase.Terminal() {
			out = append(out, p)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].UploadID < out[j].UploadID })
	return out
}

func (s *Service) lookup(uploadID string) (*activeUpload, error) {
	s.mu.RLock()
	up, ok := s.uploads[uploadID]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUploadNotFound, uploadID)
	}
	return up, nil
}

func (s *Service) cleanup(uploadID string, delay time.Duration) {
	time.AfterFunc(delay, func() {
		s.mu.Lock()
		delete(s.uploads, uploadID)
		s.mu.Unlock()
	})
}

func (u *activeUpload) snapshot() UploadProgress {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.progress
}

func (u *activeUpload) setPhase(p UploadPhase) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.result != nil {
		return
	}
	u.progress.Phase = p
	u.notifyLocked()
}

// reportBytes is the CountingReader hook. Listeners hear about it only
// when the whole percentage changes.
func (u *activeUpload) reportBytes(read, total int64) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.progress.BytesRead = read
	u.progress.BytesTotal = total
	pct := u.progress.Percent()
	if pct == u.lastPct {
		return
	}
	u.lastPct = pct
	u.notifyLocked()
}

func (u *activeUpload) subscribe() <-chan UploadProgress {
	ch := make(chan UploadProgress, 10)
	u.mu.Lock()
	defer u.mu.Unlock()

	ch <- u.progress
	if u.result != nil {
		close(ch)
		return ch
	}
	u.listeners = append(u.listeners, ch)
	return ch
}

// finish records res, sends the final progress and closes every listener.
// Only the first call has any effect.
func (u *activeUpload) finish(res *UploadResult) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.result != nil {
		return
	}
	u.result = res
	u.progress.Phase = res.Phase
	u.progress.Rows = res.Rows
	u.progress.Error = res.Error
	u.notifyLocked()
	for _, ch := range u.listeners {
		close(ch)
	}
	u.listeners = nil
	close(u.done)
}

// notifyLocked delivers the current progress to every listener, dropping
// the oldest queued update when a buffer is full.
func (u *activeUpload) notifyLocked() {
	p := u.progress
	for _, ch := range u.listeners {
		select {
		case ch <- p:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- p:
		default:
		}
	}
}
