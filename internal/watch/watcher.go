// Package watch imports files dropped into a folder tree:
//
//	<dir>/main/     files replace the main dataset
//	<dir>/history/  files replace the history dataset
//
// A .csv or .xlsx file is imported once writes to it have settled, then
// moved into an Uploaded/ subfolder. A file that fails to import stays
// where it is so it can be fixed and dropped again.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/JonMunkholm/tabview/internal/core"
	"github.com/JonMunkholm/tabview/internal/dataset"
	"github.com/JonMunkholm/tabview/internal/parse"
)

// UploadedDir is the subfolder imported files are moved into.
const UploadedDir = "Uploaded"

// DefaultDebounce is used when New gets a non-positive debounce.
const DefaultDebounce = 750 * time.Millisecond

// Uploader replaces a dataset from a reader. *core.Service satisfies it.
type Uploader interface {
	Upload(ctx context.Context, kind dataset.Kind, fileName string, r io.Reader, size int64) (*core.UploadResult, error)
}

// Watcher watches one kind folder per dataset kind.
type Watcher struct {
	dir      string
	debounce time.Duration
	uploader Uploader
	notify   *fsnotify.Watcher

	// OnResult, when set, is called after every import attempt.
	OnResult func(path string, res *core.UploadResult, err error)

	mu     sync.Mutex
	timers map[string]*time.Timer
	ready  chan string
	done   chan struct{}
}

// New creates the kind folders under dir and starts watching them.
func New(dir string, debounce time.Duration, up Uploader) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	w := &Watcher{
		dir:      dir,
		debounce: debounce,
		uploader: up,
		notify:   fsw,
		timers:   make(map[string]*time.Timer),
		ready:    make(chan string),
		done:     make(chan struct{}),
	}
	for _, k := range dataset.Kinds {
		kindDir := w.KindDir(k)
		if err := os.MkdirAll(filepath.Join(kindDir, UploadedDir), 0o755); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("create %s: %w", kindDir, err)
		}
		if err := fsw.Add(kindDir); err != nil {
			fsw.Close()
			return nil, fmt.Errorf("watch %s: %w", kindDir, err)
		}
	}
	return w, nil
}

// KindDir is the folder watched for kind.
func (w *Watcher) KindDir(kind dataset.Kind) string {
	return filepath.Join(w.dir, kind.String())
}

// Run imports files already waiting, then new ones until ctx ends. Imports run one at a time on the calling goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.shutdown()

	slog.Info("watching drop folder", "dir", w.dir, "debounce", w.debounce)
	w.scan()

	for {
		select {
		case <-ctx.Done():
			return nil

		case path := <-w.ready:
			w.mu.Lock()
			delete(w.timers, path)
			w.mu.Unlock()
			w.importFile(ctx, path)

		case event, ok := <-w.notify.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 || !importable(event.Name) {
				continue
			}
			w.schedule(event.Name)

		case err, ok := <-w.notify.Errors:
			if !ok {
				return nil
			}
			slog.Warn("drop folder watch error", "error", err)
		}
	}
}

// scan queues every importable file present at startup.
func (w *Watcher) scan() {
	for _, k := range dataset.Kinds {
		entries, err := os.ReadDir(w.KindDir(k))
		if err != nil {
			slog.Warn("drop folder scan failed", "kind", k, "error", err)
			continue
		}
		for _, e := range entries {
			path := filepath.Join(w.KindDir(k), e.Name())
			if e.Type().IsRegular() && importable(path) {
				w.schedule(path)
			}
		}
	}
}

// schedule (re)starts the debounce timer of path.
func (w *Watcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() {
		select {
		case w.ready <- path:
		case <-w.done:
		}
	})
}

func (w *Watcher) shutdown() {
	close(w.done)
	w.mu.Lock()
	for _, t := range w.timers {
		t.Stop()
	}
	w.timers = nil
	w.mu.Unlock()
	w.notify.Close()
}

func (w *Watcher) importFile(ctx context.Context, path string) {
	kind, err := dataset.ParseKind(filepath.Base(filepath.Dir(path)))
	if err != nil {
		return
	}
	log := slog.With("kind", kind, "file", path)

	res, err := w.upload(ctx, kind, path)
	if errors.Is(err, fs.ErrNotExist) {
		// Moved or deleted while debouncing.
		return
	}
	if err == nil {
		var dest string
		dest, err = moveToUploaded(path)
		if err != nil {
			log.Error("imported file could not be moved", "error", err)
		} else {
			log.Info("drop folder import complete", "rows", res.Rows, "moved_to", dest)
		}
	} else {
		log.Warn("drop folder import failed", "error", err, "reason", core.FormatUserError(err))
	}

	if w.OnResult != nil {
		w.OnResult(path, res, err)
	}
}

func (w *Watcher) upload(ctx context.Context, kind dataset.Kind, path string) (*core.UploadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	ctx = core.ContextWithUserAgent(ctx, "drop-folder")
	return w.uploader.Upload(ctx, kind, filepath.Base(path), f, info.Size())
}

// moveToUploaded moves path into the Uploaded folder next to it. An
// existing file of the same name is kept and the new one gets a time
// suffix.
func moveToUploaded(path string) (string, error) {
	dir := filepath.Join(filepath.Dir(path), UploadedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	name := filepath.Base(path)
	dest := filepath.Join(dir, name)
	if _, err := os.Stat(dest); err == nil {
		ext := filepath.Ext(name)
		stem := strings.TrimSuffix(name, ext)
		dest = filepath.Join(dir, fmt.Sprintf("%s-%s%s", stem, time.Now().Format("20060102T150405.000"), ext))
	}
	return dest, os.Rename(path, dest)
}

// importable skips editor temp files and anything the parser rejects.
func importable(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "~$") {
		return false
	}
	_, err := parse.FormatForFile(base)
	return err == nil
}
