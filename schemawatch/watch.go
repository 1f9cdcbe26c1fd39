// Package schemawatch reloads a schema file when it changes on disk and
// hands the fresh document to a callback.
package schemawatch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/reoring/schemaform/schema"
)

// DefaultDebounce coalesces the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

type options struct {
	debounce time.Duration
	log      *zap.Logger
}

// Option configures Watch.
type Option func(*options)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.debounce = d
		}
	}
}

// WithLogger sets the logger; the default discards.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

// Watch blocks until ctx is done, calling onChange with the reloaded schema
// after each settled write, create or rename of path. The parent directory is
// watched so that editors replacing the file atomically are seen. Files that
// fail to load are logged and skipped; the previous schema stays in effect.
func Watch(ctx context.Context, path string, onChange func(schema.Node), opts ...Option) error {
	o := options{debounce: DefaultDebounce, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("watch schema: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch schema: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch schema %s: %w", path, err)
	}
	log := o.log.With(zap.String("schema", abs))
	log.Debug("watching schema")

	timer := time.NewTimer(o.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(o.debounce)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Warn("watcher error", zap.Error(err))
		case <-timer.C:
			n, err := schema.LoadFile(abs)
			if err != nil {
				log.Warn("schema reload failed", zap.Error(err))
				continue
			}
			log.Info("schema reloaded")
			onChange(n)
		}
	}
}
