// Package watcher watches a state file and feeds its contents into a
// container whenever it changes.
package watcher

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/observables/internal/log"
	"github.com/zjrosen/observables/internal/observable"
	"github.com/zjrosen/observables/internal/statefile"
)

// Watcher signals changes to one file, coalescing bursts of writes.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	path      string
	debounce  time.Duration
	onChange  chan struct{}
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	Path        string
	DebounceDur time.Duration
}

// DefaultConfig returns sensible defaults for the watcher.
func DefaultConfig(path string) Config {
	return Config{
		Path:        path,
		DebounceDur: 250 * time.Millisecond,
	}
}

// New creates a new file watcher.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		path:      filepath.Clean(cfg.Path),
		debounce:  cfg.DebounceDur,
		onChange:  make(chan struct{}, 1),
		done:      make(chan struct{}),
	}, nil
}

// Start begins watching. The returned channel receives a signal after each
// debounced burst of changes.
func (w *Watcher) Start() (<-chan struct{}, error) {
	// Watch the directory: editors often replace files via rename, which
	// drops a watch placed on the file itself.
	dir := filepath.Dir(w.path)
	if err := w.fsWatcher.Add(dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", dir, err)
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) loop() {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !w.isRelevantEvent(event) {
				continue
			}

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			timerC = timer.C

		case <-timerC:
			timerC = nil
			select {
			case w.onChange <- struct{}{}:
			default:
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "fsnotify error", err, "path", w.path)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) isRelevantEvent(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(event.Name) == w.path
}

// Target is the part of a container the feeder reads and writes.
type Target interface {
	Value() observable.Value
	Next(ctx context.Context, u observable.Update) error
	Overwrite(ctx context.Context, u observable.Update) error
}

// FeedOptions controls how file contents are applied.
type FeedOptions struct {
	// Overwrite replaces the value instead of merging into it.
	Overwrite bool

	// OnError is called for read, parse and validation failures. The feed
	// keeps running; nil just logs.
	OnError func(error)

	// OnApplied is called with the file contents after each reload that
	// changed the container.
	OnApplied func(observable.Value)
}

// Feed applies the file once, then again after every change signal from
// w, until ctx is cancelled or the watcher stops. Start must not have been
// called on w; Feed calls it.
//
// Only keys whose values differ from the container are passed to Next, so
// subscribers are notified for keys that actually changed. Keys deleted
// from the file since the previous load are removed with Overwrite, which
// notifies every subscriber.
func Feed(ctx context.Context, w *Watcher, target Target, opts FeedOptions) error {
	changes, err := w.Start()
	if err != nil {
		return err
	}

	var last observable.Value
	apply := func() {
		v, applied, err := applyFile(ctx, w.path, target, opts.Overwrite, last)
		if err != nil {
			log.ErrorErr(log.CatWatcher, "reload failed", err, "path", w.path)
			if opts.OnError != nil {
				opts.OnError(err)
			}
			return
		}
		last = v
		if !applied {
			log.Debug(log.CatWatcher, "reload unchanged", "path", w.path)
			return
		}
		log.Debug(log.CatWatcher, "reloaded", "path", w.path, "overwrite", opts.Overwrite)
		if opts.OnApplied != nil {
			opts.OnApplied(v)
		}
	}

	apply()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.done:
			return nil
		case <-changes:
			apply()
		}
	}
}

// applyFile loads path and applies the part that differs from target's
// current value. last is the previously applied file content. It reports
// whether target was updated.
func applyFile(ctx context.Context, path string, target Target, overwrite bool, last observable.Value) (observable.Value, bool, error) {
	v, err := statefile.Load(path)
	if err != nil {
		return nil, false, err
	}
	current := target.Value()

	if overwrite {
		if reflect.DeepEqual(current, v) {
			return v, false, nil
		}
		if err := target.Overwrite(ctx, observable.Replace(v)); err != nil {
			return nil, false, err
		}
		return v, true, nil
	}

	changed := observable.Value{}
	for k, val := range v {
		if old, ok := current[k]; !ok || !reflect.DeepEqual(old, val) {
			changed[k] = val
		}
	}
	var removed []string
	for k := range last {
		_, inFile := v[k]
		_, inContainer := current[k]
		if !inFile && inContainer {
			removed = append(removed, k)
		}
	}

	switch {
	case len(removed) > 0:
		err = target.Overwrite(ctx, observable.Compute(func(prev observable.Value) any {
			next := prev.Clone()
			for _, k := range removed {
				delete(next, k)
			}
			for k, val := range v {
				next[k] = val
			}
			return next
		}))
	case len(changed) > 0:
		err = target.Next(ctx, observable.Replace(changed))
	default:
		return v, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}
