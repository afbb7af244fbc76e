// Package pagewatch waits for host page conditions on a stream of change
// notifications.
package pagewatch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// ErrClosed is returned when the change stream ends before the condition holds.
var ErrClosed = errors.New("change stream closed")

// WaitFor returns once pred is true. pred is checked immediately and again
// after every notification on changes.
func WaitFor(ctx context.Context, changes <-chan struct{}, pred func() bool) error {
	if pred() {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return closedErr(ctx)
			}
			if pred() {
				return nil
			}
		}
	}
}

// OnURLChange calls fn once per URL the page moves to, on the first check
// that finds the page at that URL ready. current reports the URL and
// readiness; it is checked immediately and after every notification. A URL
// that is not ready yet stays pending until it is, so content that arrives
// after the navigation is still seen. It returns when ctx is done or changes
// is closed.
func OnURLChange(ctx context.Context, changes <-chan struct{}, current func() (string, bool), fn func(url string)) error {
	var (
		seen    string
		pending = true
	)
	check := func() {
		url, ready := current()
		if url != seen {
			seen = url
			pending = true
		}
		if pending && ready {
			pending = false
			fn(url)
		}
	}

	check()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-changes:
			if !ok {
				return closedErr(ctx)
			}
			check()
		}
	}
}

// closedErr prefers the context error, since FileChanges closes its stream
// when the context ends.
func closedErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrClosed
}

// FileChanges emits a notification whenever the file at path is written,
// created or replaced. The parent directory is watched so editors that save by
// rename are still seen. The channel is closed when ctx is done.
func FileChanges(ctx context.Context, path string) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	out := make(chan struct{}, 1)
	logger := log.Ctx(ctx).With().Str("path", abs).Logger()

	go func() {
		defer close(out)
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				// Coalesce bursts; one pending signal is enough.
				select {
				case out <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn().Err(err).Msg("Page watcher error")
			}
		}
	}()

	return out, nil
}
