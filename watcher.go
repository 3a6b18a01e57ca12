package plotforge

import (
	"context"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// ModuleWatcher watches module root directories and emits a
// moduledir.changed event on the engine bus for every filesystem change,
// so a caller can decide to re-discover. It is optional: the engine works
// without one. This is the only component that introduces a background
// goroutine; delivery still goes through the mutex-guarded bus.
type ModuleWatcher struct {
	watcher *fsnotify.Watcher
	bus     *EventBus
	logger  Logger
	done    chan struct{}
	started bool
}

// NewModuleWatcher creates a watcher emitting onto the given bus.
func NewModuleWatcher(bus *EventBus, logger Logger) (*ModuleWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating filesystem watcher: %w", err)
	}
	return &ModuleWatcher{
		watcher: fw,
		bus:     bus,
		logger:  logger,
		done:    make(chan struct{}),
	}, nil
}

// Watch adds module root directories to the watch set.
func (w *ModuleWatcher) Watch(dirs ...string) error {
	for _, dir := range dirs {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logger.Debug("Watching module directory", "dir", dir)
	}
	return nil
}

// Start begins delivering change events until the context is cancelled or
// Stop is called.
func (w *ModuleWatcher) Start(ctx context.Context) {
	w.started = true
	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				w.logger.Debug("Module directory changed", "path", event.Name, "op", event.Op.String())
				w.bus.Emit(ctx, EventTypeModuleDirChanged, map[string]any{
					"path": event.Name,
					"op":   event.Op.String(),
				}, "watcher")
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("Watcher error", "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop closes the watcher and waits for the delivery goroutine to exit.
func (w *ModuleWatcher) Stop() error {
	if err := w.watcher.Close(); err != nil {
		return fmt.Errorf("closing filesystem watcher: %w", err)
	}
	if w.started {
		<-w.done
	}
	return nil
}
