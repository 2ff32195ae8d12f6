package track

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long the watcher waits for lap writes to settle
const DefaultDebounce = 500 * time.Millisecond

// Watcher calls OnChange after lap files in a directory change. Bursts of
// events are collapsed into one call carrying the changed file names.
type Watcher struct {
	Dir      string
	Debounce time.Duration
	OnChange func(changed []string)
	logger   *zap.Logger
}

// NewWatcher creates a watcher for dir
func NewWatcher(dir string, onChange func(changed []string), logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{Dir: dir, Debounce: DefaultDebounce, OnChange: onChange, logger: logger}
}

// Run watches until ctx is done
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return fmt.Errorf("watching %s: %w", w.Dir, err)
	}
	w.logger.Info("watching lap directory", zap.String("dir", w.Dir))

	var (
		mu      sync.Mutex
		pending = make(map[string]struct{})
		timer   *time.Timer
	)
	fire := func() {
		mu.Lock()
		changed := make([]string, 0, len(pending))
		for name := range pending {
			changed = append(changed, name)
		}
		pending = make(map[string]struct{})
		mu.Unlock()
		if len(changed) == 0 || w.OnChange == nil {
			return
		}
		slices.Sort(changed)
		w.logger.Info("lap files changed", zap.Strings("files", changed))
		w.OnChange(changed)
	}
	defer func() {
		mu.Lock()
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isLapEvent(event) {
				continue
			}
			w.logger.Debug("change detected", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			mu.Lock()
			pending[filepath.Base(event.Name)] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.Debounce, fire)
			} else {
				timer.Reset(w.Debounce)
			}
			mu.Unlock()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

// isLapEvent keeps content changes to JSON files
func isLapEvent(event fsnotify.Event) bool {
	if !strings.EqualFold(filepath.Ext(event.Name), ".json") {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}
