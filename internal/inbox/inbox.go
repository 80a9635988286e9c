// Package inbox watches a folder and sends every new photo or WAV clip
// dropped into it for prediction.
package inbox

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"deeptune/internal/capture"
	"deeptune/internal/logger"
	"deeptune/internal/screen"
)

// DefaultQuietPeriod is how long a file must go unmodified before it is sent.
const DefaultQuietPeriod = 500 * time.Millisecond

// Target receives files found in the inbox. *screen.Screen implements it.
type Target interface {
	PredictFromAudioFile(ctx context.Context, path string) error
	PredictFromImageWith(ctx context.Context, picker screen.ImagePicker) error
}

// Watcher sends files from one directory to a Target, one at a time.
type Watcher struct {
	dir         string
	target      Target
	logger      *logger.Logger
	QuietPeriod time.Duration
}

// New creates a watcher for dir.
func New(dir string, target Target, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.Discard()
	}
	return &Watcher{
		dir:         dir,
		target:      target,
		logger:      log,
		QuietPeriod: DefaultQuietPeriod,
	}
}

func isAudio(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// Run watches until ctx is cancelled. Prediction failures are already shown
// on the screen, so they are only logged here.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.dir, err)
	}
	w.logger.Info("Watching %s for photos and .wav clips", w.dir)

	ready := make(chan string, 16)
	var mu sync.Mutex
	pending := make(map[string]*time.Timer)
	defer func() {
		mu.Lock()
		for _, t := range pending {
			t.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			path := event.Name
			if !isAudio(path) && !capture.IsImage(path) {
				continue
			}

			mu.Lock()
			if t, ok := pending[path]; ok {
				t.Reset(w.QuietPeriod)
			} else {
				pending[path] = time.AfterFunc(w.QuietPeriod, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					select {
					case ready <- path:
					case <-ctx.Done():
					}
				})
			}
			mu.Unlock()

		case path := <-ready:
			w.handle(ctx, path)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error: %v", err)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, path string) {
	w.logger.Info("New file: %s", filepath.Base(path))

	var err error
	if isAudio(path) {
		err = w.target.PredictFromAudioFile(ctx, path)
	} else {
		err = w.target.PredictFromImageWith(ctx, capture.FixedPicker(path))
	}
	if err != nil {
		w.logger.Debug("prediction for %s failed: %v", path, err)
	}
}
