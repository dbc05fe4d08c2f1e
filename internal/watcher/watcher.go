// Package watcher reports plugin descriptors that appear or change in the
// configured plugin directories, with debouncing.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/funproject/fun/internal/log"
)

// Watcher monitors plugin directories for descriptor files.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	roots     []string
	names     map[string]bool
	debounce  time.Duration
	onChange  chan string
	done      chan struct{}
}

// Config holds watcher configuration options.
type Config struct {
	// Roots are the directories to watch. Sub-directories are watched too.
	Roots []string
	// FileNames are the descriptor base names to report.
	FileNames   []string
	DebounceDur time.Duration
}

// DefaultConfig watches roots for plugin.yaml and plugin.yml.
func DefaultConfig(roots ...string) Config {
	return Config{
		Roots:       roots,
		FileNames:   []string{"plugin.yaml", "plugin.yml"},
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a watcher. Call Start to begin receiving paths.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	names := make(map[string]bool, len(cfg.FileNames))
	for _, n := range cfg.FileNames {
		names[n] = true
	}

	return &Watcher{
		fsWatcher: fsw,
		roots:     cfg.Roots,
		names:     names,
		debounce:  cfg.DebounceDur,
		onChange:  make(chan string, 16),
		done:      make(chan struct{}),
	}, nil
}

// Start watches every root and its sub-directories. The returned channel
// receives the path of each descriptor that was created or written, once per
// burst of events.
func (w *Watcher) Start() (<-chan string, error) {
	for _, root := range w.roots {
		if err := w.addTree(root); err != nil {
			return nil, err
		}
	}

	go w.loop()

	return w.onChange, nil
}

// Stop terminates the watcher and releases resources.
func (w *Watcher) Stop() error {
	close(w.done)
	return w.fsWatcher.Close()
}

func (w *Watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if err := w.fsWatcher.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending = make(map[string]struct{})
	)

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			for _, path := range w.relevantPaths(event) {
				pending[path] = struct{}{}
			}
			if len(pending) == 0 {
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

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			if !w.flush(pending) {
				return
			}
			clear(pending)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "fsnotify error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// flush sends pending paths in sorted order. Returns false if the watcher
// was stopped while sending.
func (w *Watcher) flush(pending map[string]struct{}) bool {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		select {
		case w.onChange <- p:
		case <-w.done:
			return false
		}
	}
	return true
}

// relevantPaths returns descriptor paths affected by event. A newly created
// directory is watched and any descriptor already inside it is reported.
func (w *Watcher) relevantPaths(event fsnotify.Event) []string {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return nil
	}

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				log.ErrorErr(log.CatWatcher, "Failed to watch new directory", err, "dir", event.Name)
				return nil
			}
			var found []string
			_ = filepath.WalkDir(event.Name, func(path string, d fs.DirEntry, err error) error {
				if err == nil && !d.IsDir() && w.names[d.Name()] {
					found = append(found, path)
				}
				return nil
			})
			return found
		}
	}

	if w.names[filepath.Base(event.Name)] {
		return []string{event.Name}
	}
	return nil
}
