package config

import (
	"bytes"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"bgservice/internal/logger"
)

// settleDelay is how long a file must stay quiet before it is reloaded.
// Editors typically produce several events per save.
const settleDelay = 100 * time.Millisecond

// FileWatcher calls onChange once a watched file has settled after changes.
type FileWatcher struct {
	path     string
	fsw      *fsnotify.Watcher
	onChange func()
	settle   time.Duration

	mu      sync.Mutex
	running bool
	quit    chan struct{}
	done    chan struct{}
}

// NewFileWatcher creates a watcher for path. It does nothing until Start.
func NewFileWatcher(path string, onChange func()) (*FileWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FileWatcher{
		path:     path,
		fsw:      fsw,
		onChange: onChange,
		settle:   settleDelay,
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start watches the file's directory, so a file replaced by rename is still
// picked up.
func (fw *FileWatcher) Start() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.running {
		return nil
	}
	if err := fw.fsw.Add(filepath.Dir(fw.path)); err != nil {
		return err
	}
	fw.running = true
	go fw.loop()

	log := logger.WithComponent("config-watcher")
	log.Info().Str("path", fw.path).Msg("Watching configuration file")
	return nil
}

// Stop ends the watch. It waits for an in-flight onChange to return.
func (fw *FileWatcher) Stop() error {
	fw.mu.Lock()
	wasRunning := fw.running
	fw.running = false
	fw.mu.Unlock()

	if wasRunning {
		close(fw.quit)
		<-fw.done
	}
	return fw.fsw.Close()
}

// IsRunning reports whether the watcher is active.
func (fw *FileWatcher) IsRunning() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return fw.running
}

func (fw *FileWatcher) relevant(ev fsnotify.Event) bool {
	if filepath.Base(ev.Name) != filepath.Base(fw.path) {
		return false
	}
	return ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename)
}

func (fw *FileWatcher) loop() {
	defer close(fw.done)
	log := logger.WithComponent("config-watcher")

	settled := time.NewTimer(time.Hour)
	settled.Stop()
	defer settled.Stop()

	for {
		select {
		case <-fw.quit:
			return
		case ev, ok := <-fw.fsw.Events:
			if !ok {
				return
			}
			if fw.relevant(ev) {
				log.Debug().Str("path", fw.path).Stringer("op", ev.Op).Msg("Configuration file event")
				settled.Reset(fw.settle)
			}
		case <-settled.C:
			if fw.onChange != nil {
				fw.onChange()
			}
		case err, ok := <-fw.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("path", fw.path).Msg("Watch error")
		}
	}
}

// reloader loads path on every settled change and hands the result to
// apply. Content identical to the last successful load is skipped, as are
// files that fail to load.
type reloader[T any] struct {
	path  string
	load  func([]byte) (T, error)
	apply func(T)

	last []byte
}

func (r *reloader[T]) reload() {
	log := logger.WithComponent("config-watcher")

	data, err := os.ReadFile(r.path)
	if err != nil {
		log.Error().Err(err).Str("path", r.path).Msg("Failed to read configuration file")
		return
	}
	if r.last != nil && bytes.Equal(data, r.last) {
		log.Debug().Str("path", r.path).Msg("Configuration content unchanged")
		return
	}

	v, err := r.load(data)
	if err != nil {
		log.Error().Err(err).Str("path", r.path).Msg("Ignoring invalid configuration file")
		return
	}
	r.last = data

	log.Info().Str("path", r.path).Msg("Configuration reloaded")
	if r.apply != nil {
		r.apply(v)
	}
}

func newReloadWatcher[T any](path string, load func([]byte) (T, error), apply func(T)) (*FileWatcher, error) {
	r := &reloader[T]{path: path, load: load, apply: apply}
	if data, err := os.ReadFile(path); err == nil {
		r.last = data
	}
	return NewFileWatcher(path, r.reload)
}

// NewServiceWatcher reloads Service.json on change. Invalid files are logged
// and skipped.
func NewServiceWatcher(path string, apply func(*Config)) (*FileWatcher, error) {
	return newReloadWatcher(path, Parse, apply)
}

// NewLoggingWatcher reloads Logging.json on change.
func NewLoggingWatcher(path string, apply func(*logger.Config)) (*FileWatcher, error) {
	return newReloadWatcher(path, ParseLogging, apply)
}
