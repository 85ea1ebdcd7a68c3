package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the burst of events an editor save produces.
const reloadDebounce = 200 * time.Millisecond

// watchedFiles are the files in the config dir that trigger a reload.
var watchedFiles = map[string]bool{
	"config.toml": true,
	"complete.md": true,
	"instruct.md": true,
}

// configWatcher reloads the engine when config or prompt files change.
type configWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	reload  func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool // dir does not exist yet; its parent is watched
	done    chan struct{}
}

// watchConfig starts watching dir. When dir does not exist yet its parent
// is watched until dir is created.
func watchConfig(dir string, reload func()) (*configWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir = filepath.Clean(dir)
	cw := &configWatcher{watcher: w, dir: dir, reload: reload, done: make(chan struct{})}
	target := dir
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		cw.pending = true
		target = filepath.Dir(dir)
	}
	if err := w.Add(target); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", target, err)
	}
	go cw.loop()

	if cw.pending {
		slog.Info("config dir does not exist yet, waiting for it", "dir", dir)
	} else {
		slog.Info("watching config", "dir", dir)
	}
	return cw, nil
}

func (cw *configWatcher) loop() {
	defer close(cw.done)
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			cw.handle(event)
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

func (cw *configWatcher) handle(event fsnotify.Event) {
	if cw.pending {
		if filepath.Clean(event.Name) != cw.dir || !event.Has(fsnotify.Create) {
			return
		}
		// Files written before Add succeeds are picked up by the reload.
		if err := cw.watcher.Add(cw.dir); err != nil {
			slog.Warn("failed to watch created config dir", "dir", cw.dir, "error", err)
			return
		}
		cw.pending = false
		cw.watcher.Remove(filepath.Dir(cw.dir))
		slog.Info("watching config", "dir", cw.dir)
		cw.schedule()
		return
	}
	if filepath.Dir(event.Name) != cw.dir || !watchedFiles[filepath.Base(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	slog.Debug("config file changed", "file", event.Name, "op", event.Op.String())
	cw.schedule()
}

// schedule runs reload once events stop arriving for reloadDebounce.
func (cw *configWatcher) schedule() {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	if cw.timer == nil {
		cw.timer = time.AfterFunc(reloadDebounce, cw.reload)
		return
	}
	cw.timer.Reset(reloadDebounce)
}

// Close stops watching and waits for the event loop to exit.
func (cw *configWatcher) Close() error {
	err := cw.watcher.Close()
	<-cw.done
	cw.mu.Lock()
	if cw.timer != nil {
		cw.timer.Stop()
	}
	cw.mu.Unlock()
	return err
}
