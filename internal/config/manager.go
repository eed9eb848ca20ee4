package config

import (
	"log"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Manager holds the active configuration snapshot and swaps in a new
// one when the config file changes and validates. The swap is atomic:
// readers observe either the whole old or the whole new snapshot.
type Manager struct {
	path      string
	cur       atomic.Pointer[Snapshot]
	watcher   *fsnotify.Watcher
	ch        chan *Snapshot
	done      chan struct{}
	closeOnce sync.Once
}

// NewManager loads the initial configuration and starts watching its
// file. A startup load failure is fatal; reload failures later only
// keep the previous snapshot active.
func NewManager(path string) (*Manager, error) {
	snap, err := Load(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// Watch the directory: editors and atomic writers replace the file,
	// which drops a watch registered on the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &Manager{
		path:    path,
		watcher: watcher,
		ch:      make(chan *Snapshot, 1),
		done:    make(chan struct{}),
	}
	m.cur.Store(snap)
	go m.loop()
	return m, nil
}

// Current returns the latest validated snapshot. Non-blocking.
func (m *Manager) Current() *Snapshot { return m.cur.Load() }

// Watch notifies when a new valid configuration has been swapped in.
// The channel holds at most the newest snapshot; a slow consumer only
// ever misses intermediate ones.
func (m *Manager) Watch() <-chan *Snapshot { return m.ch }

func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.watcher.Close()
	})
	return err
}

func (m *Manager) loop() {
	abs, _ := filepath.Abs(m.path)
	for {
		select {
		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			evAbs, _ := filepath.Abs(ev.Name)
			if evAbs != abs {
				continue
			}
			m.reload()
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watch: %v", err)
		case <-m.done:
			return
		}
	}
}

func (m *Manager) reload() {
	snap, err := Load(m.path)
	if err != nil {
		// Previous snapshot stays active; the failure is reported once
		// and not retried until the file changes again.
		log.Printf("config: reload rejected: %v", err)
		return
	}
	m.cur.Store(snap)
	log.Printf("config: reloaded %s (%d patterns, %d log files)", m.path, len(snap.Patterns), len(snap.LogFiles))

	select {
	case m.ch <- snap:
	default:
		// Replace a stale pending notification with the newest snapshot.
		select {
		case <-m.ch:
		default:
		}
		m.ch <- snap
	}
}
