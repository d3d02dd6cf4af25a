// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// reloadDebounce absorbs editor write bursts before a reload runs.
const reloadDebounce = 500 * time.Millisecond

// Loader reads the menu directory and serves immutable snapshots.
// Reloads swap the whole snapshot only after every node parses, so a
// partially rewritten file is never observed.
type Loader struct {
	dir      string
	snapshot atomic.Pointer[map[string]Node]

	watcher   *fsnotify.Watcher
	stopCh    chan struct{}
	closeOnce sync.Once

	mu      sync.Mutex
	pending *time.Timer
}

// NewLoader parses the directory once. A directory that fails to load is
// a startup error, not a degraded state.
func NewLoader(dir string) (*Loader, error) {
	l := &Loader{dir: dir, stopCh: make(chan struct{})}
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload parses every *.json node and swaps the snapshot on success.
func (l *Loader) Reload() error {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return errors.NewInternalError("failed to read menu directory "+l.dir, err)
	}

	nodes := make(map[string]Node)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			return errors.NewInternalError("failed to read menu file "+entry.Name(), err)
		}
		node, err := ParseNode(data)
		if err != nil {
			return fmt.Errorf("menu %s: %w", entry.Name(), err)
		}
		name := strings.TrimSuffix(entry.Name(), ".json")
		if node.Name == "" {
			node.Name = name
		}
		nodes[name] = node
	}
	if len(nodes) == 0 {
		return errors.NewValidationError("no menu nodes found in "+l.dir, nil)
	}

	l.snapshot.Store(&nodes)
	logger.Infof("Loaded %d menu nodes from %s", len(nodes), l.dir)
	return nil
}

// Node returns the named node from the current snapshot.
func (l *Loader) Node(name string) (Node, bool) {
	snap := l.snapshot.Load()
	if snap == nil {
		return Node{}, false
	}
	node, ok := (*snap)[name]
	return node, ok
}

// Names returns the loaded node names, for startup diagnostics.
func (l *Loader) Names() []string {
	snap := l.snapshot.Load()
	if snap == nil {
		return nil
	}
	names := make([]string, 0, len(*snap))
	for name := range *snap {
		names = append(names, name)
	}
	return names
}

// Watch starts watching the menu directory for changes. Reload failures
// keep the previous snapshot.
func (l *Loader) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.NewInternalError("failed to create menu watcher", err)
	}
	if err := w.Add(l.dir); err != nil {
		_ = w.Close()
		return errors.NewInternalError("failed to watch menu directory "+l.dir, err)
	}
	l.watcher = w
	go l.run()
	logger.Infof("Watching %s for menu changes", l.dir)
	return nil
}

func (l *Loader) run() {
	for {
		select {
		case <-l.stopCh:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			l.handleEvent(event)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("Menu watcher error: %v", err)
		}
	}
}

func (l *Loader) handleEvent(event fsnotify.Event) {
	if !strings.HasSuffix(event.Name, ".json") {
		return
	}
	relevant := event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
	if !relevant {
		return
	}
	logger.Debugf("Menu file changed: %s (%s)", event.Name, event.Op)
	l.scheduleReload()
}

func (l *Loader) scheduleReload() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pending != nil {
		l.pending.Stop()
	}
	l.pending = time.AfterFunc(reloadDebounce, func() {
		if err := l.Reload(); err != nil {
			logger.Errorf("Menu reload failed, keeping previous configuration: %v", err)
		}
	})
}

// Close stops the watcher. Safe to call without Watch.
func (l *Loader) Close() error {
	var err error
	l.closeOnce.Do(func() {
		close(l.stopCh)
		l.mu.Lock()
		if l.pending != nil {
			l.pending.Stop()
		}
		l.mu.Unlock()
		if l.watcher != nil {
			err = l.watcher.Close()
		}
	})
	return err
}
