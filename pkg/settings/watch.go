/*
 * Copyright (c) 2026, WSO2 LLC. (https://www.wso2.com).
 *
 * WSO2 LLC. licenses this file to you under the Apache License,
 * Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.
 * You may obtain a copy of the License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing,
 * software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY
 * KIND, either express or implied.  See the License for the
 * specific language governing permissions and limitations
 * under the License.
 */

package settings

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// UserFileWatcher watches a Manager's UserFile class root so that an
// external edit to a human-editable settings file (e.g. settings.json
// edited by hand, or by another process) is observed without polling.
// It does not itself invalidate any Stream's cached digest: every
// Stream re-reads the file at Set time regardless, so the watcher's
// job is purely to let a long-lived caller (a daemon, an interactive
// shell) react to the change, e.g. by reloading a UserSettingsLoader.
type UserFileWatcher struct {
	fsw    *fsnotify.Watcher
	root   string
	logger *slog.Logger

	mu        sync.Mutex
	callbacks map[string][]func()
}

// NewUserFileWatcher creates a watcher over manager's UserFile root,
// creating the directory first if it does not yet exist.
func NewUserFileWatcher(manager *Manager, logger *slog.Logger) (*UserFileWatcher, error) {
	root := manager.Root(UserFile)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, err
	}

	return &UserFileWatcher{
		fsw:       fsw,
		root:      root,
		logger:    logger,
		callbacks: make(map[string][]func()),
	}, nil
}

// OnChange registers cb to run whenever name (relative to the UserFile
// root, e.g. "settings.json") is created, written, or renamed.
func (w *UserFileWatcher) OnChange(name string, cb func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks[name] = append(w.callbacks[name], cb)
}

// Run processes filesystem events until ctx is done or Close is
// called. It is meant to run in its own goroutine.
func (w *UserFileWatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("user settings watcher error", slog.Any("error", err))
			}
		}
	}
}

func (w *UserFileWatcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}

	name := filepath.Base(event.Name)
	w.mu.Lock()
	callbacks := append([]func(){}, w.callbacks[name]...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Close stops the underlying filesystem watch.
func (w *UserFileWatcher) Close() error {
	return w.fsw.Close()
}
