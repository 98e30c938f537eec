// Copyright (c) 2012-2016 The Revel Framework Authors, All rights reserved.
// Revel Framework source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/revel/devproxy/logger"
	"github.com/revel/devproxy/model"
	"github.com/revel/devproxy/utils"
)

// Watcher publishes the changes of files matching a PatternSet.
//
// fsnotify is not recursive, so every directory below the static part of
// each glob is added, and directories created later are added as they appear.
type Watcher struct {
	patterns  *PatternSet
	watcher   *fsnotify.Watcher
	events    chan model.ChangeEvent
	log       logger.MultiLogger
	closeOnce sync.Once
}

// NewWatcher creates a watcher for the globs relative to root.
func NewWatcher(root string, patterns []string) (*Watcher, error) {
	if !utils.DirExists(root) {
		return nil, utils.Wrapf(model.ErrNoWorkDir, "%s", root)
	}
	// Event names are reported under the path that was added, so watch the
	// resolved root to keep them comparable with it.
	if realRoot, err := filepath.EvalSymlinks(root); err == nil {
		root = realRoot
	}
	set, err := NewPatternSet(root, patterns)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		patterns: set,
		events:   make(chan model.ChangeEvent, 100),
		log:      utils.Logger.New("section", "watcher"),
	}, nil
}

// Events is closed once the watcher stops.
func (w *Watcher) Events() <-chan model.ChangeEvent {
	return w.events
}

// Listen registers the directories and starts publishing events until ctx
// is done or Close is called.
func (w *Watcher) Listen(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return utils.Wrapf(err, "create watcher")
	}
	w.watcher = watcher

	watched := 0
	for _, p := range w.patterns.Roots() {
		fi, err := os.Stat(p)
		if os.IsNotExist(err) {
			// Watch the closest existing parent; the root is added once created.
			parent := w.existingAncestor(p)
			if err = watcher.Add(parent); err != nil {
				w.log.Error("Watcher: Failed to watch", "path", parent, "error", err)
				continue
			}
			w.log.Debug("Watcher: Waiting for missing path", "path", p, "parent", parent)
			watched++
			continue
		}
		if err != nil {
			w.log.Warn("Watcher: Failed to stat watched path, skipping", "path", p, "error", err)
			continue
		}

		// If it is a file, watch that specific file.
		if !fi.IsDir() {
			if err = watcher.Add(p); err != nil {
				w.log.Error("Watcher: Failed to watch", "path", p, "error", err)
				continue
			}
			watched++
			continue
		}

		n, err := w.addTree(p, nil)
		if err != nil {
			_ = watcher.Close()
			return utils.Wrapf(err, "watch %s", p)
		}
		watched += n
	}
	w.log.Info("Watching", "root", w.patterns.Root(), "directories", watched)

	go w.notifyWhenUpdated(ctx)
	return nil
}

// Close stops the watcher. Events is closed shortly after.
func (w *Watcher) Close() (err error) {
	w.closeOnce.Do(func() {
		if w.watcher != nil {
			err = w.watcher.Close()
		}
	})
	return
}

// existingAncestor returns the closest parent of p that exists, at worst the
// pattern root.
func (w *Watcher) existingAncestor(p string) string {
	root := w.patterns.Root()
	for dir := filepath.Dir(p); ; dir = filepath.Dir(dir) {
		if utils.DirExists(dir) || dir == root || dir == filepath.Dir(dir) {
			return dir
		}
	}
}

// wanted reports whether a new directory lies on the way to, or below, one
// of the glob roots.
func (w *Watcher) wanted(dir string) bool {
	for _, root := range w.patterns.Roots() {
		if within(root, dir) || within(dir, root) {
			return true
		}
	}
	return false
}

// within reports whether child is parent or below it.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// addTree watches dir and every directory below it, skipping dot directories.
// Files found are passed to found when it is not nil.
func (w *Watcher) addTree(dir string, found func(path string)) (count int, err error) {
	err = utils.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			w.log.Warn("Watcher: Error walking path", "path", path, "error", err)
			return nil
		}
		if !info.IsDir() {
			if found != nil {
				found(path)
			}
			return nil
		}
		if path != dir && strings.HasPrefix(info.Name(), ".") {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			w.log.Error("Watcher: Failed to watch", "path", path, "error", err)
			return nil
		}
		count++
		return nil
	})
	return
}

// notifyWhenUpdated forwards fsnotify events until the watcher is closed.
func (w *Watcher) notifyWhenUpdated(ctx context.Context) {
	defer close(w.events)
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.handle(ctx, ev) {
				return
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher: fsnotify error", "error", err)
		}
	}
}

// handle publishes ev when relevant. It returns false once ctx is done.
func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) bool {
	// Ignore changes to dotfiles.
	if strings.HasPrefix(filepath.Base(ev.Name), ".") {
		return true
	}
	if ev.Op == fsnotify.Chmod {
		return true
	}

	kind := changeKind(ev.Op)
	if kind == model.Create {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if !w.wanted(ev.Name) {
				return true
			}
			// Files written before the directory was added produce no
			// events of their own.
			var files []string
			if _, err := w.addTree(ev.Name, func(path string) { files = append(files, path) }); err != nil {
				w.log.Warn("Watcher: Failed to watch new directory", "path", ev.Name, "error", err)
			}
			for _, f := range files {
				if !w.publish(ctx, f, model.Create) {
					return false
				}
			}
			return true
		}
	}
	return w.publish(ctx, ev.Name, kind)
}

func (w *Watcher) publish(ctx context.Context, name string, kind model.ChangeKind) bool {
	rel, ok := w.patterns.Rel(name)
	if !ok || !w.patterns.MatchRel(rel) {
		return true
	}
	w.log.Debug("Watcher: change", "path", rel, "kind", kind)
	select {
	case w.events <- model.ChangeEvent{Path: rel, Kind: kind}:
		return true
	case <-ctx.Done():
		return false
	}
}

func changeKind(op fsnotify.Op) model.ChangeKind {
	switch {
	case op&(fsnotify.Remove|fsnotify.Rename) != 0:
		return model.Delete
	case op&fsnotify.Create != 0:
		return model.Create
	}
	return model.Modify
}
