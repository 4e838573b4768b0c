package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Provider hands out catalog snapshots. A snapshot is never mutated, so
// callers may keep one for the duration of a processing call.
type Provider interface {
	Catalog() *Catalog
}

// Static always returns the same catalog.
type Static struct {
	c *Catalog
}

// NewStatic wraps items into a Provider, handy for tests and one-off runs.
func NewStatic(items ...Item) Static {
	return Static{c: New(items)}
}

// Catalog implements Provider.
func (s Static) Catalog() *Catalog {
	if s.c == nil {
		return Empty()
	}
	return s.c
}

// FileProvider serves the catalog document at a path and can reload it when
// the file changes. A missing or malformed document yields an empty catalog.
type FileProvider struct {
	path    string
	current atomic.Pointer[Catalog]
}

// NewFileProvider loads path once and returns the provider.
func NewFileProvider(path string) *FileProvider {
	p := &FileProvider{path: path}
	p.Reload()
	return p
}

// Path returns the watched document path.
func (p *FileProvider) Path() string {
	return p.path
}

// Catalog implements Provider.
func (p *FileProvider) Catalog() *Catalog {
	if c := p.current.Load(); c != nil {
		return c
	}
	return Empty()
}

// Reload re-reads the document and swaps the snapshot in.
func (p *FileProvider) Reload() *Catalog {
	c, err := LoadFile(p.path)
	if err != nil {
		slog.Error("catalog could not be loaded, using empty catalog", "path", p.path, "err", err)
		c = Empty()
	} else {
		slog.Info("catalog loaded", "path", p.path, "items", c.Len())
	}
	p.current.Store(c)
	return c
}

// Watch reloads the catalog whenever the document changes, until ctx is done.
// The parent directory is watched so editors that replace the file on save
// are picked up too.
func (p *FileProvider) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating catalog watcher: %w", err)
	}
	defer w.Close()
	if err := w.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(p.path), err)
	}
	target := filepath.Clean(p.path)

	var pending time.Time
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) != 0 {
				pending = time.Now()
			}
		case <-ticker.C:
			if !pending.IsZero() && time.Since(pending) > 300*time.Millisecond {
				pending = time.Time{}
				p.Reload()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Warn("catalog watch error", "err", err)
		}
	}
}
