// Package diag writes intermediate reconciliation artifacts for debugging.
// Sinks never report errors to callers; failures are logged and dropped.
package diag

import (
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/disintegration/imaging"
	yaml "go.yaml.in/yaml/v3"
)

// Sink receives artifacts for one source image.
type Sink interface {
	// Artifact records a structured value under name.
	Artifact(source, name string, v any)
	// Image records an intermediate image under name.
	Image(source, name string, img image.Image)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Artifact(string, string, any) {}
func (Nop) Image(string, string, image.Image) {}

// Dir writes artifacts below Root, one directory per source image:
// <root>/<source>/<name>.yaml and <root>/<source>/<name>.png.
type Dir struct {
	Root string
}

// NewDir creates root if needed.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating diagnostics dir: %w", err)
	}
	return &Dir{Root: root}, nil
}

func (d *Dir) Artifact(source, name string, v any) {
	dir, err := d.sourceDir(source)
	if err != nil {
		return
	}
	data, err := yaml.Marshal(v)
	if err != nil {
		slog.Warn("diagnostics marshal failed", "source", source, "artifact", name, "err", err)
		return
	}
	path := filepath.Join(dir, safeName(name)+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		slog.Warn("diagnostics write failed", "path", path, "err", err)
	}
}

func (d *Dir) Image(source, name string, img image.Image) {
	if img == nil {
		return
	}
	dir, err := d.sourceDir(source)
	if err != nil {
		return
	}
	path := filepath.Join(dir, safeName(name)+".png")
	if err := imaging.Save(img, path); err != nil {
		slog.Warn("diagnostics image save failed", "path", path, "err", err)
	}
}

func (d *Dir) sourceDir(source string) (string, error) {
	dir := filepath.Join(d.Root, safeName(source))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Warn("diagnostics dir failed", "dir", dir, "err", err)
		return "", err
	}
	return dir, nil
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// safeName turns an arbitrary label into a single path element.
func safeName(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	s = strings.Trim(s, "._")
	if s == "" {
		return "unnamed"
	}
	return s
}
