// Package reconcile turns inventory screenshots into a priced ledger.
//
// Each image is resized to a fixed canvas and cut into grid cells. Two
// recognition passes run concurrently: one reads quantity badges from the
// cell corners, the other reads item names from the strip at the bottom of
// each cell. Names are matched against the catalog, items claimed by more
// than one cell are settled, and the results are merged into lines.
package reconcile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	// Extra screenshot formats accepted by imaging.Decode.
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
	"golang.org/x/sync/errgroup"

	"invledger/pkg/catalog"
	"invledger/pkg/diag"
	"invledger/pkg/grid"
)

// Pass identifies one of the two recognition passes over an image.
type Pass int

const (
	QuantityPass Pass = iota
	ItemPass
)

func (p Pass) String() string {
	switch p {
	case QuantityPass:
		return "quantity"
	case ItemPass:
		return "item"
	}
	return fmt.Sprintf("pass(%d)", int(p))
}

// Preprocessor prepares the canvas for a pass. Only pixels inside regions
// should survive; everything else is blanked.
type Preprocessor interface {
	Prepare(canvas image.Image, regions []image.Rectangle, pass Pass) (image.Image, error)
}

// Recognizer reads words and their boxes from an image. An empty whitelist
// allows every character.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image, whitelist string) ([]Fragment, error)
}

// Image is one submitted screenshot.
type Image struct {
	Name string
	Data []byte
}

// Config tunes an Engine.
type Config struct {
	Grid              grid.Config
	Threshold         int
	QuantityWhitelist string
	ItemWhitelist     string
	// ImageTimeout bounds both recognition passes of one image. Zero means no
	// limit beyond the caller's context.
	ImageTimeout time.Duration
}

// DefaultConfig returns the settings used for the standard 1537x850
// inventory screenshot.
func DefaultConfig() Config {
	return Config{
		Grid:              grid.DefaultConfig(),
		Threshold:         DefaultThreshold,
		QuantityWhitelist: "0123456789x",
		ImageTimeout:      30 * time.Second,
	}
}

// Engine reconciles batches of images. It holds no per-batch state and may be
// shared between goroutines as long as its collaborators can.
type Engine struct {
	cfg      Config
	catalogs catalog.Provider
	pre      Preprocessor
	rec      Recognizer
	sink     diag.Sink
}

// Option customises an Engine.
type Option func(*Engine)

// WithSink sends per-image diagnostics to s.
func WithSink(s diag.Sink) Option {
	return func(e *Engine) {
		if s != nil {
			e.sink = s
		}
	}
}

// NewEngine validates cfg and wires the collaborators.
func NewEngine(cfg Config, catalogs catalog.Provider, pre Preprocessor, rec Recognizer, opts ...Option) (*Engine, error) {
	if err := cfg.Grid.Validate(); err != nil {
		return nil, err
	}
	if catalogs == nil || pre == nil || rec == nil {
		return nil, errors.New("reconcile: catalog, preprocessor and recognizer are required")
	}
	if cfg.Threshold < 0 || cfg.Threshold > 100 {
		return nil, fmt.Errorf("reconcile: threshold %d outside 0..100", cfg.Threshold)
	}
	e := &Engine{cfg: cfg, catalogs: catalogs, pre: pre, rec: rec, sink: diag.Nop{}}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine settings.
func (e *Engine) Config() Config {
	return e.cfg
}

// Reconcile processes images in order and returns the merged ledger. An
// image that cannot be decoded or recognized contributes no lines and is
// reported in Result.Images. The catalog is read once per call.
func (e *Engine) Reconcile(ctx context.Context, images []Image) (*Result, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	cat := e.catalogs.Catalog()
	if cat.Len() == 0 {
		slog.Warn("catalog is empty, nothing will match")
	}

	agg := &Aggregator{}
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("image-%d", i+1)
		}
		e.processImage(ctx, i+1, name, img.Data, cat, agg)
	}

	res := agg.Result()
	slog.Info("reconciled batch", "images", len(images), "lines", len(res.Lines), "total", res.Total)
	return res, nil
}

// processImage merges one image into agg. pos is the image's 1-based place in
// the batch; diagnostics are filed under it so uploads sharing a name stay apart.
func (e *Engine) processImage(ctx context.Context, pos int, name string, data []byte, cat *catalog.Catalog, agg *Aggregator) {
	source := fmt.Sprintf("%02d-%s", pos, name)
	src, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		slog.Warn("skipping unreadable image", "image", name, "err", err)
		agg.Skip(name, fmt.Errorf("%w: %v", ErrUnreadableImage, err))
		return
	}
	canvas := imaging.Resize(src, e.cfg.Grid.Width, e.cfg.Grid.Height, imaging.Linear)

	cells, err := grid.Partition(canvas.Bounds().Dx(), canvas.Bounds().Dy(), e.cfg.Grid)
	if err != nil {
		slog.Error("partition failed", "image", name, "err", err)
		agg.Skip(name, err)
		return
	}

	qFrags, iFrags, err := e.recognize(ctx, name, source, canvas, cells)
	if err != nil {
		slog.Error("recognition failed, image contributes no lines", "image", name, "err", err)
		agg.Skip(name, err)
		return
	}

	corners := Assign(qFrags, cells, CornerTarget)
	strips := Assign(iFrags, cells, TextTarget)

	quantities := make(map[int]string, len(cells))
	texts := make([]CellText, 0, len(cells))
	traces := make([]cellTrace, 0, len(cells))
	for _, c := range cells {
		q := ResolveQuantity(corners[c.ID])
		t := CombineText(strips[c.ID])
		quantities[c.ID] = q
		texts = append(texts, CellText{Cell: c.ID, Text: t})
		traces = append(traces, newCellTrace(c, corners[c.ID], strips[c.ID], q, t))
	}

	prov := MatchCells(texts, cat.Items(), e.cfg.Threshold)
	res := ResolveDuplicates(prov, cat, e.cfg.Threshold)
	for _, c := range res.Conflicts {
		slog.Debug("duplicate item resolved", "image", name, "item", c.Item, "winner", c.Winner, "claims", len(c.Claims))
	}

	before := len(agg.lines)
	sum := agg.AddImage(name, quantities, res.Final)

	e.sink.Artifact(source, "cells", traces)
	e.sink.Artifact(source, "matching", prov)
	e.sink.Artifact(source, "resolution", res)
	e.sink.Artifact(source, "lines", agg.lines[before:])
	slog.Info("image processed", "image", name, "cells", len(cells), "lines", sum.Lines, "subtotal", sum.Subtotal)
}

// recognize runs both passes concurrently under the per-image deadline. If
// either fails the other is cancelled.
func (e *Engine) recognize(ctx context.Context, name, source string, canvas image.Image, cells []grid.Cell) (quantities, items []Fragment, err error) {
	if e.cfg.ImageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.ImageTimeout)
		defer cancel()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		quantities, err = e.runPass(gctx, name, source, canvas, grid.Corners(cells), QuantityPass, e.cfg.QuantityWhitelist)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = e.runPass(gctx, name, source, canvas, grid.TextStrips(cells), ItemPass, e.cfg.ItemWhitelist)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return quantities, items, nil
}

func (e *Engine) runPass(ctx context.Context, name, source string, canvas image.Image, regions []image.Rectangle, pass Pass, whitelist string) ([]Fragment, error) {
	prepared, err := e.pre.Prepare(canvas, regions, pass)
	if err != nil {
		return nil, fmt.Errorf("%s pass preprocess: %w", pass, err)
	}
	e.sink.Image(source, pass.String()+"_pass", prepared)

	type outcome struct {
		frags []Fragment
		err   error
	}
	done := make(chan outcome, 1)
	go func() {
		frags, err := e.rec.Recognize(ctx, prepared, whitelist)
		done <- outcome{frags, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s pass: %w", pass, ctx.Err())
	case out := <-done:
		if out.err != nil {
			return nil, fmt.Errorf("%s pass recognition: %w", pass, out.err)
		}
		slog.Debug("pass recognized", "image", name, "pass", pass.String(), "fragments", len(out.frags))
		return out.frags, nil
	}
}

type cellTrace struct {
	Cell     int      `yaml:"cell"`
	Bounds   string   `yaml:"bounds"`
	Corner   []string `yaml:"corner_words"`
	Strip    []string `yaml:"strip_words"`
	Quantity string   `yaml:"quantity"`
	Text     string   `yaml:"text"`
}

func newCellTrace(c grid.Cell, corner, strip []Fragment, qty, text string) cellTrace {
	t := cellTrace{Cell: c.ID, Bounds: c.Bounds.String(), Quantity: qty, Text: text}
	for _, f := range corner {
		t.Corner = append(t.Corner, f.Text)
	}
	for _, f := range strip {
		t.Strip = append(t.Strip, f.Text)
	}
	return t
}
