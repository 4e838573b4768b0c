// Package grid partitions the canonical inventory canvas into cells.
package grid

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// ErrInvalidConfig is returned for split percentages that cannot describe a grid.
var ErrInvalidConfig = errors.New("invalid grid config")

// Config describes the canonical canvas and how it is cut into cells.
type Config struct {
	// Width and Height are the canonical canvas every image is resized to.
	Width  int `yaml:"width" json:"width"`
	Height int `yaml:"height" json:"height"`
	// RowPercent is the height of one row as a percentage of the canvas height.
	RowPercent float64 `yaml:"row_percent" json:"row_percent"`
	// ColumnPercents holds the width of each column but the last; the last
	// column runs to the canvas edge.
	ColumnPercents []float64 `yaml:"column_percents" json:"column_percents"`
	// CornerPercent sizes the quantity square against the smaller cell side.
	CornerPercent float64 `yaml:"corner_percent" json:"corner_percent"`
	// TextStripPercent is the height of the item-name strip against the cell height.
	TextStripPercent float64 `yaml:"text_strip_percent" json:"text_strip_percent"`
}

// DefaultConfig returns the layout of the in-game inventory screen.
func DefaultConfig() Config {
	return Config{
		Width:            1537,
		Height:           850,
		RowPercent:       33.33,
		ColumnPercents:   []float64{20, 20, 19.6, 19.0},
		CornerPercent:    20,
		TextStripPercent: 18,
	}
}

// Rows returns how many rows RowPercent produces.
func (c Config) Rows() int {
	if c.RowPercent <= 0 {
		return 0
	}
	return int(math.Round(100 / c.RowPercent))
}

// Columns returns how many columns ColumnPercents produces.
func (c Config) Columns() int {
	return len(c.ColumnPercents) + 1
}

// Validate reports configuration errors, including cuts that collapse onto
// each other on the Width x Height canvas.
func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	if c.RowPercent <= 0 || c.RowPercent > 100 {
		return fmt.Errorf("%w: row percent %.2f out of range", ErrInvalidConfig, c.RowPercent)
	}
	sum := 0.0
	for i, p := range c.ColumnPercents {
		if p <= 0 {
			return fmt.Errorf("%w: column %d percent %.2f must be positive", ErrInvalidConfig, i+1, p)
		}
		sum += p
	}
	if sum >= 100 {
		return fmt.Errorf("%w: column percents sum to %.2f, need < 100", ErrInvalidConfig, sum)
	}
	if c.CornerPercent <= 0 || c.CornerPercent > 100 {
		return fmt.Errorf("%w: corner percent %.2f out of range", ErrInvalidConfig, c.CornerPercent)
	}
	if c.TextStripPercent <= 0 || c.TextStripPercent > 100 {
		return fmt.Errorf("%w: text strip percent %.2f out of range", ErrInvalidConfig, c.TextStripPercent)
	}
	if _, err := rowPositions(c.Height, c); err != nil {
		return err
	}
	if _, err := columnPositions(c.Width, c); err != nil {
		return err
	}
	return nil
}

// Cell is one slot of the inventory grid in canvas pixel space.
type Cell struct {
	ID        int
	Row, Col  int
	Bounds    image.Rectangle
	Corner    image.Rectangle
	TextStrip image.Rectangle
}

// Partition cuts a width x height canvas into cells numbered 1..rows*cols in
// row-major order. The canvas edge is always the final cut so rounding in the
// percentages ends up in the last row and column.
func Partition(width, height int, cfg Config) ([]Cell, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rowCuts, err := rowPositions(height, cfg)
	if err != nil {
		return nil, err
	}
	colCuts, err := columnPositions(width, cfg)
	if err != nil {
		return nil, err
	}

	cells := make([]Cell, 0, (len(rowCuts)-1)*(len(colCuts)-1))
	id := 1
	for r := 0; r < len(rowCuts)-1; r++ {
		for c := 0; c < len(colCuts)-1; c++ {
			bounds := image.Rect(colCuts[c], rowCuts[r], colCuts[c+1], rowCuts[r+1])
			cells = append(cells, Cell{
				ID:        id,
				Row:       r,
				Col:       c,
				Bounds:    bounds,
				Corner:    cornerRegion(bounds, cfg.CornerPercent),
				TextStrip: textStrip(bounds, cfg.TextStripPercent),
			})
			id++
		}
	}
	return cells, nil
}

func rowPositions(height int, cfg Config) ([]int, error) {
	step := int(float64(height) * cfg.RowPercent / 100)
	rows := cfg.Rows()
	cuts := []int{0}
	for k := 1; k < rows; k++ {
		cuts = append(cuts, k*step)
	}
	cuts = append(cuts, height)
	return cuts, checkIncreasing("row", cuts)
}

func columnPositions(width int, cfg Config) ([]int, error) {
	cuts := []int{0}
	sum := 0.0
	for _, p := range cfg.ColumnPercents {
		sum += p
		cuts = append(cuts, int(sum/100*float64(width)))
	}
	cuts = append(cuts, width)
	return cuts, checkIncreasing("column", cuts)
}

func checkIncreasing(kind string, cuts []int) error {
	for i := 1; i < len(cuts); i++ {
		if cuts[i] <= cuts[i-1] {
			return fmt.Errorf("%w: %s cut %d at %d does not advance past %d", ErrInvalidConfig, kind, i, cuts[i], cuts[i-1])
		}
	}
	return nil
}

// cornerRegion is the square anchored at the cell's top-right corner.
func cornerRegion(b image.Rectangle, percent float64) image.Rectangle {
	side := float64(min(b.Dx(), b.Dy())) * percent / 100
	return image.Rectangle{
		Min: image.Pt(int(float64(b.Max.X)-side), b.Min.Y),
		Max: image.Pt(b.Max.X, int(float64(b.Min.Y)+side)),
	}
}

// textStrip is the full-width band along the cell's bottom edge.
func textStrip(b image.Rectangle, percent float64) image.Rectangle {
	h := int(float64(b.Dy()) * percent / 100)
	return image.Rect(b.Min.X, b.Max.Y-h, b.Max.X, b.Max.Y)
}

// Corners returns the corner regions of cells in cell order.
func Corners(cells []Cell) []image.Rectangle {
	out := make([]image.Rectangle, len(cells))
	for i, c := range cells {
		out[i] = c.Corner
	}
	return out
}

// TextStrips returns the text strips of cells in cell order.
func TextStrips(cells []Cell) []image.Rectangle {
	out := make([]image.Rectangle, len(cells))
	for i, c := range cells {
		out[i] = c.TextStrip
	}
	return out
}
