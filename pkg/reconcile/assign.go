package reconcile

import (
	"image"

	"invledger/pkg/grid"
)

// Fragment is a piece of recognized text with its bounding box in canvas
// coordinates.
type Fragment struct {
	Text string          `yaml:"text"`
	Box  image.Rectangle `yaml:"-"`
}

// Center returns the bounding box center, rounded down.
func (f Fragment) Center() image.Point {
	return image.Pt(f.Box.Min.X+f.Box.Dx()/2, f.Box.Min.Y+f.Box.Dy()/2)
}

// Target picks the sub-region of a cell a pass reads from.
type Target func(grid.Cell) image.Rectangle

// CornerTarget selects the quantity corner; TextTarget the item-name strip.
var (
	CornerTarget Target = func(c grid.Cell) image.Rectangle { return c.Corner }
	TextTarget   Target = func(c grid.Cell) image.Rectangle { return c.TextStrip }
)

// Assign hands every fragment to the first cell, in cell order, whose target
// region contains the fragment center. Region edges count as inside.
// Fragments outside every region are dropped. Each cell's fragments keep
// their input order.
func Assign(frags []Fragment, cells []grid.Cell, target Target) map[int][]Fragment {
	out := make(map[int][]Fragment)
	for _, f := range frags {
		p := f.Center()
		for _, c := range cells {
			if containsClosed(target(c), p) {
				out[c.ID] = append(out[c.ID], f)
				break
			}
		}
	}
	return out
}

func containsClosed(r image.Rectangle, p image.Point) bool {
	return p.X >= r.Min.X && p.X <= r.Max.X && p.Y >= r.Min.Y && p.Y <= r.Max.Y
}
