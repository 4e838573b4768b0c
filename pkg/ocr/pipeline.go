// Package ocr prepares inventory canvases for recognition and reads words
// from them with Tesseract.
package ocr

import (
	"fmt"
	"image"

	"invledger/pkg/reconcile"
)

// Pipeline masks the canvas down to a pass's regions and then applies that
// pass's isolation strategy.
type Pipeline struct {
	Quantity Isolator
	Item     Isolator
}

// NewPipeline builds a pipeline from strategy names such as "threshold" or
// "saturation".
func NewPipeline(quantity, item string) (*Pipeline, error) {
	q, err := NewIsolator(quantity)
	if err != nil {
		return nil, fmt.Errorf("quantity isolation: %w", err)
	}
	it, err := NewIsolator(item)
	if err != nil {
		return nil, fmt.Errorf("item isolation: %w", err)
	}
	return &Pipeline{Quantity: q, Item: it}, nil
}

// DefaultPipeline binarizes quantity corners and keeps saturated item names.
func DefaultPipeline() *Pipeline {
	p, _ := NewPipeline("threshold", "saturation")
	return p
}

// Prepare implements reconcile.Preprocessor.
func (p *Pipeline) Prepare(canvas image.Image, regions []image.Rectangle, pass reconcile.Pass) (image.Image, error) {
	var iso Isolator
	switch pass {
	case reconcile.QuantityPass:
		iso = p.Quantity
	case reconcile.ItemPass:
		iso = p.Item
	default:
		return nil, fmt.Errorf("unsupported pass %s", pass)
	}
	if iso == nil {
		iso = None{}
	}
	return iso.Isolate(maskRegions(canvas, regions)), nil
}
