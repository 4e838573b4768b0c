package ocr

import (
	"invledger/pkg/catalog"
	"invledger/pkg/reconcile"
)

// NewEngine wires a reconcile engine to Tesseract with the named isolation
// strategies for the quantity and item passes.
func NewEngine(cfg reconcile.Config, catalogs catalog.Provider, quantity, item string, opts ...reconcile.Option) (*reconcile.Engine, error) {
	pipe, err := NewPipeline(quantity, item)
	if err != nil {
		return nil, err
	}
	return reconcile.NewEngine(cfg, catalogs, pipe, NewTesseract(), opts...)
}
