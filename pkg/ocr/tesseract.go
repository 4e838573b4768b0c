package ocr

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"invledger/pkg/reconcile"
)

// Tesseract recognizes words with a local Tesseract installation. A new
// client is created per call because gosseract clients are not safe for
// concurrent use and both passes run at once.
type Tesseract struct {
	Language string
	PageMode gosseract.PageSegMode
}

// NewTesseract returns a recognizer reading English text as a single block.
func NewTesseract() *Tesseract {
	return &Tesseract{Language: "eng", PageMode: gosseract.PSM_SINGLE_BLOCK}
}

// Version reports the linked Tesseract version.
func Version() string {
	client := gosseract.NewClient()
	defer client.Close()
	return client.Version()
}

// Recognize implements reconcile.Recognizer. Word boxes are returned in the
// coordinates of img; blank words are skipped.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image, whitelist string) ([]reconcile.Fragment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()
	if err := client.SetLanguage(t.Language); err != nil {
		return nil, fmt.Errorf("set language: %w", err)
	}
	if err := client.SetPageSegMode(t.PageMode); err != nil {
		return nil, fmt.Errorf("set page mode: %w", err)
	}
	if whitelist != "" {
		if err := client.SetWhitelist(whitelist); err != nil {
			return nil, fmt.Errorf("set whitelist: %w", err)
		}
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return nil, fmt.Errorf("ocr error: %w", err)
	}

	origin := img.Bounds().Min
	frags := make([]reconcile.Fragment, 0, len(boxes))
	for _, b := range boxes {
		text := strings.TrimSpace(b.Word)
		if text == "" {
			continue
		}
		frags = append(frags, reconcile.Fragment{Text: text, Box: b.Box.Add(origin)})
	}
	return frags, nil
}
