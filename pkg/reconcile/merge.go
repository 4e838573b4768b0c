package reconcile

import (
	"log/slog"
	"sort"
	"strconv"
)

// Line is one resolved cell in the ledger.
type Line struct {
	Seq       int     `yaml:"seq" json:"seq"`
	Image     string  `yaml:"image" json:"image"`
	Cell      int     `yaml:"cell" json:"cell"`
	Item      string  `yaml:"item" json:"item_name"`
	Quantity  int     `yaml:"quantity" json:"quantity"`
	UnitValue float64 `yaml:"unit_value" json:"unit_value"`
	Total     float64 `yaml:"total" json:"total_value"`
}

// ImageSummary reports what one submitted image contributed.
type ImageSummary struct {
	Name     string  `yaml:"name" json:"name"`
	Lines    int     `yaml:"lines" json:"lines"`
	Subtotal float64 `yaml:"subtotal" json:"subtotal"`
	Err      string  `yaml:"error,omitempty" json:"error,omitempty"`
}

// Result is the reconciled ledger for a batch of images.
type Result struct {
	Lines  []Line         `json:"results"`
	Total  float64        `json:"total"`
	Images []ImageSummary `json:"images"`
}

// Aggregator accumulates lines across images. Sequence numbers run across the
// whole batch in the order images are added. Not safe for concurrent use.
type Aggregator struct {
	seq    int
	lines  []Line
	images []ImageSummary
}

// AddImage turns one image's cells into lines. A line is produced for every
// cell that has both a quantity and an item; cells are visited in id order.
// Quantities that do not fit an int are logged and skipped.
func (a *Aggregator) AddImage(name string, quantities map[int]string, items map[int]Candidate) ImageSummary {
	ids := make([]int, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	sum := ImageSummary{Name: name}
	for _, id := range ids {
		item, ok := items[id]
		if !ok {
			continue
		}
		qty, err := strconv.Atoi(quantities[id])
		if err != nil {
			slog.Warn("unusable quantity, skipping cell", "image", name, "cell", id, "quantity", quantities[id], "err", err)
			continue
		}
		a.seq++
		line := Line{
			Seq:       a.seq,
			Image:     name,
			Cell:      id,
			Item:      item.Name,
			Quantity:  qty,
			UnitValue: item.Value,
			Total:     round3(float64(qty) * item.Value),
		}
		a.lines = append(a.lines, line)
		sum.Lines++
		sum.Subtotal += line.Total
	}
	sum.Subtotal = round3(sum.Subtotal)
	a.images = append(a.images, sum)
	slog.Debug("image merged", "image", name, "lines", sum.Lines, "subtotal", sum.Subtotal)
	return sum
}

// Skip records an image that contributed nothing.
func (a *Aggregator) Skip(name string, err error) ImageSummary {
	sum := ImageSummary{Name: name}
	if err != nil {
		sum.Err = err.Error()
	}
	a.images = append(a.images, sum)
	return sum
}

// Result returns the lines in sequence order and their grand total.
func (a *Aggregator) Result() *Result {
	lines := make([]Line, len(a.lines))
	copy(lines, a.lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Seq < lines[j].Seq })

	var total float64
	for _, l := range lines {
		total += l.Total
	}
	images := make([]ImageSummary, len(a.images))
	copy(images, a.images)
	return &Result{Lines: lines, Total: total, Images: images}
}

// round3 rounds the exact binary value of x to three decimals, ties to even.
// Scaling by 1000 first would turn near-halves like 0.0005 into exact halves.
func round3(x float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(x, 'f', 3, 64), 64)
	return r
}
