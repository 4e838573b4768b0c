package ocr

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Isolator makes the text of interest stand out in a masked canvas. Inputs
// are zero-origin and Isolate must not modify them.
type Isolator interface {
	Isolate(img *image.NRGBA) *image.NRGBA
}

// HueRange is an inclusive hue interval in degrees.
type HueRange struct {
	From, To float64
}

// Red covers both ends of the hue circle.
var Red = []HueRange{{0, 20}, {320, 360}}

// Yellow covers the gold tones used for item names.
var Yellow = []HueRange{{40, 70}}

// Threshold binarizes on brightness: pixels brighter than Level turn white,
// the rest black. With KeepRed, saturated red pixels are forced white so red
// quantity badges survive.
type Threshold struct {
	Level   uint8
	KeepRed bool
}

func (t Threshold) Isolate(img *image.NRGBA) *image.NRGBA {
	gray := imaging.Grayscale(img)
	out := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), black)
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			if gray.NRGBAAt(x, y).R > t.Level {
				out.SetNRGBA(x, y, white)
				continue
			}
			if t.KeepRed && inBand(img.NRGBAAt(x, y), Red, 100.0/255, 100.0/255) {
				out.SetNRGBA(x, y, white)
			}
		}
	}
	return out
}

// Saturation keeps strongly coloured pixels and brightens them; everything
// else turns black. Min and Boost are fractions of full scale.
type Saturation struct {
	Min   float64
	Boost float64
}

func (s Saturation) Isolate(img *image.NRGBA) *image.NRGBA {
	out := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), black)
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			px := img.NRGBAAt(x, y)
			h, sat, v := toColorful(px).Hsv()
			if sat <= s.Min {
				continue
			}
			c := colorful.Hsv(h, min(sat+s.Boost, 1), min(v+s.Boost, 1)).Clamped()
			r, g, b := c.RGB255()
			out.SetNRGBA(x, y, color.NRGBA{r, g, b, 255})
		}
	}
	return out
}

// HueBand paints pixels whose hue falls in one of Ranges white and everything
// else black.
type HueBand struct {
	Ranges []HueRange
	MinSat float64
	MinVal float64
}

func (hb HueBand) Isolate(img *image.NRGBA) *image.NRGBA {
	out := imaging.New(img.Bounds().Dx(), img.Bounds().Dy(), black)
	for y := 0; y < out.Bounds().Dy(); y++ {
		for x := 0; x < out.Bounds().Dx(); x++ {
			if inBand(img.NRGBAAt(x, y), hb.Ranges, hb.MinSat, hb.MinVal) {
				out.SetNRGBA(x, y, white)
			}
		}
	}
	return out
}

// Adaptive applies a local mean threshold followed by dilation. It copes
// better than a global level with uneven backgrounds.
type Adaptive struct {
	Window int
	Bias   int
	Dilate int
}

func (a Adaptive) Isolate(img *image.NRGBA) *image.NRGBA {
	return dilate(adaptiveThreshold(img, a.Window, a.Bias), a.Dilate)
}

// None returns a copy of the input.
type None struct{}

func (None) Isolate(img *image.NRGBA) *image.NRGBA {
	return imaging.Clone(img)
}

var isolators = map[string]func() Isolator{
	"threshold":  func() Isolator { return Threshold{Level: 195, KeepRed: true} },
	"saturation": func() Isolator { return Saturation{Min: 100.0 / 255, Boost: 50.0 / 255} },
	"adaptive":   func() Isolator { return Adaptive{Window: 15, Bias: 7, Dilate: 1} },
	"red":        func() Isolator { return HueBand{Ranges: Red, MinSat: 100.0 / 255, MinVal: 100.0 / 255} },
	"yellow":     func() Isolator { return HueBand{Ranges: Yellow, MinSat: 100.0 / 255, MinVal: 100.0 / 255} },
	"none":       func() Isolator { return None{} },
}

// IsolatorNames lists the names NewIsolator accepts.
func IsolatorNames() []string {
	names := make([]string, 0, len(isolators))
	for n := range isolators {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewIsolator returns the named strategy with its standard settings.
func NewIsolator(name string) (Isolator, error) {
	mk, ok := isolators[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownIsolation, name, strings.Join(IsolatorNames(), ", "))
	}
	return mk(), nil
}

func inBand(px color.NRGBA, ranges []HueRange, minSat, minVal float64) bool {
	h, s, v := toColorful(px).Hsv()
	if s < minSat || v < minVal {
		return false
	}
	for _, r := range ranges {
		if h >= r.From && h <= r.To {
			return true
		}
	}
	return false
}
