package ocr

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	colorful "github.com/lucasb-eyer/go-colorful"
)

var (
	black = color.NRGBA{0, 0, 0, 255}
	white = color.NRGBA{255, 255, 255, 255}
)

// maskRegions returns a copy of img that is black everywhere except inside
// regions.
func maskRegions(img image.Image, regions []image.Rectangle) *image.NRGBA {
	src := imaging.Clone(img)
	out := imaging.New(src.Bounds().Dx(), src.Bounds().Dy(), black)
	for _, r := range regions {
		r = r.Intersect(out.Bounds())
		if r.Empty() {
			continue
		}
		draw.Draw(out, r, src, r.Min, draw.Src)
	}
	return out
}

// luma returns the ITU-R 601 brightness of an NRGBA pixel.
func luma(c color.NRGBA) uint8 {
	return uint8(0.299*float64(c.R) + 0.587*float64(c.G) + 0.114*float64(c.B) + 0.5)
}

func toColorful(c color.NRGBA) colorful.Color {
	return colorful.Color{R: float64(c.R) / 255, G: float64(c.G) / 255, B: float64(c.B) / 255}
}

// adaptiveThreshold performs a mean adaptive threshold over a window using an
// integral image. Pixels darker than the local mean minus bias turn black.
func adaptiveThreshold(img *image.NRGBA, window int, bias int) *image.NRGBA {
	if window < 3 {
		window = 3
	}
	if window%2 == 0 {
		window++
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	out := imaging.New(w, h, white)
	half := window / 2
	// ints is a (w+1)x(h+1) summed-area table with a zero first row and column.
	stride := w + 1
	ints := make([]int, stride*(h+1))
	for y := 0; y < h; y++ {
		rowSum := 0
		for x := 0; x < w; x++ {
			rowSum += int(luma(img.NRGBAAt(x, y)))
			ints[(y+1)*stride+x+1] = ints[y*stride+x+1] + rowSum
		}
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := max(x-half, 0), max(y-half, 0)
			x1, y1 := min(x+half, w-1)+1, min(y+half, h-1)+1
			sum := ints[y1*stride+x1] - ints[y0*stride+x1] - ints[y1*stride+x0] + ints[y0*stride+x0]
			mean := sum / ((x1 - x0) * (y1 - y0))
			th := max(mean-bias, 0)
			if int(luma(img.NRGBAAt(x, y))) < th {
				out.SetNRGBA(x, y, black)
			}
		}
	}
	return out
}

// dilate grows black pixels over their 4-neighbourhood radius times.
func dilate(img *image.NRGBA, radius int) *image.NRGBA {
	if radius <= 0 {
		return img
	}
	w := img.Bounds().Dx()
	h := img.Bounds().Dy()
	cur := img
	for r := 0; r < radius; r++ {
		next := imaging.New(w, h, white)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				for _, d := range [][2]int{{0, 0}, {1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					x2, y2 := x+d[0], y+d[1]
					if x2 < 0 || y2 < 0 || x2 >= w || y2 >= h {
						continue
					}
					if cur.NRGBAAt(x2, y2) == black {
						next.SetNRGBA(x, y, black)
						break
					}
				}
			}
		}
		cur = next
	}
	return cur
}
