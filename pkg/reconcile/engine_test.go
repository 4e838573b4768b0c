package reconcile

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"slices"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invledger/pkg/catalog"
)

// passthrough hands the canvas straight to the recognizer.
type passthrough struct{}

func (passthrough) Prepare(canvas image.Image, _ []image.Rectangle, _ Pass) (image.Image, error) {
	return canvas, nil
}

// scriptedRecognizer returns canned fragments per whitelist, which is how the
// two passes tell themselves apart. When perImage is set, the n-th call for a
// whitelist answers from perImage[n].
type scriptedRecognizer struct {
	byWhitelist map[string][]Fragment
	perImage    []map[string][]Fragment
	errs        map[string]error
	block       bool

	mu    sync.Mutex
	calls map[string]int
}

func (r *scriptedRecognizer) Recognize(ctx context.Context, _ image.Image, whitelist string) ([]Fragment, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err := r.errs[whitelist]; err != nil {
		return nil, err
	}
	if r.perImage != nil {
		r.mu.Lock()
		defer r.mu.Unlock()
		if r.calls == nil {
			r.calls = map[string]int{}
		}
		n := r.calls[whitelist]
		r.calls[whitelist]++
		if n >= len(r.perImage) {
			return nil, nil
		}
		return slices.Clone(r.perImage[n][whitelist]), nil
	}
	return slices.Clone(r.byWhitelist[whitelist]), nil
}

type recordingSink struct {
	mu        sync.Mutex
	artifacts []string
	images    []string
}

func (s *recordingSink) Artifact(source, name string, _ any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = append(s.artifacts, source+"/"+name)
}

func (s *recordingSink) Image(source, name string, _ image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.images = append(s.images, source+"/"+name)
}

func pngBytes() []byte {
	var buf bytes.Buffer
	img := imaging.New(160, 90, color.NRGBA{40, 40, 40, 255})
	Expect(imaging.Encode(&buf, img, imaging.PNG)).To(Succeed())
	return buf.Bytes()
}

var _ = Describe("Engine", func() {
	const quantityWhitelist = "0123456789x"

	var (
		cfg    Config
		rec    *scriptedRecognizer
		sink   *recordingSink
		images []Image
		ctx    context.Context

		engine *Engine
		result *Result
		err    error
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = DefaultConfig()
		sink = &recordingSink{}
		rec = &scriptedRecognizer{
			byWhitelist: map[string][]Fragment{
				quantityWhitelist: {
					frag("x3", 260, 10, 300, 40),
					frag("3", 570, 10, 600, 40),
				},
				"": {
					frag("Wood", 10, 240, 110, 270),
					frag("Stone", 320, 240, 420, 270),
				},
			},
		}
		images = []Image{{Name: "inv.png", Data: pngBytes()}}
	})

	JustBeforeEach(func() {
		var newErr error
		engine, newErr = NewEngine(cfg, catalog.NewStatic(testItems...), passthrough{}, rec, WithSink(sink))
		Expect(newErr).NotTo(HaveOccurred())
		result, err = engine.Reconcile(ctx, images)
	})

	When("one image is submitted", func() {
		It("produces priced lines in cell order", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(Equal([]Line{
				{Seq: 1, Image: "inv.png", Cell: 1, Item: "Wood", Quantity: 3, UnitValue: 1.5, Total: 4.5},
				{Seq: 2, Image: "inv.png", Cell: 2, Item: "Stone", Quantity: 3, UnitValue: 0.5, Total: 1.5},
			}))
			Expect(result.Total).To(Equal(6.0))
		})

		It("reports the image subtotal", func() {
			Expect(result.Images).To(Equal([]ImageSummary{{Name: "inv.png", Lines: 2, Subtotal: 6.0}}))
		})

		It("writes diagnostics for the image", func() {
			Expect(sink.artifacts).To(ConsistOf("01-inv.png/cells", "01-inv.png/matching", "01-inv.png/resolution", "01-inv.png/lines"))
			Expect(sink.images).To(ConsistOf("01-inv.png/quantity_pass", "01-inv.png/item_pass"))
		})
	})

	When("two uploads share a file name", func() {
		BeforeEach(func() {
			images = append(images, Image{Name: "inv.png", Data: pngBytes()})
		})

		It("files their diagnostics apart", func() {
			Expect(sink.artifacts).To(ContainElements("01-inv.png/cells", "02-inv.png/cells"))
			Expect(sink.images).To(ContainElements("01-inv.png/item_pass", "02-inv.png/item_pass"))
		})
	})

	When("the worked example is submitted", func() {
		BeforeEach(func() {
			rec.perImage = []map[string][]Fragment{
				{
					quantityWhitelist: {frag("3", 260, 10, 300, 40)},
					"":                {frag("Wood", 10, 240, 110, 270)},
				},
				{
					// No quantity read in image B, so the cell counts as one.
					"": {frag("Woood", 10, 240, 110, 270)},
				},
			}
			images = []Image{{Name: "a.png", Data: pngBytes()}, {Name: "b.png", Data: pngBytes()}}
		})

		It("matches the misspelling and totals both images", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(Equal([]Line{
				{Seq: 1, Image: "a.png", Cell: 1, Item: "Wood", Quantity: 3, UnitValue: 1.5, Total: 4.5},
				{Seq: 2, Image: "b.png", Cell: 1, Item: "Wood", Quantity: 1, UnitValue: 1.5, Total: 1.5},
			}))
			Expect(result.Total).To(Equal(6.0))
		})
	})

	When("a cell has a quantity but unreadable text", func() {
		BeforeEach(func() {
			rec.byWhitelist = map[string][]Fragment{
				quantityWhitelist: {
					frag("3", 260, 10, 300, 40),
					frag("7", 570, 10, 600, 40),
				},
				"": {
					frag("Wood", 10, 240, 110, 270),
					frag("xyz", 320, 240, 420, 270),
				},
			}
		})

		It("produces no line for it", func() {
			Expect(result.Lines).To(HaveLen(1))
			Expect(result.Lines[0].Cell).To(Equal(1))
			Expect(result.Total).To(Equal(4.5))
		})
	})

	When("fragments arrive in a different order", func() {
		BeforeEach(func() {
			for _, frags := range rec.byWhitelist {
				slices.Reverse(frags)
			}
		})

		It("produces the same ledger", func() {
			Expect(result.Lines).To(HaveLen(2))
			Expect(result.Lines[0].Item).To(Equal("Wood"))
			Expect(result.Total).To(Equal(6.0))
		})
	})

	When("several images are submitted", func() {
		BeforeEach(func() {
			images = append(images, Image{Name: "inv2.png", Data: pngBytes()})
		})

		It("numbers lines across the batch", func() {
			Expect(result.Lines).To(HaveLen(4))
			Expect(result.Lines[2].Seq).To(Equal(3))
			Expect(result.Lines[2].Image).To(Equal("inv2.png"))
			Expect(result.Total).To(Equal(12.0))
		})
	})

	When("two cells read the same item", func() {
		BeforeEach(func() {
			rec.byWhitelist[""] = []Fragment{
				frag("Wood", 10, 240, 110, 270),
				frag("Wood", 320, 240, 420, 270),
			}
		})

		It("keeps only the first cell", func() {
			Expect(result.Lines).To(HaveLen(1))
			Expect(result.Lines[0].Cell).To(Equal(1))
		})
	})

	When("an image cannot be decoded", func() {
		BeforeEach(func() {
			images = append([]Image{{Name: "junk.png", Data: []byte("not an image")}}, images...)
		})

		It("skips it and processes the rest", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(HaveLen(2))
			Expect(result.Lines[0].Seq).To(Equal(1))
			Expect(result.Images[0].Name).To(Equal("junk.png"))
			Expect(result.Images[0].Err).To(ContainSubstring(ErrUnreadableImage.Error()))
		})
	})

	When("recognition fails", func() {
		BeforeEach(func() {
			rec.errs = map[string]error{"": errors.New("engine crashed")}
		})

		It("drops the image without failing the batch", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(BeEmpty())
			Expect(result.Total).To(BeZero())
			Expect(result.Images[0].Err).To(ContainSubstring("engine crashed"))
		})
	})

	When("recognition exceeds the image timeout", func() {
		BeforeEach(func() {
			cfg.ImageTimeout = 20 * time.Millisecond
			rec.block = true
		})

		It("gives up on the image", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(result.Lines).To(BeEmpty())
			Expect(result.Images[0].Err).To(ContainSubstring(context.DeadlineExceeded.Error()))
		})
	})

	When("no images are submitted", func() {
		BeforeEach(func() {
			images = nil
		})

		It("returns ErrNoImages", func() {
			Expect(err).To(MatchError(ErrNoImages))
			Expect(result).To(BeNil())
		})
	})

	When("the caller's context is already cancelled", func() {
		BeforeEach(func() {
			cctx, cancel := context.WithCancel(context.Background())
			cancel()
			ctx = cctx
		})

		It("returns the context error", func() {
			Expect(err).To(MatchError(context.Canceled))
		})
	})
})

var _ = Describe("NewEngine", func() {
	It("rejects an invalid grid", func() {
		cfg := DefaultConfig()
		cfg.Grid.ColumnPercents = []float64{60, 50}
		_, err := NewEngine(cfg, catalog.NewStatic(), passthrough{}, &scriptedRecognizer{})
		Expect(err).To(HaveOccurred())
	})

	It("rejects a threshold above 100", func() {
		cfg := DefaultConfig()
		cfg.Threshold = 101
		_, err := NewEngine(cfg, catalog.NewStatic(), passthrough{}, &scriptedRecognizer{})
		Expect(err).To(HaveOccurred())
	})
})
