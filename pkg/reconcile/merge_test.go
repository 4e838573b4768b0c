package reconcile

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Aggregator", func() {
	var (
		agg   *Aggregator
		wood  = Candidate{Name: "Wood", Value: 1.5}
		stone = Candidate{Name: "Stone", Value: 0.5}
	)

	BeforeEach(func() {
		agg = &Aggregator{}
	})

	It("prices lines and totals them", func() {
		sum := agg.AddImage("inv.png",
			map[int]string{1: "3", 2: "3", 3: "1"},
			map[int]Candidate{1: wood, 2: stone})
		res := agg.Result()

		Expect(sum.Lines).To(Equal(2))
		Expect(sum.Subtotal).To(Equal(6.0))
		Expect(res.Lines).To(Equal([]Line{
			{Seq: 1, Image: "inv.png", Cell: 1, Item: "Wood", Quantity: 3, UnitValue: 1.5, Total: 4.5},
			{Seq: 2, Image: "inv.png", Cell: 2, Item: "Stone", Quantity: 3, UnitValue: 0.5, Total: 1.5},
		}))
		Expect(res.Total).To(Equal(6.0))
	})

	DescribeTable("rounds line totals to three decimals",
		func(qty string, value, want float64) {
			agg.AddImage("a", map[int]string{1: qty}, map[int]Candidate{1: {Name: "Dust", Value: value}})
			Expect(agg.Result().Lines[0].Total).To(Equal(want))
		},
		Entry("float noise", "3", 0.1, 0.3),
		Entry("exact half goes to even", "1", 0.0625, 0.062),
		Entry("stored just above half rounds up", "1", 0.0005, 0.001),
		Entry("stored just below half rounds down", "1", 1.0005, 1.0),
	)

	It("sums the already rounded line totals", func() {
		dust := Candidate{Name: "Dust", Value: 0.0005}
		sum := agg.AddImage("a",
			map[int]string{1: "1", 2: "1", 3: "1"},
			map[int]Candidate{1: dust, 2: dust, 3: dust})
		res := agg.Result()

		for _, l := range res.Lines {
			Expect(l.Total).To(Equal(0.001))
		}
		// Rounding the raw sum of 0.0015 would give 0.002.
		Expect(res.Total).To(BeNumerically("~", 0.003, 1e-12))
		Expect(sum.Subtotal).To(Equal(0.003))
	})

	It("drops cells whose text matched no item", func() {
		sum := agg.AddImage("a", map[int]string{1: "3", 2: "7"}, map[int]Candidate{1: wood})
		res := agg.Result()

		Expect(sum.Lines).To(Equal(1))
		Expect(res.Lines).To(HaveLen(1))
		Expect(res.Lines[0].Cell).To(Equal(1))
		Expect(res.Total).To(Equal(4.5))
	})

	It("numbers lines across images", func() {
		agg.AddImage("a", map[int]string{4: "1", 2: "2"}, map[int]Candidate{4: wood, 2: stone})
		agg.AddImage("b", map[int]string{1: "5"}, map[int]Candidate{1: wood})
		res := agg.Result()

		Expect(res.Lines).To(HaveLen(3))
		Expect(res.Lines[0].Cell).To(Equal(2))
		Expect(res.Lines[1].Cell).To(Equal(4))
		Expect(res.Lines[2].Image).To(Equal("b"))
		Expect(res.Lines[2].Seq).To(Equal(3))
		Expect(res.Total).To(Equal(1.0 + 1.5 + 7.5))
		Expect(res.Images).To(HaveLen(2))
	})

	It("skips quantities that do not fit", func() {
		sum := agg.AddImage("a", map[int]string{1: "99999999999999999999", 2: "2"}, map[int]Candidate{1: wood, 2: wood})
		Expect(sum.Lines).To(Equal(1))
		Expect(agg.Result().Lines[0].Seq).To(Equal(1))
	})

	It("records skipped images", func() {
		agg.Skip("broken.png", errors.New("boom"))
		res := agg.Result()
		Expect(res.Lines).To(BeEmpty())
		Expect(res.Total).To(BeZero())
		Expect(res.Images).To(ConsistOf(ImageSummary{Name: "broken.png", Err: "boom"}))
	})
})
