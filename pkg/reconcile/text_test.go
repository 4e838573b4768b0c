package reconcile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Assign", func() {
	var (
		frags  []Fragment
		target Target
		result map[int][]Fragment
	)

	BeforeEach(func() {
		target = TextTarget
	})

	JustBeforeEach(func() {
		result = Assign(frags, defaultCells(), target)
	})

	When("fragments sit inside text strips", func() {
		BeforeEach(func() {
			frags = []Fragment{
				frag("Iron", 10, 240, 60, 270),
				frag("Stone", 320, 240, 420, 270),
				frag("Ore", 70, 240, 110, 270),
			}
		})

		It("groups them by cell keeping input order", func() {
			Expect(result).To(HaveLen(2))
			Expect(result[1]).To(Equal([]Fragment{frags[0], frags[2]}))
			Expect(result[2]).To(Equal([]Fragment{frags[1]}))
		})
	})

	When("a center lies on a shared edge", func() {
		BeforeEach(func() {
			frags = []Fragment{frag("Wood", 297, 250, 317, 260)}
		})

		It("goes to the first cell", func() {
			Expect(result[1]).To(HaveLen(1))
			Expect(result).NotTo(HaveKey(2))
		})
	})

	When("a fragment is outside every region", func() {
		BeforeEach(func() {
			frags = []Fragment{frag("noise", 10, 10, 20, 20)}
		})

		It("is dropped", func() {
			Expect(result).To(BeEmpty())
		})
	})

	When("targeting corners", func() {
		BeforeEach(func() {
			target = CornerTarget
			frags = []Fragment{
				frag("x3", 260, 10, 300, 40),
				frag("12", 570, 290, 600, 320),
			}
		})

		It("uses the quantity squares", func() {
			Expect(result[1]).To(HaveLen(1))
			Expect(result[7]).To(HaveLen(1))
		})
	})
})

var _ = Describe("ResolveQuantity", func() {
	DescribeTable("keeps digits only",
		func(texts []string, want string) {
			var frags []Fragment
			for _, t := range texts {
				frags = append(frags, Fragment{Text: t})
			}
			Expect(ResolveQuantity(frags)).To(Equal(want))
		},
		Entry("prefixed count", []string{"x12"}, "12"),
		Entry("split across fragments", []string{"1", "5"}, "15"),
		Entry("nothing read", nil, "1"),
		Entry("only the x", []string{"x"}, "1"),
	)
})

var _ = Describe("NormalizeText", func() {
	It("maps stylised glyphs to letters", func() {
		Expect(NormalizeText("£xp£rt $hield!")).To(Equal("ExpErt Shield"))
		Expect(NormalizeText("Gold™")).To(Equal("GoldTM"))
		Expect(NormalizeText("¡ron")).To(Equal("iron"))
	})

	It("drops punctuation", func() {
		Expect(NormalizeText("Iron-Ore.")).To(Equal("IronOre"))
	})
})

var _ = Describe("CombineText", func() {
	It("joins normalized fragments with single spaces", func() {
		Expect(CombineText([]Fragment{{Text: "Iron"}, {Text: "..."}, {Text: "Ore"}})).To(Equal("Iron Ore"))
	})

	It("is empty without fragments", func() {
		Expect(CombineText(nil)).To(BeEmpty())
	})
})

var _ = Describe("Ratio", func() {
	DescribeTable("scores similarity",
		func(a, b string, want int) {
			Expect(Ratio(a, b)).To(Equal(want))
		},
		Entry("identical", "wood", "wood", 100),
		Entry("dropped letter", "wod", "wood", 86),
		Entry("classic pair", "kitten", "sitting", 62),
		Entry("half rounds to even", "a", "abcdefghijklmno", 12),
		Entry("empty side", "", "wood", 0),
		Entry("nothing shared", "xyz", "wood", 0),
	)

	It("is symmetric", func() {
		Expect(Ratio("iron ore", "copper ore")).To(Equal(Ratio("copper ore", "iron ore")))
	})
})
