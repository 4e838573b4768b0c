package reconcile

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"invledger/pkg/catalog"
)

var _ = Describe("Match", func() {
	var (
		text      string
		threshold int
		cands     []Candidate
	)

	BeforeEach(func() {
		threshold = DefaultThreshold
	})

	JustBeforeEach(func() {
		cands = Match(text, testItems, threshold)
	})

	When("the text is an exact name", func() {
		BeforeEach(func() { text = "Wood" })

		It("returns a single exact candidate scored 100", func() {
			Expect(cands).To(Equal([]Candidate{{Name: "Wood", Value: 1.5, Score: 100, Phase: PhaseExact}}))
		})
	})

	When("the text holds two names", func() {
		BeforeEach(func() { text = "Iron Ore Wood" })

		It("finds both in catalog order", func() {
			Expect(cands).To(HaveLen(2))
			Expect(cands[0].Name).To(Equal("Wood"))
			Expect(cands[1].Name).To(Equal("Iron Ore"))
		})

		It("scores each against the whole text", func() {
			Expect(cands[0].Score).To(Equal(47))
			Expect(cands[1].Score).To(Equal(76))
		})

		It("prefers the higher score", func() {
			best, ok := Best(cands)
			Expect(ok).To(BeTrue())
			Expect(best.Name).To(Equal("Iron Ore"))
		})
	})

	When("the text is misread", func() {
		BeforeEach(func() { text = "Wod" })

		It("falls back to the closest name", func() {
			Expect(cands).To(Equal([]Candidate{{Name: "Wood", Value: 1.5, Score: 86, Phase: PhaseFuzzy}}))
		})

		When("the threshold equals the similarity", func() {
			BeforeEach(func() { threshold = 86 })

			It("still accepts it", func() {
				Expect(cands).To(HaveLen(1))
			})
		})

		When("the threshold is above the similarity", func() {
			BeforeEach(func() { threshold = 87 })

			It("rejects it", func() {
				Expect(cands).To(BeEmpty())
			})
		})
	})

	When("nothing resembles the text", func() {
		BeforeEach(func() { text = "xyz" })

		It("returns nothing", func() {
			Expect(cands).To(BeEmpty())
		})
	})

	When("the text is blank", func() {
		BeforeEach(func() { text = "   " })

		It("returns nothing", func() {
			Expect(cands).To(BeEmpty())
		})
	})

	It("breaks fuzzy ties by catalog order", func() {
		items := []catalog.Item{{Name: "Ab", Value: 1}, {Name: "Ac", Value: 2}}
		got := Match("a", items, 60)
		Expect(got).To(HaveLen(1))
		Expect(got[0].Name).To(Equal("Ab"))
	})
})

var _ = Describe("MatchCells", func() {
	It("skips empty and unmatched cells", func() {
		prov := MatchCells([]CellText{
			{Cell: 1, Text: "Wood"},
			{Cell: 2, Text: ""},
			{Cell: 3, Text: "xyz"},
			{Cell: 4, Text: "Stone"},
		}, testItems, DefaultThreshold)

		Expect(prov).To(HaveLen(2))
		Expect(prov[0].Cell).To(Equal(1))
		Expect(prov[0].Best.Name).To(Equal("Wood"))
		Expect(prov[1].Cell).To(Equal(4))
		Expect(prov[1].Best.Name).To(Equal("Stone"))
	})
})

var _ = Describe("ResolveDuplicates", func() {
	var (
		prov []Provisional
		res  Resolution
	)

	claim := func(cell int, text, item string, score int) Provisional {
		it, ok := catalog.New(testItems).Lookup(item)
		Expect(ok).To(BeTrue())
		return Provisional{Cell: cell, Text: text, Best: Candidate{Name: it.Name, Value: it.Value, Score: score, Phase: PhaseExact}}
	}

	JustBeforeEach(func() {
		res = ResolveDuplicates(prov, catalog.New(testItems), DefaultThreshold)
	})

	When("no item is contested", func() {
		BeforeEach(func() {
			prov = []Provisional{claim(1, "wood", "Wood", 100), claim(2, "stone", "Stone", 100)}
		})

		It("keeps every provisional match", func() {
			Expect(res.Final).To(HaveLen(2))
			Expect(res.Conflicts).To(BeEmpty())
		})
	})

	When("two cells claim the same item", func() {
		BeforeEach(func() {
			prov = []Provisional{claim(1, "wood stone", "Wood", 70), claim(2, "wood", "Wood", 90)}
		})

		It("gives it to the higher score", func() {
			Expect(res.Final[2].Name).To(Equal("Wood"))
			Expect(res.Conflicts).To(HaveLen(1))
			Expect(res.Conflicts[0].Winner).To(Equal(2))
		})

		It("re-matches the loser against the rest of the catalog", func() {
			Expect(res.Final[1].Name).To(Equal("Stone"))
			Expect(res.Final[1].Score).To(Equal(67))
			Expect(res.Conflicts[0].Rematches).To(HaveLen(1))
			Expect(res.Conflicts[0].Rematches[0].Match).NotTo(BeNil())
		})
	})

	When("scores tie", func() {
		BeforeEach(func() {
			prov = []Provisional{claim(3, "wood", "Wood", 80), claim(5, "wood", "Wood", 80)}
		})

		It("the earlier cell wins and the loser stays unresolved", func() {
			Expect(res.Final).To(HaveKey(3))
			Expect(res.Final).NotTo(HaveKey(5))
			Expect(res.Conflicts[0].Rematches[0].Match).To(BeNil())
		})
	})

	When("a rematch lands on an item a later group contests", func() {
		BeforeEach(func() {
			prov = []Provisional{
				claim(1, "wood", "Wood", 90),
				claim(2, "wood stone", "Wood", 70),
				claim(3, "stone", "Stone", 80),
				claim(4, "stone", "Stone", 60),
			}
		})

		It("settles each group on its own terms", func() {
			Expect(res.Final[1].Name).To(Equal("Wood"))
			Expect(res.Final[2].Name).To(Equal("Stone"))
			Expect(res.Final[3].Name).To(Equal("Stone"))
			Expect(res.Final).NotTo(HaveKey(4))
		})

		It("reports groups in order of first appearance", func() {
			Expect(res.Conflicts).To(HaveLen(2))
			Expect(res.Conflicts[0].Item).To(Equal("Wood"))
			Expect(res.Conflicts[1].Item).To(Equal("Stone"))
		})
	})
})
