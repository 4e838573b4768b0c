package reconcile

import (
	"sort"

	"invledger/pkg/catalog"
)

// Claim is one cell's bid for a contested item.
type Claim struct {
	Cell  int `yaml:"cell" json:"cell"`
	Score int `yaml:"score" json:"score"`
}

// Rematch is the outcome of re-matching a cell that lost a contested item.
// Match is nil when nothing in the remaining catalog fit.
type Rematch struct {
	Cell  int        `yaml:"cell" json:"cell"`
	Match *Candidate `yaml:"match,omitempty" json:"match,omitempty"`
}

// Conflict describes one item claimed by several cells of the same image.
type Conflict struct {
	Item      string    `yaml:"item" json:"item"`
	Claims    []Claim   `yaml:"claims" json:"claims"`
	Winner    int       `yaml:"winner" json:"winner"`
	Rematches []Rematch `yaml:"rematches" json:"rematches"`
}

// Resolution is the final cell to item mapping for one image.
type Resolution struct {
	Final     map[int]Candidate `yaml:"final" json:"final"`
	Conflicts []Conflict        `yaml:"conflicts" json:"conflicts"`
}

// ResolveDuplicates settles items claimed by more than one cell.
//
// Uncontested cells keep their item. For each contested item, in order of
// first appearance, the highest scoring claim wins (earliest cell on ties) and
// every loser is matched again against the catalog minus all items assigned
// so far. Losers with no new match are left unresolved. A rematch may land on
// an item that a later group is still contesting; that group is then settled
// on its own terms, so two cells can end up with the same item.
func ResolveDuplicates(prov []Provisional, cat *catalog.Catalog, threshold int) Resolution {
	res := Resolution{Final: make(map[int]Candidate)}

	byCell := make(map[int]Provisional, len(prov))
	groups := make(map[string][]Claim)
	var order []string
	for _, p := range prov {
		byCell[p.Cell] = p
		name := p.Best.Name
		if _, seen := groups[name]; !seen {
			order = append(order, name)
		}
		groups[name] = append(groups[name], Claim{Cell: p.Cell, Score: p.Best.Score})
	}

	used := make(map[string]bool)
	for _, p := range prov {
		if len(groups[p.Best.Name]) == 1 {
			res.Final[p.Cell] = p.Best
			used[p.Best.Name] = true
		}
	}

	for _, name := range order {
		claims := groups[name]
		if len(claims) < 2 {
			continue
		}
		sort.SliceStable(claims, func(i, j int) bool { return claims[i].Score > claims[j].Score })

		winner := claims[0].Cell
		res.Final[winner] = byCell[winner].Best
		used[name] = true

		c := Conflict{Item: name, Claims: claims, Winner: winner}
		for _, loser := range claims[1:] {
			rm := Rematch{Cell: loser.Cell}
			cands := Match(byCell[loser.Cell].Text, cat.Without(used), threshold)
			if best, ok := Best(cands); ok {
				res.Final[loser.Cell] = best
				used[best.Name] = true
				rm.Match = &best
			}
			c.Rematches = append(c.Rematches, rm)
		}
		res.Conflicts = append(res.Conflicts, c)
	}
	return res
}
