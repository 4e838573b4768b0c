package reconcile

import (
	"strings"

	"invledger/pkg/catalog"
)

// Phase records how a candidate was found.
type Phase string

const (
	PhaseExact Phase = "exact"
	PhaseFuzzy Phase = "fuzzy"
)

// DefaultThreshold is the minimum fuzzy similarity accepted for a leftover.
const DefaultThreshold = 60

// Candidate is a catalog item proposed for a cell. Score is the similarity of
// the cell's whole text to the item name, not the leftover that matched it.
type Candidate struct {
	Name  string  `yaml:"name" json:"name"`
	Value float64 `yaml:"value" json:"value"`
	Score int     `yaml:"score" json:"score"`
	Phase Phase   `yaml:"phase" json:"phase"`
}

// Match proposes catalog items for one cell's text.
//
// The exact phase walks items in catalog order and takes every name that is a
// substring of what is left of the lowercased text, cutting the first
// occurrence out each time. If anything is left, the fuzzy phase adds the one
// unmatched item whose name is most similar to the leftover, provided the
// similarity reaches threshold. The first item wins ties.
func Match(text string, items []catalog.Item, threshold int) []Candidate {
	line := strings.ToLower(strings.TrimSpace(text))
	if line == "" {
		return nil
	}

	var out []Candidate
	matched := make(map[string]bool)
	remaining := line
	for _, it := range items {
		name := strings.ToLower(it.Name)
		if name == "" || matched[it.Name] || !strings.Contains(remaining, name) {
			continue
		}
		out = append(out, Candidate{Name: it.Name, Value: it.Value, Phase: PhaseExact})
		matched[it.Name] = true
		remaining = strings.TrimSpace(strings.Replace(remaining, name, "", 1))
	}

	if remaining != "" {
		best, highest := -1, 0
		for i, it := range items {
			if matched[it.Name] {
				continue
			}
			score := Ratio(remaining, strings.ToLower(it.Name))
			if score > highest && score >= threshold {
				best, highest = i, score
			}
		}
		if best >= 0 {
			it := items[best]
			out = append(out, Candidate{Name: it.Name, Value: it.Value, Phase: PhaseFuzzy})
		}
	}

	for i := range out {
		out[i].Score = Ratio(line, strings.ToLower(out[i].Name))
	}
	return out
}

// Best returns the highest scoring candidate, the earliest one on ties.
func Best(cands []Candidate) (Candidate, bool) {
	if len(cands) == 0 {
		return Candidate{}, false
	}
	best := cands[0]
	for _, c := range cands[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// CellText is the combined item-name text read from one cell.
type CellText struct {
	Cell int
	Text string
}

// Provisional is a cell's best candidate before duplicates are settled.
type Provisional struct {
	Cell       int         `yaml:"cell" json:"cell"`
	Text       string      `yaml:"text" json:"text"`
	Candidates []Candidate `yaml:"candidates" json:"candidates"`
	Best       Candidate   `yaml:"best" json:"best"`
}

// MatchCells runs Match for every cell with text and keeps, in input order,
// those that produced at least one candidate.
func MatchCells(texts []CellText, items []catalog.Item, threshold int) []Provisional {
	var out []Provisional
	for _, ct := range texts {
		if strings.TrimSpace(ct.Text) == "" {
			continue
		}
		cands := Match(ct.Text, items, threshold)
		best, ok := Best(cands)
		if !ok {
			continue
		}
		out = append(out, Provisional{Cell: ct.Cell, Text: ct.Text, Candidates: cands, Best: best})
	}
	return out
}
