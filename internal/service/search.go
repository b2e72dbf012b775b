package service

import (
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

// SearchHit is a ranked catalogue match. Lower scores rank first.
type SearchHit struct {
	Layer LayerDescription `json:"layer" doc:"Matching overlay layer"`
	Score int              `json:"score" doc:"Rank, lower is better"`
}

// fuzzyPenalty ranks every typo match after every substring match.
const fuzzyPenalty = 1000

// Search finds overlays whose label or thema contains q, then those whose
// label is within a small edit distance of q. limit <= 0 returns all hits.
func (s *CatalogService) Search(q string, limit int) []SearchHit {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return nil
	}

	var hits []SearchHit
	for _, l := range s.Overlays() {
		if score, ok := matchLayer(q, l); ok {
			hits = append(hits, SearchHit{Layer: l, Score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score < hits[j].Score
		}
		return hits[i].Layer.Label < hits[j].Layer.Label
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func matchLayer(q string, l LayerDescription) (int, bool) {
	label := strings.ToLower(l.Label)
	if i := strings.Index(label, q); i >= 0 {
		return i, true
	}
	if strings.Contains(strings.ToLower(l.Thema), q) {
		return fuzzyPenalty / 2, true
	}

	dist := levenshtein.ComputeDistance(q, label)
	maxlen := max(len(q), len(label))
	if maxlen == 0 || float64(dist)/float64(maxlen) >= 0.4 {
		return 0, false
	}
	return fuzzyPenalty + dist, true
}
