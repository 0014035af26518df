package game

import (
	"sort"

	"github.com/tastehub/server/internal/store"
)

// OverallCriterion selects the mean of the per-criterion means when
// ranking.
const OverallCriterion = "overall"

// ChipAverage holds the mean scores for one chip.
type ChipAverage struct {
	Chip     string             `json:"chip"`
	Criteria map[string]float64 `json:"criteria"`
	Overall  float64            `json:"overall"`
	Count    int                `json:"count"`
}

// Averages computes per-chip mean scores. Only participants who rated
// every listed criterion for a chip qualify; chips with no qualifying
// participants are excluded.
func Averages(snap *store.Snapshot, criteria []string) map[string]ChipAverage {
	averages := make(map[string]ChipAverage)

	for _, chip := range snap.Chips {
		sums := make(map[string]int, len(criteria))
		count := 0

		for _, chips := range snap.Votes {
			ratings, ok := chips[chip]
			if !ok {
				continue
			}
			complete := true
			for _, criterion := range criteria {
				if _, ok := ratings[criterion]; !ok {
					complete = false
					break
				}
			}
			if !complete {
				continue
			}
			count++
			for _, criterion := range criteria {
				sums[criterion] += ratings[criterion]
			}
		}

		if count == 0 {
			continue
		}

		avg := ChipAverage{
			Chip:     chip,
			Criteria: make(map[string]float64, len(criteria)),
			Count:    count,
		}
		var total float64
		for _, criterion := range criteria {
			mean := float64(sums[criterion]) / float64(count)
			avg.Criteria[criterion] = mean
			total += mean
		}
		if len(criteria) > 0 {
			avg.Overall = total / float64(len(criteria))
		}
		averages[chip] = avg
	}

	return averages
}

// Rankings orders chips descending by the given criterion's mean
// (OverallCriterion for the combined score). Ties break ascending by chip
// name so rankings are deterministic.
func Rankings(averages map[string]ChipAverage, criterion string) []ChipAverage {
	ranked := make([]ChipAverage, 0, len(averages))
	for _, avg := range averages {
		ranked = append(ranked, avg)
	}

	score := func(a ChipAverage) float64 {
		if criterion == OverallCriterion || criterion == "" {
			return a.Overall
		}
		return a.Criteria[criterion]
	}

	sort.Slice(ranked, func(i, j int) bool {
		si, sj := score(ranked[i]), score(ranked[j])
		if si != sj {
			return si > sj
		}
		return ranked[i].Chip < ranked[j].Chip
	})

	return ranked
}
