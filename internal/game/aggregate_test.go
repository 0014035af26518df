package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tastehub/server/internal/store"
)

var testCriteria = []string{"taste", "appearance", "mouthfeel"}

func TestAverages(t *testing.T) {
	t.Run("ExcludesUnratedChips", func(t *testing.T) {
		snap := &store.Snapshot{
			Chips: []string{"A", "B"},
			Votes: store.Votes{
				"alice": {"A": {"taste": 4, "appearance": 4, "mouthfeel": 4}},
			},
		}

		averages := Averages(snap, testCriteria)
		require.Contains(t, averages, "A")
		assert.NotContains(t, averages, "B")
		assert.InDelta(t, 4.0, averages["A"].Overall, 1e-9)
		assert.Equal(t, 1, averages["A"].Count)
	})

	t.Run("OnlyCompleteRatersQualify", func(t *testing.T) {
		snap := &store.Snapshot{
			Chips: []string{"A"},
			Votes: store.Votes{
				"alice": {"A": {"taste": 5, "appearance": 5, "mouthfeel": 5}},
				"bob":   {"A": {"taste": 1}}, // incomplete, excluded
			},
		}

		averages := Averages(snap, testCriteria)
		require.Contains(t, averages, "A")
		assert.Equal(t, 1, averages["A"].Count)
		assert.InDelta(t, 5.0, averages["A"].Criteria["taste"], 1e-9)
	})

	t.Run("MeansAcrossParticipants", func(t *testing.T) {
		snap := &store.Snapshot{
			Chips: []string{"A"},
			Votes: store.Votes{
				"alice": {"A": {"taste": 2, "appearance": 4, "mouthfeel": 3}},
				"bob":   {"A": {"taste": 4, "appearance": 2, "mouthfeel": 5}},
			},
		}

		averages := Averages(snap, testCriteria)
		require.Contains(t, averages, "A")
		assert.Equal(t, 2, averages["A"].Count)
		assert.InDelta(t, 3.0, averages["A"].Criteria["taste"], 1e-9)
		assert.InDelta(t, 3.0, averages["A"].Criteria["appearance"], 1e-9)
		assert.InDelta(t, 4.0, averages["A"].Criteria["mouthfeel"], 1e-9)
		assert.InDelta(t, (3.0+3.0+4.0)/3.0, averages["A"].Overall, 1e-9)
	})
}

func TestRankings(t *testing.T) {
	snap := &store.Snapshot{
		Chips: []string{"Mid", "Top", "TieB", "TieA"},
		Votes: store.Votes{
			"alice": {
				"Top":  {"taste": 5, "appearance": 5, "mouthfeel": 5},
				"Mid":  {"taste": 3, "appearance": 3, "mouthfeel": 3},
				"TieB": {"taste": 4, "appearance": 4, "mouthfeel": 4},
				"TieA": {"taste": 4, "appearance": 4, "mouthfeel": 4},
			},
		},
	}
	averages := Averages(snap, testCriteria)

	t.Run("DescendingWithNameTieBreak", func(t *testing.T) {
		ranked := Rankings(averages, OverallCriterion)
		require.Len(t, ranked, 4)
		assert.Equal(t, "Top", ranked[0].Chip)
		assert.Equal(t, "TieA", ranked[1].Chip)
		assert.Equal(t, "TieB", ranked[2].Chip)
		assert.Equal(t, "Mid", ranked[3].Chip)
	})

	t.Run("ByCriterion", func(t *testing.T) {
		ranked := Rankings(averages, "taste")
		assert.Equal(t, "Top", ranked[0].Chip)
	})

	t.Run("EmptyCriterionMeansOverall", func(t *testing.T) {
		assert.Equal(t, Rankings(averages, OverallCriterion), Rankings(averages, ""))
	})
}
