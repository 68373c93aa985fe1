package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fptr(v float64) *float64 { return &v }

func TestScore_RanksByWeightedMetrics(t *testing.T) {
	facts := []Fact{
		{Author: "alice", MergedPRs: 2, Commits: 4},
		{Author: "bob", MergedPRs: 1, Commits: 2},
	}

	entries := Score(facts, DefaultWeights())
	require.Len(t, entries, 2)

	assert.Equal(t, "alice", entries[0].Author)
	assert.Equal(t, "bob", entries[1].Author)

	// alice holds the maximum on both metrics: 0.20 + 0.15 weighted.
	assert.InDelta(t, 35.0, entries[0].Score, 0.001)
	assert.InDelta(t, 17.5, entries[1].Score, 0.001)
}

func TestScore_MoreMergedPRsScoresStrictlyHigher(t *testing.T) {
	facts := []Fact{
		{Author: "a", MergedPRs: 3, Commits: 5, ReviewsDone: 2},
		{Author: "b", MergedPRs: 2, Commits: 5, ReviewsDone: 2},
	}

	entries := Score(facts, DefaultWeights())
	require.Len(t, entries, 2)
	assert.Equal(t, "a", entries[0].Author)
	assert.Greater(t, entries[0].Score, entries[1].Score)
}

func TestScore_DeterministicTieOrder(t *testing.T) {
	same := func(author string) Fact {
		return Fact{Author: author, MergedPRs: 3, Commits: 5, ReviewsDone: 2}
	}

	first := Score([]Fact{same("zoe"), same("amy"), same("mia")}, DefaultWeights())
	second := Score([]Fact{same("mia"), same("amy"), same("zoe")}, DefaultWeights())

	require.Len(t, first, 3)
	assert.Equal(t, first[0].Score, first[1].Score)
	assert.Equal(t, first[1].Score, first[2].Score)

	// Ties break lexicographically regardless of input order.
	assert.Equal(t, "amy", first[0].Author)
	assert.Equal(t, "mia", first[1].Author)
	assert.Equal(t, "zoe", first[2].Author)
	assert.Equal(t, first, second)
}

func TestScore_AllZeroMetricsScoreZero(t *testing.T) {
	facts := []Fact{
		{Author: "alice"},
		{Author: "bob"},
	}

	for _, e := range Score(facts, DefaultWeights()) {
		assert.Zero(t, e.Score)
	}
}

func TestScore_LatencyRewardsLowerValues(t *testing.T) {
	facts := []Fact{
		{Author: "fast", AvgMergeSecs: fptr(100)},
		{Author: "slow", AvgMergeSecs: fptr(400)},
		{Author: "none"},
	}

	entries := Score(facts, DefaultWeights())
	require.Len(t, entries, 3)

	assert.Equal(t, "fast", entries[0].Author)
	// 1 - 100/400 on the merge-speed axis, weighted at 0.07.
	assert.InDelta(t, 5.25, entries[0].Score, 0.001)

	// The slowest author and the author with no merges both score zero on
	// this axis but stay on the board.
	assert.Zero(t, entries[1].Score)
	assert.Zero(t, entries[2].Score)
}

func TestScore_CIUsesPassRateNotRawCounts(t *testing.T) {
	facts := []Fact{
		{Author: "reliable", CIPassed: 2, CITotal: 2},
		{Author: "busy", CIPassed: 5, CITotal: 10},
	}

	entries := Score(facts, DefaultWeights())
	require.Len(t, entries, 2)

	assert.Equal(t, "reliable", entries[0].Author)
	assert.InDelta(t, 10.0, entries[0].Score, 0.001)
	assert.InDelta(t, 5.0, entries[1].Score, 0.001)
}

func TestScore_CustomWeights(t *testing.T) {
	facts := []Fact{
		{Author: "committer", Commits: 10},
		{Author: "merger", MergedPRs: 10},
	}

	onlyCommits := Weights{Commits: 1.0}
	entries := Score(facts, onlyCommits)
	require.Len(t, entries, 2)

	assert.Equal(t, "committer", entries[0].Author)
	assert.InDelta(t, 100.0, entries[0].Score, 0.001)
	assert.Zero(t, entries[1].Score)
}

func TestScore_EmptyInput(t *testing.T) {
	assert.Empty(t, Score(nil, DefaultWeights()))
}

func TestCIPassRate(t *testing.T) {
	assert.Zero(t, Fact{}.CIPassRate())
	assert.InDelta(t, 0.5, Fact{CIPassed: 1, CITotal: 2}.CIPassRate(), 0.001)
}
