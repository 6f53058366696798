package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

func cohortOf(scores ...float64) []RankedScore {
	cohort := make([]RankedScore, len(scores))
	for i, s := range scores {
		cohort[i] = RankedScore{
			StudentID:    shared.StudentID(string(rune('a' + i))),
			AverageScore: s,
		}
	}
	return cohort
}

func TestCompetitionRank_SharedRanks(t *testing.T) {
	cohort := cohortOf(90, 90, 80, 70)

	results := CompetitionRank(cohort)
	require.Len(t, results, 4)

	assert.Equal(t, RankResult{Rank: 1, TotalStudents: 4}, results["a"])
	assert.Equal(t, RankResult{Rank: 1, TotalStudents: 4}, results["b"])
	assert.Equal(t, RankResult{Rank: 3, TotalStudents: 4}, results["c"])
	assert.Equal(t, RankResult{Rank: 4, TotalStudents: 4}, results["d"])
}

func TestDenseRank_NoGaps(t *testing.T) {
	cohort := cohortOf(90, 90, 80, 70)

	results := DenseRank(cohort)
	require.Len(t, results, 4)

	assert.Equal(t, 1, results["a"].Rank)
	assert.Equal(t, 1, results["b"].Rank)
	assert.Equal(t, 2, results["c"].Rank)
	assert.Equal(t, 3, results["d"].Rank)
}

func TestCompetitionRank_EmptyCohort(t *testing.T) {
	results := CompetitionRank(nil)
	assert.Empty(t, results)
}

func TestCompetitionRank_SingleStudent(t *testing.T) {
	results := CompetitionRank(cohortOf(42))
	assert.Equal(t, RankResult{Rank: 1, TotalStudents: 1}, results["a"])
}

func TestCompetitionRank_IsDeterministic(t *testing.T) {
	cohort := []RankedScore{
		{StudentID: "b", AverageScore: 75},
		{StudentID: "a", AverageScore: 75},
		{StudentID: "c", AverageScore: 60},
	}
	reversed := []RankedScore{cohort[2], cohort[1], cohort[0]}

	first := CompetitionRank(cohort)
	second := CompetitionRank(reversed)
	assert.Equal(t, first, second)
}

func TestPolicyByName(t *testing.T) {
	cohort := cohortOf(90, 90, 80)

	dense := PolicyByName("dense")(cohort)
	assert.Equal(t, 2, dense["c"].Rank)

	def := PolicyByName("competition")(cohort)
	assert.Equal(t, 3, def["c"].Rank)

	unknown := PolicyByName("")(cohort)
	assert.Equal(t, def, unknown)
}
