package grading

import (
	"sort"

	"github.com/schoolhub/grade-engine/internal/domain/shared"
)

// RankedScore is one cohort member's computed average, ready for ranking.
type RankedScore struct {
	StudentID    shared.StudentID
	AverageScore float64
}

// RankResult is a student's position within a cohort.
type RankResult struct {
	Rank          int
	TotalStudents int
}

// RankingPolicy assigns ranks to a cohort of averages. The cohort contains
// only students with a recorded average for the period; totalStudents is
// the cohort size.
type RankingPolicy func(cohort []RankedScore) map[shared.StudentID]RankResult

// CompetitionRank is the default ranking policy: descending by score,
// equal scores share a rank, and the next distinct score's rank equals
// 1 + the count of all students ranked above it. [90, 90, 80, 70] ranks
// as [1, 1, 3, 4].
func CompetitionRank(cohort []RankedScore) map[shared.StudentID]RankResult {
	ordered := sortedByScoreDesc(cohort)

	results := make(map[shared.StudentID]RankResult, len(ordered))
	currentRank := 1
	for i, rs := range ordered {
		if i > 0 && rs.AverageScore < ordered[i-1].AverageScore {
			currentRank = i + 1
		}
		results[rs.StudentID] = RankResult{Rank: currentRank, TotalStudents: len(ordered)}
	}
	return results
}

// DenseRank is the alternative policy: equal scores share a rank and the
// next distinct score's rank increases by exactly one. [90, 90, 80, 70]
// ranks as [1, 1, 2, 3].
func DenseRank(cohort []RankedScore) map[shared.StudentID]RankResult {
	ordered := sortedByScoreDesc(cohort)

	results := make(map[shared.StudentID]RankResult, len(ordered))
	currentRank := 0
	for i, rs := range ordered {
		if i == 0 || rs.AverageScore < ordered[i-1].AverageScore {
			currentRank++
		}
		results[rs.StudentID] = RankResult{Rank: currentRank, TotalStudents: len(ordered)}
	}
	return results
}

// PolicyByName returns the named ranking policy, defaulting to competition
// ranking for unknown names.
func PolicyByName(name string) RankingPolicy {
	if name == "dense" {
		return DenseRank
	}
	return CompetitionRank
}

// sortedByScoreDesc orders a cohort by score descending, with student ID
// as a tiebreak so equal scores rank deterministically.
func sortedByScoreDesc(cohort []RankedScore) []RankedScore {
	ordered := make([]RankedScore, len(cohort))
	copy(ordered, cohort)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].AverageScore != ordered[j].AverageScore {
			return ordered[i].AverageScore > ordered[j].AverageScore
		}
		return ordered[i].StudentID < ordered[j].StudentID
	})
	return ordered
}
