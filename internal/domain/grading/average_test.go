package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLetterGradeThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  LetterGrade
	}{
		{100, GradeA},
		{85, GradeA},
		{84.99, GradeB},
		{70, GradeB},
		{69.99, GradeC},
		{55, GradeC},
		{54.99, GradeD},
		{40, GradeD},
		{39.99, GradeE},
		{25, GradeE},
		{24.99, GradeF},
		{0, GradeF},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, LetterGradeFor(tt.score), "score %v", tt.score)
	}
}

// Letter grades are a monotonic step function: a higher score never maps
// to a worse grade.
func TestLetterGradeMonotonicity(t *testing.T) {
	order := map[LetterGrade]int{
		GradeA: 6, GradeB: 5, GradeC: 4, GradeD: 3, GradeE: 2, GradeF: 1,
	}

	prev := LetterGradeFor(0)
	for s := 0.25; s <= 100; s += 0.25 {
		cur := LetterGradeFor(s)
		assert.GreaterOrEqual(t, order[cur], order[prev], "grade regressed at score %v", s)
		prev = cur
	}
}

func TestAverageKeyString(t *testing.T) {
	key := AverageKey{
		StudentID:    "5f0c2a1e-0000-4000-8000-000000000001",
		ClassID:      "5f0c2a1e-0000-4000-8000-000000000002",
		SubjectID:    "5f0c2a1e-0000-4000-8000-000000000003",
		Semester:     1,
		AcademicYear: "2025/2026",
		AverageType:  AverageMonthly,
	}
	assert.Equal(t,
		"5f0c2a1e-0000-4000-8000-000000000001:5f0c2a1e-0000-4000-8000-000000000002:5f0c2a1e-0000-4000-8000-000000000003:1:2025/2026:MONTHLY",
		key.String())

	// Overall keys omit the subject; the tuple stays unambiguous.
	key.SubjectID = ""
	key.AverageType = AverageOverall
	assert.Contains(t, key.String(), "::1:2025/2026:OVERALL")
}

func TestGradeEntryPercentageClamps(t *testing.T) {
	e := GradeEntry{Score: 45, MaxScore: 50}
	assert.InDelta(t, 90.0, e.Percentage().Float64(), 1e-9)

	zero := GradeEntry{Score: 10, MaxScore: 0}
	assert.Equal(t, 0.0, zero.Percentage().Float64())
}
