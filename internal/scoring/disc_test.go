package scoring

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disc-assess/internal/domain"
)

func TestCalculateDISCResults_EmptyAnswerSet(t *testing.T) {
	res := CalculateDISCResults(AnswerSet{})

	want := domain.DISCScores{D: 25, I: 25, S: 25, C: 25}
	if diff := cmp.Diff(want, res.Scores); diff != "" {
		t.Fatalf("unexpected scores (-want +got):\n%s", diff)
	}
	assert.Equal(t, domain.DISCDominance, res.PrimaryProfile)
	assert.Equal(t, domain.DISCInfluence, res.SecondaryProfile)
	assert.Equal(t, 0, res.TotalAnswered)
	for _, c := range domain.DISCCategories {
		assert.Equal(t, IntensityLow, res.Intensity[c])
	}
}

func TestCalculateDISCResults_NilAnswerSet(t *testing.T) {
	res := CalculateDISCResults(nil)
	assert.Equal(t, domain.DISCScores{D: 25, I: 25, S: 25, C: 25}, res.Scores)
}

func TestCalculateDISCResults_WorkedExample(t *testing.T) {
	res := CalculateDISCResults(AnswerSet{1: "D", 2: "D", 3: "I", 4: "S"})

	want := domain.DISCResult{
		Scores:           domain.DISCScores{D: 50, I: 25, S: 25, C: 0},
		Counts:           map[domain.DISCCategory]int{"D": 2, "I": 1, "S": 1, "C": 0},
		TotalAnswered:    4,
		PrimaryProfile:   domain.DISCDominance,
		SecondaryProfile: domain.DISCInfluence,
		Intensity: map[domain.DISCCategory]string{
			"D": IntensityModerate,
			"I": IntensityLow,
			"S": IntensityLow,
			"C": IntensityLow,
		},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("unexpected result (-want +got):\n%s", diff)
	}
}

func TestCalculateDISCResults_SumsToHundred(t *testing.T) {
	cases := []AnswerSet{
		{1: "D"},
		{1: "D", 2: "I", 3: "S"},
		{1: "C", 2: "C", 3: "C", 4: "I", 5: "S", 6: "D", 7: "D"},
	}
	big := AnswerSet{}
	for i := 1; i <= 97; i++ {
		big[i] = domain.DISCCategories[(i*7)%4]
	}
	cases = append(cases, big)

	for _, answers := range cases {
		res := CalculateDISCResults(answers)
		assert.InDelta(t, 100, res.Scores.Sum(), 0.1)
	}
}

func TestCalculateDISCResults_PrimaryAndSecondaryDominateOthers(t *testing.T) {
	res := CalculateDISCResults(AnswerSet{1: "C", 2: "C", 3: "S", 4: "S", 5: "S", 6: "I"})

	require.Equal(t, domain.DISCSteadiness, res.PrimaryProfile)
	require.Equal(t, domain.DISCConformity, res.SecondaryProfile)

	primary := res.Scores.Get(res.PrimaryProfile)
	secondary := res.Scores.Get(res.SecondaryProfile)
	assert.GreaterOrEqual(t, primary, secondary)
	for _, c := range domain.DISCCategories {
		if c == res.PrimaryProfile || c == res.SecondaryProfile {
			continue
		}
		assert.GreaterOrEqual(t, secondary, res.Scores.Get(c))
	}
}

func TestCalculateDISCResults_Idempotent(t *testing.T) {
	answers := AnswerSet{1: "I", 2: "S", 3: "C", 4: "I", 5: "D", 6: "I", 7: "C"}
	first := CalculateDISCResults(answers)
	second := CalculateDISCResults(answers)

	for _, c := range domain.DISCCategories {
		assert.Equal(t, math.Float64bits(first.Scores.Get(c)), math.Float64bits(second.Scores.Get(c)))
	}
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("results differ between calls:\n%s", diff)
	}
}

func TestCalculateDISCResults_IgnoresUnknownCategories(t *testing.T) {
	res := CalculateDISCResults(AnswerSet{1: "D", 2: "X"})
	assert.Equal(t, 1, res.TotalAnswered)
	assert.Equal(t, 100.0, res.Scores.D)
	assert.Equal(t, IntensityVeryHigh, res.Intensity[domain.DISCDominance])
}

func TestIntensityLabel_Bands(t *testing.T) {
	cases := map[float64]string{
		0:     IntensityLow,
		25:    IntensityLow,
		25.01: IntensityModerate,
		50:    IntensityModerate,
		75:    IntensityHigh,
		75.5:  IntensityVeryHigh,
		100:   IntensityVeryHigh,
	}
	for pct, want := range cases {
		assert.Equal(t, want, IntensityLabel(pct), "pct=%v", pct)
	}
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory(" s ")
	require.NoError(t, err)
	assert.Equal(t, domain.DISCSteadiness, c)

	_, err = ParseCategory("x")
	assert.Error(t, err)
}

func TestAnswerSetFrom_SkipsInvalid(t *testing.T) {
	set := AnswerSetFrom([]domain.Answer{
		{QuestionID: 1, Value: "d"},
		{QuestionID: 2, Value: "?"},
		{QuestionID: 3, Value: "C"},
	})
	assert.Equal(t, AnswerSet{1: "D", 3: "C"}, set)
}
