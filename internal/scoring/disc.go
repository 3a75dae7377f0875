// Package scoring calcula los resultados de los instrumentos DISC y de rasgos.
// Todas las funciones son puras: mismo input, mismo output.
package scoring

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"disc-assess/internal/domain"
)

// AnswerSet mapea id de pregunta a la categoria DISC elegida.
type AnswerSet map[int]domain.DISCCategory

const (
	// renormTolerance es la desviacion maxima aceptada de la suma respecto de 100.
	renormTolerance = 0.1
	equalSplit      = 25.0
)

const (
	IntensityLow      = "Low"
	IntensityModerate = "Moderate"
	IntensityHigh     = "High"
	IntensityVeryHigh = "Very High"
)

// CalculateDISCResults convierte las respuestas en porcentajes normalizados, perfil primario/secundario
// y etiquetas de intensidad. Nunca falla: sin respuestas devuelve 25/25/25/25 con D/I.
func CalculateDISCResults(answers AnswerSet) domain.DISCResult {
	counts := make(map[domain.DISCCategory]int, len(domain.DISCCategories))
	for _, c := range domain.DISCCategories {
		counts[c] = 0
	}
	total := 0
	for _, c := range answers {
		if _, ok := counts[c]; !ok {
			continue
		}
		counts[c]++
		total++
	}

	var scores domain.DISCScores
	if total == 0 {
		for _, c := range domain.DISCCategories {
			scores.Set(c, equalSplit)
		}
		return domain.DISCResult{
			Scores:           scores,
			Counts:           counts,
			TotalAnswered:    0,
			PrimaryProfile:   domain.DISCDominance,
			SecondaryProfile: domain.DISCInfluence,
			Intensity:        intensities(scores),
		}
	}

	for _, c := range domain.DISCCategories {
		scores.Set(c, float64(counts[c])/float64(total)*100)
	}
	if sum := scores.Sum(); math.Abs(sum-100) > renormTolerance {
		factor := 100 / sum
		for _, c := range domain.DISCCategories {
			scores.Set(c, scores.Get(c)*factor)
		}
	}

	ranked := RankCategories(scores)
	return domain.DISCResult{
		Scores:           scores,
		Counts:           counts,
		TotalAnswered:    total,
		PrimaryProfile:   ranked[0],
		SecondaryProfile: ranked[1],
		Intensity:        intensities(scores),
	}
}

// RankCategories ordena de mayor a menor; los empates respetan el orden D, I, S, C.
func RankCategories(scores domain.DISCScores) []domain.DISCCategory {
	ranked := make([]domain.DISCCategory, len(domain.DISCCategories))
	copy(ranked, domain.DISCCategories)
	sort.SliceStable(ranked, func(i, j int) bool {
		return scores.Get(ranked[i]) > scores.Get(ranked[j])
	})
	return ranked
}

// IntensityLabel aplica las bandas <=25, <=50, <=75, >75.
func IntensityLabel(pct float64) string {
	switch {
	case pct <= 25:
		return IntensityLow
	case pct <= 50:
		return IntensityModerate
	case pct <= 75:
		return IntensityHigh
	default:
		return IntensityVeryHigh
	}
}

func intensities(scores domain.DISCScores) map[domain.DISCCategory]string {
	out := make(map[domain.DISCCategory]string, len(domain.DISCCategories))
	for _, c := range domain.DISCCategories {
		out[c] = IntensityLabel(scores.Get(c))
	}
	return out
}

// ParseCategory acepta "d", "D", " i " etc.
func ParseCategory(raw string) (domain.DISCCategory, error) {
	c := domain.DISCCategory(strings.ToUpper(strings.TrimSpace(raw)))
	for _, known := range domain.DISCCategories {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("invalid disc category %q", raw)
}

// AnswerSetFrom construye un AnswerSet desde respuestas persistidas, ignorando valores invalidos.
func AnswerSetFrom(answers []domain.Answer) AnswerSet {
	set := make(AnswerSet, len(answers))
	for _, a := range answers {
		c, err := ParseCategory(a.Value)
		if err != nil {
			continue
		}
		set[a.QuestionID] = c
	}
	return set
}
