package scoring

import (
	"fmt"
	"strconv"
	"strings"

	"disc-assess/internal/domain"
)

const (
	ScaleMin = 1
	ScaleMax = 5
)

// TraitDefinition describe un rasgo bipolar del instrumento.
type TraitDefinition struct {
	QuestionID int
	Key        string
	LeftPole   string
	RightPole  string
}

// FrequencyDefinition describe un item de frecuencia de comportamiento.
type FrequencyDefinition struct {
	QuestionID int
	Key        string
	Behavior   string
}

var frequencyLabels = map[int]string{
	1: "Nunca",
	2: "Raramente",
	3: "Às vezes",
	4: "Frequentemente",
	5: "Sempre",
}

// FrequencyLabel devuelve la etiqueta de la escala 1-5; vacio fuera de rango.
func FrequencyLabel(v int) string {
	return frequencyLabels[v]
}

// ParseScale valida un valor de la escala 1-5.
func ParseScale(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid scale value %q", raw)
	}
	if v < ScaleMin || v > ScaleMax {
		return 0, fmt.Errorf("scale value %d out of range %d-%d", v, ScaleMin, ScaleMax)
	}
	return v, nil
}

// CalculateTraitResults arma el resultado del instrumento de rasgos en el orden de las definiciones.
// Items sin respuesta se omiten.
func CalculateTraitResults(
	traits []TraitDefinition,
	frequencies []FrequencyDefinition,
	traitAnswers map[int]int,
	frequencyAnswers map[int]int,
) domain.TraitResult {
	result := domain.TraitResult{
		Traits:      make([]domain.TraitScore, 0, len(traits)),
		Frequencies: make([]domain.FrequencyScore, 0, len(frequencies)),
	}

	for _, def := range traits {
		v, ok := traitAnswers[def.QuestionID]
		if !ok || v < ScaleMin || v > ScaleMax {
			continue
		}
		result.Traits = append(result.Traits, domain.TraitScore{
			QuestionID: def.QuestionID,
			Key:        def.Key,
			LeftPole:   def.LeftPole,
			RightPole:  def.RightPole,
			Value:      v,
			Percent:    float64(v-ScaleMin) / float64(ScaleMax-ScaleMin) * 100,
		})
	}

	for _, def := range frequencies {
		v, ok := frequencyAnswers[def.QuestionID]
		if !ok || v < ScaleMin || v > ScaleMax {
			continue
		}
		result.Frequencies = append(result.Frequencies, domain.FrequencyScore{
			QuestionID: def.QuestionID,
			Key:        def.Key,
			Behavior:   def.Behavior,
			Value:      v,
			Label:      FrequencyLabel(v),
		})
	}

	return result
}

// SplitTraitAnswers separa respuestas persistidas por seccion, descartando valores fuera de escala.
func SplitTraitAnswers(answers []domain.Answer) (traits map[int]int, frequencies map[int]int) {
	traits = make(map[int]int)
	frequencies = make(map[int]int)
	for _, a := range answers {
		v, err := ParseScale(a.Value)
		if err != nil {
			continue
		}
		switch a.Section {
		case domain.SectionTrait:
			traits[a.QuestionID] = v
		case domain.SectionFrequency:
			frequencies[a.QuestionID] = v
		}
	}
	return traits, frequencies
}
