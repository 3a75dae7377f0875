package service

import (
	"fmt"
	"strings"
	"time"

	"disc-assess/internal/domain"
)

// AnalysisTrait es un rasgo puntuado tal como se presenta al modelo.
type AnalysisTrait struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
	Label string  `json:"label,omitempty"`
}

// AnalysisFrequency es un comportamiento con su frecuencia declarada.
type AnalysisFrequency struct {
	Behavior string `json:"behavior"`
	Value    int    `json:"value"`
	Label    string `json:"label,omitempty"`
}

const analysisSystemPrompt = `Você é um psicólogo organizacional especialista em perfis comportamentais.
Escreva em português do Brasil, em tom profissional e acolhedor, sem diagnósticos clínicos.
Responda SOMENTE com um objeto JSON válido, sem texto antes ou depois.`

const analysisSchema = `{
  "summary": "resumo do perfil em 3 a 5 frases",
  "strengths": ["ponto forte", "..."],
  "developmentAreas": ["área de desenvolvimento", "..."],
  "workStyleInsights": "como a pessoa tende a trabalhar",
  "teamDynamicsInsights": "como a pessoa tende a se relacionar em equipe",
  "traitDescriptions": {"nome do traço": "descrição curta"}
}`

func buildAnalysisPrompt(userName string, traits []AnalysisTrait, frequencies []AnalysisFrequency) string {
	var b strings.Builder
	name := strings.TrimSpace(userName)
	if name == "" {
		name = "a pessoa avaliada"
	}
	fmt.Fprintf(&b, "Analise o perfil comportamental de %s com base nos dados abaixo.\n\n", name)

	if len(traits) > 0 {
		b.WriteString("Traços (0 a 100):\n")
		for _, t := range traits {
			if t.Label != "" {
				fmt.Fprintf(&b, "- %s: %.1f (%s)\n", t.Name, t.Score, t.Label)
			} else {
				fmt.Fprintf(&b, "- %s: %.1f\n", t.Name, t.Score)
			}
		}
		b.WriteString("\n")
	}

	if len(frequencies) > 0 {
		b.WriteString("Frequência de comportamentos (1 = nunca, 5 = sempre):\n")
		for _, f := range frequencies {
			if f.Label != "" {
				fmt.Fprintf(&b, "- %s: %d (%s)\n", f.Behavior, f.Value, f.Label)
			} else {
				fmt.Fprintf(&b, "- %s: %d\n", f.Behavior, f.Value)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString("Devolva exatamente este formato JSON:\n")
	b.WriteString(analysisSchema)
	return b.String()
}

// fallbackAnalysis es el contenido de ejemplo cuando el modelo no devuelve JSON valido.
func fallbackAnalysis(now time.Time) domain.AnalysisRecord {
	return domain.AnalysisRecord{
		Summary: "Seu perfil combina traços de iniciativa e de cooperação. Você tende a buscar resultados " +
			"concretos sem perder de vista as pessoas ao redor, ajustando o ritmo conforme o contexto.",
		Strengths: []string{
			"Capacidade de adaptação a contextos diferentes",
			"Comunicação clara com a equipe",
			"Comprometimento com as entregas",
		},
		DevelopmentAreas: []string{
			"Delegar tarefas com mais frequência",
			"Reservar tempo para planejamento de longo prazo",
		},
		WorkStyleInsights:    "Trabalha melhor com objetivos claros e autonomia para decidir como alcançá-los.",
		TeamDynamicsInsights: "Contribui para um ambiente colaborativo e costuma mediar opiniões divergentes.",
		TraitDescriptions:    map[string]string{},
		Fallback:             true,
		GeneratedAt:          now,
	}
}
