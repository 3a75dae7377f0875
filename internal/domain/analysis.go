package domain

import (
	"strings"
	"time"
)

// AnalysisRecord es la narrativa generada por el LLM para un resultado.
// Los nombres JSON coinciden con el esquema pedido al modelo.
type AnalysisRecord struct {
	Summary              string            `json:"summary"`
	Strengths            []string          `json:"strengths"`
	DevelopmentAreas     []string          `json:"developmentAreas"`
	WorkStyleInsights    string            `json:"workStyleInsights"`
	TeamDynamicsInsights string            `json:"teamDynamicsInsights"`
	TraitDescriptions    map[string]string `json:"traitDescriptions"`
	Fallback             bool              `json:"fallback,omitempty"`
	GeneratedAt          time.Time         `json:"generatedAt"`
}

// WellFormed indica si el registro cacheado puede devolverse sin regenerar.
func (r AnalysisRecord) WellFormed() bool {
	return strings.TrimSpace(r.Summary) != ""
}
