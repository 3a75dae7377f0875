package domain

import "time"

// DISCCategory es uno de los cuatro factores del modelo DISC.
type DISCCategory string

const (
	DISCDominance  DISCCategory = "D"
	DISCInfluence  DISCCategory = "I"
	DISCSteadiness DISCCategory = "S"
	DISCConformity DISCCategory = "C"
)

// DISCCategories fija el orden estable usado para desempatar.
var DISCCategories = []DISCCategory{DISCDominance, DISCInfluence, DISCSteadiness, DISCConformity}

// DISCScores es el vector de porcentajes; suma 100 (tolerancia 0.1).
type DISCScores struct {
	D float64 `json:"D"`
	I float64 `json:"I"`
	S float64 `json:"S"`
	C float64 `json:"C"`
}

func (s DISCScores) Get(c DISCCategory) float64 {
	switch c {
	case DISCDominance:
		return s.D
	case DISCInfluence:
		return s.I
	case DISCSteadiness:
		return s.S
	case DISCConformity:
		return s.C
	}
	return 0
}

func (s *DISCScores) Set(c DISCCategory, v float64) {
	switch c {
	case DISCDominance:
		s.D = v
	case DISCInfluence:
		s.I = v
	case DISCSteadiness:
		s.S = v
	case DISCConformity:
		s.C = v
	}
}

func (s DISCScores) Sum() float64 {
	return s.D + s.I + s.S + s.C
}

type DISCResult struct {
	Scores           DISCScores              `json:"scores"`
	Counts           map[DISCCategory]int    `json:"counts"`
	TotalAnswered    int                     `json:"total_answered"`
	PrimaryProfile   DISCCategory            `json:"primary_profile"`
	SecondaryProfile DISCCategory            `json:"secondary_profile"`
	Intensity        map[DISCCategory]string `json:"intensity"`
}

// TraitScore es un rasgo bipolar puntuado de 1 a 5.
type TraitScore struct {
	QuestionID int     `json:"question_id"`
	Key        string  `json:"key"`
	LeftPole   string  `json:"left_pole"`
	RightPole  string  `json:"right_pole"`
	Value      int     `json:"value"`
	Percent    float64 `json:"percent"`
}

// FrequencyScore es un item de frecuencia de comportamiento (1 = nunca, 5 = sempre).
type FrequencyScore struct {
	QuestionID int    `json:"question_id"`
	Key        string `json:"key"`
	Behavior   string `json:"behavior"`
	Value      int    `json:"value"`
	Label      string `json:"label"`
}

type TraitResult struct {
	Traits      []TraitScore     `json:"traits"`
	Frequencies []FrequencyScore `json:"frequencies"`
}

// Result es el resultado persistido de un assessment completado.
type Result struct {
	ID           string       `json:"id"`
	AssessmentID string       `json:"assessment_id"`
	UserID       string       `json:"user_id"`
	Kind         string       `json:"kind"`
	DISC         *DISCResult  `json:"disc,omitempty"`
	Traits       *TraitResult `json:"traits,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}
