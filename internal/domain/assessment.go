package domain

import "time"

const (
	AssessmentKindDISC   = "disc"
	AssessmentKindTraits = "traits"
)

const (
	AssessmentStatusInProgress = "in_progress"
	AssessmentStatusCompleted  = "completed"
)

// Assessment es una sesion de cuestionario de un usuario.
type Assessment struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	Answers     []Answer   `json:"answers,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (a Assessment) Completed() bool {
	return a.Status == AssessmentStatusCompleted
}

// Answer guarda el valor crudo de una pregunta: "D|I|S|C" para DISC, "1".."5" para rasgos.
// Section distingue items de rasgo ("trait") y de frecuencia ("frequency") en el instrumento de rasgos.
type Answer struct {
	AssessmentID string    `json:"assessment_id"`
	QuestionID   int       `json:"question_id"`
	Section      string    `json:"section"`
	Value        string    `json:"value"`
	AnsweredAt   time.Time `json:"answered_at"`
}

const (
	SectionDISC      = "disc"
	SectionTrait     = "trait"
	SectionFrequency = "frequency"
)

func IsValidAssessmentKind(kind string) bool {
	return kind == AssessmentKindDISC || kind == AssessmentKindTraits
}
