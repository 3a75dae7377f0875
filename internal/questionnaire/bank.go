// Package questionnaire carga el banco de preguntas embebido de los dos instrumentos.
package questionnaire

import (
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"

	"disc-assess/internal/domain"
	"disc-assess/internal/scoring"
)

//go:embed questions.yaml
var questionsYAML []byte

var (
	ErrUnknownQuestion = errors.New("unknown question")
	ErrInvalidValue    = errors.New("invalid answer value")
)

type DISCQuestion struct {
	ID      int               `yaml:"id" json:"id"`
	Prompt  string            `yaml:"prompt" json:"prompt"`
	Options map[string]string `yaml:"options" json:"options"`
}

type TraitItem struct {
	ID    int    `yaml:"id" json:"id"`
	Key   string `yaml:"key" json:"key"`
	Left  string `yaml:"left" json:"left"`
	Right string `yaml:"right" json:"right"`
}

type FrequencyItem struct {
	ID       int    `yaml:"id" json:"id"`
	Key      string `yaml:"key" json:"key"`
	Behavior string `yaml:"behavior" json:"behavior"`
}

// Bank es inmutable despues de Load.
type Bank struct {
	DISCQuestions  []DISCQuestion  `yaml:"disc" json:"disc,omitempty"`
	TraitItems     []TraitItem     `yaml:"traits" json:"traits,omitempty"`
	FrequencyItems []FrequencyItem `yaml:"frequencies" json:"frequencies,omitempty"`

	sections map[int]string
}

var (
	defaultOnce sync.Once
	defaultBank *Bank
	defaultErr  error
)

// Default devuelve el banco embebido, parseado una sola vez.
func Default() (*Bank, error) {
	defaultOnce.Do(func() {
		defaultBank, defaultErr = Parse(questionsYAML)
	})
	return defaultBank, defaultErr
}

// Parse valida ids unicos y que cada pregunta DISC tenga las cuatro opciones.
func Parse(raw []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parse question bank: %w", err)
	}
	b.sections = make(map[int]string)

	add := func(id int, section string) error {
		if id <= 0 {
			return fmt.Errorf("question id must be positive, got %d", id)
		}
		if prev, ok := b.sections[id]; ok {
			return fmt.Errorf("duplicate question id %d (%s, %s)", id, prev, section)
		}
		b.sections[id] = section
		return nil
	}

	for _, q := range b.DISCQuestions {
		if err := add(q.ID, domain.SectionDISC); err != nil {
			return nil, err
		}
		for _, c := range domain.DISCCategories {
			if _, ok := q.Options[string(c)]; !ok {
				return nil, fmt.Errorf("disc question %d missing option %s", q.ID, c)
			}
		}
	}
	for _, t := range b.TraitItems {
		if err := add(t.ID, domain.SectionTrait); err != nil {
			return nil, err
		}
	}
	for _, f := range b.FrequencyItems {
		if err := add(f.ID, domain.SectionFrequency); err != nil {
			return nil, err
		}
	}

	sort.Slice(b.DISCQuestions, func(i, j int) bool { return b.DISCQuestions[i].ID < b.DISCQuestions[j].ID })
	sort.Slice(b.TraitItems, func(i, j int) bool { return b.TraitItems[i].ID < b.TraitItems[j].ID })
	sort.Slice(b.FrequencyItems, func(i, j int) bool { return b.FrequencyItems[i].ID < b.FrequencyItems[j].ID })
	return &b, nil
}

// ForKind devuelve solo la parte del banco que corresponde al instrumento.
func (b *Bank) ForKind(kind string) (Bank, error) {
	switch kind {
	case domain.AssessmentKindDISC:
		return Bank{DISCQuestions: b.DISCQuestions}, nil
	case domain.AssessmentKindTraits:
		return Bank{TraitItems: b.TraitItems, FrequencyItems: b.FrequencyItems}, nil
	}
	return Bank{}, fmt.Errorf("unknown assessment kind %q", kind)
}

// Normalize valida una respuesta y devuelve la seccion y el valor canonico a persistir.
func (b *Bank) Normalize(kind string, questionID int, value string) (section string, normalized string, err error) {
	section, ok := b.sections[questionID]
	if !ok {
		return "", "", fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	switch kind {
	case domain.AssessmentKindDISC:
		if section != domain.SectionDISC {
			return "", "", fmt.Errorf("%w: %d is not a disc question", ErrUnknownQuestion, questionID)
		}
		c, err := scoring.ParseCategory(value)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return section, string(c), nil
	case domain.AssessmentKindTraits:
		if section != domain.SectionTrait && section != domain.SectionFrequency {
			return "", "", fmt.Errorf("%w: %d is not a trait question", ErrUnknownQuestion, questionID)
		}
		v, err := scoring.ParseScale(value)
		if err != nil {
			return "", "", fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
		return section, strconv.Itoa(v), nil
	}
	return "", "", fmt.Errorf("unknown assessment kind %q", kind)
}

// QuestionCount es el total de preguntas que un assessment de ese tipo debe responder.
func (b *Bank) QuestionCount(kind string) int {
	switch kind {
	case domain.AssessmentKindDISC:
		return len(b.DISCQuestions)
	case domain.AssessmentKindTraits:
		return len(b.TraitItems) + len(b.FrequencyItems)
	}
	return 0
}

func (b *Bank) TraitDefinitions() []scoring.TraitDefinition {
	defs := make([]scoring.TraitDefinition, 0, len(b.TraitItems))
	for _, t := range b.TraitItems {
		defs = append(defs, scoring.TraitDefinition{QuestionID: t.ID, Key: t.Key, LeftPole: t.Left, RightPole: t.Right})
	}
	return defs
}

func (b *Bank) FrequencyDefinitions() []scoring.FrequencyDefinition {
	defs := make([]scoring.FrequencyDefinition, 0, len(b.FrequencyItems))
	for _, f := range b.FrequencyItems {
		defs = append(defs, scoring.FrequencyDefinition{QuestionID: f.ID, Key: f.Key, Behavior: f.Behavior})
	}
	return defs
}
