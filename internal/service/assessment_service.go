package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/questionnaire"
	"disc-assess/internal/repository"
	"disc-assess/internal/scoring"
)

var (
	ErrAssessmentNotFound  = errors.New("assessment not found")
	ErrAssessmentCompleted = errors.New("assessment already completed")
	ErrInvalidKind         = errors.New("invalid assessment kind")
	ErrInvalidAnswer       = errors.New("invalid answer")
	ErrNoAnswers           = errors.New("assessment has no answers")
	ErrResultNotFound      = errors.New("result not found")
)

// Viewer es quien pide un recurso; los admin ven los de cualquier usuario.
type Viewer struct {
	UserID string
	Admin  bool
}

func (v Viewer) canSee(ownerID string) bool {
	return v.Admin || (v.UserID != "" && v.UserID == ownerID)
}

// AssessmentService maneja el ciclo de vida de un cuestionario y el calculo del resultado.
type AssessmentService struct {
	assessments repository.AssessmentRepository
	results     repository.ResultRepository
	bank        *questionnaire.Bank
	logger      *zap.Logger
}

func NewAssessmentService(assessments repository.AssessmentRepository, results repository.ResultRepository, bank *questionnaire.Bank, logger *zap.Logger) *AssessmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssessmentService{
		assessments: assessments,
		results:     results,
		bank:        bank,
		logger:      logger,
	}
}

func (s *AssessmentService) Start(ctx context.Context, userID, kind string) (domain.Assessment, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	if !domain.IsValidAssessmentKind(kind) {
		return domain.Assessment{}, ErrInvalidKind
	}
	a := domain.Assessment{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Status:    domain.AssessmentStatusInProgress,
		StartedAt: time.Now().UTC(),
	}
	if err := s.assessments.Create(ctx, a); err != nil {
		return domain.Assessment{}, err
	}
	s.logger.Info("assessment started", zap.String("assessment_id", a.ID), zap.String("user_id", userID), zap.String("kind", kind))
	return a, nil
}

// Get devuelve el assessment con sus respuestas.
func (s *AssessmentService) Get(ctx context.Context, viewer Viewer, assessmentID string) (domain.Assessment, error) {
	a, err := s.load(ctx, viewer, assessmentID)
	if err != nil {
		return domain.Assessment{}, err
	}
	answers, err := s.assessments.ListAnswers(ctx, a.ID)
	if err != nil {
		return domain.Assessment{}, err
	}
	a.Answers = answers
	return a, nil
}

// SaveAnswer reemplaza la respuesta previa de la misma pregunta.
func (s *AssessmentService) SaveAnswer(ctx context.Context, userID, assessmentID string, questionID int, value string) (domain.Answer, error) {
	a, err := s.load(ctx, Viewer{UserID: userID}, assessmentID)
	if err != nil {
		return domain.Answer{}, err
	}
	if a.Completed() {
		return domain.Answer{}, ErrAssessmentCompleted
	}

	section, normalized, err := s.bank.Normalize(a.Kind, questionID, value)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("%w: %v", ErrInvalidAnswer, err)
	}

	answer := domain.Answer{
		AssessmentID: a.ID,
		QuestionID:   questionID,
		Section:      section,
		Value:        normalized,
		AnsweredAt:   time.Now().UTC(),
	}
	if err := s.assessments.UpsertAnswer(ctx, answer); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Answer{}, ErrAssessmentCompleted
		}
		return domain.Answer{}, err
	}
	return answer, nil
}

// Complete calcula y persiste el resultado; despues el assessment no acepta respuestas.
func (s *AssessmentService) Complete(ctx context.Context, userID, assessmentID string) (domain.Result, error) {
	a, err := s.load(ctx, Viewer{UserID: userID}, assessmentID)
	if err != nil {
		return domain.Result{}, err
	}
	if a.Completed() {
		return domain.Result{}, ErrAssessmentCompleted
	}

	answers, err := s.assessments.ListAnswers(ctx, a.ID)
	if err != nil {
		return domain.Result{}, err
	}
	if len(answers) == 0 {
		return domain.Result{}, ErrNoAnswers
	}

	result, err := ScoreAnswers(s.bank, a.Kind, answers)
	if err != nil {
		return domain.Result{}, err
	}
	result.ID = uuid.NewString()
	result.AssessmentID = a.ID
	result.UserID = a.UserID
	result.CreatedAt = time.Now().UTC()

	if err := s.assessments.Complete(ctx, result); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Result{}, ErrAssessmentCompleted
		}
		return domain.Result{}, err
	}

	if expected := s.bank.QuestionCount(a.Kind); len(answers) < expected {
		s.logger.Warn("assessment completed with missing answers",
			zap.String("assessment_id", a.ID),
			zap.Int("answered", len(answers)),
			zap.Int("expected", expected),
		)
	}
	s.logger.Info("assessment completed", zap.String("assessment_id", a.ID), zap.String("result_id", result.ID))
	return result, nil
}

// ScoreAnswers calcula el resultado de respuestas ya normalizadas, sin persistir nada.
func ScoreAnswers(bank *questionnaire.Bank, kind string, answers []domain.Answer) (domain.Result, error) {
	result := domain.Result{Kind: kind}
	switch kind {
	case domain.AssessmentKindDISC:
		disc := scoring.CalculateDISCResults(scoring.AnswerSetFrom(answers))
		result.DISC = &disc
	case domain.AssessmentKindTraits:
		traitAnswers, freqAnswers := scoring.SplitTraitAnswers(answers)
		traits := scoring.CalculateTraitResults(bank.TraitDefinitions(), bank.FrequencyDefinitions(), traitAnswers, freqAnswers)
		result.Traits = &traits
	default:
		return domain.Result{}, ErrInvalidKind
	}
	return result, nil
}

func (s *AssessmentService) GetResult(ctx context.Context, viewer Viewer, resultID string) (domain.Result, error) {
	res, err := s.results.GetByID(ctx, resultID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Result{}, ErrResultNotFound
		}
		return domain.Result{}, err
	}
	if !viewer.canSee(res.UserID) {
		return domain.Result{}, ErrResultNotFound
	}
	return res, nil
}

func (s *AssessmentService) ListResults(ctx context.Context, userID string) ([]domain.Result, error) {
	results, err := s.results.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.Result{}
	}
	return results, nil
}

func (s *AssessmentService) ListAllResults(ctx context.Context, page, pageSize int) ([]domain.Result, error) {
	limit, offset := pageBounds(page, pageSize)
	results, err := s.results.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []domain.Result{}
	}
	return results, nil
}

// load oculta assessments ajenos como inexistentes.
func (s *AssessmentService) load(ctx context.Context, viewer Viewer, assessmentID string) (domain.Assessment, error) {
	a, err := s.assessments.GetByID(ctx, assessmentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Assessment{}, ErrAssessmentNotFound
		}
		return domain.Assessment{}, err
	}
	if !viewer.canSee(a.UserID) {
		return domain.Assessment{}, ErrAssessmentNotFound
	}
	return a, nil
}
