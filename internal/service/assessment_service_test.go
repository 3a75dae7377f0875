package service

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/questionnaire"
)

type mockAssessmentRepo struct {
	items   map[string]domain.Assessment
	answers map[string]map[int]domain.Answer
	results *mockResultRepo
	// completeErrs se consumen en orden; simulan fallos que hacen rollback.
	completeErrs []error
}

func newMockAssessmentRepo(results *mockResultRepo) *mockAssessmentRepo {
	return &mockAssessmentRepo{
		items:   make(map[string]domain.Assessment),
		answers: make(map[string]map[int]domain.Answer),
		results: results,
	}
}

func (m *mockAssessmentRepo) Create(_ context.Context, a domain.Assessment) error {
	m.items[a.ID] = a
	return nil
}

func (m *mockAssessmentRepo) GetByID(_ context.Context, id string) (domain.Assessment, error) {
	a, ok := m.items[id]
	if !ok {
		return domain.Assessment{}, pgx.ErrNoRows
	}
	return a, nil
}

func (m *mockAssessmentRepo) UpsertAnswer(_ context.Context, answer domain.Answer) error {
	a, ok := m.items[answer.AssessmentID]
	if !ok || a.Completed() {
		return pgx.ErrNoRows
	}
	if m.answers[answer.AssessmentID] == nil {
		m.answers[answer.AssessmentID] = make(map[int]domain.Answer)
	}
	m.answers[answer.AssessmentID][answer.QuestionID] = answer
	return nil
}

func (m *mockAssessmentRepo) ListAnswers(_ context.Context, assessmentID string) ([]domain.Answer, error) {
	var out []domain.Answer
	for _, a := range m.answers[assessmentID] {
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAssessmentRepo) Complete(ctx context.Context, r domain.Result) error {
	if len(m.completeErrs) > 0 {
		err := m.completeErrs[0]
		m.completeErrs = m.completeErrs[1:]
		return err
	}
	a, ok := m.items[r.AssessmentID]
	if !ok || a.Completed() {
		return pgx.ErrNoRows
	}
	for _, existing := range m.results.items {
		if existing.AssessmentID == r.AssessmentID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	a.Status = domain.AssessmentStatusCompleted
	completedAt := r.CreatedAt
	a.CompletedAt = &completedAt
	m.items[a.ID] = a
	return m.results.Create(ctx, r)
}

type mockResultRepo struct {
	items map[string]domain.Result
	order []string
}

func newMockResultRepo() *mockResultRepo {
	return &mockResultRepo{items: make(map[string]domain.Result)}
}

func (m *mockResultRepo) Create(_ context.Context, r domain.Result) error {
	m.items[r.ID] = r
	m.order = append(m.order, r.ID)
	return nil
}

func (m *mockResultRepo) GetByID(_ context.Context, id string) (domain.Result, error) {
	r, ok := m.items[id]
	if !ok {
		return domain.Result{}, pgx.ErrNoRows
	}
	return r, nil
}

func (m *mockResultRepo) ListByUser(_ context.Context, userID string) ([]domain.Result, error) {
	var out []domain.Result
	for _, id := range m.order {
		if m.items[id].UserID == userID {
			out = append(out, m.items[id])
		}
	}
	return out, nil
}

func (m *mockResultRepo) ListAll(_ context.Context, limit, offset int) ([]domain.Result, error) {
	var out []domain.Result
	for i, id := range m.order {
		if i < offset {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, m.items[id])
	}
	return out, nil
}

func newTestAssessmentService(t *testing.T) (*AssessmentService, *mockAssessmentRepo, *mockResultRepo) {
	t.Helper()
	bank, err := questionnaire.Default()
	if err != nil {
		t.Fatalf("load bank: %v", err)
	}
	results := newMockResultRepo()
	assessments := newMockAssessmentRepo(results)
	return NewAssessmentService(assessments, results, bank, zap.NewNop()), assessments, results
}

func TestAssessmentStartRejectsUnknownKind(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	if _, err := svc.Start(context.Background(), "u1", "mbti"); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestAssessmentDISCFlow(t *testing.T) {
	svc, _, results := newTestAssessmentService(t)
	ctx := context.Background()

	a, err := svc.Start(ctx, "u1", " DISC ")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if a.Kind != domain.AssessmentKindDISC || a.Status != domain.AssessmentStatusInProgress {
		t.Fatalf("unexpected assessment: %+v", a)
	}

	for qid, v := range map[int]string{1: "d", 2: "D", 3: "I", 4: "S"} {
		ans, err := svc.SaveAnswer(ctx, "u1", a.ID, qid, v)
		if err != nil {
			t.Fatalf("save answer %d: %v", qid, err)
		}
		if ans.Section != domain.SectionDISC {
			t.Fatalf("expected disc section, got %q", ans.Section)
		}
	}
	// la segunda respuesta a la misma pregunta reemplaza la anterior
	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 4, "C"); err != nil {
		t.Fatalf("overwrite answer: %v", err)
	}

	res, err := svc.Complete(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.DISC == nil || res.Traits != nil {
		t.Fatalf("expected disc result only, got %+v", res)
	}
	if res.DISC.Scores.D != 50 || res.DISC.Scores.I != 25 || res.DISC.Scores.C != 25 || res.DISC.Scores.S != 0 {
		t.Fatalf("unexpected scores: %+v", res.DISC.Scores)
	}
	if res.DISC.PrimaryProfile != domain.DISCDominance {
		t.Fatalf("expected primary D, got %s", res.DISC.PrimaryProfile)
	}
	if _, ok := results.items[res.ID]; !ok {
		t.Fatalf("result not persisted")
	}

	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 5, "D"); !errors.Is(err, ErrAssessmentCompleted) {
		t.Fatalf("expected ErrAssessmentCompleted on answer, got %v", err)
	}
	if _, err := svc.Complete(ctx, "u1", a.ID); !errors.Is(err, ErrAssessmentCompleted) {
		t.Fatalf("expected ErrAssessmentCompleted on complete, got %v", err)
	}
}

func TestAssessmentTraitsFlow(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	ctx := context.Background()

	a, err := svc.Start(ctx, "u1", domain.AssessmentKindTraits)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 101, "5"); err != nil {
		t.Fatalf("save trait: %v", err)
	}
	ans, err := svc.SaveAnswer(ctx, "u1", a.ID, 201, "4")
	if err != nil {
		t.Fatalf("save frequency: %v", err)
	}
	if ans.Section != domain.SectionFrequency {
		t.Fatalf("expected frequency section, got %q", ans.Section)
	}

	res, err := svc.Complete(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if res.Traits == nil || res.DISC != nil {
		t.Fatalf("expected trait result only, got %+v", res)
	}
	if len(res.Traits.Traits) == 0 || len(res.Traits.Frequencies) == 0 {
		t.Fatalf("expected traits and frequencies, got %+v", res.Traits)
	}
}

func TestAssessmentSaveAnswerValidation(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	ctx := context.Background()
	a, _ := svc.Start(ctx, "u1", domain.AssessmentKindDISC)

	cases := []struct {
		name  string
		qid   int
		value string
	}{
		{"unknown question", 999, "D"},
		{"trait question in disc", 101, "3"},
		{"bad category", 1, "X"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.SaveAnswer(ctx, "u1", a.ID, tc.qid, tc.value); !errors.Is(err, ErrInvalidAnswer) {
				t.Fatalf("expected ErrInvalidAnswer, got %v", err)
			}
		})
	}
}

func TestAssessmentOwnership(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	ctx := context.Background()
	a, _ := svc.Start(ctx, "owner", domain.AssessmentKindDISC)
	if _, err := svc.SaveAnswer(ctx, "owner", a.ID, 1, "D"); err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := svc.SaveAnswer(ctx, "intruder", a.ID, 1, "I"); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("expected ErrAssessmentNotFound for other user, got %v", err)
	}
	if _, err := svc.Get(ctx, Viewer{UserID: "intruder"}, a.ID); !errors.Is(err, ErrAssessmentNotFound) {
		t.Fatalf("expected ErrAssessmentNotFound on get, got %v", err)
	}
	got, err := svc.Get(ctx, Viewer{UserID: "admin", Admin: true}, a.ID)
	if err != nil {
		t.Fatalf("admin get: %v", err)
	}
	if len(got.Answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(got.Answers))
	}

	res, err := svc.Complete(ctx, "owner", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := svc.GetResult(ctx, Viewer{UserID: "intruder"}, res.ID); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if _, err := svc.GetResult(ctx, Viewer{Admin: true}, res.ID); err != nil {
		t.Fatalf("admin result: %v", err)
	}
}

func TestAssessmentCompleteWithoutAnswers(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	ctx := context.Background()
	a, _ := svc.Start(ctx, "u1", domain.AssessmentKindDISC)
	if _, err := svc.Complete(ctx, "u1", a.ID); !errors.Is(err, ErrNoAnswers) {
		t.Fatalf("expected ErrNoAnswers, got %v", err)
	}
}

func TestAssessmentCompleteFailureLeavesAssessmentOpen(t *testing.T) {
	svc, assessments, results := newTestAssessmentService(t)
	ctx := context.Background()

	a, err := svc.Start(ctx, "u1", domain.AssessmentKindDISC)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 1, "D"); err != nil {
		t.Fatalf("save answer: %v", err)
	}

	connReset := errors.New("conn reset")
	assessments.completeErrs = []error{connReset}
	if _, err := svc.Complete(ctx, "u1", a.ID); !errors.Is(err, connReset) {
		t.Fatalf("expected conn reset, got %v", err)
	}
	if got := assessments.items[a.ID].Status; got != domain.AssessmentStatusInProgress {
		t.Fatalf("expected in_progress after failed complete, got %s", got)
	}
	if len(results.items) != 0 {
		t.Fatalf("expected no result after failed complete, got %d", len(results.items))
	}

	res, err := svc.Complete(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("retry complete: %v", err)
	}
	if len(results.items) != 1 || results.items[res.ID].AssessmentID != a.ID {
		t.Fatalf("expected exactly one result for the assessment, got %+v", results.items)
	}
	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 2, "I"); !errors.Is(err, ErrAssessmentCompleted) {
		t.Fatalf("expected ErrAssessmentCompleted on answer, got %v", err)
	}
}

func TestAssessmentCompleteRaceReportsCompleted(t *testing.T) {
	svc, assessments, _ := newTestAssessmentService(t)
	ctx := context.Background()

	a, err := svc.Start(ctx, "u1", domain.AssessmentKindDISC)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := svc.SaveAnswer(ctx, "u1", a.ID, 1, "D"); err != nil {
		t.Fatalf("save answer: %v", err)
	}
	// otra llamada cerro el assessment entre la lectura y la escritura
	assessments.completeErrs = []error{pgx.ErrNoRows}
	if _, err := svc.Complete(ctx, "u1", a.ID); !errors.Is(err, ErrAssessmentCompleted) {
		t.Fatalf("expected ErrAssessmentCompleted, got %v", err)
	}
}

func TestAssessmentListResults(t *testing.T) {
	svc, _, _ := newTestAssessmentService(t)
	ctx := context.Background()

	empty, err := svc.ListResults(ctx, "nobody")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}

	for _, user := range []string{"u1", "u2", "u1"} {
		a, _ := svc.Start(ctx, user, domain.AssessmentKindDISC)
		if _, err := svc.SaveAnswer(ctx, user, a.ID, 1, "S"); err != nil {
			t.Fatalf("save: %v", err)
		}
		if _, err := svc.Complete(ctx, user, a.ID); err != nil {
			t.Fatalf("complete: %v", err)
		}
	}

	mine, _ := svc.ListResults(ctx, "u1")
	if len(mine) != 2 {
		t.Fatalf("expected 2 results for u1, got %d", len(mine))
	}
	page, _ := svc.ListAllResults(ctx, 2, 2)
	if len(page) != 1 {
		t.Fatalf("expected 1 result on page 2, got %d", len(page))
	}
}
