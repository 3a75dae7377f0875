package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"disc-assess/internal/domain"
	"disc-assess/internal/llm"
)

type stubAnalysisProvider struct {
	rec     domain.AnalysisRecord
	err     error
	lastReq AnalysisRequest
	calls   int
}

func (s *stubAnalysisProvider) GetAnalysis(_ context.Context, req AnalysisRequest) (domain.AnalysisRecord, error) {
	s.calls++
	s.lastReq = req
	return s.rec, s.err
}

func discResultFixture() domain.Result {
	return domain.Result{
		ID:     "res-1",
		UserID: "u1",
		Kind:   domain.AssessmentKindDISC,
		DISC: &domain.DISCResult{
			Scores: domain.DISCScores{D: 50, I: 25, S: 0, C: 25},
			Intensity: map[domain.DISCCategory]string{
				domain.DISCDominance:  "Moderate",
				domain.DISCInfluence:  "Low",
				domain.DISCSteadiness: "Low",
				domain.DISCConformity: "Low",
			},
			PrimaryProfile:   domain.DISCDominance,
			SecondaryProfile: domain.DISCInfluence,
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestAnalysisRequestForDISC(t *testing.T) {
	req := AnalysisRequestFor(discResultFixture(), " Ana ")
	if req.ResultID != "res-1" || req.UserName != "Ana" {
		t.Fatalf("unexpected request header: %+v", req)
	}
	if len(req.Traits) != 4 || len(req.Frequencies) != 0 {
		t.Fatalf("expected 4 traits and no frequencies, got %d/%d", len(req.Traits), len(req.Frequencies))
	}
	first := req.Traits[0]
	if first.Name != "Dominância (D)" || first.Score != 50 || first.Label != "Moderate" {
		t.Fatalf("unexpected first trait: %+v", first)
	}
}

func TestAnalysisRequestForTraits(t *testing.T) {
	res := domain.Result{
		ID:   "res-2",
		Kind: domain.AssessmentKindTraits,
		Traits: &domain.TraitResult{
			Traits:      []domain.TraitScore{{QuestionID: 101, Key: "extroversao", LeftPole: "Reservado", RightPole: "Expansivo", Value: 4, Percent: 75}},
			Frequencies: []domain.FrequencyScore{{QuestionID: 201, Behavior: "Peço feedback", Value: 5, Label: "Sempre"}},
		},
	}
	req := AnalysisRequestFor(res, "")
	if len(req.Traits) != 1 || req.Traits[0].Name != "Reservado / Expansivo" || req.Traits[0].Score != 75 {
		t.Fatalf("unexpected traits: %+v", req.Traits)
	}
	if len(req.Frequencies) != 1 || req.Frequencies[0].Value != 5 || req.Frequencies[0].Label != "Sempre" {
		t.Fatalf("unexpected frequencies: %+v", req.Frequencies)
	}
}

func newTestReportService(t *testing.T, provider AnalysisProvider) (*ReportService, *mockResultRepo) {
	t.Helper()
	svc, _, results := newTestAssessmentService(t)
	users := newMockUserRepo()
	_ = users.Create(context.Background(), domain.User{ID: "u1", Email: "ana@example.com", Name: "Ana", Role: domain.RoleUser})
	userSvc := NewUserService(zap.NewNop(), users, nil, nil)
	return NewReportService(svc, userSvc, provider, zap.NewNop()), results
}

func TestReportBuild(t *testing.T) {
	provider := &stubAnalysisProvider{rec: domain.AnalysisRecord{Summary: "Resumo"}}
	reports, results := newTestReportService(t, provider)
	_ = results.Create(context.Background(), discResultFixture())

	report, err := reports.Build(context.Background(), Viewer{UserID: "u1"}, "res-1", true)
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if report.User.Name != "Ana" || report.Analysis.Summary != "Resumo" || report.Result.ID != "res-1" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !provider.lastReq.ForceRefresh || provider.lastReq.UserName != "Ana" {
		t.Fatalf("unexpected analysis request: %+v", provider.lastReq)
	}
}

func TestReportBuildHidesForeignResult(t *testing.T) {
	provider := &stubAnalysisProvider{}
	reports, results := newTestReportService(t, provider)
	_ = results.Create(context.Background(), discResultFixture())

	if _, err := reports.Build(context.Background(), Viewer{UserID: "u2"}, "res-1", false); !errors.Is(err, ErrResultNotFound) {
		t.Fatalf("expected ErrResultNotFound, got %v", err)
	}
	if provider.calls != 0 {
		t.Fatalf("analysis must not be requested for foreign result")
	}
}

func TestReportAnalysisPropagatesRateLimit(t *testing.T) {
	rl := &llm.RateLimitError{RetryAfter: 3 * time.Second}
	reports, results := newTestReportService(t, &stubAnalysisProvider{err: rl})
	_ = results.Create(context.Background(), discResultFixture())

	_, err := reports.Analysis(context.Background(), Viewer{UserID: "u1"}, "res-1", false)
	secs, ok := RetryAfterSeconds(err)
	if !ok || secs != 3 {
		t.Fatalf("expected retry-after 3s, got %d (%v) err=%v", secs, ok, err)
	}
}
