package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"disc-assess/internal/domain"
)

// AnalysisProvider es lo que el reporte necesita de la cola de analisis.
type AnalysisProvider interface {
	GetAnalysis(ctx context.Context, req AnalysisRequest) (domain.AnalysisRecord, error)
}

type resultReader interface {
	GetResult(ctx context.Context, viewer Viewer, resultID string) (domain.Result, error)
}

type userReader interface {
	GetByID(ctx context.Context, id string) (domain.User, error)
}

// Report junta resultado, usuario y narrativa para la vista final.
type Report struct {
	Result   domain.Result         `json:"result"`
	User     domain.User           `json:"user"`
	Analysis domain.AnalysisRecord `json:"analysis"`
}

type ReportService struct {
	results  resultReader
	users    userReader
	analysis AnalysisProvider
	logger   *zap.Logger
}

func NewReportService(results resultReader, users userReader, analysis AnalysisProvider, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{results: results, users: users, analysis: analysis, logger: logger}
}

// Analysis devuelve solo la narrativa; forceRefresh ignora lo cacheado.
func (s *ReportService) Analysis(ctx context.Context, viewer Viewer, resultID string, forceRefresh bool) (domain.AnalysisRecord, error) {
	report, err := s.Build(ctx, viewer, resultID, forceRefresh)
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	return report.Analysis, nil
}

func (s *ReportService) Build(ctx context.Context, viewer Viewer, resultID string, forceRefresh bool) (Report, error) {
	result, err := s.results.GetResult(ctx, viewer, resultID)
	if err != nil {
		return Report{}, err
	}
	user, err := s.users.GetByID(ctx, result.UserID)
	if err != nil {
		return Report{}, err
	}

	req := AnalysisRequestFor(result, user.Name)
	req.ForceRefresh = forceRefresh
	rec, err := s.analysis.GetAnalysis(ctx, req)
	if err != nil {
		s.logger.Warn("analysis unavailable", zap.String("result_id", result.ID), zap.Error(err))
		return Report{}, err
	}
	return Report{Result: result, User: user, Analysis: rec}, nil
}

var discNames = map[domain.DISCCategory]string{
	domain.DISCDominance:  "Dominância",
	domain.DISCInfluence:  "Influência",
	domain.DISCSteadiness: "Estabilidade",
	domain.DISCConformity: "Conformidade",
}

// AnalysisRequestFor arma el pedido a partir de un resultado persistido.
func AnalysisRequestFor(result domain.Result, userName string) AnalysisRequest {
	req := AnalysisRequest{ResultID: result.ID, UserName: strings.TrimSpace(userName)}

	if result.DISC != nil {
		for _, c := range domain.DISCCategories {
			req.Traits = append(req.Traits, AnalysisTrait{
				Name:  fmt.Sprintf("%s (%s)", discNames[c], c),
				Score: result.DISC.Scores.Get(c),
				Label: result.DISC.Intensity[c],
			})
		}
	}
	if result.Traits != nil {
		for _, t := range result.Traits.Traits {
			req.Traits = append(req.Traits, AnalysisTrait{
				Name:  fmt.Sprintf("%s / %s", t.LeftPole, t.RightPole),
				Score: t.Percent,
				Label: t.Key,
			})
		}
		for _, f := range result.Traits.Frequencies {
			req.Frequencies = append(req.Frequencies, AnalysisFrequency{
				Behavior: f.Behavior,
				Value:    f.Value,
				Label:    f.Label,
			})
		}
	}
	return req
}
