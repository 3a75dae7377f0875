package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"disc-assess/internal/domain"
	"disc-assess/internal/questionnaire"
	"disc-assess/internal/service"
)

// answersFile es el formato de entrada de `score`.
type answersFile struct {
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Answers []struct {
		QuestionID int `json:"question_id"`
		Value      any `json:"value"`
	} `json:"answers"`
}

type scoreOutput struct {
	Result   domain.Result          `json:"result"`
	Analysis *domain.AnalysisRecord `json:"analysis,omitempty"`
}

func newScoreCommand(root *rootOptions) *cobra.Command {
	var (
		file    string
		analyze bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Calcula o resultado de um arquivo de respostas",
		Long: `Calcula o resultado DISC ou de traços a partir de um arquivo JSON:

  {"kind": "disc", "name": "Ana", "answers": [{"question_id": 1, "value": "D"}]}

Use --file - para ler da entrada padrão. Com --analyze a narrativa é gerada pelo
provedor LLM configurado (requer as mesmas variáveis de ambiente da API).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			raw, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			bank, err := questionnaire.Default()
			if err != nil {
				return err
			}
			input, result, err := scoreFile(bank, raw)
			if err != nil {
				return err
			}

			out := scoreOutput{Result: result}
			if analyze {
				rec, err := analyzeScored(cmd.Context(), root, result, input.Name)
				if err != nil {
					return err
				}
				out.Analysis = &rec
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Answers JSON file (- for stdin)")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Also generate the LLM narrative")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading answers file: %w", err)
	}
	return raw, nil
}

// scoreFile valida cada respuesta contra el banco; la primera invalida aborta.
func scoreFile(bank *questionnaire.Bank, raw []byte) (answersFile, domain.Result, error) {
	var input answersFile
	if err := json.Unmarshal(raw, &input); err != nil {
		return input, domain.Result{}, fmt.Errorf("parsing answers file: %w", err)
	}
	input.Kind = strings.ToLower(strings.TrimSpace(input.Kind))
	if !domain.IsValidAssessmentKind(input.Kind) {
		return input, domain.Result{}, fmt.Errorf("%w: %q", service.ErrInvalidKind, input.Kind)
	}
	if len(input.Answers) == 0 {
		return input, domain.Result{}, service.ErrNoAnswers
	}

	answers := make([]domain.Answer, 0, len(input.Answers))
	for _, a := range input.Answers {
		section, value, err := bank.Normalize(input.Kind, a.QuestionID, fmt.Sprint(a.Value))
		if err != nil {
			return input, domain.Result{}, fmt.Errorf("question %d: %w", a.QuestionID, err)
		}
		answers = append(answers, domain.Answer{QuestionID: a.QuestionID, Section: section, Value: value})
	}

	result, err := service.ScoreAnswers(bank, input.Kind, answers)
	if err != nil {
		return input, domain.Result{}, err
	}
	result.ID = uuid.NewString()
	return input, result, nil
}

// analyzeScored usa una cache en memoria: el resultado no existe en la base.
func analyzeScored(ctx context.Context, root *rootOptions, result domain.Result, name string) (domain.AnalysisRecord, error) {
	cfg, err := loadConfig()
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	logger := root.logger()
	defer logger.Sync()

	client, err := newLLMClient(ctx, cfg, logger)
	if err != nil {
		return domain.AnalysisRecord{}, err
	}
	queue := service.NewAnalysisQueue(client, service.NewMemoryAnalysisCache(), service.AnalysisQueueConfig{
		MaxAttempts: cfg.AnalysisMaxAttempts,
		Backoff:     cfg.AnalysisBackoff(),
	}, logger)
	defer queue.Close()

	return queue.GetAnalysis(ctx, service.AnalysisRequestFor(result, name))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
