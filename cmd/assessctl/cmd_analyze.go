package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"disc-assess/internal/db"
	"disc-assess/internal/questionnaire"
	"disc-assess/internal/repository"
	"disc-assess/internal/service"
)

func newAnalyzeCommand(root *rootOptions) *cobra.Command {
	var (
		refresh bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "analyze <result-id>",
		Short: "Gera (ou lê do cache) a análise de um resultado salvo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := root.logger()
			defer logger.Sync()

			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			pool, err := db.NewPool(ctx, cfg)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			bank, err := questionnaire.Default()
			if err != nil {
				return err
			}
			client, err := newLLMClient(ctx, cfg, logger)
			if err != nil {
				return err
			}

			queue := service.NewAnalysisQueue(
				client,
				service.NewTieredAnalysisCache(nil, repository.NewPgAnalysisRepository(pool), logger),
				service.AnalysisQueueConfig{
					MaxAttempts: cfg.AnalysisMaxAttempts,
					Backoff:     cfg.AnalysisBackoff(),
				},
				logger,
			)
			defer queue.Close()

			assessments := service.NewAssessmentService(
				repository.NewPgAssessmentRepository(pool),
				repository.NewPgResultRepository(pool),
				bank,
				logger,
			)
			users := service.NewUserService(logger, repository.NewPgUserRepository(pool), nil, nil)
			reports := service.NewReportService(assessments, users, queue, logger)

			report, err := reports.Build(ctx, service.Viewer{Admin: true}, args[0], refresh)
			if err != nil {
				if secs, ok := service.RetryAfterSeconds(err); ok {
					logger.Warn("analysis rate limited", zap.Int("retry_after_seconds", secs))
					return fmt.Errorf("rate limited, retry in %d seconds: %w", secs, err)
				}
				return err
			}
			return writeJSON(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "Ignore the cached analysis and call the LLM again")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Minute, "Overall timeout")
	return cmd
}
