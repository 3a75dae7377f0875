package main

import (
	"context"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"disc-assess/internal/config"
	"disc-assess/internal/llm"
)

var version = "dev"

type rootOptions struct {
	debug bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "assessctl",
		Short:        "Herramientas de operacao da avaliacao comportamental",
		Version:      version,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newScoreCommand(opts))
	cmd.AddCommand(newQuestionsCommand())
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newAnalyzeCommand(opts))

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}

func (o *rootOptions) logger() *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if o.debug {
		logger, err = zap.NewDevelopment()
	} else {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
		logger, err = cfg.Build()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

// loadConfig lee .env si existe; los comandos puros no lo llaman.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	return config.LoadConfig()
}

func newLLMClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Client, error) {
	return llm.New(ctx, llm.Options{
		Provider:        cfg.LLMProvider,
		APIKey:          cfg.LLMAPIKey,
		BaseURL:         cfg.LLMBaseURL,
		Model:           cfg.LLMModel,
		AssistantID:     cfg.LLMAssistantID,
		PollInterval:    cfg.LLMPollInterval(),
		MaxPollAttempts: cfg.LLMPollMaxAttempts,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		GeminiModel:     cfg.GeminiModel,
	}, logger)
}
