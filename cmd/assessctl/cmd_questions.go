package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"disc-assess/internal/domain"
	"disc-assess/internal/questionnaire"
)

func newQuestionsCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:       "questions [disc|traits]",
		Short:     "Lista o banco de perguntas de um instrumento",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{domain.AssessmentKindDISC, domain.AssessmentKindTraits},
		RunE: func(cmd *cobra.Command, args []string) error {
			bank, err := questionnaire.Default()
			if err != nil {
				return err
			}

			part := *bank
			if len(args) == 1 {
				kind := strings.ToLower(args[0])
				if part, err = bank.ForKind(kind); err != nil {
					return err
				}
			}

			switch format {
			case "json":
				return writeJSON(cmd.OutOrStdout(), part)
			case "yaml":
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				defer enc.Close()
				return enc.Encode(part)
			}
			return fmt.Errorf("unknown format %q (use yaml or json)", format)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "yaml", "Output format: yaml or json")
	return cmd
}
