package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"disc-assess/internal/db"
)

func newMigrateCommand(root *rootOptions) *cobra.Command {
	var printOnly bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Aplica o esquema do banco (idempotente)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if printOnly {
				_, err := fmt.Fprint(cmd.OutOrStdout(), db.Schema())
				return err
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger := root.logger()
			defer logger.Sync()

			pool, err := db.NewPool(cmd.Context(), cfg)
			if err != nil {
				return fmt.Errorf("connecting to database: %w", err)
			}
			defer pool.Close()

			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			logger.Info("schema applied")
			fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
			return nil
		},
	}
	cmd.Flags().BoolVar(&printOnly, "print", false, "Print the schema instead of applying it")
	return cmd
}
