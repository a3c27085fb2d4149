package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"dbwarden/internal/storage"

	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		status   bool
		rollback int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, inspect or roll back schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg := a.cfg.Storage
			cfg.AutoMigrate = false
			st, err := storage.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			m := st.Migrator()
			switch {
			case status:
				applied, err := m.GetMigrationStatus(ctx)
				if err != nil {
					return err
				}
				pending, err := m.GetPendingMigrations(ctx)
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tDESCRIPTION\tSTATE")
				for _, mig := range applied {
					fmt.Fprintf(w, "%d\t%s\tapplied %s\n", mig.Version, mig.Name, mig.AppliedAt.Format(time.RFC3339))
				}
				for _, mig := range pending {
					fmt.Fprintf(w, "%d\t%s\tpending\n", mig.Version, mig.Name)
				}
				return w.Flush()

			case rollback > 0:
				n, err := m.Rollback(ctx, rollback)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Rolled back %d migration(s)\n", n)
				return nil

			default:
				n, err := m.Migrate(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&status, "status", false, "list applied and pending migrations")
	cmd.Flags().IntVar(&rollback, "rollback", 0, "roll back the given number of migrations")
	cmd.MarkFlagsMutuallyExclusive("status", "rollback")
	return cmd
}
