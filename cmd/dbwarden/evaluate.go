package main

import (
	"fmt"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"
	"dbwarden/internal/status"
	"dbwarden/internal/threshold"

	"github.com/spf13/cobra"
)

// exitCode maps a status onto the conventional monitoring plugin exit codes.
func exitCode(s status.Status) int {
	switch s {
	case status.Critical:
		return 2
	case status.Warning:
		return 1
	default:
		return 0
	}
}

func newEvaluateCmd(a *app) *cobra.Command {
	var (
		check     string
		scopeStr  string
		value     float64
		checkType string
	)

	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Classify one sample; exits 1 on Warning and 2 on Critical",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			key, err := scope.Parse(scopeStr)
			if err != nil {
				return err
			}

			srv, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer srv.Close()

			res, err := srv.Engine().Evaluate(ctx, threshold.Sample{
				Scope:     key,
				Reference: checks.Reference(check),
				Value:     value,
				CheckType: checks.CheckType(checkType),
			})
			if err != nil {
				return err
			}

			eff := res.Effective
			if eff.Enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %g (warning %g, critical %g %s from %s)\n",
					res.Status, key, value, eff.Warning, eff.Critical, eff.CheckType, eff.ResolvedAt)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %g (check disabled)\n", res.Status, key, value)
			}

			if code := exitCode(res.Status); code != 0 {
				return &exitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&check, "check", "", "check reference, e.g. FreeSpace")
	cmd.Flags().StringVar(&scopeStr, "scope", "root", "scope: root, instance:3, database:3/7 or file:3/7/2")
	cmd.Flags().Float64Var(&value, "value", 0, "sample value")
	cmd.Flags().StringVar(&checkType, "type", "", "sample check type: %, M or mins (default: the check's default)")
	_ = cmd.MarkFlagRequired("check")
	_ = cmd.MarkFlagRequired("value")
	return cmd
}
