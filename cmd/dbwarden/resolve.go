package main

import (
	"encoding/json"

	"dbwarden/internal/checks"
	"dbwarden/internal/scope"

	"github.com/spf13/cobra"
)

func newResolveCmd(a *app) *cobra.Command {
	var check, scopeStr string

	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the effective threshold configuration at a scope",
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

			eff, err := srv.Engine().Resolver().Resolve(ctx, checks.Reference(check), key)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Scope     scope.Key `json:"scope"`
				Inherited bool      `json:"inherited"`
				Effective any       `json:"effective"`
			}{key, eff.Inherited(key), eff})
		},
	}

	cmd.Flags().StringVar(&check, "check", "", "check reference, e.g. FreeSpace")
	cmd.Flags().StringVar(&scopeStr, "scope", "root", "scope: root, instance:3, database:3/7 or file:3/7/2")
	_ = cmd.MarkFlagRequired("check")
	return cmd
}
