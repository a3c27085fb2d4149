package main

import (
	"fmt"
	"os"

	"dbwarden/internal/importer"

	"github.com/spf13/cobra"
)

func newImportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import thresholds from a YAML document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			srv, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer srv.Close()

			res, err := importer.ImportReader(ctx, srv.Store(), f)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d threshold(s)", res.Imported)
			for _, mode := range []string{"enabled", "disabled", "inherit"} {
				if n := res.ByMode[mode]; n > 0 {
					fmt.Fprintf(cmd.OutOrStdout(), ", %d %s", n, mode)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return err
		},
	}
}
