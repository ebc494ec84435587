package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/core"
)

func newLookupCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup KEY",
		Short: "Check a key the way a gate does",
		Long: `lookup classifies KEY as FOUND_CURRENT, FOUND_OWING or NOT_FOUND and
records the attempt in the access log, exactly like a gate query.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				res, err := env.Service.Lookup(cmd.Context(), args[0])
				if err != nil {
					return err
				}

				w := cmd.OutOrStdout()
				switch res.Classification {
				case core.FoundCurrent:
					okColor.Fprintf(w, "%s %s\n", res.Classification, res.Key)
				case core.FoundOwing:
					warnColor.Fprintf(w, "%s %s\n", res.Classification, res.Key)
				default:
					errColor.Fprintf(w, "%s %s\n", res.Classification, res.Key)
					return nil
				}

				rec := res.Record
				fmt.Fprintf(w, "  name      %s\n", rec.DisplayName)
				fmt.Fprintf(w, "  category  %s\n", rec.Category)
				fmt.Fprintf(w, "  gate      %s\n", rec.AccessZone)
				if rec.Location != "" {
					fmt.Fprintf(w, "  location  %s\n", rec.Location)
				}
				return nil
			})
		},
	}
}
