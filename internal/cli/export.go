package cli

import (
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/core"
)

func newLogsCommand(open Opener) *cobra.Command {
	var from, to, out, sep string

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Export the access log for a range of days",
		Long: `logs writes the lookups recorded from --from to --to (YYYY-MM-DD,
inclusive, in AUDIT_TIMEZONE) as delimited text, newest first. Without
dates it exports today.`,
		Example: `  rosterctl logs --from 2025-03-01 --to 2025-03-07 --out semana.csv
  rosterctl logs --sep ';'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				delim, err := exportDelimiter(sep, env.Config.Audit.ExportDelimiter)
				if err != nil {
					return err
				}

				entries, err := env.Service.AccessLog(cmd.Context(), from, to)
				if err != nil {
					return err
				}

				return writeOutput(cmd, out, func(w io.Writer) error {
					return core.WriteAccessLogCSV(w, entries, delim, env.Service.Location())
				}, len(entries))
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day (YYYY-MM-DD)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&sep, "sep", "", "Field delimiter (default: AUDIT_EXPORT_DELIMITER)")
	return cmd
}

func newDirectoryCommand(open Opener) *cobra.Command {
	dir := &cobra.Command{
		Use:   "directory",
		Short: "Inspect the directory",
	}

	var out, sep string
	export := &cobra.Command{
		Use:   "export",
		Short: "Write the directory as CSV",
		Long: `export writes every record ordered by key under the dni, nombre,
tipo_ingreso, puerta_acceso, ubicacion, cuota header. The file loads back
with "rosterctl ingest --mode REPLACE".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, open, func(env *Env) error {
				delim, err := exportDelimiter(sep, ",")
				if err != nil {
					return err
				}

				recs, err := env.Service.Directory(cmd.Context())
				if err != nil {
					return err
				}

				return writeOutput(cmd, out, func(w io.Writer) error {
					return core.WriteDirectoryCSV(w, recs, delim)
				}, len(recs))
			})
		},
	}
	export.Flags().StringVarP(&out, "out", "o", "", "Output file (default: stdout)")
	export.Flags().StringVar(&sep, "sep", "", "Field delimiter (default: ,)")

	dir.AddCommand(export)
	return dir
}

// writeOutput sends the export to --out or stdout. The row count summary
// goes to stderr when writing a file.
func writeOutput(cmd *cobra.Command, path string, write func(io.Writer) error, rows int) error {
	if path == "" {
		return write(cmd.OutOrStdout())
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	okColor.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", rows, path)
	return nil
}

func exportDelimiter(flag, def string) (rune, error) {
	v := flag
	if v == "" {
		v = def
	}
	switch v {
	case "":
		return ',', nil
	case "tab", `\t`:
		return '\t', nil
	}
	if utf8.RuneCountInString(v) != 1 {
		return 0, fmt.Errorf("invalid delimiter %q: use a single character", v)
	}
	r, _ := utf8.DecodeRuneInString(v)
	return r, nil
}
