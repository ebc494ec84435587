package cli

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/roster/internal/core"
)

func newIngestCommand(open Opener) *cobra.Command {
	var (
		mode   string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Load a CSV or JSON roster into the directory",
		Long: `ingest reads a delimited text export or a JSON roster and reconciles it
with the directory. REPLACE makes the directory exactly the file; MERGE
adds and overwrites keys and keeps the rest. The legacy names NUEVO,
REEMPLAZAR and AGREGAR are accepted.

Files ending in .json are read as a JSON array or a {"mode", "records"}
object; a mode in the file is used when --mode is not given. Use - to
read CSV from stdin.`,
		Example: `  rosterctl ingest padron.csv --mode REPLACE
  rosterctl ingest altas.json --mode MERGE --dry-run`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readIngestFile(cmd, args[0], mode, dryRun)
			if err != nil {
				return err
			}
			return withEnv(cmd, open, func(env *Env) error {
				res, err := env.Service.Ingest(cmd.Context(), req)
				if res != nil {
					printIngestResult(cmd.OutOrStdout(), res)
				}
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "", "Load mode: REPLACE or MERGE")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	return cmd
}

func readIngestFile(cmd *cobra.Command, path, mode string, dryRun bool) (core.IngestRequest, error) {
	req := core.IngestRequest{Mode: mode, Format: core.FormatCSV, DryRun: dryRun}

	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return req, fmt.Errorf("read %s: %w", path, err)
	}
	req.Data = data

	if strings.EqualFold(filepath.Ext(path), ".json") {
		fileMode, rows, err := core.SplitJSONIngest(data)
		if err != nil {
			return req, err
		}
		if req.Mode == "" {
			req.Mode = fileMode
		}
		req.Format = core.FormatJSON
		req.Data = rows
	}
	return req, nil
}

func printIngestResult(w io.Writer, res *core.IngestResult) {
	title := "Ingest completed"
	if res.DryRun {
		title = "Dry run (nothing written)"
	}
	okColor.Fprintf(w, "%s: %s %s\n", title, res.Mode, res.Format)
	dimColor.Fprintf(w, "  batch %s\n", res.BatchID)

	fmt.Fprintf(w, "  received  %6d\n", res.ReceivedCount)
	fmt.Fprintf(w, "  valid     %6d\n", res.ValidCount)
	if res.RejectedCount > 0 {
		warnColor.Fprintf(w, "  rejected  %6d\n", res.RejectedCount)
	}
	fmt.Fprintf(w, "  added     %6d\n", res.AddedCount)
	fmt.Fprintf(w, "  updated   %6d\n", res.UpdatedCount)
	fmt.Fprintf(w, "  unchanged %6d\n", res.UnchangedCount)
	fmt.Fprintf(w, "  deleted   %6d\n", res.DeletedCount)
	if !res.DryRun {
		fmt.Fprintf(w, "  saved     %6d\n", res.SavedCount)
	}
}
