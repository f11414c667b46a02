package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JonMunkholm/courierimport/internal/core"
	"github.com/spf13/cobra"
)

var errImportFailed = errors.New("import finished with errors")

func (a *app) newFileCmd() *cobra.Command {
	var (
		table string
		ro    runOptions
	)
	cmd := &cobra.Command{
		Use:   "file <path>",
		Short: "Import one file into a table",
		Long: `Import one .csv, .txt, .tsv or .json file. Without --table the table is
chosen from the file name, as inside a bundle.`,
		Example: `  importer file --table sites exports/sites.csv
  importer file --clear --id-field licensePlate vehicules.txt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			if table == "" {
				def, ok := core.Resolve(path)
				if !ok {
					return userError(fmt.Errorf("%w: no table for %s, use --table", core.ErrUnknownTable, filepath.Base(path)))
				}
				table = def.Info.Key
			}

			opts, err := ro.options(cmd, a.service.DefaultOptions())
			if err != nil {
				return userError(err)
			}
			data, err := a.readFile(path)
			if err != nil {
				return userError(err)
			}

			ctx := core.ContextWithActor(cmd.Context(), cliActor())
			res, err := a.service.ImportFile(ctx, table, core.RawFile{Name: filepath.Base(path), Data: data}, opts)
			if res.Table != "" {
				printResult(cmd, res)
			}
			if err != nil {
				return userError(err)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "target table key (see 'importer tables')")
	ro.register(cmd)
	return cmd
}

func (a *app) newBundleCmd() *cobra.Command {
	var ro runOptions
	cmd := &cobra.Command{
		Use:   "bundle <archive.zip>",
		Short: "Import every recognized file of a zip archive",
		Long: `Import a zip archive. Each entry goes to the table its file name names;
entries with no table or an unsupported extension are listed and skipped.
A failing file does not stop the others.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := ro.options(cmd, a.service.DefaultOptions())
			if err != nil {
				return userError(err)
			}
			data, err := a.readFile(args[0])
			if err != nil {
				return userError(err)
			}

			ctx := core.ContextWithActor(cmd.Context(), cliActor())
			run, err := a.service.ImportBundle(ctx, data, opts)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, res := range run.Files {
				printResult(cmd, res)
				if res.Failed() {
					failed++
				}
			}
			for _, s := range run.Skipped {
				fmt.Fprintf(out, "skipped %s: %s\n", s.Name, s.Reason)
			}
			t := run.Totals()
			fmt.Fprintf(out, "run %s: %d files, %d inserted, %d updated, %d skipped, %d rejected\n",
				run.RunID, len(run.Files), t.Inserted, t.Updated, t.Skipped(), t.Rejected)

			if failed > 0 {
				return fmt.Errorf("%w: %d of %d files failed", errImportFailed, failed, len(run.Files))
			}
			return nil
		},
	}
	ro.register(cmd)
	return cmd
}

func (a *app) newTablesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tables",
		Short: "List the importable tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, def := range a.service.Tables() {
				fmt.Fprintf(out, "%-10s %-10s id=%-13s %s\n",
					def.Info.Key, def.Info.Group, def.IdentifierField, strings.Join(def.Aliases, ", "))
			}
			return nil
		},
	}
}

func (a *app) newTemplateCmd() *cobra.Command {
	var delim string
	cmd := &cobra.Command{
		Use:   "template <table>",
		Short: "Print an empty import file for a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r rune
			switch delim {
			case ";", "semicolon":
				r = ';'
			case ",", "comma":
				r = ','
			case "tab":
				r = '\t'
			default:
				return fmt.Errorf("%w: delimiter %q", core.ErrInvalidOption, delim)
			}
			return userError(a.service.Template(cmd.OutOrStdout(), args[0], r))
		},
	}
	cmd.Flags().StringVarP(&delim, "delimiter", "d", ";", "column separator: semicolon, comma or tab")
	return cmd
}

func (a *app) newHistoryCmd() *cobra.Command {
	var (
		table string
		limit int
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent import runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			filter := core.HistoryFilter{Table: table, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := a.service.History(cmd.Context(), filter)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			for _, e := range entries {
				status := "ok"
				if e.Error != "" {
					status = e.Code
				}
				fmt.Fprintf(out, "%s  %-8s %-10s %-20s +%d ~%d =%d  %s  %s\n",
					e.StartedAt.Local().Format(time.DateTime), e.Severity, e.Table, e.File,
					e.Inserted, e.Updated, e.Unchanged, e.Actor.Source, status)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&table, "table", "t", "", "only runs of this table")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs younger than this, e.g. 72h")
	return cmd
}

// readFile reads path up to the configured maximum file size.
func (a *app) readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := core.ReadLimited(f, a.cfg.Import.MaxFileSize)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return data, nil
}

func cliActor() core.Actor {
	a := core.Actor{Source: "cli"}
	if u := os.Getenv("USER"); u != "" {
		a.UserAgent = "importer/" + u
	}
	return a
}

func printResult(cmd *cobra.Command, res core.TableResult) {
	out := cmd.OutOrStdout()
	name := res.Table
	if res.File != "" {
		name = res.File + " -> " + res.Table
	}
	fmt.Fprintf(out, "%s: %d inserted, %d updated, %d unchanged, %d collisions, %d rejected",
		name, res.Inserted, res.Updated, res.Unchanged, res.Collisions, res.Rejected)
	if res.Cleared > 0 {
		fmt.Fprintf(out, ", %d cleared", res.Cleared)
	}
	fmt.Fprintln(out)

	for _, re := range res.RowErrors {
		fmt.Fprintf(out, "  line %d: %s\n", re.Line, re.Reason)
	}
	if res.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", res.Error)
	}
}
