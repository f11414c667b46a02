package main

import (
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/courierimport/internal/config"
	"github.com/JonMunkholm/courierimport/internal/core"
	"github.com/JonMunkholm/courierimport/internal/logging"
	"github.com/JonMunkholm/courierimport/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// app holds what every subcommand needs once the root has set it up.
type app struct {
	envFile string
	cfg     *config.Config
	store   store.Store
	service *core.Service
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "importer",
		Short: "Import courier data files into the document store",
		Long: `importer reads delimited text (.csv, .txt, .tsv), JSON record files and
zip bundles of them, maps their columns to the field vocabulary and
reconciles every row against the records already stored: new rows are
inserted, changed ones updated and identical ones skipped.

Settings come from the environment and an optional .env file, exactly
as for the server.`,
		SilenceUsage:       true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}
	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "load settings from this file instead of .env")

	root.AddCommand(
		a.newFileCmd(),
		a.newBundleCmd(),
		a.newTablesCmd(),
		a.newTemplateCmd(),
		a.newHistoryCmd(),
	)
	return root
}

// setup loads the configuration and opens the store. Logs go to stderr so
// stdout carries only results.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if a.envFile != "" {
		if err := godotenv.Overload(a.envFile); err != nil {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	slog.SetDefault(logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format))

	st, err := store.Open(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	a.store = st

	svc, err := core.NewService(st, cfg)
	if err != nil {
		return err
	}
	a.service = svc
	return nil
}

func (a *app) teardown(*cobra.Command, []string) error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// runOptions are the import flags shared by file and bundle.
type runOptions struct {
	clear        bool
	allowUpdates bool
	idField      string
}

func (o *runOptions) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.BoolVar(&o.clear, "clear", false, "delete every record of the target table before importing")
	f.BoolVar(&o.allowUpdates, "allow-updates", true, "update matched records whose fields changed")
	f.StringVar(&o.idField, "id-field", "", "canonical field identifying records (default: the table's own)")
}

// options applies the flags the user set over the configured defaults.
func (o *runOptions) options(cmd *cobra.Command, defaults core.Options) (core.Options, error) {
	opts := defaults
	opts.ClearTarget = o.clear
	if cmd.Flags().Changed("allow-updates") {
		opts.AllowUpdates = o.allowUpdates
	}
	if o.idField != "" {
		f, err := core.ParseIdentifierField(o.idField)
		if err != nil {
			return core.Options{}, err
		}
		opts.IdentifierField = f
	}
	return opts, nil
}

// userError explains err the way the server does.
func userError(err error) error {
	if core.IsUserFacing(err) {
		return fmt.Errorf("%s\n  (%w)", core.FormatUserError(err), err)
	}
	return err
}
