//go:build !windows || dev

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sakondev/drg-inventory/internal/aggregate"
	"github.com/sakondev/drg-inventory/internal/db"
	"github.com/sakondev/drg-inventory/internal/integrations"
	"github.com/sakondev/drg-inventory/internal/report"
	"github.com/sakondev/drg-inventory/internal/snapshot"
)

type rootOptions struct {
	EnvFile string
	Quiet   bool
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	err := newRootCommand().ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	}
	cancel()
	os.Exit(exitCode(err))
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	var a *app

	cmd := &cobra.Command{
		Use:           "drg-inventory",
		Short:         "Collect branch stock into timestamped snapshots",
		Version:       ver,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			a, err = bootstrap(opts.EnvFile, !opts.Quiet)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a != nil {
				a.close()
			}
		},
	}
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to load before reading the environment")
	cmd.PersistentFlags().BoolVarP(&opts.Quiet, "quiet", "q", false, "log to the log file only")

	appFn := func() *app { return a }
	cmd.AddCommand(
		newFetchCommand(appFn),
		newAggregateCommand(appFn),
		newPipelineCommand(appFn),
		newIndexCommand(appFn),
		newShowCommand(appFn),
		newServeCommand(appFn),
		newHistoryCommand(appFn),
		newSourcesCommand(),
	)
	return cmd
}

func newFetchCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Pull every source and write one snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a().pipeline()
			if err != nil {
				return err
			}
			res, err := p.Fetch(cmd.Context())
			if res != nil {
				report.Run(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

func newAggregateCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Rebuild " + aggregate.OutputFile + " from every snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a().pipeline()
			if err != nil {
				return err
			}
			m, out, err := p.Aggregate(cmd.Context())
			if err != nil {
				return err
			}
			report.Aggregate(cmd.OutOrStdout(), m)
			fmt.Fprintln(cmd.OutOrStdout(), "written:", out)
			return nil
		},
	}
}

func newPipelineCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:     "pipeline",
		Aliases: []string{"run"},
		Short:   "Fetch, then aggregate",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a().pipeline()
			if err != nil {
				return err
			}
			res, err := p.Run(cmd.Context())
			if res != nil {
				report.Run(cmd.OutOrStdout(), res)
			}
			return err
		},
	}
}

func newIndexCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Regenerate " + snapshot.IndexFile,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a().pipeline()
			if err != nil {
				return err
			}
			names, err := p.Index()
			if err != nil {
				return err
			}
			report.Index(cmd.OutOrStdout(), names)
			return nil
		},
	}
}

func newShowCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [snapshot file]",
		Short: "Print a snapshot as a table (latest by default)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a().pipeline()
			if err != nil {
				return err
			}
			var snap snapshot.Snapshot
			if len(args) == 1 {
				snap, err = p.Store().Load(args[0])
			} else {
				snap, _, err = p.Store().Latest()
			}
			if err != nil {
				return err
			}
			report.Snapshot(cmd.OutOrStdout(), snap)
			return nil
		},
	}
}

func newServeCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline on a schedule until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a().syncer()
			if err != nil {
				return err
			}
			if err := s.Start(cmd.Context()); err != nil {
				return err
			}
			a().log.Info().Str("version", ver).Msg("serving, ctrl+c to stop")

			reload := make(chan os.Signal, 1)
			signal.Notify(reload, syscall.SIGHUP)
			defer signal.Stop(reload)
			for {
				select {
				case <-cmd.Context().Done():
					s.Stop()
					return nil
				case <-reload:
					cfg, err := a().reload()
					if err != nil {
						a().log.Error().Err(err).Msg("config reload failed")
						continue
					}
					if err := s.UpdateConfig(cfg); err != nil {
						a().log.Error().Err(err).Msg("config rejected")
					}
				}
			}
		},
	}
}

func newHistoryCommand(a func() *app) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List the snapshots registered in the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h := a().db
			if h == nil {
				return fmt.Errorf("no database configured (DB_DRIVER=%s)", a().env.DBDriver)
			}
			rows, err := h.Snapshots()
			if err != nil {
				return err
			}
			lastRun, _, err := h.GetKV(db.KVLastRun)
			if err != nil {
				return err
			}
			builtAt, _, err := h.GetKV(db.KVAggregateBuiltAt)
			if err != nil {
				return err
			}
			report.History(cmd.OutOrStdout(), rows, lastRun, builtAt)
			return nil
		},
	}
}

func newSourcesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the source adapters compiled in",
		Args:  cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			for _, n := range integrations.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
		},
	}
}
