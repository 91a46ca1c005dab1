// Package command wires the indexer's command line.
package command

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os/signal"
	"syscall"

	"discord-indexer/bot"
	"discord-indexer/config"
	"discord-indexer/database"
	"discord-indexer/models"

	"github.com/spf13/cobra"
)

// loadConfig is swapped out in tests.
var loadConfig = config.LoadConfig

// NewRootCmd builds the command tree. Without a subcommand the indexer
// connects to Discord and archives, once or on the configured schedule.
func NewRootCmd() *cobra.Command {
	var once bool

	root := &cobra.Command{
		Use:   "discord-indexer",
		Short: "Archive a Discord guild into a Markdown and JSONL knowledge base",
		Long:  `discord-indexer walks the allowed categories of one guild and appends every
message it has not seen yet to a local knowledge base.

With schedule.cron set it keeps running and archives on that schedule.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("configuration error: %w", err)
			}
			if once {
				cfg.Schedule.Cron = ""
			}

			// Ctrl-C cancels the run; the conversation in progress is flushed before exit.
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = bot.Run(ctx, cfg)
			if errors.Is(err, context.Canceled) {
				log.Println("Interrupted by user.")
				return nil
			}
			return err
		},
	}
	root.Flags().BoolVar(&once, "once", false, "archive once and exit even if schedule.cron is set")

	root.AddCommand(newExcludeCmd(), newRunsCmd())
	return root
}

// Execute runs the command line against os.Args.
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

// openDB opens the index database for the bookkeeping subcommands, which
// do not need Discord credentials.
func openDB() (*database.IndexDB, error) {
	cfg, err := loadConfig()
	if err != nil && !isCredentialError(err) {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	if cfg == nil {
		return nil, err
	}
	return database.InitDB(cfg.Paths.DBPath)
}

func isCredentialError(err error) bool {
	return errors.Is(err, config.ErrMissingToken) || errors.Is(err, config.ErrMissingGuild)
}

func newRunsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show the most recent archive runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.LastRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs recorded.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintln(cmd.OutOrStdout(), formatRun(r))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of runs to show")
	return cmd
}

func formatRun(r models.RunSummary) string {
	return fmt.Sprintf("%s  %6s  conversations=%d updated=%d messages=%d failures=%d",
		r.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		r.FinishedAt.Sub(r.StartedAt).String(),
		r.Conversations, r.Updated, r.Messages, r.Failures)
}
