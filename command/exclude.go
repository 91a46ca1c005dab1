package command

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func newExcludeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exclude",
		Short: "Manage conversations that are never archived",
	}
	cmd.AddCommand(newExcludeAddCmd(), newExcludeRemoveCmd(), newExcludeListCmd())
	return cmd
}

func newExcludeAddCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "add <conversation-id> [reason...]",
		Short:   "Exclude a channel or thread by ID",
		Example: `  discord-indexer exclude add 1234567890 noisy bot channel`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := conversationID(args[0])
			if err != nil {
				return err
			}
			reason := "manual"
			if len(args) > 1 {
				reason = strings.Join(args[1:], " ")
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.AddExclusion(id, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Excluded %s (%s)\n", id, reason)
			return nil
		},
	}
}

func newExcludeRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove <conversation-id>",
		Aliases: []string{"rm"},
		Short:   "Archive a previously excluded conversation again",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := conversationID(args[0])
			if err != nil {
				return err
			}

			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.RemoveExclusion(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed exclusion for %s\n", id)
			return nil
		},
	}
}

func newExcludeListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List excluded conversations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			excluded, err := db.GetExclusions()
			if err != nil {
				return err
			}
			if len(excluded) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No exclusions.")
				return nil
			}

			ids := make([]string, 0, len(excluded))
			for id := range excluded {
				ids = append(ids, id)
			}
			sort.Slice(ids, func(i, j int) bool { return snowflakeLess(ids[i], ids[j]) })
			for _, id := range ids {
				e := excluded[id]
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", id, e.Reason, time.Unix(e.Timestamp, 0).UTC().Format(time.RFC3339))
			}
			return nil
		},
	}
}

// conversationID validates a snowflake given on the command line.
func conversationID(arg string) (string, error) {
	if _, err := strconv.ParseUint(arg, 10, 64); err != nil {
		return "", fmt.Errorf("invalid conversation ID %q", arg)
	}
	return arg, nil
}

// snowflakeLess orders IDs numerically. IDs that do not parse, which only
// hand-edited databases contain, sort after the valid ones.
func snowflakeLess(a, b string) bool {
	x, errA := strconv.ParseUint(a, 10, 64)
	y, errB := strconv.ParseUint(b, 10, 64)
	switch {
	case errA == nil && errB == nil:
		return x < y
	case errA == nil:
		return true
	case errB == nil:
		return false
	}
	return a < b
}
