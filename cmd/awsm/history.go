package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/awsm-dev/awsm/internal/errdef"
	"github.com/awsm-dev/awsm/internal/model"
	"github.com/awsm-dev/awsm/internal/workspace"
)

func (a *app) historyCommand() *cobra.Command {
	var (
		limit     int
		requestID string
		asJSON    bool
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent sends, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.historyStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			var entries []model.HistoryEntry
			if requestID != "" {
				entries, err = store.ByRequest(requestID)
			} else {
				entries, err = store.Entries()
			}
			if err != nil {
				return err
			}
			if limit > 0 && len(entries) > limit {
				entries = entries[:limit]
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), entries)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tWHEN\tMETHOD\tSTATUS\tTIME\tURL")
			for _, e := range entries {
				when := time.UnixMilli(e.Timestamp).Format(time.DateTime)
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d %s\t%dms\t%s\n",
					e.ID, when, e.Method, e.Status, e.StatusText, e.Duration, e.URL)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n entries")
	cmd.Flags().StringVar(&requestID, "request", "", "Only entries for this request id")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print entries as JSON")
	cmd.AddCommand(a.historyClearCommand(), a.historyRestoreCommand())
	return cmd
}

func (a *app) historyClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every history entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, closeStore, err := a.historyStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()
			return store.Clear()
		},
	}
}

func (a *app) historyRestoreCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <entry id>",
		Short: "Save a history entry as a new request in the workspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.historyStore(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			entries, err := store.Entries()
			if err != nil {
				return err
			}
			var found *model.HistoryEntry
			for i := range entries {
				if entries[i].ID == args[0] {
					found = &entries[i]
					break
				}
			}
			if found == nil {
				return errdef.New(errdef.CodeValidation, "history entry %q not found", args[0])
			}

			ws, err := workspace.Load(a.workspacePath)
			if err != nil {
				return err
			}
			id, err := ws.RequestFromHistory(*found)
			if err != nil {
				return err
			}
			if err := workspace.Save(a.workspacePath, ws); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created request %s\n", id)
			return nil
		},
	}
}
