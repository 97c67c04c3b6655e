package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devilmonastery/sessionshare/internal/config"
	"github.com/devilmonastery/sessionshare/internal/domain/repositories"
)

func newAuditCommand(flags *globalFlags) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent account and settings changes",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepos(cmd.Context(), flags, func(_ *config.Config, repos *repositories.Repositories) error {
				return listAudit(cmd.Context(), repos.Audit, cmd.OutOrStdout(), limit)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "Number of entries to show")
	return cmd
}

func listAudit(ctx context.Context, repo repositories.AuditRepository, out io.Writer, limit int) error {
	logs, err := repo.ListRecent(ctx, limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tUID\tRESOURCE\tOK")
	for _, entry := range logs {
		uid := "-"
		if entry.UserID != nil {
			uid = fmt.Sprint(*entry.UserID)
		}
		resource := string(entry.Resource)
		if entry.ResourceID != nil {
			resource += ":" + *entry.ResourceID
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\n",
			entry.CreatedAt.Format(time.RFC3339), entry.Action, uid, resource, entry.Success)
	}
	return tw.Flush()
}
