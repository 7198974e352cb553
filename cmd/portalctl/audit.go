package main

import (
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"supplies-portal/internal/models"
	"supplies-portal/internal/repository"

	"github.com/spf13/cobra"
)

type auditRow struct {
	Timestamp time.Time `json:"timestamp"`
	Username  string    `json:"username,omitempty"`
	Action    string    `json:"action"`
	Entity    string    `json:"entity,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	Details   string    `json:"details,omitempty"`
}

func newAuditCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Read and prune the audit trail",
	}
	cmd.AddCommand(newAuditListCmd(opts))
	cmd.AddCommand(newAuditPruneCmd())
	return cmd
}

func newAuditListCmd(opts *options) *cobra.Command {
	var (
		user  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Show the most recent audit entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return errors.New("--limit must be at least 1")
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			repo := repository.NewAuditRepository(e.db)
			var logs []*models.AuditLog
			if user != "" {
				logs, err = repo.GetByUser(ctx, strings.ToLower(strings.TrimSpace(user)), limit, 0)
			} else {
				logs, err = repo.GetRecent(ctx, limit, 0)
			}
			if err != nil {
				return err
			}

			rows := make([]auditRow, 0, len(logs))
			for _, l := range logs {
				entity := l.EntityType
				if l.EntityID.Valid && l.EntityID.String != "" {
					entity += ":" + l.EntityID.String
				}
				rows = append(rows, auditRow{
					Timestamp: l.Timestamp,
					Username:  l.Username.String,
					Action:    l.Action,
					Entity:    entity,
					IPAddress: l.IPAddress.String,
					Details:   l.Details.String,
				})
			}

			out := cmd.OutOrStdout()
			if opts.json {
				return printJSON(out, rows)
			}
			if len(rows) == 0 {
				fmt.Fprintln(out, "No audit entries.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tUSER\tACTION\tENTITY\tIP")
			fmt.Fprintln(w, "----\t----\t------\t------\t--")
			for _, r := range rows {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.Timestamp.Local().Format("2006-01-02 15:04:05"), dash(r.Username), r.Action, dash(r.Entity), dash(r.IPAddress))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "only show entries for this username")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of entries")
	return cmd
}

func newAuditPruneCmd() *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete audit entries older than --days",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if days < 1 {
				return errors.New("--days must be at least 1")
			}

			ctx := cmd.Context()
			e, err := openEnv(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			cutoff := time.Now().AddDate(0, 0, -days)
			n, err := repository.NewAuditRepository(e.db).DeleteOlderThan(ctx, cutoff)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d audit entries older than %s\n", n, cutoff.Format("2006-01-02"))
			return nil
		},
	}

	cmd.Flags().IntVar(&days, "days", 90, "keep entries from the last N days")
	return cmd
}
