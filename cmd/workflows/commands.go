package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"streamer-live-bot/internal/domain"
	"streamer-live-bot/internal/domain/model"
	"streamer-live-bot/internal/domain/ports/adapter"
	"streamer-live-bot/internal/infra/web"
	"streamer-live-bot/internal/usecase"
)

func newListCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List remote workflows",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := gatewayFromViper(cmd)
			if err != nil {
				return err
			}
			return listWorkflows(cmd.Context(), gw, cmd.OutOrStdout(), all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include workflows not created by the bot.")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <workflow-id>",
		Short: "Delete one remote workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := gatewayFromViper(cmd)
			if err != nil {
				return err
			}
			if err := gw.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
			return nil
		},
	}
}

type deleteAllOptions struct {
	Grace  time.Duration
	Match  []string
	All    bool
	DryRun bool
}

func newDeleteAllCmd() *cobra.Command {
	var opts deleteAllOptions
	cmd := &cobra.Command{
		Use:   "delete-all",
		Short: "Delete every bot-created workflow",
		Long: "Deletes remote workflows whose name starts with the bot's prefix.\n" +
			"--match narrows the selection to names containing every given word.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := gatewayFromViper(cmd)
			if err != nil {
				return err
			}
			failed, err := deleteAll(cmd.Context(), gw, cmd.OutOrStdout(), opts)
			if err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d deletions failed", failed)
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&opts.Grace, "grace", 5*time.Second, "Pause between deletions.")
	cmd.Flags().StringSliceVar(&opts.Match, "match", nil, "Words that must all appear in the name.")
	cmd.Flags().BoolVar(&opts.All, "all", false, "Ignore the bot prefix and consider every workflow.")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Print what would be deleted.")
	return cmd
}

func newAdminTokenCmd() *cobra.Command {
	var (
		ttl     time.Duration
		subject string
	)
	cmd := &cobra.Command{
		Use:   "admin-token",
		Short: "Mint a bearer token for the admin HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			auth, err := web.NewAuthManager(viper.GetString("admin.jwt_secret"), ttl)
			if err != nil {
				return err
			}
			tok, err := auth.Mint(subject, ttl)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "Token lifetime.")
	cmd.Flags().StringVar(&subject, "subject", "cli", "Token subject.")
	return cmd
}

func listWorkflows(ctx context.Context, gw adapter.WorkflowGateway, out io.Writer, all bool) error {
	items, err := gw.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tSTATE\tCREATED\tLAST RUN\tNAME")
	n := 0
	for _, it := range items {
		if !all && !usecase.IsWatchWorkflowName(it.Name) {
			continue
		}
		n++
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.ID, it.State, fmtTime(&it.DateCreated), fmtTime(it.LastExecution), it.Name)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(out, "%d workflows\n", n)
	return nil
}

func selectWorkflows(items []model.WorkflowSummary, opts deleteAllOptions) []model.WorkflowSummary {
	var out []model.WorkflowSummary
	for _, it := range items {
		if !opts.All && !usecase.IsWatchWorkflowName(it.Name) {
			continue
		}
		if !containsAll(it.Name, opts.Match) {
			continue
		}
		out = append(out, it)
	}
	return out
}

func containsAll(name string, words []string) bool {
	for _, w := range words {
		if w = strings.TrimSpace(w); w != "" && !strings.Contains(name, w) {
			return false
		}
	}
	return true
}

// deleteAll returns the number of failed deletions. A workflow that is
// already gone counts as deleted.
func deleteAll(ctx context.Context, gw adapter.WorkflowGateway, out io.Writer, opts deleteAllOptions) (int, error) {
	items, err := gw.List(ctx)
	if err != nil {
		return 0, err
	}
	targets := selectWorkflows(items, opts)
	if len(targets) == 0 {
		_, _ = fmt.Fprintln(out, "nothing to delete")
		return 0, nil
	}

	limit := rate.Inf
	if opts.Grace > 0 {
		limit = rate.Every(opts.Grace)
	}
	lim := rate.NewLimiter(limit, 1)

	failed := 0
	for _, it := range targets {
		if opts.DryRun {
			_, _ = fmt.Fprintf(out, "would delete %s %s\n", it.ID, it.Name)
			continue
		}
		if err := lim.Wait(ctx); err != nil {
			return failed, err
		}
		err := gw.Delete(ctx, it.ID)
		switch {
		case err == nil, errors.Is(err, domain.ErrNotFound):
			_, _ = fmt.Fprintf(out, "deleted %s %s\n", it.ID, it.Name)
		default:
			failed++
			_, _ = fmt.Fprintf(out, "failed  %s %s: %v\n", it.ID, it.Name, err)
		}
	}
	_, _ = fmt.Fprintf(out, "%d/%d deleted\n", len(targets)-failed, len(targets))
	return failed, nil
}

func fmtTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04")
}
