package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelops/app"
	"github.com/kilianp07/fuelops/core/audit"
	"github.com/kilianp07/fuelops/core/learning"
)

type queryFlags struct {
	start, end, action, target, actor string
	limit                             int
}

var auditFlags queryFlags

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query the audit log",
	RunE:  queryAudit,
}

var learningCmd = &cobra.Command{
	Use:   "learning",
	Short: "Summarize recorded decision samples per strategy version",
	RunE:  summarizeLearning,
}

func init() {
	f := auditCmd.Flags()
	f.StringVar(&auditFlags.start, "start", "", "lower bound (RFC3339)")
	f.StringVar(&auditFlags.end, "end", "", "upper bound (RFC3339)")
	f.StringVar(&auditFlags.action, "action", "", "action filter")
	f.StringVar(&auditFlags.target, "target", "", "target id filter")
	f.StringVar(&auditFlags.actor, "actor", "", "actor id filter")
	f.IntVar(&auditFlags.limit, "limit", 0, "keep the most recent n entries")
	rootCmd.AddCommand(auditCmd)

	lf := learningCmd.Flags()
	lf.StringVar(&auditFlags.start, "start", "", "lower bound (RFC3339)")
	lf.StringVar(&auditFlags.end, "end", "", "upper bound (RFC3339)")
	rootCmd.AddCommand(learningCmd)
}

func (f queryFlags) query() (audit.Query, error) {
	var q audit.Query
	var err error
	if f.start != "" {
		if q.Start, err = time.Parse(time.RFC3339, f.start); err != nil {
			return q, fmt.Errorf("start: %w", err)
		}
	}
	if f.end != "" {
		if q.End, err = time.Parse(time.RFC3339, f.end); err != nil {
			return q, fmt.Errorf("end: %w", err)
		}
	}
	if f.action != "" {
		a, ok := audit.ParseAction(f.action)
		if !ok {
			return q, fmt.Errorf("unknown action %q", f.action)
		}
		q.Action = a
	}
	if f.limit < 0 {
		return q, fmt.Errorf("limit must be positive")
	}
	q.TargetID = f.target
	q.ActorID = f.actor
	q.Limit = f.limit
	return q, nil
}

func queryAudit(cmd *cobra.Command, args []string) error {
	q, err := auditFlags.query()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		entries, err := svc.Audit.Query(ctx, q)
		if err != nil {
			return fmt.Errorf("query audit: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), entries)
	})
}

func summarizeLearning(cmd *cobra.Command, args []string) error {
	q, err := auditFlags.query()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		samples, err := learning.Corpus{Log: svc.Audit}.Samples(ctx, q)
		if err != nil {
			return fmt.Errorf("read samples: %w", err)
		}
		return printJSON(cmd.OutOrStdout(), learning.Summarize(samples))
	})
}
