package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelops/api/platform"
	"github.com/kilianp07/fuelops/app"
	"github.com/kilianp07/fuelops/core/gateway"
)

var dispatchIn gateway.Input

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one dispatch decision and print the result",
	RunE:  dispatchTask,
}

func init() {
	f := dispatchCmd.Flags()
	f.StringVar(&dispatchIn.TaskID, "task", "", "task id")
	f.StringVar(&dispatchIn.TaskType, "type", "delivery", "task type (delivery, repair, rental)")
	f.StringVar(&dispatchIn.CompanyID, "company", "", "company id")
	f.StringVar(&dispatchIn.ActorID, "actor", "", "actor id recorded in the audit log")
	f.StringVar(&dispatchIn.BusinessProvidedWorkerID, "worker", "", "worker chosen by the business")
	f.StringVar(&dispatchIn.RejectedReason, "reason", "", "reason for rejecting the platform recommendation")
	f.StringVar(&dispatchIn.RejectedCategory, "category", "", "rejection category")
	_ = dispatchCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(dispatchCmd)
}

func dispatchTask(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		out, st, err := svc.Dispatch(ctx, dispatchIn)
		resp := platform.DispatchResponse{Output: out, FlowStep: st.Step, StepName: st.StepName, Attempts: st.Attempts}
		if perr := printJSON(cmd.OutOrStdout(), resp); perr != nil {
			return perr
		}
		if err != nil {
			return err
		}
		if !out.Success {
			return fmt.Errorf("dispatch failed: %s", out.ErrorCode)
		}
		return nil
	})
}
