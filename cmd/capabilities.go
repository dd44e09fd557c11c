package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelops/app"
	"github.com/kilianp07/fuelops/core/capability"
	"github.com/kilianp07/fuelops/core/model"
)

var capKind string

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List registered capabilities",
	RunE:  listCapabilities,
}

func init() {
	capabilitiesCmd.Flags().StringVar(&capKind, "kind", "", "restrict to one kind")
	rootCmd.AddCommand(capabilitiesCmd)
}

func listCapabilities(cmd *cobra.Command, args []string) error {
	kinds := capability.Kinds
	if capKind != "" {
		k, ok := capability.ParseKind(capKind)
		if !ok {
			return fmt.Errorf("unknown kind %q", capKind)
		}
		kinds = []capability.Kind{k}
	}
	ctx := cmd.Context()
	return withService(ctx, func(svc *app.Service) error {
		out := make(map[capability.Kind][]model.CapabilityMeta, len(kinds))
		for _, k := range kinds {
			out[k] = svc.Registry.List(k)
		}
		return printJSON(cmd.OutOrStdout(), out)
	})
}
