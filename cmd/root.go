package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/fuelops/app"
	"github.com/kilianp07/fuelops/config"
	"github.com/kilianp07/fuelops/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:           "fuelops",
	Short:         "Platform dispatch and decision service",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the API, MQTT feed and metrics servers",
	RunE:  run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (yaml or json)")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return withService(ctx, func(svc *app.Service) error {
		return svc.Run(ctx)
	})
}

// withService loads the configuration, builds the service and closes it once
// fn returns.
func withService(ctx context.Context, fn func(*app.Service) error) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return fn(svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
