package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"SocialPoster/internal/app"
	"SocialPoster/internal/config"
	"SocialPoster/internal/domain"
	"SocialPoster/internal/logging"
)

var version = "dev"

var (
	flagConfig    string
	flagPlatforms []string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "socialposter",
		Short:        "Automated social post pipeline",
		Long:         "socialposter turns news feeds into LinkedIn, X and Telegram posts on a schedule.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to config file (overrides SOCIALPOSTER_CONFIG)")

	runCmd := &cobra.Command{
		Use:   "run <project-id>",
		Short: "Run the pipeline once for a project and print the run record",
		Args:  cobra.ExactArgs(1),
		RunE:  runOnce,
	}
	runCmd.Flags().StringSliceVar(&flagPlatforms, "platforms", nil, "restrict publishing to these platforms")

	root.AddCommand(
		&cobra.Command{Use: "serve", Short: "Start the HTTP API and scheduler", RunE: serve},
		runCmd,
		&cobra.Command{Use: "seed", Short: "Store configured projects missing from the database", RunE: seed},
		&cobra.Command{Use: "jobs", Short: "List the scheduled jobs of every active project", RunE: jobs},
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "socialposter %s\n", version)
			},
		},
	)
	return root
}

func setup(ctx context.Context) (*app.Application, error) {
	if flagConfig != "" {
		if err := os.Setenv("SOCIALPOSTER_CONFIG", flagConfig); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	application, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("application init failed", "error", err)
		return nil, err
	}
	return application, nil
}

func serve(cmd *cobra.Command, _ []string) error {
	application, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()
	return application.Serve(cmd.Context())
}

func runOnce(cmd *cobra.Command, args []string) error {
	platforms, err := domain.ParsePlatforms(flagPlatforms...)
	if err != nil {
		return err
	}
	application, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	run, err := application.RunOnce(cmd.Context(), args[0], platforms)
	if err != nil {
		return err
	}
	if err := printJSON(cmd, run); err != nil {
		return err
	}
	if run.Status == domain.RunFailed {
		return fmt.Errorf("run %d failed: %s", run.ID, run.Error)
	}
	return nil
}

func seed(cmd *cobra.Command, _ []string) error {
	application, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	n, err := application.Seed(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "seeded %d projects\n", n)
	return nil
}

func jobs(cmd *cobra.Command, _ []string) error {
	application, err := setup(cmd.Context())
	if err != nil {
		return err
	}
	defer application.Close()

	list, err := application.Jobs(cmd.Context())
	if err != nil {
		return err
	}
	return printJSON(cmd, list)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
