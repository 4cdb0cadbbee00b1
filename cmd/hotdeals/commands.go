package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/hotdeals/internal/app"
	"github.com/MrSnakeDoc/hotdeals/internal/auth"
	"github.com/MrSnakeDoc/hotdeals/internal/config"
	"github.com/MrSnakeDoc/hotdeals/internal/logger"
	"github.com/MrSnakeDoc/hotdeals/internal/version"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hotdeals",
		Short:         "Korean community hot-deal aggregator",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd)
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the API server and the crawl scheduler",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return serve(cmd)
			},
		},
		&cobra.Command{
			Use:   "crawl",
			Short: "Run one crawl cycle and exit",
			RunE:  crawl,
		},
		&cobra.Command{
			Use:   "backup",
			Short: "Write one database backup and rotate old ones",
			RunE:  runBackup,
		},
		&cobra.Command{
			Use:   "token <subject>",
			Short: "Issue a bearer token for the protected endpoints",
			Args:  cobra.ExactArgs(1),
			RunE:  issueToken,
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)

	return root
}

// setup loads the configuration and builds the application.
func setup(cmd *cobra.Command) (*app.App, logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)

	a, err := app.New(cmd.Context(), cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, nil, err
	}
	return a, log, nil
}

func serve(cmd *cobra.Command) error {
	a, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	return a.Run(cmd.Context())
}

func crawl(cmd *cobra.Command, _ []string) error {
	a, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer a.Close()

	report, err := a.CrawlOnce(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "fetched=%d inserted=%d updated=%d failed=%d indexed=%d took=%s\n",
		report.Fetched, report.Inserted, report.Updated, report.Failed, report.Indexed, report.Duration())
	if report.IndexError != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "index error: %s\n", report.IndexError)
	}
	return nil
}

func runBackup(cmd *cobra.Command, _ []string) error {
	a, log, err := setup(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()
	defer a.Close()

	path, err := a.Backup(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	m, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		return fmt.Errorf("HOTDEAL_JWT_SECRET: %w", err)
	}
	token, err := m.GenerateToken(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
