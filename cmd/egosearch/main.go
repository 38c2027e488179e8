package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/asimovlabs/egodata-portal/internal/adapters/cli"
	"github.com/asimovlabs/egodata-portal/internal/bootstrap"
	"github.com/asimovlabs/egodata-portal/internal/config"
	"github.com/asimovlabs/egodata-portal/internal/core/domain"
	"github.com/asimovlabs/egodata-portal/internal/observability/logging"
)

const egosearchLongDesc string = `Search egocentric demonstration data from the terminal.

Without arguments an interactive prompt is started; every line is a query and
results of older queries that finish late are never shown.

Example:
  egosearch
  egosearch "fold the towel" --k 20 --mode hybrid
  egosearch --download-dir ./data`

type egosearchCommander struct {
	k           int
	mode        string
	searchURL   string
	downloadDir string
}

func newRootCmd(cfg config.Config) *cobra.Command {
	cmder := &egosearchCommander{}

	cmd := &cobra.Command{
		Use:           "egosearch [query]",
		Short:         "Search egocentric demonstration data",
		Long:          egosearchLongDesc,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, cfg, strings.Join(args, " "))
		},
	}

	cmd.Flags().IntVar(&cmder.k, "k", cfg.SearchDefaultK, "Maximum number of raw results")
	cmd.Flags().StringVarP(&cmder.mode, "mode", "m", cfg.SearchDefaultMode, "Retrieval mode: semantic, keyword or hybrid")
	cmd.Flags().StringVar(&cmder.searchURL, "search-url", cfg.SearchAPIURL, "Search API base URL")
	cmd.Flags().StringVarP(&cmder.downloadDir, "download-dir", "d", cfg.DownloadDir, "Directory for downloaded archives")

	return cmd
}

func (c *egosearchCommander) run(cmd *cobra.Command, cfg config.Config, query string) error {
	mode, err := domain.ParseSearchMode(c.mode)
	if err != nil {
		return err
	}
	cfg.SearchAPIURL = c.searchURL
	cfg.DownloadDir = c.downloadDir

	logger := logging.New(cmd.ErrOrStderr(), "text", "egosearch", cfg.LogLevel)
	client, err := bootstrap.NewClient(cfg, logger)
	if err != nil {
		return err
	}

	session := cli.NewSession(
		client.SearchUC,
		client.ExportUC,
		client.Storage,
		cli.Options{K: c.k, Mode: mode},
		cmd.OutOrStdout(),
		logger,
	)
	if strings.TrimSpace(query) != "" {
		return session.Once(cmd.Context(), query)
	}
	return session.Run(cmd.Context(), cmd.InOrStdin())
}

func main() {
	cfg := config.Load()
	if os.Getenv("LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "egosearch: %v\n", err)
		stop()
		os.Exit(1)
	}
}
