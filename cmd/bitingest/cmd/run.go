package cmd

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/G-Research/bitingest/internal/app"
	"github.com/G-Research/bitingest/internal/common"
	commonapp "github.com/G-Research/bitingest/internal/common/app"
	"github.com/G-Research/bitingest/internal/common/logging"
	"github.com/G-Research/bitingest/internal/ingester"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Ingest every file the configured locator finds",
		RunE:  runIngest,
	}
	cmd.Flags().String("collection", "", "Collection to ingest into, overriding the configured one")
	cmd.Flags().Int("max-parallel", 0, "Maximum put operations in flight, overriding the configured value")
	return cmd
}

func runIngest(cmd *cobra.Command, _ []string) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if collection, _ := cmd.Flags().GetString("collection"); collection != "" {
		config.CollectionId = collection
	}
	if maxParallel, _ := cmd.Flags().GetInt("max-parallel"); maxParallel > 0 {
		config.MaxParallelOperations = maxParallel
	}

	if config.MetricsPort > 0 {
		shutdownMetrics := common.ServeMetrics(config.MetricsPort)
		defer shutdownMetrics()
	}

	// Cancelled on SIGINT and SIGTERM, or once the ingest is over.
	ctx, cancel := context.WithCancel(commonapp.CreateContextWithShutdown())
	defer cancel()

	a, err := app.New(ctx, config, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	var summary *ingester.RunSummary
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		var runErr error
		summary, runErr = a.Run(ctx)
		return runErr
	})
	g.Go(func() error {
		<-ctx.Done()
		log.Debug("Ingest context done")
		return nil
	})
	runErr := g.Wait()

	if err := a.Shutdown(); err != nil {
		logging.WithStacktrace(log.NewEntry(log.StandardLogger()), err).Error("Failed to shut down cleanly")
	}
	if summary != nil {
		cmd.Print(app.FormatReport(config.CollectionId, summary, a.Failures.Failures()))
	}
	return runErr
}
