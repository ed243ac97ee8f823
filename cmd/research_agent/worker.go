package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/jonathan/subject-research/internal/observability"
	"github.com/jonathan/subject-research/internal/pipeline"
	"github.com/jonathan/subject-research/internal/queue"
)

var (
	workerConcurrency int
	workerVerbose     bool
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the stage workers",
	Long:  `Claim discover, fetch, normalize, index and analyze tasks from the queue and run them until interrupted.`,
	RunE:  runWorker,
}

func init() {
	workerCmd.Flags().IntVar(&workerConcurrency, "concurrency", 0, "Number of concurrent workers (defaults to worker.concurrency from config)")
	workerCmd.Flags().BoolVarP(&workerVerbose, "verbose", "v", false, "Print a line for every finished unit of work")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if workerConcurrency > 0 {
		cfg.Worker.Concurrency = workerConcurrency
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var onProgress pipeline.ProgressCallback
	if workerVerbose {
		printer := observability.NewPrinter(cmd.OutOrStdout())
		onProgress = printer.PrintProgress
	}

	a, err := openWorker(ctx, cfg, logger, onProgress)
	if err != nil {
		return err
	}
	defer a.Close()

	pool := queue.NewPool(a.queue, queue.PolicyFromConfig(cfg.Worker), cfg.Worker.Concurrency, cfg.PollInterval(), logger)
	a.pipeline.Register(pool)

	logger.Info("worker started", "concurrency", cfg.Worker.Concurrency)
	err = pool.Run(ctx)
	logger.Info("worker stopped")
	return err
}
