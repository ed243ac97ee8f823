package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/observability"
)

var (
	statusJobID    string
	statusSources  bool
	statusTimeline bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a job's status, sources and timeline",
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusJobID, "job", "", "Job ID (required)")
	statusCmd.Flags().BoolVar(&statusSources, "sources", false, "Also list the newest sources")
	statusCmd.Flags().BoolVar(&statusTimeline, "timeline", false, "Also print the timeline")
	_ = statusCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	jobID, err := uuid.Parse(statusJobID)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", statusJobID, err)
	}

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := context.Background()
	a, err := openControl(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.db.GetJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return fmt.Errorf("job %s not found", jobID)
	}
	progress, err := a.db.JobProgress(ctx, jobID)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintJobStatus(job, progress)

	if statusSources {
		sources, err := a.db.ListSources(ctx, jobID, db.SourceFilters{Limit: db.DefaultListLimit})
		if err != nil {
			return err
		}
		printer.PrintSources(sources)
	}
	if statusTimeline {
		events, err := a.db.ListEvents(ctx, jobID)
		if err != nil {
			return err
		}
		printer.PrintTimeline(job.Subject, events)
	}
	return nil
}
