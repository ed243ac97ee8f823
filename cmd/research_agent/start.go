package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/subject-research/internal/db"
	"github.com/jonathan/subject-research/internal/observability"
	"github.com/jonathan/subject-research/internal/status"
	"github.com/jonathan/subject-research/internal/types"
)

var (
	startSubject string
	startWait    bool
	startTimeout time.Duration
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a research job for a subject",
	Long: `Create a research job and enqueue its discovery. A running worker picks it up.

With --wait the command polls until the job completes and prints its timeline.`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVarP(&startSubject, "subject", "s", "", "Subject to research (required)")
	startCmd.Flags().BoolVar(&startWait, "wait", false, "Wait for the job to finish and print its timeline")
	startCmd.Flags().DurationVar(&startTimeout, "timeout", 30*time.Minute, "Maximum time to wait with --wait")
	_ = startCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, _ []string) error {
	req := types.StartJobRequest{Subject: startSubject}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid subject: %w", err)
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

	job, err := a.pipeline.StartJob(ctx, req.Subject)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Started job %s for %q\n", job.ID, job.Subject)
	if !startWait {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	job, err = waitForJob(ctx, a.db, job.ID, cfg.PollInterval())
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	progress, err := a.db.JobProgress(ctx, job.ID)
	if err != nil {
		return err
	}
	printer.PrintJobStatus(job, progress)
	if job.Status == status.JobAnalysisFailed {
		return fmt.Errorf("job %s failed analysis", job.ID)
	}
	events, err := a.db.ListEvents(ctx, job.ID)
	if err != nil {
		return err
	}
	printer.PrintTimeline(job.Subject, events)
	return nil
}

// jobGetter is the part of the store waitForJob polls.
type jobGetter interface {
	GetJob(ctx context.Context, jobID uuid.UUID) (*db.Job, error)
}

// waitForJob polls until the job is complete or has failed analysis.
func waitForJob(ctx context.Context, store jobGetter, jobID uuid.UUID, every time.Duration) (*db.Job, error) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		job, err := store.GetJob(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if job == nil {
			return nil, fmt.Errorf("job %s not found", jobID)
		}
		if job.Status == status.JobComplete || job.Status == status.JobAnalysisFailed {
			return job, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("gave up waiting for job %s in status %s: %w", jobID, job.Status, ctx.Err())
		case <-ticker.C:
		}
	}
}
