package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/subject-research/internal/queue"
)

var (
	requeueJobID string
	requeueStage string
)

var requeueCmd = &cobra.Command{
	Use:   "requeue",
	Short: "Re-enqueue work for an existing job",
	Long: `Re-enqueue work for an existing job.

--stage analyze synthesizes the timeline again from what is already indexed.
--stage fetch enqueues a fetch for every source still queued.`,
	RunE: runRequeue,
}

func init() {
	requeueCmd.Flags().StringVar(&requeueJobID, "job", "", "Job ID (required)")
	requeueCmd.Flags().StringVar(&requeueStage, "stage", string(queue.StageAnalyze), "Stage to re-enqueue: analyze or fetch")
	_ = requeueCmd.MarkFlagRequired("job")
	rootCmd.AddCommand(requeueCmd)
}

// parseRequeueStage accepts only the stages that can be re-enqueued by hand.
func parseRequeueStage(s string) (queue.Stage, error) {
	stage, err := queue.ParseStage(s)
	if err != nil {
		return "", err
	}
	if stage != queue.StageAnalyze && stage != queue.StageFetch {
		return "", fmt.Errorf("stage %q cannot be requeued (use analyze or fetch)", s)
	}
	return stage, nil
}

func runRequeue(cmd *cobra.Command, _ []string) error {
	jobID, err := uuid.Parse(requeueJobID)
	if err != nil {
		return fmt.Errorf("invalid job ID %q: %w", requeueJobID, err)
	}
	stage, err := parseRequeueStage(requeueStage)
	if err != nil {
		return err
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

	out := cmd.OutOrStdout()
	switch stage {
	case queue.StageFetch:
		n, err := a.pipeline.RequeueFetch(ctx, jobID)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Requeued fetch for %d sources of job %s\n", n, jobID)
	default:
		if err := a.pipeline.RequeueAnalysis(ctx, jobID); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "Requeued analysis for job %s\n", jobID)
	}
	return nil
}
