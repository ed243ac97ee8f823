// Package queue dispatches pipeline tasks to stage handlers with
// at-least-once delivery.
package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/types"
)

// Stage names a pipeline step.
type Stage string

// Pipeline stages
const (
	StageDiscover  Stage = "discover"
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageIndex     Stage = "index"
	StageAnalyze   Stage = "analyze"
)

// Stages returns every stage in pipeline order.
func Stages() []Stage {
	return []Stage{StageDiscover, StageFetch, StageNormalize, StageIndex, StageAnalyze}
}

// ParseStage validates a stage name.
func ParseStage(s string) (Stage, error) {
	for _, st := range Stages() {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown stage %q", s)
}

// Task is one unit of stage work. Only the identifiers relevant to the stage
// are set; handlers load everything else from the store.
type Task struct {
	ID         int64                `json:"id"`
	Stage      Stage                `json:"stage"`
	JobID      uuid.UUID            `json:"job_id"`
	SourceID   int64                `json:"source_id,omitempty"`
	DocumentID int64                `json:"document_id,omitempty"`
	Subject    string               `json:"subject,omitempty"`
	Item       *types.DiscoveryItem `json:"item,omitempty"`
	Attempt    int                  `json:"attempt"`
	RunAt      time.Time            `json:"run_at"`
}

// Queue stores pending tasks. A dequeued task is leased to its caller and is
// delivered again if it is not acked before the lease expires.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue returns the next due task, or nil when none is ready.
	Dequeue(ctx context.Context) (*Task, error)
	Ack(ctx context.Context, taskID int64) error
}
