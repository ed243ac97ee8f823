// Package timeline synthesizes a cited, dated event timeline for a subject
// from the chunks indexed for a job.
package timeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/jonathan/subject-research/internal/llm"
	"github.com/jonathan/subject-research/internal/prompts"
	"github.com/jonathan/subject-research/internal/schemas"
	"github.com/jonathan/subject-research/internal/types"
	"github.com/jonathan/subject-research/internal/vectorstore"
)

const (
	// DefaultTopK is how many chunks are retrieved as context.
	DefaultTopK = 16
	// ContextExcerptLength caps each context line's excerpt, in characters.
	ContextExcerptLength = 600
	// DefaultLabel is used for citations that carry no label.
	DefaultLabel = "source"
)

// Model is the part of an LLM client the synthesizer needs.
type Model interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	GenerateJSON(ctx context.Context, prompt string, tier llm.ModelTier) (string, error)
	GetModel(tier llm.ModelTier) string
}

// Synthesizer retrieves a job's most relevant chunks and asks the model for a timeline.
type Synthesizer struct {
	model  Model
	store  vectorstore.Searcher
	logger *slog.Logger
	topK   int
}

// New creates a Synthesizer.
func New(model Model, store vectorstore.Searcher, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Synthesizer{model: model, store: store, logger: logger, topK: DefaultTopK}
}

// Synthesize returns the timeline events for subject from job's indexed content.
// A job with no indexed chunks yields no events and no model call.
func (s *Synthesizer) Synthesize(ctx context.Context, jobID uuid.UUID, subject string) ([]types.TimelineEvent, error) {
	data := prompts.Data{Subject: subject}
	query := prompts.MustRender("timeline.json", "retrieval-query", data)

	vec, err := s.model.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed timeline query: %w", err)
	}
	hits, err := s.store.Search(ctx, jobID, vec, s.topK)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(hits) == 0 {
		s.logger.Info("no indexed content for timeline", "job_id", jobID)
		return []types.TimelineEvent{}, nil
	}

	prompt := llm.TimelinePrompt(prompts.MustRender("timeline.json", "synthesize", data), BuildContext(hits))

	events, err := s.generate(ctx, prompt.String(), llm.TierStandard)
	var invalid *schemas.ValidationError
	if (errors.As(err, &invalid) || (err == nil && len(events) == 0)) && s.canEscalate() {
		s.logger.Warn("standard model gave no usable timeline, escalating",
			"job_id", jobID, "model", s.model.GetModel(llm.TierAdvanced), "error", err)
		events, err = s.generate(ctx, prompt.String(), llm.TierAdvanced)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("timeline synthesized", "job_id", jobID, "context_chunks", len(hits), "events", len(events))
	return events, nil
}

func (s *Synthesizer) generate(ctx context.Context, prompt string, tier llm.ModelTier) ([]types.TimelineEvent, error) {
	raw, err := s.model.GenerateJSON(ctx, prompt, tier)
	if err != nil {
		return nil, fmt.Errorf("failed to generate timeline: %w", err)
	}
	events := Parse(raw)
	if err := schemas.ValidateTimeline(events); err != nil {
		return nil, fmt.Errorf("timeline failed validation: %w", err)
	}
	return events, nil
}

// canEscalate reports whether the advanced tier is backed by a different model.
func (s *Synthesizer) canEscalate() bool {
	adv := s.model.GetModel(llm.TierAdvanced)
	return adv != "" && adv != s.model.GetModel(llm.TierStandard)
}

// BuildContext renders hits as numbered lines: "[n] date excerpt (src: url)".
func BuildContext(hits []vectorstore.Hit) string {
	lines := make([]string, 0, len(hits))
	for i, h := range hits {
		text := strings.ReplaceAll(h.Payload.Text, "\n", " ")
		if r := []rune(text); len(r) > ContextExcerptLength {
			text = string(r[:ContextExcerptLength])
		}
		lines = append(lines, fmt.Sprintf("[%d] %s %s (src: %s)", i+1, h.Payload.PublishedAt, text, h.Payload.SourceURL))
	}
	return strings.Join(lines, "\n")
}
