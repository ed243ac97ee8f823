package timeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jonathan/subject-research/internal/llm"
	"github.com/jonathan/subject-research/internal/types"
)

// Parse extracts events from a model response. It accepts a fenced or bare
// JSON object keyed by "timeline" or "events", or a bare list of events.
// Citations may be URL strings or objects with "url" or "source" keys.
// Events without text are dropped. Unparseable input yields no events.
func Parse(raw string) []types.TimelineEvent {
	var decoded any
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &decoded); err != nil {
		return []types.TimelineEvent{}
	}

	var entries []any
	switch v := decoded.(type) {
	case map[string]any:
		entries = firstList(v, "timeline", "events")
	case []any:
		entries = v
	}

	out := []types.TimelineEvent{}
	for _, e := range entries {
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		event := stringField(obj, "event", "text")
		if event == "" {
			continue
		}
		out = append(out, types.TimelineEvent{
			Date:      stringField(obj, "date"),
			Event:     event,
			Citations: parseCitations(obj["citations"]),
		})
	}
	return out
}

func parseCitations(v any) []types.Citation {
	list, _ := v.([]any)
	out := []types.Citation{}
	for _, c := range list {
		var cit types.Citation
		switch x := c.(type) {
		case string:
			cit = types.Citation{URL: strings.TrimSpace(x), Label: DefaultLabel}
		case map[string]any:
			cit = types.Citation{URL: stringField(x, "url", "source"), Label: stringField(x, "label")}
			if cit.Label == "" {
				cit.Label = DefaultLabel
			}
		default:
			continue
		}
		if cit.URL != "" {
			out = append(out, cit)
		}
	}
	return out
}

func firstList(obj map[string]any, keys ...string) []any {
	for _, k := range keys {
		if list, ok := obj[k].([]any); ok && len(list) > 0 {
			return list
		}
	}
	return nil
}

// stringField returns the first non-empty value among keys, trimmed.
// Numbers are formatted so a bare year like 2021 survives.
func stringField(obj map[string]any, keys ...string) string {
	for _, k := range keys {
		var s string
		switch v := obj[k].(type) {
		case string:
			s = v
		case float64:
			s = fmt.Sprintf("%g", v)
		}
		if s = strings.TrimSpace(s); s != "" {
			return s
		}
	}
	return ""
}
