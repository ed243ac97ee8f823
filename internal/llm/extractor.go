package llm

import (
	"strings"
)

// JSONPrompt asks the model for exactly one JSON document of a given shape,
// derived only from Input.
type JSONPrompt struct {
	// Task is the instruction preamble.
	Task string
	// Shape is an example of the expected JSON document.
	Shape string
	// Rules are extra constraints listed after the shape.
	Rules []string
	Input string
}

var defaultRules = []string{
	"Use only facts stated in the input text; do not invent events.",
	"Return ONLY the JSON object, no markdown, no explanation, no code blocks.",
}

// String renders the prompt.
func (p JSONPrompt) String() string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(p.Task))
	sb.WriteString("\n\nReturn JSON with exactly this shape:\n")
	sb.WriteString(p.Shape)
	sb.WriteString("\n\nRules:\n")
	for _, r := range append(append([]string{}, defaultRules...), p.Rules...) {
		sb.WriteString("- ")
		sb.WriteString(r)
		sb.WriteString("\n")
	}
	sb.WriteString("\nInput text:\n\"\"\"\n")
	sb.WriteString(p.Input)
	sb.WriteString("\n\"\"\"\n")
	return sb.String()
}

// TimelineShape is the document a timeline prompt asks for.
const TimelineShape = `{"timeline": [{"date": "YYYY or YYYY-MM or YYYY-MM-DD", "event": "string", "citations": [{"url": "string", "label": "string"}]}]}`

// TimelinePrompt builds the prompt for dated, cited events found in input.
func TimelinePrompt(task, input string) JSONPrompt {
	return JSONPrompt{
		Task:  task,
		Shape: TimelineShape,
		Rules: []string{
			"Order events chronologically.",
			"Every event cites at least one url taken from the (src: ...) of the lines it came from.",
		},
		Input: input,
	}
}
