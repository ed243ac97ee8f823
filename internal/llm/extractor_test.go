package llm

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJSONPrompt_String(t *testing.T) {
	p := JSONPrompt{
		Task:  "  Extract things.  ",
		Shape: `{"a": "string"}`,
		Rules: []string{"Be brief."},
		Input: "the input",
	}

	out := p.String()
	assert.True(t, strings.HasPrefix(out, "Extract things.\n\n"))
	assert.Contains(t, out, `{"a": "string"}`)
	assert.Contains(t, out, "- Use only facts stated in the input text")
	assert.Contains(t, out, "- Be brief.\n")
	assert.True(t, strings.HasSuffix(out, "\"\"\"\nthe input\n\"\"\"\n"))
}

func TestJSONPrompt_DoesNotMutateDefaults(t *testing.T) {
	before := len(defaultRules)
	_ = JSONPrompt{Rules: []string{"x"}}.String()
	_ = JSONPrompt{Rules: []string{"y"}}.String()
	assert.Len(t, defaultRules, before)
}

func TestTimelinePrompt(t *testing.T) {
	out := TimelinePrompt("Build a timeline.", "[1] 2019 text (src: https://a)").String()
	assert.Contains(t, out, "Build a timeline.")
	assert.Contains(t, out, `"citations"`)
	assert.Contains(t, out, "Order events chronologically.")
	assert.Contains(t, out, "(src: https://a)")
}
