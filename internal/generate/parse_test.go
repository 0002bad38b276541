package generate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/hookah/internal/errors"
)

const validJSON = `{"suggestions":[{"name":"Citrus Chill","ingredients":["lemon","mint"],"reasoning":"Bright and cool."},{"name":"Berry Dusk","ingredients":["blueberry","grape","ice"],"reasoning":"Sweet."},{"name":"Spice Road","ingredients":["chai","cinnamon","vanilla","orange"],"reasoning":"Warm."}],"analysis":"You like fresh flavors."}`

func TestParsePayload_Accepts(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bare object", validJSON},
		{"leading and trailing prose", "Here you go!\n" + validJSON + "\nEnjoy."},
		{"json fence", "```json\n" + validJSON + "\n```"},
		{"plain fence with prose", "Sure:\n\n```\n" + validJSON + "\n```\n\nLet me know."},
		{"braces inside strings", `{"suggestions":[{"name":"Curly {Mix}","ingredients":["a}","{b"],"reasoning":"has \"} quotes"}],"analysis":"ok }"}`},
		{"second fence is the payload", "```\nnot json\n```\n\n```json\n" + validJSON + "\n```"},
		{"prose with braces before payload", "Use {your} taste.\n" + validJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParsePayload(tt.raw)
			require.NoError(t, err)
			assert.NotEmpty(t, p.Suggestions)
			assert.NotEmpty(t, p.Analysis)
		})
	}
}

func TestParsePayload_FieldsSurvive(t *testing.T) {
	p, err := ParsePayload(validJSON)
	require.NoError(t, err)
	require.Len(t, p.Suggestions, 3)
	assert.Equal(t, "Citrus Chill", p.Suggestions[0].Name)
	assert.Equal(t, []string{"lemon", "mint"}, p.Suggestions[0].Ingredients)
	assert.Equal(t, "You like fresh flavors.", p.Analysis)
}

func TestParsePayload_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantReason string
	}{
		{"empty", "", "no JSON object"},
		{"prose only", "I cannot help with that.", "no JSON object"},
		{"truncated", validJSON[:len(validJSON)/2], "invalid JSON"},
		{"array", `[{"name":"x"}]`, "no suggestions"},
		{"no suggestions", `{"suggestions":[],"analysis":"x"}`, "no suggestions"},
		{"missing analysis", `{"suggestions":[{"name":"a","ingredients":["x","y"],"reasoning":"r"}]}`, "no analysis"},
		{"blank analysis", `{"suggestions":[{"name":"a","ingredients":["x","y"],"reasoning":"r"}],"analysis":"  "}`, "no analysis"},
		{"one ingredient", `{"suggestions":[{"name":"a","ingredients":["x"],"reasoning":"r"}],"analysis":"z"}`, "1 ingredients"},
		{"five ingredients", `{"suggestions":[{"name":"a","ingredients":["1","2","3","4","5"],"reasoning":"r"}],"analysis":"z"}`, "5 ingredients"},
		{"empty ingredient", `{"suggestions":[{"name":"a","ingredients":["x",""],"reasoning":"r"}],"analysis":"z"}`, "empty ingredient"},
		{"no name", `{"suggestions":[{"ingredients":["x","y"],"reasoning":"r"}],"analysis":"z"}`, "no name"},
		{"no reasoning", `{"suggestions":[{"name":"a","ingredients":["x","y"]}],"analysis":"z"}`, "no reasoning"},
		{"wrong types", `{"suggestions":"three","analysis":"z"}`, "unexpected payload shape"},
		{"two objects joined by prose", `{"a":1} and then {"b":2}`, "no suggestions"},
		{"unclosed string", `{"suggestions":[{"name":"a}`, "invalid JSON"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePayload(tt.raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrParseFailed), "got %v", err)
			assert.Contains(t, err.Error(), tt.wantReason)
		})
	}
}

func TestBalancedObjects(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{`x {"a":{"b":1}} y {"c":2}`, []string{`{"a":{"b":1}}`, `{"c":2}`}},
		{`{"s":"}"}`, []string{`{"s":"}"}`}},
		{`{"s":"\"}"} tail`, []string{`{"s":"\"}"}`}},
		{`{"ok":1} {"open":`, []string{`{"ok":1}`}},
		{`{"open":`, nil},
		{`no braces`, nil},
	}

	for _, tt := range tests {
		got := balancedObjects(tt.in)
		assert.Equal(t, tt.want, got, "balancedObjects(%q)", tt.in)
	}
}

func TestFencedBlocks(t *testing.T) {
	src := "intro\n\n```json\n{\"a\":1}\n```\n\ntext\n\n~~~\nsecond\n~~~\n"
	blocks := fencedBlocks(src)
	require.Len(t, blocks, 2)
	assert.Equal(t, `{"a":1}`, strings.TrimSpace(blocks[0]))
	assert.Equal(t, "second", strings.TrimSpace(blocks[1]))
}
