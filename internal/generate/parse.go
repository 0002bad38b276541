package generate

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/hpungsan/hookah/internal/errors"
	"github.com/hpungsan/hookah/internal/hookah"
)

// Ingredient bounds per suggestion.
const (
	MinIngredients = 2
	MaxIngredients = 4
)

// Payload is the structured result extracted from generator output.
type Payload struct {
	Suggestions []hookah.Suggestion `json:"suggestions"`
	Analysis    string              `json:"analysis"`
}

var markdown = goldmark.New()

// ParsePayload extracts and validates a Payload from raw generator text.
//
// Candidates are tried in order:
//  1. fenced code blocks, in document order
//  2. each balanced top-level {...} object, left to right
//  3. the span from the first '{' to the last '}'
//
// The first candidate that is a valid JSON object and passes validation wins.
// Otherwise the error is PARSE_FAILED, with the reason from the last
// well-formed JSON candidate if there was one.
func ParsePayload(raw string) (*Payload, error) {
	candidates := payloadCandidates(raw)
	if len(candidates) == 0 {
		return nil, errors.NewParseFailed("no JSON object found in response")
	}

	reason := ""
	wellFormed := false
	for _, c := range candidates {
		p, err := decodePayload(c)
		if err == nil {
			return p, nil
		}
		if err == errInvalidJSON {
			if !wellFormed {
				reason = err.Error()
			}
			continue
		}
		wellFormed = true
		reason = err.Error()
	}
	return nil, errors.NewParseFailed(reason)
}

func payloadCandidates(raw string) []string {
	var out []string
	seen := map[string]bool{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	for _, block := range fencedBlocks(raw) {
		add(block)
	}
	for _, obj := range balancedObjects(raw) {
		add(obj)
	}
	if start, end := strings.Index(raw, "{"), strings.LastIndex(raw, "}"); start >= 0 && end > start {
		add(raw[start : end+1])
	}
	return out
}

// fencedBlocks returns the contents of every fenced code block in src.
func fencedBlocks(src string) []string {
	source := []byte(src)
	doc := markdown.Parser().Parse(text.NewReader(source))

	var blocks []string
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		fenced, ok := n.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}
		var b strings.Builder
		lines := fenced.Lines()
		for i := 0; i < lines.Len(); i++ {
			seg := lines.At(i)
			b.Write(seg.Value(source))
		}
		blocks = append(blocks, b.String())
		return ast.WalkSkipChildren, nil
	})
	return blocks
}

// balancedObjects returns every top-level {...} span whose braces balance.
// Braces inside strings are ignored. Scanning stops at an object that never closes.
func balancedObjects(s string) []string {
	var out []string
	for {
		start := strings.Index(s, "{")
		if start < 0 {
			return out
		}
		end := matchBrace(s, start)
		if end < 0 {
			return out
		}
		out = append(out, s[start:end+1])
		s = s[end+1:]
	}
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
func matchBrace(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

var errInvalidJSON = stderrors.New("invalid JSON")

func decodePayload(candidate string) (*Payload, error) {
	if !gjson.Valid(candidate) {
		return nil, errInvalidJSON
	}
	if !gjson.Parse(candidate).IsObject() {
		return nil, fmt.Errorf("JSON is not an object")
	}

	var p Payload
	if err := json.Unmarshal([]byte(candidate), &p); err != nil {
		return nil, fmt.Errorf("unexpected payload shape: %w", err)
	}
	if err := validatePayload(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

func validatePayload(p *Payload) error {
	if len(p.Suggestions) == 0 {
		return fmt.Errorf("payload has no suggestions")
	}
	for i, s := range p.Suggestions {
		if strings.TrimSpace(s.Name) == "" {
			return fmt.Errorf("suggestion %d has no name", i)
		}
		if n := len(s.Ingredients); n < MinIngredients || n > MaxIngredients {
			return fmt.Errorf("suggestion %d has %d ingredients, want %d-%d", i, n, MinIngredients, MaxIngredients)
		}
		for _, ing := range s.Ingredients {
			if strings.TrimSpace(ing) == "" {
				return fmt.Errorf("suggestion %d has an empty ingredient", i)
			}
		}
		if strings.TrimSpace(s.Reasoning) == "" {
			return fmt.Errorf("suggestion %d has no reasoning", i)
		}
	}
	if strings.TrimSpace(p.Analysis) == "" {
		return fmt.Errorf("payload has no analysis")
	}
	return nil
}
