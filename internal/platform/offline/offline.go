// Package offline is a deterministic generation backend used when no model
// API key is configured. Output depends only on the input, so repeated runs
// produce identical payloads.
package offline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

var stopwords = map[string]bool{
	"about": true, "after": true, "also": true, "because": true, "been": true, "being": true,
	"between": true, "could": true, "does": true, "each": true, "from": true, "have": true,
	"into": true, "more": true, "most": true, "other": true, "over": true, "some": true,
	"such": true, "than": true, "that": true, "their": true, "them": true, "then": true,
	"there": true, "these": true, "they": true, "this": true, "those": true, "through": true,
	"very": true, "were": true, "what": true, "when": true, "where": true, "which": true,
	"while": true, "will": true, "with": true, "would": true, "your": true,
}

var fillers = []string{"definition", "process", "structure", "function", "example", "evidence", "history", "application"}

type Generator struct{}

func New() *Generator { return &Generator{} }

func (Generator) Name() string { return "offline" }

func (Generator) Generate(ctx context.Context, in learning.GenerateInput) (learning.StructuredPayload, error) {
	if err := ctx.Err(); err != nil {
		return learning.StructuredPayload{}, err
	}
	subject := strings.TrimSpace(in.Topic)
	if subject == "" {
		subject = "your document"
	}
	terms := keyTerms(in.Topic+" "+in.SourceText, 12)
	long := in.Duration == learning.DurationLong

	var body any
	switch in.ContentType {
	case learning.ContentQuiz:
		body = quiz(subject, terms, pick(long, 6, 3))
	case learning.ContentPoll:
		body = map[string]any{
			"question":       fmt.Sprintf("Which part of %s do you want to explore next?", subject),
			"options":        terms[:4],
			"allow_multiple": in.Focus == learning.FocusBreadth,
		}
	case learning.ContentReorder:
		n := pick(long, 6, 4)
		body = map[string]any{
			"prompt":      fmt.Sprintf("Put these ideas about %s in the order they are introduced.", subject),
			"items":       terms[:n],
			"explanation": "The order follows the first appearance of each idea in the material.",
		}
	case learning.ContentCourse:
		body = course(subject, terms, pick(long, 4, 2), pick(in.Focus == learning.FocusDepth, 3, 2))
	default:
		return learning.StructuredPayload{}, apperrors.Fatal(fmt.Errorf("unsupported content type %q", in.ContentType))
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return learning.StructuredPayload{}, apperrors.Fatal(err)
	}
	return learning.StructuredPayload{
		Title:       truncate(titleCase(subject)+" "+string(in.ContentType), 80),
		Description: fmt.Sprintf("A %s %s on %s.", in.Difficulty, in.ContentType, subject),
		Category:    "General",
		Body:        raw,
	}, nil
}

func quiz(subject string, terms []string, n int) map[string]any {
	questions := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		correct := terms[i%len(terms)]
		options := make([]string, 0, 4)
		for j := 1; len(options) < 3; j++ {
			options = append(options, terms[(i+j*3)%len(terms)])
		}
		idx := i % 4
		options = append(options[:idx], append([]string{correct}, options[idx:]...)...)
		questions = append(questions, map[string]any{
			"prompt":        fmt.Sprintf("Question %d: which term is central to %s?", i+1, subject),
			"options":       options,
			"correct_index": idx,
			"explanation":   fmt.Sprintf("%q is one of the key terms of %s.", correct, subject),
		})
	}
	return map[string]any{"questions": questions}
}

func course(subject string, terms []string, modules, lessons int) map[string]any {
	out := make([]map[string]any, 0, modules)
	for m := 0; m < modules; m++ {
		ls := make([]map[string]any, 0, lessons)
		for l := 0; l < lessons; l++ {
			term := terms[(m*lessons+l)%len(terms)]
			ls = append(ls, map[string]any{
				"title":   titleCase(term),
				"content": fmt.Sprintf("This lesson introduces %s as it relates to %s.", term, subject),
			})
		}
		out = append(out, map[string]any{
			"title":   fmt.Sprintf("Module %d: %s", m+1, titleCase(terms[m%len(terms)])),
			"summary": fmt.Sprintf("Core ideas of %s, part %d.", subject, m+1),
			"lessons": ls,
		})
	}
	return map[string]any{"modules": out}
}

// keyTerms returns up to n distinct words in order of first appearance,
// padded with generic fillers so callers can always take n.
func keyTerms(text string, n int) []string {
	seen := map[string]bool{}
	out := make([]string, 0, n)
	for _, w := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '-'
	}) {
		w = strings.Trim(w, "-")
		if len([]rune(w)) < 4 || stopwords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
		if len(out) == n {
			return out
		}
	}
	for _, f := range fillers {
		if len(out) == n {
			break
		}
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	for i := 0; len(out) < n; i++ {
		out = append(out, fmt.Sprintf("idea %d", i+1))
	}
	return out
}

func titleCase(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func pick(cond bool, a, b int) int {
	if cond {
		return a
	}
	return b
}
