package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/learning/content/schema"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

type quizBody struct {
	Questions []struct {
		Prompt       string   `json:"prompt"`
		Options      []string `json:"options"`
		CorrectIndex int      `json:"correct_index"`
	} `json:"questions"`
}

type pollBody struct {
	Options []string `json:"options"`
}

type reorderBody struct {
	Items []string `json:"items"`
}

// Validate checks a generated payload against the schema of ct plus the rules a
// schema cannot express. It returns the compacted body bytes to commit.
// Every failure wraps ErrSchemaValidation.
func Validate(ct learning.ContentType, p learning.StructuredPayload) ([]byte, error) {
	if strings.TrimSpace(p.Title) == "" {
		return nil, fmt.Errorf("%w: empty title", apperrors.ErrSchemaValidation)
	}
	sch, err := schema.Compiled(ct)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaValidation, err)
	}
	doc, err := decodeStrict(p.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", apperrors.ErrSchemaValidation, err)
	}
	if err := sch.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaValidation, err)
	}
	if err := validateSemantics(ct, p.Body); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrSchemaValidation, err)
	}
	body, err := CompactJSON(p.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: compact body: %v", apperrors.ErrSchemaValidation, err)
	}
	return body, nil
}

func validateSemantics(ct learning.ContentType, raw []byte) error {
	switch ct {
	case learning.ContentQuiz:
		var q quizBody
		if err := json.Unmarshal(raw, &q); err != nil {
			return err
		}
		for i, question := range q.Questions {
			if question.CorrectIndex >= len(question.Options) {
				return fmt.Errorf("question %d: correct_index %d out of range (%d options)", i, question.CorrectIndex, len(question.Options))
			}
			if dup := firstDuplicate(question.Options); dup != "" {
				return fmt.Errorf("question %d: duplicate option %q", i, dup)
			}
		}
	case learning.ContentPoll:
		var p pollBody
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		if dup := firstDuplicate(p.Options); dup != "" {
			return fmt.Errorf("duplicate option %q", dup)
		}
	case learning.ContentReorder:
		var r reorderBody
		if err := json.Unmarshal(raw, &r); err != nil {
			return err
		}
		if dup := firstDuplicate(r.Items); dup != "" {
			return fmt.Errorf("duplicate item %q", dup)
		}
	}
	return nil
}

func firstDuplicate(values []string) string {
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		k := strings.ToLower(strings.TrimSpace(v))
		if seen[k] {
			return v
		}
		seen[k] = true
	}
	return ""
}

func decodeStrict(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("body is empty")
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("body contains trailing content")
	}
	return v, nil
}

// CompactJSON strips insignificant whitespace. Key order is preserved, so
// the committed bytes are exactly what readers get back.
func CompactJSON(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, bytes.TrimSpace(raw)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
