package content

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

func payload(body string) learning.StructuredPayload {
	return learning.StructuredPayload{Title: "Photosynthesis", Description: "Basics", Body: json.RawMessage(body)}
}

func TestValidateAcceptsWellFormedBodies(t *testing.T) {
	cases := map[learning.ContentType]string{
		learning.ContentQuiz: `{"questions": [{"prompt": "What do plants absorb?", "options": ["CO2", "O2"], "correct_index": 0, "explanation": ""}]}`,
		learning.ContentPoll: `{"question": "Favourite pigment?", "options": ["Chlorophyll a", "Carotene"], "allow_multiple": false}`,
		learning.ContentReorder: `{"prompt": "Order the steps", "items": ["Light absorbed", "Water split", "Glucose formed"], "explanation": "x"}`,
		learning.ContentCourse: `{"modules": [{"title": "Intro", "summary": "", "lessons": [{"title": "Light", "content": "Plants use light."}]}]}`,
	}
	for ct, body := range cases {
		out, err := Validate(ct, payload(body))
		if err != nil {
			t.Fatalf("Validate(%s): %v", ct, err)
		}
		compact, _ := CompactJSON([]byte(body))
		if string(out) != string(compact) {
			t.Fatalf("Validate(%s) body changed: %s", ct, out)
		}
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name string
		ct   learning.ContentType
		p    learning.StructuredPayload
	}{
		{"missing field", learning.ContentQuiz, payload(`{"questions": [{"prompt": "p", "options": ["a", "b"], "explanation": ""}]}`)},
		{"index out of range", learning.ContentQuiz, payload(`{"questions": [{"prompt": "p", "options": ["a", "b"], "correct_index": 2, "explanation": ""}]}`)},
		{"duplicate options", learning.ContentPoll, payload(`{"question": "q", "options": ["a", "A"], "allow_multiple": true}`)},
		{"too few items", learning.ContentReorder, payload(`{"prompt": "p", "items": ["only"], "explanation": ""}`)},
		{"extra property", learning.ContentPoll, payload(`{"question": "q", "options": ["a", "b"], "allow_multiple": true, "x": 1}`)},
		{"trailing content", learning.ContentPoll, payload(`{"question": "q", "options": ["a", "b"], "allow_multiple": true} {}`)},
		{"empty title", learning.ContentPoll, learning.StructuredPayload{Body: json.RawMessage(`{}`)}},
		{"unknown type", learning.ContentType("essay"), payload(`{}`)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Validate(tc.ct, tc.p)
			if !errors.Is(err, apperrors.ErrSchemaValidation) {
				t.Fatalf("want ErrSchemaValidation, got %v", err)
			}
			if !errors.Is(err, apperrors.ErrFatalBackend) {
				t.Fatalf("schema failures must be fatal, got %v", err)
			}
		})
	}
}
