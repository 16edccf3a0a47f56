package normalize

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

const tinyPDF = "%PDF-1.4\n1 0 obj\n<< /Type /Catalog >>\nendobj\ntrailer\n<< /Root 1 0 R >>\n%%EOF\n"

func newDocs(t *testing.T) *docstore.Local {
	t.Helper()
	s, err := docstore.NewLocal(logger.Nop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	return s
}

func TestNormalizeDefaultsAndWhitespace(t *testing.T) {
	n := New(nil, Config{})
	got, err := n.Normalize(context.Background(), learning.RawGenerationRequest{
		RequesterID: "u1",
		Topic:       "  Photo \n  synthesis\t ",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Topic != "Photo synthesis" {
		t.Fatalf("topic = %q", got.Topic)
	}
	if got.Format != learning.FormatCourse || got.Duration != learning.DurationShort ||
		got.Focus != learning.FocusBreadth || got.Difficulty != learning.DifficultyBeginner {
		t.Fatalf("defaults not applied: %+v", got)
	}
}

func TestNormalizeCaseInsensitivePreferences(t *testing.T) {
	n := New(nil, Config{})
	got, err := n.Normalize(context.Background(), learning.RawGenerationRequest{
		RequesterID: "u1", Topic: "Photosynthesis",
		Format: "Block", Duration: "Short", Focus: "Breadth", Difficulty: "Beginner", Kind: "Poll",
	})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if got.Format != learning.FormatBlock || got.Kind != learning.ContentPoll {
		t.Fatalf("unexpected: %+v", got)
	}
}

func TestNormalizeRejections(t *testing.T) {
	n := New(nil, Config{MaxTopicRunes: 5})
	cases := map[string]learning.RawGenerationRequest{
		"empty":          {RequesterID: "u1", Topic: "   "},
		"no requester":   {Topic: "x"},
		"too long":       {RequesterID: "u1", Topic: "abcdef"},
		"bad format":     {RequesterID: "u1", Topic: "x", Format: "essay"},
		"bad difficulty": {RequesterID: "u1", Topic: "x", Difficulty: "expert"},
		"kind on course": {RequesterID: "u1", Topic: "x", Format: "course", Kind: "quiz"},
		"no doc store":   {RequesterID: "u1", DocumentRef: "local:abc"},
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := n.Normalize(context.Background(), raw); !errors.Is(err, apperrors.ErrInvalidInput) {
				t.Fatalf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}

func TestNormalizeDocument(t *testing.T) {
	ctx := context.Background()
	docs := newDocs(t)
	pdf, err := docs.Put(ctx, "cells.pdf", strings.NewReader(tinyPDF))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	txt, err := docs.Put(ctx, "notes.txt", strings.NewReader("plain notes about cells"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}

	n := New(docs, Config{})
	got, err := n.Normalize(ctx, learning.RawGenerationRequest{RequesterID: "u1", DocumentRef: pdf.Ref})
	if err != nil {
		t.Fatalf("Normalize pdf: %v", err)
	}
	if got.Document == nil || got.Document.MimeType != "application/pdf" || got.Document.SHA256 != pdf.SHA256 {
		t.Fatalf("unexpected document meta: %+v", got.Document)
	}

	if _, err := n.Normalize(ctx, learning.RawGenerationRequest{RequesterID: "u1", DocumentRef: txt.Ref}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("text should be rejected by default allow-list, got %v", err)
	}

	lenient := New(docs, Config{AllowedMIME: []string{"application/pdf", "text/plain"}})
	got, err = lenient.Normalize(ctx, learning.RawGenerationRequest{RequesterID: "u1", DocumentRef: txt.Ref, Topic: "cells"})
	if err != nil {
		t.Fatalf("Normalize text: %v", err)
	}
	if got.Document.MimeType != "text/plain" || got.Topic != "cells" {
		t.Fatalf("unexpected: %+v", got)
	}

	small := New(docs, Config{MaxDocumentBytes: 10})
	if _, err := small.Normalize(ctx, learning.RawGenerationRequest{RequesterID: "u1", DocumentRef: pdf.Ref}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("oversized document should be rejected, got %v", err)
	}

	if _, err := n.Normalize(ctx, learning.RawGenerationRequest{RequesterID: "u1", DocumentRef: "local:" + strings.Repeat("0", 64)}); !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Fatalf("missing document should be invalid input, got %v", err)
	}
}
