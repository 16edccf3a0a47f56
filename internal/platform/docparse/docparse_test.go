package docparse

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

func TestExtractPlainText(t *testing.T) {
	got, err := Extract("text/plain", []byte("  chloroplasts \n\n capture\tlight "))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "chloroplasts capture light" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractDOCX(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("word/document.xml")
	_, _ = w.Write([]byte(`<w:document xmlns:w="x"><w:body><w:p><w:r><w:t>Cell</w:t></w:r><w:r><w:t>membranes</w:t></w:r></w:p></w:body></w:document>`))
	_ = zw.Close()

	got, err := Extract(mimeDOCX, buf.Bytes())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if got != "Cell membranes" {
		t.Fatalf("got %q", got)
	}
}

func TestExtractRejectsUnknownAndCorrupt(t *testing.T) {
	if _, err := Extract("image/png", []byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
	if _, err := Extract(mimePDF, []byte("not a pdf")); err == nil {
		t.Fatalf("expected error for corrupt pdf")
	}
}

func TestParserTruncatesAndClassifies(t *testing.T) {
	ctx := context.Background()
	docs, err := docstore.NewLocal(logger.Nop(), t.TempDir())
	if err != nil {
		t.Fatalf("NewLocal: %v", err)
	}
	info, err := docs.Put(ctx, "n.txt", strings.NewReader(strings.Repeat("ab ", 100)))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	p := New(docs, 0, 10)
	got, err := p.ExtractText(ctx, learning.DocumentMeta{Ref: info.Ref, MimeType: mimeText})
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if got != "ab ab ab a" {
		t.Fatalf("got %q", got)
	}

	_, err = p.ExtractText(ctx, learning.DocumentMeta{Ref: info.Ref, MimeType: "image/png"})
	if !errors.Is(err, apperrors.ErrFatalBackend) {
		t.Fatalf("unsupported type should be fatal, got %v", err)
	}
	_, err = p.ExtractText(ctx, learning.DocumentMeta{Ref: "local:" + strings.Repeat("f", 64), MimeType: mimeText})
	if !errors.Is(err, apperrors.ErrFatalBackend) {
		t.Fatalf("missing object should be fatal, got %v", err)
	}
}
