// Package docparse extracts plain source text from stored documents.
package docparse

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

const (
	mimePDF  = "application/pdf"
	mimeText = "text/plain"
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

	DefaultMaxChars = 60000
)

type Parser struct {
	docs     docstore.Store
	maxBytes int64
	maxChars int
}

func New(docs docstore.Store, maxBytes int64, maxChars int) *Parser {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	return &Parser{docs: docs, maxBytes: maxBytes, maxChars: maxChars}
}

// ExtractText reads the document and returns whitespace-collapsed text,
// truncated to the configured character budget. Store failures are transient;
// a missing or unreadable document is fatal because retrying cannot fix it.
func (p *Parser) ExtractText(ctx context.Context, doc learning.DocumentMeta) (string, error) {
	rc, err := p.docs.Open(ctx, doc.Ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", apperrors.Fatal(fmt.Errorf("document %s: %w", doc.Ref, err))
	}
	if err != nil {
		return "", apperrors.Transient(fmt.Errorf("open document: %w", err))
	}
	defer rc.Close()

	var r io.Reader = rc
	if p.maxBytes > 0 {
		r = io.LimitReader(rc, p.maxBytes)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", apperrors.Transient(fmt.Errorf("read document: %w", err))
	}

	text, err := Extract(doc.MimeType, data)
	if err != nil {
		return "", apperrors.Fatal(err)
	}
	if text == "" {
		return "", apperrors.Fatal(fmt.Errorf("document %s has no extractable text", doc.Ref))
	}
	return truncateRunes(text, p.maxChars), nil
}

// Extract dispatches on the sniffed MIME type recorded at normalization.
func Extract(mimeType string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("empty document")
	}
	switch strings.ToLower(strings.TrimSpace(mimeType)) {
	case mimePDF:
		return extractPDF(data)
	case mimeText:
		return collapseWhitespace(string(data)), nil
	case mimeDOCX:
		return extractDOCX(data)
	default:
		return "", fmt.Errorf("unsupported document type %q", mimeType)
	}
}

func extractPDF(data []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("pdf reader: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf plaintext: %w", err)
	}
	b, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("pdf read: %w", err)
	}
	return collapseWhitespace(string(b)), nil
}

// extractDOCX gathers the <w:t> runs of word/document.xml.
func extractDOCX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("docx container: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", err
		}
		defer rc.Close()
		return collapseWhitespace(textRuns(rc, "t")), nil
	}
	return "", fmt.Errorf("docx missing word/document.xml")
}

func textRuns(r io.Reader, local string) string {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		se, ok := tok.(xml.StartElement)
		if !ok || se.Name.Local != local {
			continue
		}
		var v string
		if dec.DecodeElement(&v, &se) == nil && v != "" {
			out.WriteString(v)
			out.WriteString(" ")
		}
	}
	return out.String()
}

func collapseWhitespace(s string) string {
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
