// Package normalize turns a raw dashboard submission into a GenerationRequest.
package normalize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

const (
	DefaultMaxTopicRunes    = 2000
	DefaultMaxDocumentBytes = 20 << 20
	sniffBytes              = 3072
)

var DefaultAllowedMIME = []string{"application/pdf"}

type Config struct {
	MaxTopicRunes    int
	MaxDocumentBytes int64
	AllowedMIME      []string
}

func (c Config) withDefaults() Config {
	if c.MaxTopicRunes <= 0 {
		c.MaxTopicRunes = DefaultMaxTopicRunes
	}
	if c.MaxDocumentBytes <= 0 {
		c.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if len(c.AllowedMIME) == 0 {
		c.AllowedMIME = DefaultAllowedMIME
	}
	return c
}

// Normalizer reads document metadata but never writes anything.
type Normalizer struct {
	docs docstore.Store
	cfg  Config
}

func New(docs docstore.Store, cfg Config) *Normalizer {
	return &Normalizer{docs: docs, cfg: cfg.withDefaults()}
}

func (n *Normalizer) Normalize(ctx context.Context, raw learning.RawGenerationRequest) (learning.GenerationRequest, error) {
	out := learning.GenerationRequest{RequesterID: strings.TrimSpace(raw.RequesterID)}
	if out.RequesterID == "" {
		return out, apperrors.Invalid("requester identity required")
	}

	out.Topic = strings.Join(strings.Fields(raw.Topic), " ")
	if utf8.RuneCountInString(out.Topic) > n.cfg.MaxTopicRunes {
		return out, apperrors.Invalid("topic exceeds %d characters", n.cfg.MaxTopicRunes)
	}

	if ref := strings.TrimSpace(raw.DocumentRef); ref != "" {
		doc, err := n.document(ctx, ref)
		if err != nil {
			return out, err
		}
		out.Document = doc
	}
	if out.Topic == "" && out.Document == nil {
		return out, apperrors.Invalid("a topic or a document is required")
	}

	var ok bool
	if out.Format, ok = parseOr(raw.Format, learning.FormatCourse, learning.ParseFormat); !ok {
		return out, apperrors.Invalid("unknown format %q", raw.Format)
	}
	if out.Duration, ok = parseOr(raw.Duration, learning.DurationShort, learning.ParseDuration); !ok {
		return out, apperrors.Invalid("unknown duration %q", raw.Duration)
	}
	if out.Focus, ok = parseOr(raw.Focus, learning.FocusBreadth, learning.ParseFocus); !ok {
		return out, apperrors.Invalid("unknown focus %q", raw.Focus)
	}
	if out.Difficulty, ok = parseOr(raw.Difficulty, learning.DifficultyBeginner, learning.ParseDifficulty); !ok {
		return out, apperrors.Invalid("unknown difficulty %q", raw.Difficulty)
	}
	if strings.TrimSpace(raw.Kind) != "" {
		if out.Format != learning.FormatBlock {
			return out, apperrors.Invalid("kind only applies to the block format")
		}
		if out.Kind, ok = learning.ParseBlockKind(raw.Kind); !ok {
			return out, apperrors.Invalid("unknown block kind %q", raw.Kind)
		}
	}
	return out, nil
}

func parseOr[T any](s string, def T, parse func(string) (T, bool)) (T, bool) {
	if strings.TrimSpace(s) == "" {
		return def, true
	}
	return parse(s)
}

// Describe validates a stored document and reports its metadata.
func (n *Normalizer) Describe(ctx context.Context, ref string) (*learning.DocumentMeta, error) {
	return n.document(ctx, strings.TrimSpace(ref))
}

// MaxDocumentBytes is the upload ceiling the normalizer enforces.
func (n *Normalizer) MaxDocumentBytes() int64 { return n.cfg.MaxDocumentBytes }

func (n *Normalizer) document(ctx context.Context, ref string) (*learning.DocumentMeta, error) {
	if n.docs == nil {
		return nil, apperrors.Invalid("document uploads are not configured")
	}
	info, err := n.docs.Stat(ctx, ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, apperrors.Invalid("document %q not found", ref)
	}
	if err != nil {
		return nil, fmt.Errorf("stat document: %w", err)
	}
	if info.Size <= 0 {
		return nil, apperrors.Invalid("document is empty")
	}
	if info.Size > n.cfg.MaxDocumentBytes {
		return nil, apperrors.Invalid("document exceeds %d bytes", n.cfg.MaxDocumentBytes)
	}

	rc, err := n.docs.Open(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("open document: %w", err)
	}
	defer rc.Close()

	head := make([]byte, sniffBytes)
	k, err := io.ReadFull(rc, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read document: %w", err)
	}
	head = head[:k]
	mt := mimetype.Detect(head)
	if !n.allowed(mt) {
		return nil, apperrors.Invalid("document type %s is not accepted", mediaType(mt.String()))
	}

	sum := info.SHA256
	if sum == "" {
		h := sha256.New()
		_, _ = h.Write(head)
		if _, err := io.Copy(h, io.LimitReader(rc, n.cfg.MaxDocumentBytes)); err != nil {
			return nil, fmt.Errorf("hash document: %w", err)
		}
		sum = hex.EncodeToString(h.Sum(nil))
	}
	return &learning.DocumentMeta{
		Ref:      ref,
		Name:     info.Name,
		MimeType: mediaType(mt.String()),
		Size:     info.Size,
		SHA256:   sum,
	}, nil
}

func (n *Normalizer) allowed(mt *mimetype.MIME) bool {
	for _, want := range n.cfg.AllowedMIME {
		if mt.Is(want) {
			return true
		}
	}
	return false
}

func mediaType(s string) string {
	if mt, _, err := mime.ParseMediaType(s); err == nil {
		return mt
	}
	return s
}
