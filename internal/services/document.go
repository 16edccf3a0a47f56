package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/learning/normalize"
	"github.com/yungbote/illumyn-backend/internal/platform/docstore"
	"github.com/yungbote/illumyn-backend/internal/platform/logger"
	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

type DocumentService interface {
	Upload(ctx context.Context, name string, r io.Reader) (*learning.DocumentMeta, error)
}

type documentService struct {
	log  *logger.Logger
	docs docstore.Store
	norm *normalize.Normalizer
}

func NewDocumentService(baseLog *logger.Logger, docs docstore.Store, norm *normalize.Normalizer) DocumentService {
	return &documentService{
		log:  baseLog.With("service", "DocumentService"),
		docs: docs,
		norm: norm,
	}
}

var errTooLarge = errors.New("document too large")

// Upload stores the document and returns the metadata a later submission will
// see. Stores are content addressed, so a rejected type leaves a harmless blob.
func (s *documentService) Upload(ctx context.Context, name string, r io.Reader) (*learning.DocumentMeta, error) {
	if _, err := requester(ctx); err != nil {
		return nil, err
	}
	if s.docs == nil {
		return nil, apperrors.Invalid("document uploads are not configured")
	}
	limit := s.norm.MaxDocumentBytes()
	info, err := s.docs.Put(ctx, name, &capReader{r: r, left: limit})
	if errors.Is(err, errTooLarge) {
		return nil, apperrors.Invalid("document exceeds %d bytes", limit)
	}
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	meta, err := s.norm.Describe(ctx, info.Ref)
	if err != nil {
		return nil, err
	}
	s.log.Info("document uploaded", "ref", meta.Ref, "mime_type", meta.MimeType, "size", meta.Size)
	return meta, nil
}

// capReader fails once more than left bytes have been read.
type capReader struct {
	r    io.Reader
	left int64
}

func (c *capReader) Read(p []byte) (int, error) {
	if c.left < 0 {
		return 0, errTooLarge
	}
	if int64(len(p)) > c.left+1 {
		p = p[:c.left+1]
	}
	n, err := c.r.Read(p)
	c.left -= int64(n)
	if c.left < 0 {
		return n, errTooLarge
	}
	return n, err
}
