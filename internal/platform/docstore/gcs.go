package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const (
	gcsScheme     = "gs://"
	metaSHA256    = "sha256"
	metaName      = "original_name"
	uploadTimeout = 2 * time.Minute
)

type GCSConfig struct {
	Bucket       string
	Prefix       string
	EmulatorHost string
}

// GCS stores documents as objects in one bucket. The content hash travels as
// object metadata so Stat never reads the body.
type GCS struct {
	log    *logger.Logger
	client *storage.Client
	bucket string
	prefix string
}

func NewGCS(ctx context.Context, log *logger.Logger, cfg GCSConfig) (*GCS, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("docstore: GCS bucket required")
	}
	var opts []option.ClientOption
	if host := strings.TrimRight(strings.TrimSpace(cfg.EmulatorHost), "/"); host != "" {
		_ = os.Setenv("STORAGE_EMULATOR_HOST", host)
		opts = append(opts, option.WithoutAuthentication())
	} else {
		opts = append(ClientOptionsFromEnv(), option.WithScopes(storage.ScopeReadWrite))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("docstore: storage client: %w", err)
	}
	s := &GCS{
		log:    log.With("component", "DocStoreGCS"),
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}
	s.log.Info("Document store initialized", "bucket", cfg.Bucket, "emulator", cfg.EmulatorHost != "")
	return s, nil
}

func ClientOptionsFromEnv() []option.ClientOption {
	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}
	if creds == "" {
		return nil
	}
	if strings.HasPrefix(creds, "{") {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(creds))}
	}
	return []option.ClientOption{option.WithCredentialsFile(creds)}
}

func (s *GCS) Close() error { return s.client.Close() }

func (s *GCS) Put(ctx context.Context, name string, r io.Reader) (Info, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	key := path.Join(s.prefix, "documents", uuid.NewString()+path.Ext(name))
	w := s.client.Bucket(s.bucket).Object(key).NewWriter(ctx)
	w.ContentType = contentTypeForName(name)

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), r)
	if err != nil {
		_ = w.Close()
		return Info{}, fmt.Errorf("docstore: write to GCS: %w", err)
	}
	if err := w.Close(); err != nil {
		return Info{}, fmt.Errorf("docstore: close GCS writer: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	base := path.Base(name)
	// The hash is only known after the body streamed, so it is attached afterwards.
	if _, err := s.client.Bucket(s.bucket).Object(key).Update(ctx, storage.ObjectAttrsToUpdate{
		Metadata: map[string]string{metaSHA256: sum, metaName: base},
	}); err != nil {
		return Info{}, fmt.Errorf("docstore: set GCS metadata: %w", err)
	}
	return Info{Ref: gcsScheme + s.bucket + "/" + key, Name: base, Size: n, SHA256: sum, CreatedAt: time.Now().UTC()}, nil
}

func (s *GCS) Stat(ctx context.Context, ref string) (Info, error) {
	bucket, key, err := parseGCSRef(ref)
	if err != nil {
		return Info{}, err
	}
	attrs, err := s.client.Bucket(bucket).Object(key).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("docstore: GCS attrs: %w", err)
	}
	return Info{
		Ref:       ref,
		Name:      attrs.Metadata[metaName],
		Size:      attrs.Size,
		SHA256:    attrs.Metadata[metaSHA256],
		CreatedAt: attrs.Created,
	}, nil
}

func (s *GCS) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	bucket, key, err := parseGCSRef(ref)
	if err != nil {
		return nil, err
	}
	rc, err := s.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: GCS open: %w", err)
	}
	return rc, nil
}

func parseGCSRef(ref string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(ref), gcsScheme)
	if !ok {
		return "", "", ErrNotFound
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", ErrNotFound
	}
	return bucket, key, nil
}

func contentTypeForName(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(s, ".pdf"):
		return "application/pdf"
	case strings.HasSuffix(s, ".txt"), strings.HasSuffix(s, ".md"):
		return "text/plain"
	case strings.HasSuffix(s, ".docx"):
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}
