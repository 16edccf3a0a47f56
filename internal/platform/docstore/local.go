package docstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/yungbote/illumyn-backend/internal/platform/logger"
)

const localPrefix = "local:"

var hexDigest = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Local stores documents content-addressed under dir. Re-uploading the same
// bytes returns the same ref.
type Local struct {
	log *logger.Logger
	dir string
	now func() time.Time
}

type localMeta struct {
	Name      string    `json:"name"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

func NewLocal(log *logger.Logger, dir string) (*Local, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("docstore: local dir required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("docstore: create dir: %w", err)
	}
	return &Local{log: log.With("component", "DocStoreLocal"), dir: dir, now: time.Now}, nil
}

func (s *Local) Put(ctx context.Context, name string, r io.Reader) (Info, error) {
	tmp, err := os.CreateTemp(s.dir, "upload-*")
	if err != nil {
		return Info{}, fmt.Errorf("docstore: temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(tmp, h), &ctxReader{ctx: ctx, r: r})
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return Info{}, fmt.Errorf("docstore: write: %w", err)
	}
	sum := hex.EncodeToString(h.Sum(nil))
	info := Info{Ref: localPrefix + sum, Name: filepath.Base(name), Size: n, SHA256: sum, CreatedAt: s.now().UTC()}

	if existing, err := s.Stat(ctx, info.Ref); err == nil {
		return existing, nil
	}
	if err := os.Rename(tmp.Name(), s.blobPath(sum)); err != nil {
		return Info{}, fmt.Errorf("docstore: commit: %w", err)
	}
	meta, _ := json.Marshal(localMeta{Name: info.Name, Size: n, CreatedAt: info.CreatedAt})
	if err := os.WriteFile(s.metaPath(sum), meta, 0o644); err != nil {
		return Info{}, fmt.Errorf("docstore: write meta: %w", err)
	}
	s.log.Debug("Document stored", "ref", info.Ref, "size", n)
	return info, nil
}

func (s *Local) Stat(ctx context.Context, ref string) (Info, error) {
	sum, err := parseLocalRef(ref)
	if err != nil {
		return Info{}, err
	}
	fi, err := os.Stat(s.blobPath(sum))
	if errors.Is(err, os.ErrNotExist) {
		return Info{}, ErrNotFound
	}
	if err != nil {
		return Info{}, fmt.Errorf("docstore: stat: %w", err)
	}
	info := Info{Ref: ref, Size: fi.Size(), SHA256: sum, CreatedAt: fi.ModTime().UTC()}
	if raw, err := os.ReadFile(s.metaPath(sum)); err == nil {
		var m localMeta
		if json.Unmarshal(raw, &m) == nil {
			info.Name = m.Name
			info.CreatedAt = m.CreatedAt
		}
	}
	return info, nil
}

func (s *Local) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	sum, err := parseLocalRef(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(s.blobPath(sum))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("docstore: open: %w", err)
	}
	return f, nil
}

func (s *Local) blobPath(sum string) string { return filepath.Join(s.dir, sum+".bin") }
func (s *Local) metaPath(sum string) string { return filepath.Join(s.dir, sum+".json") }

func parseLocalRef(ref string) (string, error) {
	sum, ok := strings.CutPrefix(strings.TrimSpace(ref), localPrefix)
	if !ok || !hexDigest.MatchString(sum) {
		return "", ErrNotFound
	}
	return sum, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
