package blocks

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "github.com/yungbote/illumyn-backend/internal/pkg/errors"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Cursor is the (created_at, id) position of the last item a reader saw.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

func (c Cursor) Encode() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// ParseCursor decodes an opaque cursor. The empty string means the first page.
func ParseCursor(s string) (*Cursor, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apperrors.Invalid("malformed cursor")
	}
	nanos, id, ok := strings.Cut(string(raw), ":")
	if !ok {
		return nil, apperrors.Invalid("malformed cursor")
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, apperrors.Invalid("malformed cursor")
	}
	uid, err := uuid.Parse(id)
	if err != nil {
		return nil, apperrors.Invalid("malformed cursor")
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: uid}, nil
}

func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// after reports whether (t, id) sorts strictly after c in feed order
// (created_at desc, id desc).
func (c *Cursor) after(t time.Time, id uuid.UUID) bool {
	if c == nil {
		return true
	}
	if !t.Equal(c.CreatedAt) {
		return t.Before(c.CreatedAt)
	}
	return id.String() < c.ID.String()
}
