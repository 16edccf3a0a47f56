// Package docstore holds uploaded source documents. Refs are opaque to
// callers: "local:<sha256>" for disk-backed stores, "gs://<bucket>/<key>" for GCS.
package docstore

import (
	"context"
	"errors"
	"io"
	"time"
)

var ErrNotFound = errors.New("document not found")

// Info is the metadata a store can report without reading the whole object.
type Info struct {
	Ref       string    `json:"ref"`
	Name      string    `json:"name,omitempty"`
	Size      int64     `json:"size"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Put(ctx context.Context, name string, r io.Reader) (Info, error)
	Stat(ctx context.Context, ref string) (Info, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
}
