// Package fingerprint derives the dedup key of a generation request.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

const version = "v1"

// Of returns the fingerprint of a normalized request. Topic comparison is
// case-insensitive; the document contributes its content hash, not its ref,
// so re-uploading the same bytes maps to the same job.
func Of(req learning.GenerationRequest) string {
	h := sha256.New()
	field := func(name, value string) {
		_, _ = h.Write([]byte(name))
		_, _ = h.Write([]byte{0})
		_, _ = h.Write([]byte(value))
		_, _ = h.Write([]byte{0})
	}
	field("v", version)
	field("requester", req.RequesterID)
	field("topic", strings.ToLower(req.Topic))
	doc := ""
	if req.Document != nil {
		doc = req.Document.SHA256
	}
	field("document", doc)
	field("format", string(req.Format))
	field("duration", string(req.Duration))
	field("focus", string(req.Focus))
	field("difficulty", string(req.Difficulty))
	if req.Kind != "" {
		field("kind", string(req.Kind))
	}
	return hex.EncodeToString(h.Sum(nil))
}
