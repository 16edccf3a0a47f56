package prompts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Prompt is a rendered request for a structured-output backend.
type Prompt struct {
	Name       string
	Version    int
	System     string
	User       string
	SchemaName string
	Schema     map[string]any
}

// Fingerprint identifies the rendered text and version, for logs and audits.
func (p Prompt) Fingerprint() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s@%d\x00%s\x00%s", strings.TrimSpace(p.Name), p.Version, p.System, p.User)
	return hex.EncodeToString(h.Sum(nil))
}
