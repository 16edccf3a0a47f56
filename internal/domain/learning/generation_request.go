package learning

import "strings"

type Format string

const (
	FormatCourse Format = "course"
	FormatBlock  Format = "block"
)

type Duration string

const (
	DurationShort Duration = "short"
	DurationLong  Duration = "long"
)

type Focus string

const (
	FocusBreadth Focus = "breadth"
	FocusDepth   Focus = "depth"
)

type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

type ContentType string

const (
	ContentQuiz    ContentType = "quiz"
	ContentPoll    ContentType = "poll"
	ContentReorder ContentType = "reorder"
	ContentCourse  ContentType = "course"
)

// BlockKinds are the content types a Block-format request may produce.
var BlockKinds = []ContentType{ContentQuiz, ContentPoll, ContentReorder}

func ParseFormat(s string) (Format, bool) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatCourse:
		return FormatCourse, true
	case FormatBlock:
		return FormatBlock, true
	}
	return "", false
}

func ParseDuration(s string) (Duration, bool) {
	switch Duration(strings.ToLower(strings.TrimSpace(s))) {
	case DurationShort:
		return DurationShort, true
	case DurationLong:
		return DurationLong, true
	}
	return "", false
}

func ParseFocus(s string) (Focus, bool) {
	switch Focus(strings.ToLower(strings.TrimSpace(s))) {
	case FocusBreadth:
		return FocusBreadth, true
	case FocusDepth:
		return FocusDepth, true
	}
	return "", false
}

func ParseDifficulty(s string) (Difficulty, bool) {
	switch Difficulty(strings.ToLower(strings.TrimSpace(s))) {
	case DifficultyBeginner:
		return DifficultyBeginner, true
	case DifficultyIntermediate:
		return DifficultyIntermediate, true
	case DifficultyAdvanced:
		return DifficultyAdvanced, true
	}
	return "", false
}

func ParseBlockKind(s string) (ContentType, bool) {
	ct := ContentType(strings.ToLower(strings.TrimSpace(s)))
	for _, k := range BlockKinds {
		if ct == k {
			return k, true
		}
	}
	return "", false
}

// RawGenerationRequest is the unvalidated payload the dashboard submits.
type RawGenerationRequest struct {
	RequesterID string `json:"-"`
	Topic       string `json:"topic"`
	DocumentRef string `json:"document_ref"`
	Format      string `json:"format"`
	Duration    string `json:"duration"`
	Focus       string `json:"focus"`
	Difficulty  string `json:"difficulty"`
	Kind        string `json:"kind"`
}

// DocumentMeta is what the normalizer learned about an uploaded document.
type DocumentMeta struct {
	Ref      string `json:"ref"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	SHA256   string `json:"sha256"`
}

// GenerationRequest is a normalized request. Topic and Document may both be set;
// at least one of them always is.
type GenerationRequest struct {
	RequesterID string        `json:"requester_id"`
	Topic       string        `json:"topic,omitempty"`
	Document    *DocumentMeta `json:"document,omitempty"`
	Format      Format        `json:"format"`
	Duration    Duration      `json:"duration"`
	Focus       Focus         `json:"focus"`
	Difficulty  Difficulty    `json:"difficulty"`
	Kind        ContentType   `json:"kind,omitempty"`
}

// ContentType is what the backend is asked to produce for this request.
func (r GenerationRequest) ContentType() ContentType {
	if r.Format == FormatCourse {
		return ContentCourse
	}
	if r.Kind != "" {
		return r.Kind
	}
	return ContentQuiz
}

// Heavy reports whether the request belongs on the heavy lane.
func (r GenerationRequest) Heavy() bool {
	return r.Format == FormatCourse
}
