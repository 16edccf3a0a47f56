package learning

// GenerateInput is what the generation backend receives for one attempt.
type GenerateInput struct {
	Topic       string      `json:"topic,omitempty"`
	SourceText  string      `json:"source_text,omitempty"`
	ContentType ContentType `json:"content_type"`
	Difficulty  Difficulty  `json:"difficulty"`
	Focus       Focus       `json:"focus"`
	Duration    Duration    `json:"duration"`
}
