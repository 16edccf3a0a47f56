package prompts

import (
	"github.com/yungbote/illumyn-backend/internal/domain/learning"
	"github.com/yungbote/illumyn-backend/internal/learning/content/schema"
)

const systemBase = `You are Illumyn's learning designer. You turn a topic and/or source material into
interactive learning content for a {{.Difficulty}} learner.
Stay factual. When source material is given, ground every item in it and do not invent facts beyond it.
Title is at most 80 characters. Description is one sentence. Category is a single short subject label such as "Biology".
Answer only with JSON matching the provided schema.`

const sourceBlock = `{{if .Topic}}Topic: {{.Topic}}
{{end}}{{if .SourceText}}Source material:
"""
{{.SourceText}}
"""
{{end}}Difficulty: {{.Difficulty}}
Focus: {{.Focus}} ({{if eq (print .Focus) "depth"}}go deep on the central ideas{{else}}cover the range of key ideas{{end}})
Length: {{.Duration}}`

func envelope(ct learning.ContentType) func() (map[string]any, error) {
	return func() (map[string]any, error) { return schema.Envelope(ct) }
}

// catalog declares one prompt per content type.
func catalog() []Spec {
	validators := []Validator{RequireSource, RequireLevels}
	return []Spec{
		{
			Name:       PromptQuizBlock,
			Version:    1,
			SchemaName: "quiz_block",
			Schema:     envelope(learning.ContentQuiz),
			System:     systemBase,
			User: sourceBlock + `

Write a multiple-choice quiz with {{.ItemCount}} questions.
Each question has 3 to 5 distinct options and exactly one correct answer; correct_index is its 0-based position.
Give a one-sentence explanation per question.`,
			Validators: validators,
		},
		{
			Name:       PromptPollBlock,
			Version:    1,
			SchemaName: "poll_block",
			Schema:     envelope(learning.ContentPoll),
			System:     systemBase,
			User: sourceBlock + `

Write one reflective poll question that invites the learner to take a position on the material.
Offer 3 to 6 distinct options. Set allow_multiple when several options can sensibly be chosen together.`,
			Validators: validators,
		},
		{
			Name:       PromptReorderBlock,
			Version:    1,
			SchemaName: "reorder_block",
			Schema:     envelope(learning.ContentReorder),
			System:     systemBase,
			User: sourceBlock + `

Write an ordering exercise: a prompt and {{.ItemCount}} distinct items listed in their correct order
(a process, a chronology or a hierarchy). Explain the correct order in one or two sentences.`,
			Validators: validators,
		},
		{
			Name:       PromptCourse,
			Version:    1,
			SchemaName: "course",
			Schema:     envelope(learning.ContentCourse),
			System:     systemBase,
			User: sourceBlock + `

Design a course of {{.ModuleCount}} modules with {{.LessonCount}} lessons each.
Each module has a title and a two-sentence summary. Each lesson has a title and a self-contained
explanation of 2 to 4 paragraphs in plain text.`,
			Validators: validators,
		},
	}
}
