package prompts

import (
	"fmt"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

type PromptName string

const (
	PromptQuizBlock    PromptName = "quiz_block"
	PromptPollBlock    PromptName = "poll_block"
	PromptReorderBlock PromptName = "reorder_block"
	PromptCourse       PromptName = "course"
)

// ForContentType maps a content type to the prompt that produces it.
func ForContentType(ct learning.ContentType) (PromptName, error) {
	switch ct {
	case learning.ContentQuiz:
		return PromptQuizBlock, nil
	case learning.ContentPoll:
		return PromptPollBlock, nil
	case learning.ContentReorder:
		return PromptReorderBlock, nil
	case learning.ContentCourse:
		return PromptCourse, nil
	default:
		return "", fmt.Errorf("no prompt for content type %q", ct)
	}
}
