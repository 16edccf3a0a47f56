package prompts

import (
	"fmt"
	"strings"

	"github.com/yungbote/illumyn-backend/internal/domain/learning"
)

// Input carries everything a generation prompt renders.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	Topic       string
	SourceText  string
	ContentType learning.ContentType
	Difficulty  learning.Difficulty
	Focus       learning.Focus
	Duration    learning.Duration

	// Derived sizing, filled by Build from Duration and Focus.
	ItemCount   int
	ModuleCount int
	LessonCount int
}

type Validator func(Input) error

func RequireSource(in Input) error {
	if strings.TrimSpace(in.Topic) == "" && strings.TrimSpace(in.SourceText) == "" {
		return fmt.Errorf("topic or source text required")
	}
	return nil
}

func RequireLevels(in Input) error {
	if in.Difficulty == "" || in.Focus == "" || in.Duration == "" {
		return fmt.Errorf("difficulty, focus and duration required")
	}
	return nil
}

// sized fills the counts. Long doubles the volume; depth trades breadth for
// more lessons per module.
func sized(in Input) Input {
	long := in.Duration == learning.DurationLong
	depth := in.Focus == learning.FocusDepth

	in.ItemCount = 5
	in.ModuleCount, in.LessonCount = 4, 2
	if long {
		in.ItemCount = 10
		in.ModuleCount, in.LessonCount = 8, 3
	}
	if depth {
		in.ModuleCount, in.LessonCount = in.ModuleCount/2, in.LessonCount*2
	}
	return in
}
