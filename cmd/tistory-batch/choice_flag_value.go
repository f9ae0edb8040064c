package tistorybatch

import (
	"strings"

	"github.com/temirov/tistory-batch/internal/content"
)

// choiceValue validates an enumerated flag while it is parsed, so a typo is
// reported by cobra together with the usage text.
type choiceValue[T ~string] struct {
	target   *T
	typeName string
	parse    func(string) (T, error)
}

func newCategoryValue(target *content.Category) *choiceValue[content.Category] {
	return &choiceValue[content.Category]{target: target, typeName: "category", parse: content.ParseCategory}
}

func newToneValue(target *content.Tone) *choiceValue[content.Tone] {
	return &choiceValue[content.Tone]{target: target, typeName: "tone", parse: content.ParseTone}
}

func (value *choiceValue[T]) String() string {
	if value == nil || value.target == nil {
		return ""
	}
	return string(*value.target)
}

func (value *choiceValue[T]) Set(input string) error {
	parsed, err := value.parse(strings.TrimSpace(input))
	if err != nil {
		return err
	}
	*value.target = parsed
	return nil
}

func (value *choiceValue[T]) Type() string {
	return value.typeName
}

func categoryUsage() string {
	choices := make([]string, 0, len(content.Categories()))
	for _, category := range content.Categories() {
		choices = append(choices, string(category)+" ("+category.Label()+")")
	}
	return "Content type: " + strings.Join(choices, ", ") + " (default: generation.category)"
}

func toneUsage() string {
	choices := make([]string, 0, len(content.Tones()))
	for _, tone := range content.Tones() {
		choices = append(choices, string(tone)+" ("+tone.Label()+")")
	}
	return "Writing tone: " + strings.Join(choices, ", ") + " (default: generation.tone)"
}
