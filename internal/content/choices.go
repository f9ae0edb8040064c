package content

import (
	"fmt"
	"strings"
)

const unknownChoiceErrorFormat = "unknown %s %q (valid: %s)"

// Category is the kind of post being written.
type Category string

const (
	CategoryGeneral       Category = "general"
	CategoryInformational Category = "informational"
	CategoryReview        Category = "review"
	CategoryGuide         Category = "guide"
	CategoryNews          Category = "news"
	CategoryExperience    Category = "experience"
)

// Tone is the voice requested from the model.
type Tone string

const (
	ToneFriendly     Tone = "friendly"
	ToneProfessional Tone = "professional"
	ToneHumorous     Tone = "humorous"
	ToneEmotional    Tone = "emotional"
	ToneNeutral      Tone = "neutral"
)

var (
	categoryLabels = map[Category]string{
		CategoryGeneral:       "일반",
		CategoryInformational: "정보성",
		CategoryReview:        "리뷰",
		CategoryGuide:         "가이드",
		CategoryNews:          "뉴스",
		CategoryExperience:    "경험담",
	}
	toneLabels = map[Tone]string{
		ToneFriendly:     "친근한",
		ToneProfessional: "전문적",
		ToneHumorous:     "유머러스",
		ToneEmotional:    "감성적",
		ToneNeutral:      "중립적",
	}
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryGeneral, CategoryInformational, CategoryReview, CategoryGuide, CategoryNews, CategoryExperience}
}

// Tones lists every tone in display order.
func Tones() []Tone {
	return []Tone{ToneFriendly, ToneProfessional, ToneHumorous, ToneEmotional, ToneNeutral}
}

func (category Category) String() string { return string(category) }

// Label is the Korean display name used in prompts and reports.
func (category Category) Label() string {
	if label, ok := categoryLabels[category]; ok {
		return label
	}
	return string(category)
}

func (tone Tone) String() string { return string(tone) }

func (tone Tone) Label() string {
	if label, ok := toneLabels[tone]; ok {
		return label
	}
	return string(tone)
}

// ParseCategory accepts an identifier or its Korean label. Empty input yields
// the default category.
func ParseCategory(raw string) (Category, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return CategoryGeneral, nil
	}
	for _, category := range Categories() {
		if strings.EqualFold(trimmed, string(category)) || trimmed == categoryLabels[category] {
			return category, nil
		}
	}
	return "", fmt.Errorf(unknownChoiceErrorFormat, "category", raw, choiceList(Categories()))
}

// ParseTone accepts an identifier or its Korean label. Empty input yields the
// default tone.
func ParseTone(raw string) (Tone, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ToneFriendly, nil
	}
	for _, tone := range Tones() {
		if strings.EqualFold(trimmed, string(tone)) || trimmed == toneLabels[tone] {
			return tone, nil
		}
	}
	return "", fmt.Errorf(unknownChoiceErrorFormat, "tone", raw, choiceList(Tones()))
}

type labeled interface {
	String() string
	Label() string
}

func choiceList[T labeled](choices []T) string {
	parts := make([]string, 0, len(choices))
	for _, choice := range choices {
		parts = append(parts, fmt.Sprintf("%s (%s)", choice.String(), choice.Label()))
	}
	return strings.Join(parts, ", ")
}
