package content

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// PriorityModels are listed first, in this order, when the provider offers them.
var PriorityModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-4", "gpt-3.5-turbo"}

// FallbackModels is returned whenever discovery fails or matches nothing.
var FallbackModels = []string{"gpt-4o", "gpt-4o-mini", "gpt-4-turbo", "gpt-3.5-turbo"}

var chatModelMarkers = []string{"gpt-4", "gpt-3.5", "gpt-4o"}

// AvailableModels asks the provider for its models and keeps the chat
// families. It never fails: any problem yields FallbackModels.
func (generator *Generator) AvailableModels(ctx context.Context) []string {
	if generator == nil || generator.client == nil {
		return fallbackModels()
	}
	callContext, cancel := context.WithTimeout(ctx, generator.options.ModelsTimeout)
	defer cancel()

	identifiers, listErr := generator.client.ListModels(callContext)
	if listErr != nil {
		generator.logger.Warn("model discovery failed; using fallback list", zap.Error(listErr))
		return fallbackModels()
	}
	filtered := FilterChatModels(identifiers)
	if len(filtered) == 0 {
		generator.logger.Warn("model discovery matched no chat models; using fallback list", zap.Int("offered", len(identifiers)))
		return fallbackModels()
	}
	return filtered
}

// FilterChatModels keeps chat-capable ids, priority models first and the
// rest in lexical order. Duplicates are dropped.
func FilterChatModels(identifiers []string) []string {
	matched := make(map[string]struct{})
	for _, identifier := range identifiers {
		for _, marker := range chatModelMarkers {
			if strings.Contains(identifier, marker) {
				matched[identifier] = struct{}{}
				break
			}
		}
	}

	ordered := make([]string, 0, len(matched))
	for _, priority := range PriorityModels {
		if _, ok := matched[priority]; ok {
			ordered = append(ordered, priority)
			delete(matched, priority)
		}
	}
	remaining := make([]string, 0, len(matched))
	for identifier := range matched {
		remaining = append(remaining, identifier)
	}
	sort.Strings(remaining)
	return append(ordered, remaining...)
}

func fallbackModels() []string {
	return append([]string(nil), FallbackModels...)
}
