package content

import (
	"regexp"
	"strings"
)

type markupRule struct {
	pattern     *regexp.Regexp
	replacement string
}

// Every rule removes characters, so repeated application terminates.
var markupRules = []markupRule{
	{regexp.MustCompile("```[^`]*```"), ""},
	{regexp.MustCompile(`(?m)^#{1,6}[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`), ""},
	{regexp.MustCompile(`(?m)^[ \t]*\d+\.[ \t]+`), ""},
	{regexp.MustCompile(`(?m)^>[ \t]*`), ""},
	{regexp.MustCompile(`\[([^\]\n]+)\]\([^)\n]+\)`), "$1"},
	{regexp.MustCompile(`\*\*(.+?)\*\*`), "$1"},
	{regexp.MustCompile(`\*(.+?)\*`), "$1"},
	{regexp.MustCompile(`__(.+?)__`), "$1"},
	{regexp.MustCompile(`_(.+?)_`), "$1"},
	{regexp.MustCompile("`([^`\n]+)`"), "$1"},
}

// StripMarkdown removes lightweight markup a model may still emit despite
// being asked for plain text: headings, emphasis, list markers, links, block
// quotes and code. The rules run until the text stops changing, so
// StripMarkdown(StripMarkdown(s)) == StripMarkdown(s).
func StripMarkdown(text string) string {
	current := strings.TrimSpace(text)
	for {
		next := current
		for _, rule := range markupRules {
			next = rule.pattern.ReplaceAllString(next, rule.replacement)
		}
		next = strings.TrimSpace(next)
		if next == current {
			return current
		}
		current = next
	}
}
