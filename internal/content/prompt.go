package content

import (
	"fmt"
	"strings"
)

const (
	DefaultLanguage = "Korean"

	// SystemInstruction is sent as the system message of every completion.
	SystemInstruction = "You are a professional blog writer for the Tistory platform. " +
		"You write in plain text only, never using markdown or HTML tags."

	promptHeaderFormat = "Write a blog post optimized for the Tistory platform.\n\n" +
		"Title: %s\n" +
		"Content type: %s (%s)\n" +
		"Tone: %s (%s)\n"
	keywordClauseFormat  = "Main keywords: %s\n"
	languageClauseFormat = "Language: write the entire post in %s.\n"

	promptRequirements = `
Tistory optimization requirements:
- Length: 2000-3000 characters
- Plain text format (markdown is not allowed)
- Consider Tistory search optimization
- Easy-to-read paragraphs
- SEO-friendly for Naver and Google

Structure:
1. An engaging title
2. Introduction that sparks curiosity
3. Main body with 2-3 key points
4. Practical tips or advice
5. Closing that invites readers back

Writing guidelines:
- Place keywords naturally
- Friendly, easy-to-understand style
- Include concrete information and examples
- Keep the reader engaged until the end
- End by encouraging comments and reactions

Write the post now following the conditions above. Do not use markdown or HTML tags; write in plain text only.`
)

// BuildPrompt renders the user message for request. The keyword clause is
// emitted only when the trimmed keywords are non-empty.
func BuildPrompt(request Request, language string) string {
	var builder strings.Builder
	builder.WriteString(fmt.Sprintf(promptHeaderFormat,
		strings.TrimSpace(request.Topic),
		request.Category.String(), request.Category.Label(),
		request.Tone.String(), request.Tone.Label(),
	))
	if keywords := strings.TrimSpace(request.Keywords); keywords != "" {
		builder.WriteString(fmt.Sprintf(keywordClauseFormat, keywords))
	}
	if strings.TrimSpace(language) == "" {
		language = DefaultLanguage
	}
	builder.WriteString(fmt.Sprintf(languageClauseFormat, strings.TrimSpace(language)))
	builder.WriteString(promptRequirements)
	return builder.String()
}
