package summarize

import (
	"fmt"

	"github.com/dera1992/new-aggregator-app/internal/news"
)

const systemPrompt = "You are a professional news summarizer. " +
	"Do not add facts that are not present in the text. " +
	"Return only the summary."

// styleInstruction maps each summary style to its shape instruction.
func styleInstruction(style news.SummaryStyle) string {
	switch style {
	case news.StyleShort:
		return "2-3 tight sentences"
	case news.StyleDetailed:
		return "1-2 short paragraphs with key context and implications"
	default:
		return "exactly 3 bullet points"
	}
}

// buildPrompt returns the system and user messages for one article,
// with content truncated to the model's context budget.
func buildPrompt(style news.SummaryStyle, content string, cap int) (string, string) {
	runes := []rune(content)
	if cap > 0 && len(runes) > cap {
		content = string(runes[:cap])
	}
	user := fmt.Sprintf("Summarize the following article in %s.\n\nArticle text:\n%s",
		styleInstruction(style), content)
	return systemPrompt, user
}
