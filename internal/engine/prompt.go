package engine

import "strings"

// Prompt templates and fixed user-facing strings. Callers never see a
// raw error from the answer path; failures are rendered through these.

// improvementPrompt precedes each transcript window sent for
// punctuation repair. The model must not add or remove content.
const improvementPrompt = "Fix the punctuation, capitalization and sentence boundaries of the " +
	"following video transcript text. Do not add, remove or rephrase any content. " +
	"Return only the corrected text.\n\nTranscript:\n"

// DeferredMessage is returned immediately when a long transcript is
// handed to the background worker.
const DeferredMessage = "I'm analyzing this long video (it may take a minute). " +
	"Please ask your question again in about 15 seconds for a complete response."

// ApologyMessage renders an answer-stage failure for the caller.
func ApologyMessage(err error) string {
	return "I'm sorry, I encountered an error while analyzing this video. Error: " + err.Error()
}

// UnanalyzableMessage renders a transcript acquisition failure.
func UnanalyzableMessage(reason string) string {
	return "I couldn't analyze this video: " + reason
}

// ProcessingFailureMessage wraps any unexpected pipeline failure.
func ProcessingFailureMessage(err error) string {
	return "An error occurred while processing the video: " + err.Error()
}

// groundedPrompt instructs the model to answer strictly from the
// retrieved transcript context.
func groundedPrompt(contextText, query string) string {
	var sb strings.Builder
	sb.WriteString("You are answering a question about a YouTube video using excerpts of its transcript.\n\n")
	sb.WriteString("Transcript context:\n")
	sb.WriteString(contextText)
	sb.WriteString("\n\nQuestion: ")
	sb.WriteString(query)
	sb.WriteString("\n\nRules:\n")
	sb.WriteString("- Answer using only the information in the transcript context above.\n")
	sb.WriteString("- If the context implies an answer without stating it outright, infer it.\n")
	sb.WriteString("- Never say \"according to the transcript\" or mention the transcript; answer naturally.\n")
	sb.WriteString("- Be polite and concise.\n")
	sb.WriteString("- Reply \"I don't know\" only if nothing in the context is relevant to the question.\n")
	return sb.String()
}

// fallbackPrompt is the looser second attempt used when the grounded
// prompt produced a refusal.
func fallbackPrompt(contextText, query string) string {
	return "Based on this YouTube video transcript extract, please answer this question as best you can: " +
		query + "\n\nTranscript context:\n" + contextText
}

// refusalSentinels are normalized model outputs that count as "no
// answer". The third entry carries a typographic apostrophe.
var refusalSentinels = []string{
	"i don't know.",
	"i don't know",
	"i don’t know",
	"i do not know",
}

// isRefusal reports whether the model declined to answer.
func isRefusal(answer string) bool {
	normalized := strings.ToLower(strings.TrimSpace(answer))
	for _, s := range refusalSentinels {
		if normalized == s {
			return true
		}
	}
	return false
}
