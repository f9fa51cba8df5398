// Package budget estimates token counts and trims resume text so an
// extraction prompt fits the model's context window. Because several LLM
// backends with different tokenizers are supported, it uses a conservative
// character heuristic: 1 token ≈ 4 characters.
package budget

import (
	"unicode/utf8"

	"github.com/cloudwego/eino/schema"
)

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default input budget in tokens. It fits
	// 8k-context models while leaving room for the JSON answer.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// EstimateMessages returns the estimated total token count for msgs,
// summing role and content for each message.
func EstimateMessages(msgs []*schema.Message) int {
	total := 0
	for _, m := range msgs {
		// Per-message overhead is about 4 tokens in most APIs.
		total += 4
		total += Estimate(string(m.Role))
		total += Estimate(m.Content)
	}
	return total
}

// Truncate shortens s to at most maxTokens estimated tokens, cutting on a
// rune boundary. It reports whether anything was removed.
func Truncate(s string, maxTokens int) (string, bool) {
	if maxTokens <= 0 {
		return "", s != ""
	}
	limit := maxTokens * charsPerToken
	if len(s) <= limit {
		return s, false
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

// Fit trims the content of the last message in msgs until the estimated
// total fits maxTokens. The earlier messages (system prompt, instructions)
// are never changed. It reports whether the last message was shortened.
func Fit(msgs []*schema.Message, maxTokens int) bool {
	if len(msgs) == 0 {
		return false
	}
	over := EstimateMessages(msgs) - maxTokens
	if over <= 0 {
		return false
	}
	last := msgs[len(msgs)-1]
	keep := Estimate(last.Content) - over
	if keep < 0 {
		keep = 0
	}
	last.Content, _ = Truncate(last.Content, keep)
	return true
}
