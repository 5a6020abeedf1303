// Package budget estimates whether an analysis request fits a model's
// context window.
package budget

import (
	"math"
	"strings"
)

// EstimateTokensFromChars converts a character count into an estimated token
// count using a conservative heuristic (~4 chars per token). The result is
// always at least 1 when chars > 0.
func EstimateTokensFromChars(charCount int) int {
	if charCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(charCount) / 4.0))
}

// EstimateTokens returns the estimated token count of a string. Characters
// are counted as runes so accented Portuguese text is not overestimated.
func EstimateTokens(s string) int {
	return EstimateTokensFromChars(len([]rune(s)))
}

// ModelContextTokens returns an estimated maximum context window for a given
// model name. Unknown models fall back to 8192.
func ModelContextTokens(modelName string) int {
	name := strings.ToLower(strings.TrimSpace(modelName))
	if name == "" {
		return 8192
	}
	if v, ok := knownModelMax[name]; ok {
		return v
	}
	// Dated releases such as claude-3-opus-20240229 share their family's window.
	best, bestLen := 0, 0
	for prefix, v := range knownModelMax {
		if strings.HasPrefix(name, prefix+"-") && len(prefix) > bestLen {
			best, bestLen = v, len(prefix)
		}
	}
	if bestLen > 0 {
		return best
	}
	for _, s := range []struct {
		suffix string
		tokens int
	}{{"1m", 1_000_000}, {"200k", 200_000}, {"128k", 128_000}, {"32k", 32_768}} {
		if strings.HasSuffix(name, s.suffix) {
			return s.tokens
		}
	}
	return 8192
}

// HeadroomTokens is the larger of 5% of the model context or 512 tokens,
// covering tokenizer and message framing overheads.
func HeadroomTokens(modelName string) int {
	dyn := int(math.Ceil(float64(ModelContextTokens(modelName)) * 0.05))
	if dyn < 512 {
		return 512
	}
	return dyn
}

// Estimate is the sizing of one request against one model.
type Estimate struct {
	PromptTokens int
	Limit        int
	Fits         bool
}

// Check sizes a prompt plus document for modelName, reserving
// reservedForOutput tokens for the answer.
func Check(modelName string, reservedForOutput int, prompt, document string) Estimate {
	if reservedForOutput < 0 {
		reservedForOutput = 0
	}
	tokens := EstimateTokens(prompt) + EstimateTokens(document)
	limit := ModelContextTokens(modelName) - reservedForOutput - HeadroomTokens(modelName)
	if limit < 0 {
		limit = 0
	}
	return Estimate{PromptTokens: tokens, Limit: limit, Fits: tokens <= limit}
}

// knownModelMax contains rough context sizes for the providers' models.
var knownModelMax = map[string]int{
	"gpt-4o":        128_000,
	"gpt-4o-mini":   128_000,
	"gpt-4-turbo":   128_000,
	"gpt-3.5-turbo": 16_384,

	"claude-3-5-sonnet": 200_000,
	"claude-3-opus":     200_000,
	"claude-3-sonnet":   200_000,
	"claude-3-haiku":    200_000,

	"gemini-pro":       32_760,
	"gemini-1.0-pro":   32_760,
	"gemini-1.5-pro":   2_000_000,
	"gemini-1.5-flash": 1_000_000,

	"manus-davi-12b": 32_768,
}
