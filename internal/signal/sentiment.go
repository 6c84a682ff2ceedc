package signal

import (
	"strings"

	"crypto-forecast/internal/model"
)

// Lexicon is the two-bucket keyword dictionary used by ScoreSentiment.
type Lexicon struct {
	Positive []string `yaml:"positive"`
	Negative []string `yaml:"negative"`
}

// DefaultLexicon returns the stock crypto-chatter keywords.
func DefaultLexicon() Lexicon {
	return Lexicon{
		Positive: []string{"bullish", "buy", "moon", "pump", "growth", "potential", "undervalued"},
		Negative: []string{"bearish", "sell", "dump", "crash", "overvalued", "scam"},
	}
}

// ScoreSentiment counts case-insensitive keyword occurrences across the
// corpus. Occurrences are substring matches, so "buyers" counts as "buy".
// Score is (positive-negative)/max(1, total), always within [-1, 1].
func ScoreSentiment(corpus []string, lex Lexicon) model.SentimentSample {
	content := strings.ToLower(strings.Join(corpus, " "))
	keywords := make(map[string]int, len(lex.Positive)+len(lex.Negative))

	count := func(words []string) int {
		total := 0
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w == "" {
				continue
			}
			n := strings.Count(content, w)
			keywords[w] += n
			total += n
		}
		return total
	}

	pos := count(lex.Positive)
	neg := count(lex.Negative)
	mentions := pos + neg

	denom := mentions
	if denom < 1 {
		denom = 1
	}
	return model.SentimentSample{
		Score:         float64(pos-neg) / float64(denom),
		Mentions:      mentions,
		PositiveCount: pos,
		NegativeCount: neg,
		Keywords:      keywords,
	}
}
