package marketintel

import (
	"fmt"
	"strings"

	"market-pulse/internal/domain"
)

var (
	bullishTokens = []string{"bull", "breakout", "surge", "rally", "beat", "upgrade", "growth", "buy", "uptrend", "recover", "record high", "calls"}
	bearishTokens = []string{"bear", "dump", "sell", "crash", "plunge", "lawsuit", "downgrade", "miss", "recession", "decline", "downtrend", "puts"}
)

// HeuristicSentiment scores free text by counting bullish and bearish
// keywords. Score is in [-1,1], confidence in [0.25,0.70].
func HeuristicSentiment(title, excerpt string) (float64, float64, string, string) {
	text := strings.ToLower(strings.TrimSpace(title + " " + excerpt))
	if text == "" {
		return 0, 0.25, "neutral", "empty-text"
	}

	bullCount := countMatches(text, bullishTokens)
	bearCount := countMatches(text, bearishTokens)

	raw := float64(bullCount-bearCount) / float64(bullCount+bearCount+1)
	score := clamp(raw, -1, 1)
	confidence := clamp(0.35+(0.1*float64(absInt(bullCount-bearCount))), 0.25, 0.70)

	reason := fmt.Sprintf("heuristic keywords bull=%d bear=%d", bullCount, bearCount)
	return score, confidence, labelForSentiment(score), reason
}

// Summarize aggregates sentiment scores in [-1,1].
func Summarize(scores []float64) domain.SentimentSummary {
	out := domain.SentimentSummary{Count: len(scores), Label: "neutral"}
	if len(scores) == 0 {
		return out
	}
	total := 0.0
	for _, s := range scores {
		total += s
		switch labelForSentiment(s) {
		case "bullish":
			out.Bullish++
		case "bearish":
			out.Bearish++
		default:
			out.Neutral++
		}
	}
	out.Average = total / float64(len(scores))
	out.Label = labelForSentiment(out.Average)
	return out
}

func labelForSentiment(score float64) string {
	switch {
	case score > 0.2:
		return "bullish"
	case score < -0.2:
		return "bearish"
	default:
		return "neutral"
	}
}

func countMatches(text string, tokens []string) int {
	count := 0
	for _, token := range tokens {
		if strings.Contains(text, token) {
			count++
		}
	}
	return count
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
