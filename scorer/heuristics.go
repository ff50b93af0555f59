package scorer

import (
	"regexp"
	"strings"
	"unicode"
)

// Signal weights
const (
	weightPowerWord  = 0.35
	weightNumeric    = 0.2
	weightEmphasis   = 0.1
	weightDiscourse  = 0.15
	weightWordCount  = 0.2
	penaltyWordCount = 0.1
)

// Word-count bands. Inside the sweet spot earns the bonus, outside the outer
// band is penalized, anything between is neutral.
const (
	sweetMinWords = 8
	sweetMaxWords = 65
	outerMinWords = 4
	outerMaxWords = 120
)

// powerWords mark newsworthy moments in mining and markets coverage
var powerWords = []string{
	"record", "breaking", "surge", "soar", "crash", "plunge", "collapse",
	"halving", "hashrate", "difficulty", "all-time", "billion", "million",
	"bankrupt", "hack", "exploit", "ban", "approval", "approved", "etf",
	"warning", "shutdown", "massive", "historic", "first", "biggest",
	"exclusive", "revealed", "announced", "curtailment",
}

var discourseMarkers = []string{
	"because", "here's why", "here is why", "that means", "which means",
	"the reason", "in other words", "turns out", "the key", "so what",
}

// topicKeywords maps each topic to the words that suggest it
var topicKeywords = map[string][]string{
	"mining":     {"miner", "miners", "mining", "hashrate", "hash rate", "difficulty", "asic", "rig", "pool", "halving", "block reward"},
	"energy":     {"energy", "power", "grid", "electricity", "megawatt", "mw", "gigawatt", "renewable", "solar", "hydro", "curtailment", "gas"},
	"markets":    {"price", "market", "etf", "stock", "shares", "revenue", "profit", "earnings", "bitcoin", "btc", "investor", "sell", "buy"},
	"policy":     {"regulation", "regulator", "sec", "law", "ban", "tax", "government", "senate", "congress", "policy", "court", "license"},
	"technology": {"chip", "firmware", "immersion", "cooling", "software", "hardware", "efficiency", "upgrade", "node", "protocol"},
}

var (
	numericPattern = regexp.MustCompile(`[$€£¥]|\d`)
	tokenPattern   = regexp.MustCompile(`[\p{L}\p{N}$€£¥%'’.-]+`)
)

// ScoreText returns the heuristic relevance of one transcript segment in [0,1]
func ScoreText(text string) float64 {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	words := tokenPattern.FindAllString(text, -1)

	var score float64
	if containsWord(lower, powerWords) {
		score += weightPowerWord
	}
	if numericPattern.MatchString(text) {
		score += weightNumeric
	}
	if hasEmphasis(text, words) {
		score += weightEmphasis
	}
	if containsPhrase(lower, discourseMarkers) {
		score += weightDiscourse
	}

	n := len(words)
	switch {
	case n >= sweetMinWords && n <= sweetMaxWords:
		score += weightWordCount
	case n < outerMinWords || n > outerMaxWords:
		score -= penaltyWordCount
	}
	return clamp01(score)
}

// Topic picks the vocabulary topic with the most keyword hits, or "general"
func Topic(text string) string {
	lower := " " + strings.ToLower(text) + " "
	best, bestHits := "general", 0
	for _, topic := range []string{"mining", "energy", "markets", "policy", "technology"} {
		hits := 0
		for _, kw := range topicKeywords[topic] {
			if wordIndex(lower, kw) >= 0 {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = topic, hits
		}
	}
	return best
}

// hasEmphasis looks for an exclamation or a shouted (all caps) word
func hasEmphasis(text string, words []string) bool {
	if strings.Contains(text, "!") {
		return true
	}
	for _, w := range words {
		letters, upper := 0, 0
		for _, r := range w {
			if unicode.IsLetter(r) {
				letters++
				if unicode.IsUpper(r) {
					upper++
				}
			}
		}
		if letters >= 3 && upper == letters {
			return true
		}
	}
	return false
}

func containsWord(lower string, vocab []string) bool {
	padded := " " + lower + " "
	for _, w := range vocab {
		if wordIndex(padded, w) >= 0 {
			return true
		}
	}
	return false
}

func containsPhrase(lower string, phrases []string) bool {
	lower = strings.ReplaceAll(lower, "’", "'")
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// wordIndex finds w in s only where it is bounded by non-letters
func wordIndex(s, w string) int {
	from := 0
	for {
		i := strings.Index(s[from:], w)
		if i < 0 {
			return -1
		}
		i += from
		end := i + len(w)
		if (i == 0 || !isWordByte(s[i-1])) && (end >= len(s) || !isWordByte(s[end])) {
			return i
		}
		from = i + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
