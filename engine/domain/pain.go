package domain

import (
	"regexp"
	"strings"
)

// Pain keyword categories with per-category weights. A category contributes
// its weight at most once per text.
var painKeywords = map[string][]string{
	"pain": {
		"hate", "frustrated", "annoying", "tedious", "painful", "nightmare",
		"terrible", "awful", "sucks", "irritating", "exhausting", "draining",
	},
	"time": {
		"hours", "waste", "slow", "taking forever", "time-consuming",
		"forever", "daily", "weekly", "every day", "every week", "constantly",
	},
	"seeking": {
		"looking for", "need", "want", "wish", "alternative to", "better than",
		"replacement for", "instead of", "searching for", "trying to find",
	},
	"problems": {
		"can't", "unable", "doesn't work", "broken", "missing", "lack of",
		"no way to", "impossible", "failing", "error", "bug", "issue",
	},
	"business": {
		"losing money", "costing", "revenue", "customers leaving", "churn",
		"expensive", "paying too much", "budget", "roi", "profit",
	},
	"workflow": {
		"manual", "repetitive", "copy-paste", "switching between", "juggling",
		"back and forth", "multiple tools", "scattered", "disorganized",
	},
}

var keywordWeights = map[string]int{
	"pain":     20,
	"time":     15,
	"seeking":  10,
	"problems": 10,
	"business": 25,
	"workflow": 15,
}

var frequencyWords = []string{"daily", "weekly", "every day", "every week", "constantly", "always"}

// Measurable-pain indicators like "10 hours", "$500", "3 times", "40%".
var numberPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\d+\s*(hours?|minutes?|days?|weeks?|months?)`),
	regexp.MustCompile(`\$\d+`),
	regexp.MustCompile(`\d+\s*times?`),
	regexp.MustCompile(`\d+%`),
}

// High-signal pain phrasing used to pre-filter listing feeds before any AI
// analysis is spent on them.
var painPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)hate (manually|doing|when)`),
	regexp.MustCompile(`(?i)takes? (too long|forever|hours)`),
	regexp.MustCompile(`(?i)wish (there was|i could)`),
	regexp.MustCompile(`(?i)tired of`),
	regexp.MustCompile(`(?i)struggle with`),
	regexp.MustCompile(`(?i)hard to find`),
	regexp.MustCompile(`(?i)no good solution`),
	regexp.MustCompile(`(?i)waste of time`),
	regexp.MustCompile(`(?i)manual work`),
	regexp.MustCompile(`(?i)frustrating`),
	regexp.MustCompile(`(?i)tedious`),
	regexp.MustCompile(`(?i)repetitive`),
	regexp.MustCompile(`(?i)annoying`),
	regexp.MustCompile(`(?i)complicated`),
	regexp.MustCompile(`(?i)expensive`),
	regexp.MustCompile(`(?i)broken`),
	regexp.MustCompile(`(?i)can'?t believe`),
}

// MatchesPainPattern reports whether text contains high-signal pain phrasing.
func MatchesPainPattern(text string) bool {
	if text == "" {
		return false
	}
	for _, p := range painPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// PainScore estimates pain intensity (0-100) from keyword matches.
func PainScore(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0

	for category, keywords := range painKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				score += keywordWeights[category]
				break
			}
		}
	}

	for _, w := range frequencyWords {
		if strings.Contains(lower, w) {
			score += 10
			break
		}
	}

	for _, p := range numberPatterns {
		if p.MatchString(lower) {
			score += 5
			break
		}
	}

	if score > 100 {
		score = 100
	}
	return score
}
