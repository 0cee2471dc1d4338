package domain

import (
	"sort"
	"strings"
)

// ValidatePost checks that a fetched post carries every required field.
// Posts failing validation are dropped and counted, never fatal.
func ValidatePost(p Post) error {
	if strings.TrimSpace(p.ID) == "" {
		return NewValidationError("id", p.ID, ErrMissingField)
	}
	if strings.TrimSpace(p.Title) == "" {
		return NewValidationError("title", p.Title, ErrMissingField)
	}
	if strings.TrimSpace(p.URL) == "" {
		return NewValidationError("url", p.URL, ErrMissingField)
	}
	if p.Source == "" {
		return NewValidationError("source", "", ErrMissingField)
	}
	return nil
}

// ValidateRun checks caller-supplied run parameters.
func ValidateRun(sources []SourceName, keywords []string) error {
	if len(keywords) == 0 {
		return ErrNoKeywords
	}
	for _, s := range sources {
		if !ValidSources[s] {
			return NewValidationError("source", string(s), ErrUnknownSource)
		}
	}
	return nil
}

// NormalizeKeywords returns the sorted, deduplicated, lower-cased keyword
// set used in cache scope keys and search queries.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	out := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
