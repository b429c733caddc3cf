// Package analyzer locates interest terms in free text and extracts the
// sentences around each occurrence. It powers the giving-related mention
// highlights in reports.
package analyzer

import (
	"strings"
	"unicode"
)

// DonationTerms are the default terms surfaced from review text. The stems
// match their inflections too ("donat" covers donate, donation, donated).
var DonationTerms = []string{"donat", "volunteer", "charity", "giving", "food drive"}

// TermMatch represents occurrences of one term within a text.
type TermMatch struct {
	Term      string   `json:"term"`
	Count     int      `json:"count"`
	Sentences []string `json:"sentences"`
}

// FindTermMatches scans content for each term, case-insensitively, and
// returns the occurrence count plus the sentences containing the term.
// Sentences split naively on '.', '!' and '?'.
func FindTermMatches(content string, terms []string) []TermMatch {
	if len(content) == 0 || len(terms) == 0 {
		return nil
	}

	lowerContent := strings.ToLower(content)

	// Original and lowercase sentences are built in one pass so matching can
	// run on lowered text while results keep the source casing.
	sentences := splitIntoSentences(content)
	if len(sentences) == 0 {
		return nil
	}

	results := make([]TermMatch, 0, len(terms))
	for _, term := range terms {
		lowerTerm := strings.ToLower(term)
		count := strings.Count(lowerContent, lowerTerm)
		if count == 0 {
			continue
		}

		var matched []string
		for _, s := range sentences {
			if strings.Contains(s.lower, lowerTerm) {
				matched = append(matched, s.original)
			}
		}

		results = append(results, TermMatch{
			Term:      term,
			Count:     count,
			Sentences: matched,
		})
	}
	return results
}

// MatchedSentences flattens the distinct sentences across all matches,
// preserving first-seen order.
func MatchedSentences(matches []TermMatch) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range matches {
		for _, s := range m.Sentences {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

type sentence struct {
	original string
	lower    string
}

// splitIntoSentences splits on '.', '!' or '?', keeping the delimiter with
// its sentence.
func splitIntoSentences(text string) []sentence {
	if len(text) == 0 {
		return nil
	}

	// Rough estimate: one sentence per 50 chars.
	estimated := len(text) / 50
	if estimated < 1 {
		estimated = 1
	}

	sentences := make([]sentence, 0, estimated)
	start := 0

	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			end := i + 1
			for end < len(text) && unicode.IsSpace(rune(text[end])) {
				end++
			}
			orig := strings.TrimSpace(text[start:end])
			if orig != "" {
				sentences = append(sentences, sentence{original: orig, lower: strings.ToLower(orig)})
			}
			start = end
		}
	}

	if start < len(text) {
		orig := strings.TrimSpace(text[start:])
		if orig != "" {
			sentences = append(sentences, sentence{original: orig, lower: strings.ToLower(orig)})
		}
	}

	return sentences
}
