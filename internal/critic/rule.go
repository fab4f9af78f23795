package critic

import (
	"strings"
)

const maxTabooTokens = 20

// RuleReview runs the mechanical offline checks: character presence,
// taboo-line parsing restricted to contextUsed, and a timeline
// co-occurrence hint (§4.9, default/offline mode).
func RuleReview(characterNames []string, contextUsed, draft string) Review {
	var review Review

	if issue, ok := checkCharacterPresence(characterNames, draft); ok {
		review.Issues = append(review.Issues, issue)
	}

	review.Issues = append(review.Issues, checkTabooHits(contextUsed, draft)...)

	if issue, ok := checkTimelineHint(draft); ok {
		review.Issues = append(review.Issues, issue)
	}

	return review
}

func checkCharacterPresence(characterNames []string, draft string) (Issue, bool) {
	if len(characterNames) == 0 {
		return Issue{}, false
	}
	lowerDraft := strings.ToLower(draft)
	for _, name := range characterNames {
		if name == "" {
			continue
		}
		if strings.Contains(lowerDraft, strings.ToLower(name)) {
			return Issue{}, false
		}
	}
	return Issue{
		Type:     "character",
		Severity: "medium",
		Evidence: truncateRunes(draft, 160),
	}, true
}

// checkTabooHits scans contextUsed for lines naming a taboo/forbidden
// rule (e.g. "taboo: magic, violence"), tokenises the tail, and flags any
// of those tokens appearing in draft.
func checkTabooHits(contextUsed, draft string) []Issue {
	taboos := extractTabooTokens(contextUsed)
	if len(taboos) == 0 {
		return nil
	}

	lowerDraft := strings.ToLower(draft)
	var issues []Issue
	for _, t := range taboos {
		if strings.Contains(lowerDraft, t) {
			issues = append(issues, Issue{
				Type:     "style",
				Severity: "low",
				Evidence: t,
			})
		}
	}
	return issues
}

func extractTabooTokens(contextUsed string) []string {
	var tokens []string
	for _, line := range strings.Split(contextUsed, "\n") {
		lower := strings.ToLower(line)
		idx := -1
		for _, marker := range []string{"taboo:", "forbidden:"} {
			if i := strings.Index(lower, marker); i >= 0 {
				idx = i + len(marker)
				break
			}
		}
		if idx < 0 {
			continue
		}

		tail := line[idx:]
		parts := strings.FieldsFunc(tail, func(r rune) bool {
			switch r {
			case ',', '，', '、', ' ', '\t':
				return true
			}
			return false
		})
		for _, p := range parts {
			p = strings.ToLower(strings.TrimSpace(p))
			if len([]rune(p)) >= 2 {
				tokens = append(tokens, p)
				if len(tokens) >= maxTabooTokens {
					return tokens
				}
			}
		}
	}
	return tokens
}

func checkTimelineHint(draft string) (Issue, bool) {
	lower := strings.ToLower(draft)
	if strings.Contains(lower, "return to") && strings.Contains(lower, "yesterday") {
		return Issue{
			Type:     "timeline",
			Severity: "low",
			Evidence: "draft combines \"return to\" with \"yesterday\"",
		}, true
	}
	return Issue{}, false
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
