package critic

import "testing"

func TestRuleReviewFlagsMissingCharacters(t *testing.T) {
	review := RuleReview([]string{"Elena", "Marcus"}, "", "The rain fell over the quiet harbor all night.")
	if len(review.Issues) != 1 {
		t.Fatalf("expected exactly one issue, got %d: %+v", len(review.Issues), review.Issues)
	}
	if review.Issues[0].Type != "character" || review.Issues[0].Severity != "medium" {
		t.Fatalf("unexpected issue: %+v", review.Issues[0])
	}
}

func TestRuleReviewPassesWhenAnyCharacterPresent(t *testing.T) {
	review := RuleReview([]string{"Elena", "Marcus"}, "", "Elena walked along the quiet harbor all night.")
	for _, issue := range review.Issues {
		if issue.Type == "character" {
			t.Fatalf("did not expect a character issue, got %+v", issue)
		}
	}
}

func TestRuleReviewFlagsTabooHits(t *testing.T) {
	contextUsed := "style_guide: keep it light\ntaboo: magic, curses\nworld: a coastal town"
	draft := "She whispered curses under her breath before the storm broke."
	review := RuleReview(nil, contextUsed, draft)

	found := false
	for _, issue := range review.Issues {
		if issue.Type == "style" && issue.Evidence == "curses" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a style issue for taboo token 'curses', got %+v", review.Issues)
	}
}

func TestRuleReviewIgnoresTabooTokensNotInDraft(t *testing.T) {
	contextUsed := "forbidden: dragons, time travel"
	draft := "The fisherman mended his nets by lamplight."
	review := RuleReview(nil, contextUsed, draft)
	for _, issue := range review.Issues {
		if issue.Type == "style" {
			t.Fatalf("did not expect a style issue, got %+v", issue)
		}
	}
}

func TestRuleReviewFlagsTimelineCoOccurrence(t *testing.T) {
	draft := "He wanted to return to the village, remembering yesterday's argument."
	review := RuleReview(nil, "", draft)

	found := false
	for _, issue := range review.Issues {
		if issue.Type == "timeline" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected a timeline issue, got %+v", review.Issues)
	}
}

func TestRuleReviewNoTimelineIssueWithoutCoOccurrence(t *testing.T) {
	draft := "Yesterday was calm, and tomorrow she would travel north."
	review := RuleReview(nil, "", draft)
	for _, issue := range review.Issues {
		if issue.Type == "timeline" {
			t.Fatalf("did not expect a timeline issue, got %+v", issue)
		}
	}
}

func TestRuleReviewHandlesEmptyInputs(t *testing.T) {
	review := RuleReview(nil, "", "")
	if len(review.Issues) != 0 {
		t.Fatalf("expected no issues for empty inputs, got %+v", review.Issues)
	}
}
