// Package grader implements the answer matching rule used to score every
// submitted question: a canonical answer lists alternative answer groups
// separated by "||", and each group lists jointly-required items separated
// by ",". A submission is correct when any single group is fully covered.
package grader

import "strings"

const (
	// groupSeparator splits alternative acceptable answers.
	groupSeparator = "||"
	// itemSeparator splits jointly-required items inside one group,
	// and the items of the submitted answer.
	itemSeparator = ","
)

// QuestionScore is the fixed weight of one correct question.
const QuestionScore = 20

// Grade compares a submitted answer against the canonical answer and returns
// correctness plus the awarded score. Matching is OR over groups, AND over
// items, with exact equality after trimming each item. Extra submitted items
// beyond what a group expects do not invalidate the match.
func Grade(canonicalAnswer, submittedAnswer string) (bool, int) {
	if strings.TrimSpace(canonicalAnswer) == "" {
		return false, 0
	}

	submitted := splitItems(submittedAnswer)

	for _, group := range strings.Split(canonicalAnswer, groupSeparator) {
		if groupMatches(group, submitted) {
			return true, QuestionScore
		}
	}
	return false, 0
}

// groupMatches reports whether every expected item of one answer group has an
// exact match among the submitted items.
func groupMatches(group string, submitted map[string]struct{}) bool {
	for _, expected := range strings.Split(group, itemSeparator) {
		if _, ok := submitted[strings.TrimSpace(expected)]; !ok {
			return false
		}
	}
	return true
}

func splitItems(answer string) map[string]struct{} {
	parts := strings.Split(answer, itemSeparator)
	items := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		items[strings.TrimSpace(p)] = struct{}{}
	}
	return items
}
