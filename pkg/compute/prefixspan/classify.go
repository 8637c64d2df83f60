package prefixspan

import "strings"

// Classify categorizes a pattern sequence with the built-in heuristics:
// repeated errors form chains, errors with no activity after them signal
// churn, login-then-game is a funnel, and repeated game events are
// engagement.
func Classify(sequence []string) Category {
	errorCount := 0
	for _, code := range sequence {
		if strings.HasPrefix(code, "E") {
			errorCount++
		}
	}
	if errorCount >= 2 {
		return CategoryErrorChain
	}

	if errorCount > 0 {
		lastError := -1
		for i, code := range sequence {
			if strings.HasPrefix(code, "E") {
				lastError = i
			}
		}
		activityAfter := false
		for _, code := range sequence[lastError+1:] {
			if code == "L" || strings.HasPrefix(code, "G") {
				activityAfter = true
				break
			}
		}
		if !activityAfter {
			return CategoryChurn
		}
	}

	firstLogin, firstGame := -1, -1
	gameCount := 0
	for i, code := range sequence {
		if code == "L" && firstLogin == -1 {
			firstLogin = i
		}
		if strings.HasPrefix(code, "G") {
			gameCount++
			if firstGame == -1 {
				firstGame = i
			}
		}
	}
	if firstLogin != -1 && firstGame != -1 && firstLogin < firstGame {
		return CategoryFunnel
	}

	if gameCount >= 2 {
		return CategoryEngagement
	}

	return CategoryUnknown
}

// ClassificationRule is a declarative classification rule loaded from a
// PatternConfig document. Rules are evaluated in order; first match wins.
type ClassificationRule struct {
	Category  string
	Condition ClassificationCondition
}

// ClassificationCondition is the matchable condition of a rule. Check
// selects the semantics: "count_gte", "sequence_match", or
// "has_then_absent".
type ClassificationCondition struct {
	Check       string
	EventCode   string
	MinCount    int
	Sequence    []string
	PresentCode string
	AbsentCode  string
}

// ClassifyWithRules evaluates declarative rules in order, returning the
// first matching rule's category, or Unknown when none match. When a
// PatternConfig is loaded this path takes precedence over the built-in
// heuristics.
func ClassifyWithRules(sequence []string, rules []ClassificationRule) Category {
	for _, rule := range rules {
		if matchesCondition(sequence, rule.Condition) {
			return ParseCategory(rule.Category)
		}
	}
	return CategoryUnknown
}

func matchesCondition(sequence []string, cond ClassificationCondition) bool {
	switch cond.Check {
	case "count_gte":
		count := 0
		for _, code := range sequence {
			if cond.EventCode == "" || strings.HasPrefix(code, cond.EventCode) {
				count++
			}
		}
		return count >= cond.MinCount

	case "sequence_match":
		if len(cond.Sequence) == 0 {
			return false
		}
		idx := 0
		for _, code := range sequence {
			if idx < len(cond.Sequence) && strings.HasPrefix(code, cond.Sequence[idx]) {
				idx++
			}
		}
		return idx >= len(cond.Sequence)

	case "has_then_absent":
		lastPresent := -1
		for i, code := range sequence {
			if strings.HasPrefix(code, cond.PresentCode) {
				lastPresent = i
			}
		}
		if lastPresent == -1 {
			return false
		}
		for _, code := range sequence[lastPresent+1:] {
			if strings.HasPrefix(code, cond.AbsentCode) {
				return false
			}
		}
		return true
	}
	return false
}
