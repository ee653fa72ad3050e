package routing

import (
	"sort"
	"strings"

	"github.com/modelgate/modelgate/models"
)

// Wildcard terminates a prefix pattern and, standing alone, is the universal
// catch-all rule.
const Wildcard = "*"

// PatternMatch is the outcome of matching a model name against rename rules
type PatternMatch struct {
	// Pattern is the rule that won
	Pattern string

	// Replacement is the upstream model name the rule maps to
	Replacement string

	// Contenders holds other prefix patterns of identical specificity that
	// also matched. Non-empty means the rule set is ambiguous for this input
	// and the lexically smallest pattern was chosen.
	Contenders []string
}

// MatchRenameRule returns the replacement for the single best-matching rule.
//
// An exact pattern wins over any wildcard pattern. Among prefix patterns the
// longest literal prefix wins; equal lengths are resolved by lexical order of
// the pattern string and reported through Contenders rather than treated as
// an error. The bare catch-all applies only when nothing else matches. The
// second return is false when no rule matches at all.
func MatchRenameRule(model string, rules models.RenameRules) (PatternMatch, bool) {
	if len(rules) == 0 {
		return PatternMatch{}, false
	}

	if replacement, ok := rules[model]; ok {
		return PatternMatch{Pattern: model, Replacement: replacement}, true
	}

	// The rule set is administrator-authored and small, so a linear scan
	// computing the longest matching prefix beats maintaining a trie.
	var (
		best       string
		bestLen    = -1
		contenders []string
	)
	for pattern := range rules {
		if pattern == Wildcard || !strings.HasSuffix(pattern, Wildcard) {
			continue
		}
		prefix := strings.TrimSuffix(pattern, Wildcard)
		if !strings.HasPrefix(model, prefix) {
			continue
		}
		switch {
		case len(prefix) > bestLen:
			best = pattern
			bestLen = len(prefix)
			contenders = nil
		case len(prefix) == bestLen:
			if pattern < best {
				contenders = append(contenders, best)
				best = pattern
			} else {
				contenders = append(contenders, pattern)
			}
		}
	}
	if bestLen >= 0 {
		sort.Strings(contenders)
		return PatternMatch{Pattern: best, Replacement: rules[best], Contenders: contenders}, true
	}

	if replacement, ok := rules[Wildcard]; ok {
		return PatternMatch{Pattern: Wildcard, Replacement: replacement}, true
	}

	return PatternMatch{}, false
}

// CheckRules reports rule patterns with unsupported wildcard placement: a
// wildcard anywhere but the end makes the pattern match only itself, which is
// almost never what the administrator meant. Returned patterns are sorted.
func CheckRules(rules models.RenameRules) []string {
	var suspect []string
	for pattern := range rules {
		if pattern == Wildcard {
			continue
		}
		trimmed := strings.TrimSuffix(pattern, Wildcard)
		if strings.Contains(trimmed, Wildcard) {
			suspect = append(suspect, pattern)
		}
	}
	sort.Strings(suspect)
	return suspect
}
