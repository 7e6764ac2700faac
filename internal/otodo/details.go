package otodo

import (
	"regexp"
	"sort"
	"strings"
)

// LineRule is a per-line regex rewrite applied to task descriptions.
// Flags is a subset of "ims"; any other flag invalidates the rule.
type LineRule struct {
	Pattern     string `toml:"pattern" json:"pattern"`
	Replacement string `toml:"replacement" json:"replacement"`
	Flags       string `toml:"flags" json:"flags"`
}

// DefaultLineRules returns the built-in description cleanup rules:
// stray bullet characters become "- ", and checkbox markers are normalized.
func DefaultLineRules() []LineRule {
	return []LineRule{
		{Pattern: `^\s*(?:\*|•)\s+`, Replacement: "- "},
		{Pattern: `^\s*-\s*\[( |x)\]\s*`, Replacement: "- [$1] ", Flags: "i"},
	}
}

type compiledRule struct {
	re          *regexp.Regexp
	replacement string
}

type expander struct {
	trigger     string
	replacement string
}

// Normalizer cleans up free-text descriptions before they are saved:
// line endings and trailing whitespace are normalized, text expanders
// (literal trigger -> replacement) are applied, then each line is run
// through the configured line rules. Invalid rules are skipped, never fatal.
type Normalizer struct {
	expanders []expander
	rules     []compiledRule
}

// NewNormalizer compiles the given expanders and rules into a Normalizer.
// Expanders apply longest trigger first so an overlapping shorter trigger
// never eats part of a longer one.
func NewNormalizer(expanders map[string]string, rules []LineRule) *Normalizer {
	n := &Normalizer{}
	for trigger, replacement := range expanders {
		if trigger == "" {
			continue
		}
		n.expanders = append(n.expanders, expander{trigger: trigger, replacement: replacement})
	}
	sort.Slice(n.expanders, func(i, j int) bool {
		a, b := n.expanders[i], n.expanders[j]
		if len(a.trigger) != len(b.trigger) {
			return len(a.trigger) > len(b.trigger)
		}
		return a.trigger < b.trigger
	})
	for _, r := range sanitizeLineRules(rules) {
		expr := r.Pattern
		if r.Flags != "" {
			expr = "(?" + r.Flags + ")" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			// sanitizeLineRules already compiled it once; unreachable.
			continue
		}
		n.rules = append(n.rules, compiledRule{re: re, replacement: r.Replacement})
	}
	return n
}

// sanitizeLineRules drops rules with empty or non-compiling patterns or
// unsupported flags.
func sanitizeLineRules(rules []LineRule) []LineRule {
	var out []LineRule
	for _, r := range rules {
		pattern := strings.TrimSpace(r.Pattern)
		if pattern == "" {
			continue
		}
		valid := true
		for _, f := range r.Flags {
			if !strings.ContainsRune("ims", f) {
				valid = false
				break
			}
		}
		if !valid {
			continue
		}
		expr := pattern
		if r.Flags != "" {
			expr = "(?" + r.Flags + ")" + expr
		}
		if _, err := regexp.Compile(expr); err != nil {
			continue
		}
		out = append(out, LineRule{Pattern: pattern, Replacement: r.Replacement, Flags: r.Flags})
	}
	return out
}

// Normalize returns the cleaned-up form of value.
func (n *Normalizer) Normalize(value string) string {
	if value == "" {
		return ""
	}
	normalized := strings.ReplaceAll(value, "\r\n", "\n")
	normalized = strings.TrimRight(normalized, " \t\n")
	for _, e := range n.expanders {
		normalized = strings.ReplaceAll(normalized, e.trigger, e.replacement)
	}
	if len(n.rules) == 0 {
		return normalized
	}
	lines := strings.Split(normalized, "\n")
	for i, line := range lines {
		for _, rule := range n.rules {
			line = rule.re.ReplaceAllString(line, rule.replacement)
		}
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}
