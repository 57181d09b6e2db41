package policy

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/kestrelrun/genie/internal/log"
)

const (
	// maxRegexInputBytes bounds the input handed to any compiled pattern,
	// mitigating ReDoS amplification from arbitrarily long commands.
	maxRegexInputBytes = 8 * 1024

	// regexMatchBudget is the wall-clock ceiling for a single match
	// attempt (spec §4.1.2).
	regexMatchBudget = 100 * time.Millisecond
)

// CompiledPattern wraps one bash_allow_patterns/bash_deny_patterns entry.
// If the pattern failed to compile, Fallback is true and matching degrades
// to a literal substring search rather than ever crashing the engine.
type CompiledPattern struct {
	Source   string
	re       *regexp2.Regexp
	Fallback bool
}

// CompilePattern compiles source with a bounded match timeout. Compile
// failure never returns an error to the caller — it returns a
// CompiledPattern that falls back to literal substring matching, logging a
// warning, per spec's RegexCompile policy.
func CompilePattern(source string) CompiledPattern {
	re, err := regexp2.Compile(source, regexp2.None)
	if err != nil {
		log.Warn(log.CatPolicy, "bash pattern failed to compile, falling back to literal match", "pattern", source, "error", err.Error())
		return CompiledPattern{Source: source, Fallback: true}
	}
	re.MatchTimeout = regexMatchBudget
	return CompiledPattern{Source: source, re: re}
}

func truncate(s string) string {
	if len(s) <= maxRegexInputBytes {
		return s
	}
	return s[:maxRegexInputBytes]
}

// Matches reports whether the pattern matches anywhere within s (substring
// semantics). A timeout is treated as a non-match and logged as a warning
// here on every occurrence; repeated timeouts of the same pattern are not
// deduplicated.
func (p CompiledPattern) Matches(s string) bool {
	s = truncate(s)
	if p.Fallback {
		return strings.Contains(s, p.Source)
	}

	m, err := p.re.FindStringMatch(s)
	if err != nil {
		log.Warn(log.CatPolicy, "regex match exceeded time budget, treating as non-match", "pattern", p.Source)
		return false
	}
	return m != nil
}

// MatchesWhole reports whether the pattern matches s such that the match
// spans the entire string (used by the shell-metacharacter branch of the
// decision algorithm, spec §4.1 step 4e).
func (p CompiledPattern) MatchesWhole(s string) bool {
	s = truncate(s)
	if p.Fallback {
		return p.Source == s
	}

	m, err := p.re.FindStringMatch(s)
	if err != nil {
		log.Warn(log.CatPolicy, "regex match exceeded time budget, treating as non-match", "pattern", p.Source)
		return false
	}
	if m == nil {
		return false
	}
	return m.Index == 0 && m.Length == len(s)
}

// CompilePatterns compiles a slice of pattern sources, each independently
// falling back to literal matching on its own compile failure.
func CompilePatterns(sources []string) []CompiledPattern {
	out := make([]CompiledPattern, 0, len(sources))
	for _, s := range sources {
		out = append(out, CompilePattern(s))
	}
	return out
}
