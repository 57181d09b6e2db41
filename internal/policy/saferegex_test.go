package policy

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestCompilePatternFallsBackOnInvalidRegex(t *testing.T) {
	p := CompilePattern("(unterminated")
	assert.True(t, p.Fallback)
	assert.True(t, p.Matches("x (unterminated y"))
	assert.False(t, p.Matches("no match here"))
}

func TestMatchesWholeRequiresFullSpan(t *testing.T) {
	p := CompilePattern(`^git status$`)
	assert.True(t, p.MatchesWhole("git status"))
	assert.False(t, p.MatchesWhole("git status --short"))
}

func TestSafeRegexTestBoundedByOneSecond(t *testing.T) {
	// Property 6: safeRegexTest returns within 1s for any pattern/input,
	// including pathological backtracking patterns and long inputs.
	rapid.Check(t, func(rt *rapid.T) {
		pattern := rapid.SampledFrom([]string{
			`(a+)+$`,
			`(a|a)*b`,
			`^.*.*.*.*.*$`,
			`simple`,
		}).Draw(rt, "pattern")
		input := strings.Repeat(rapid.SampledFrom([]string{"a", "b", "x"}).Draw(rt, "char"), rapid.IntRange(0, 20000).Draw(rt, "len"))

		p := CompilePattern(pattern)
		done := make(chan struct{})
		go func() {
			p.Matches(input)
			close(done)
		}()

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			rt.Fatalf("safeRegexTest exceeded 1s budget for pattern %q", pattern)
		}
	})
}
