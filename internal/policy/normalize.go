package policy

import "strings"

// shellMetacharacters is the set whose presence in a normalized command
// forces the "whole-match" branch of the decision algorithm (spec §4.1
// step 4e).
var shellMetacharacters = []string{"&&", "||", ";", "|", "`", "$("}

// NormalizeCommand implements spec §4.1.1: trim, collapse internal
// whitespace runs to single spaces, and strip an absolute-path prefix from
// the first token only (so "/usr/bin/rm -rf ./tmp" normalizes to
// "rm -rf ./tmp" but a later absolute path argument is untouched).
func NormalizeCommand(cmd string) string {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return ""
	}

	fields := strings.FieldsFunc(cmd, func(r rune) bool { return r == ' ' || r == '\t' })
	if len(fields) == 0 {
		return ""
	}

	if strings.HasPrefix(fields[0], "/") {
		if idx := strings.LastIndex(fields[0], "/"); idx >= 0 {
			fields[0] = fields[0][idx+1:]
		}
	}

	return strings.Join(fields, " ")
}

// ContainsShellMetacharacter reports whether normalized contains any
// metacharacter from the set that forces whole-string-match semantics.
func ContainsShellMetacharacter(normalized string) bool {
	for _, m := range shellMetacharacters {
		if strings.Contains(normalized, m) {
			return true
		}
	}
	return false
}
