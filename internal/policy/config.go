package policy

import (
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kestrelrun/genie/internal/log"
)

// autoApproveHeading is the single markdown heading a wish's Auto-Approve
// block is extracted from.
const autoApproveHeading = "## Auto-Approve"

var (
	wishBashLine  = regexp.MustCompile(`^-\s*bash:\s*"(.*)"\s*$`)
	wishAllowLine = regexp.MustCompile(`^-\s*allow:\s*(\S+)\s*$`)
	wishDenyLine  = regexp.MustCompile(`^-\s*deny:\s*(\S+)\s*$`)
)

// LoadFileConfig parses a FileConfig layer from path. A missing file
// returns a zero FileConfig with no error (an absent layer is not an
// error). A parse failure logs a warning and returns a zero FileConfig —
// per the ConfigParse error policy, a bad layer degrades to empty
// defaults, it never raises.
func LoadFileConfig(path string) FileConfig {
	data, err := os.ReadFile(path) //nolint:gosec // operator-controlled config path
	if os.IsNotExist(err) {
		return FileConfig{}
	}
	if err != nil {
		log.Warn(log.CatPolicy, "failed to read auto-approve config, using empty defaults", "path", path, "error", err.Error())
		return FileConfig{}
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.Warn(log.CatPolicy, "failed to parse auto-approve config, using empty defaults", "path", path, "error", err.Error())
		return FileConfig{}
	}
	return cfg
}

// SelectRepoOverride picks the repos-map entry whose key equals repoPath or
// is a "/"-bounded path-prefix of it, preferring the longest match.
func SelectRepoOverride(repos map[string]RepoOverride, repoPath string) (RepoOverride, bool) {
	var (
		best      RepoOverride
		bestLen   = -1
		found     bool
	)
	for prefix, override := range repos {
		if prefix == repoPath {
			return override, true
		}
		if strings.HasPrefix(repoPath, strings.TrimSuffix(prefix, "/")+"/") && len(prefix) > bestLen {
			best, bestLen, found = override, len(prefix), true
		}
	}
	return best, found
}

// ParseWishAutoApprove extracts the single "## Auto-Approve" block from a
// wish markdown document into a Defaults layer.
func ParseWishAutoApprove(markdown string) Defaults {
	lines := strings.Split(markdown, "\n")
	var d Defaults

	inBlock := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "## ") {
			inBlock = trimmed == autoApproveHeading
			continue
		}
		if !inBlock {
			continue
		}
		if m := wishBashLine.FindStringSubmatch(trimmed); m != nil {
			d.BashAllowPatterns = append(d.BashAllowPatterns, m[1])
			continue
		}
		if m := wishAllowLine.FindStringSubmatch(trimmed); m != nil {
			d.AllowList = append(d.AllowList, ToolName(m[1]))
			continue
		}
		if m := wishDenyLine.FindStringSubmatch(trimmed); m != nil {
			d.DenyList = append(d.DenyList, ToolName(m[1]))
			continue
		}
	}
	return d
}

// mergeLayer mutates acc by applying layer with either union ("inherit")
// or replace ("override") semantics, per spec §4.1.
func mergeLayer(acc *Defaults, layer Defaults, inherit bool) {
	if !inherit {
		acc.AllowList = append([]ToolName{}, layer.AllowList...)
		acc.DenyList = append([]ToolName{}, layer.DenyList...)
		acc.BashAllowPatterns = append([]string{}, layer.BashAllowPatterns...)
		acc.BashDenyPatterns = append([]string{}, layer.BashDenyPatterns...)
		return
	}
	acc.AllowList = unionTools(acc.AllowList, layer.AllowList)
	acc.DenyList = unionTools(acc.DenyList, layer.DenyList)
	acc.BashAllowPatterns = unionStrings(acc.BashAllowPatterns, layer.BashAllowPatterns)
	acc.BashDenyPatterns = unionStrings(acc.BashDenyPatterns, layer.BashDenyPatterns)
}

func unionTools(a, b []ToolName) []ToolName {
	seen := make(map[ToolName]bool, len(a)+len(b))
	out := make([]ToolName, 0, len(a)+len(b))
	for _, t := range a {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	for _, t := range b {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	return out
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, s := range a {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range b {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// LoadLayeredOptions identifies every input to the layered config load.
type LoadLayeredOptions struct {
	GlobalConfigPath string
	RepoConfigPath   string
	RepoPath         string
	WishMarkdown     string // empty if no wish context
}

// LoadLayered implements the full four-layer load order from spec §4.1:
// global defaults, repo override (longest-prefix match from the global
// file's repos map), repo-local file (override unless it declares
// "inherit: global"), and a wish-level Auto-Approve block (always
// inherits). It compiles the resulting bash patterns and never returns an
// error: a malformed layer degrades to empty defaults per the ConfigParse
// policy.
func LoadLayered(opts LoadLayeredOptions) *AutoApproveConfig {
	acc := Defaults{}

	global := LoadFileConfig(opts.GlobalConfigPath)
	mergeLayer(&acc, global.Defaults, true)

	if override, ok := SelectRepoOverride(global.Repos, opts.RepoPath); ok {
		mergeLayer(&acc, override.Defaults, override.Inherit == "global")
	}

	if _, err := os.Stat(opts.RepoConfigPath); err == nil {
		repoLocal := LoadFileConfig(opts.RepoConfigPath)
		mergeLayer(&acc, repoLocal.Defaults, repoLocal.Inherit == "global")
	}

	if opts.WishMarkdown != "" {
		mergeLayer(&acc, ParseWishAutoApprove(opts.WishMarkdown), true)
	}

	return compile(acc)
}

func compile(acc Defaults) *AutoApproveConfig {
	allow := make(map[ToolName]bool, len(acc.AllowList))
	for _, t := range acc.AllowList {
		allow[t] = true
	}
	deny := make(map[ToolName]bool, len(acc.DenyList))
	for _, t := range acc.DenyList {
		deny[t] = true
	}
	acc.Allow = allow
	acc.Deny = deny

	return &AutoApproveConfig{
		Defaults:          acc,
		CompiledBashAllow: CompilePatterns(acc.BashAllowPatterns),
		CompiledBashDeny:  CompilePatterns(acc.BashDenyPatterns),
	}
}
