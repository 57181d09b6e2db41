package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/kestrelrun/genie/internal/policy"
)

// SaveRepoOverride writes (or replaces) a single entry under the "repos"
// map of the global auto-approve.yaml at configPath, preserving comments
// and formatting elsewhere in the file. Adapted from the teacher's
// SaveViews, which performs the same targeted yaml.Node surgery to edit
// one key of a kanban board config without a destructive full-file
// re-marshal of the operator's hand-edited comments.
func SaveRepoOverride(configPath, repoPath string, override policy.RepoOverride) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // operator-controlled config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}

	overrideNode, err := buildOverrideNode(override)
	if err != nil {
		return fmt.Errorf("building repo override node: %w", err)
	}

	if doc.Kind == 0 {
		doc = yaml.Node{
			Kind: yaml.DocumentNode,
			Content: []*yaml.Node{
				{
					Kind: yaml.MappingNode,
					Content: []*yaml.Node{
						{Kind: yaml.ScalarNode, Value: "repos"},
						{Kind: yaml.MappingNode, Content: []*yaml.Node{
							{Kind: yaml.ScalarNode, Value: repoPath},
							overrideNode,
						}},
					},
				},
			},
		}
	} else if doc.Kind == yaml.DocumentNode && len(doc.Content) > 0 {
		root := doc.Content[0]
		reposNode := findOrCreateMappingKey(root, "repos")
		setMappingKey(reposNode, repoPath, overrideNode)
	}

	return writeYAMLAtomic(configPath, &doc)
}

// findOrCreateMappingKey returns the value node for key within root,
// creating an empty mapping under that key if absent.
func findOrCreateMappingKey(root *yaml.Node, key string) *yaml.Node {
	if root.Kind != yaml.MappingNode {
		return &yaml.Node{Kind: yaml.MappingNode}
	}
	for i := 0; i < len(root.Content)-1; i += 2 {
		if root.Content[i].Value == key {
			return root.Content[i+1]
		}
	}
	valueNode := &yaml.Node{Kind: yaml.MappingNode}
	root.Content = append(root.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		valueNode,
	)
	return valueNode
}

// setMappingKey replaces or appends key: value within a MappingNode.
func setMappingKey(mapping *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i < len(mapping.Content)-1; i += 2 {
		if mapping.Content[i].Value == key {
			mapping.Content[i+1] = value
			return
		}
	}
	mapping.Content = append(mapping.Content,
		&yaml.Node{Kind: yaml.ScalarNode, Value: key},
		value,
	)
}

// buildOverrideNode renders a policy.RepoOverride as a yaml.Node by round
// tripping it through the yaml encoder — simpler and less error-prone
// than hand-building every scalar/sequence node for a struct with this
// many optional fields.
func buildOverrideNode(override policy.RepoOverride) (*yaml.Node, error) {
	data, err := yaml.Marshal(override)
	if err != nil {
		return nil, err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		return node.Content[0], nil
	}
	return &node, nil
}

func writeYAMLAtomic(path string, doc *yaml.Node) error {
	var buf bytes.Buffer
	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(doc); err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	_ = encoder.Close()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".genie-config.tmp.*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
