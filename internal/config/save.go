package config

import (
	"bytes"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// AddPluginPath appends dir to plugins.paths in the config file, keeping
// comments and formatting elsewhere in the file. Adding a path that is
// already listed is a no-op.
func AddPluginPath(configPath, dir string) error {
	data, err := os.ReadFile(configPath) //nolint:gosec // G304: user-provided config path
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("reading config: %w", err)
	}

	var doc yaml.Node
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("parsing config: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{{Kind: yaml.MappingNode}}}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("config root is not a mapping")
	}

	plugins := mappingChild(doc.Content[0], "plugins")
	paths := mappingChild(plugins, "paths")
	if paths.Kind != yaml.SequenceNode {
		paths.Kind = yaml.SequenceNode
		paths.Tag = "!!seq"
		paths.Value = ""
		paths.Content = nil
	}
	// An empty inline list ("paths: []") would keep flow style otherwise.
	paths.Style = 0

	existing := make([]string, 0, len(paths.Content))
	for _, n := range paths.Content {
		existing = append(existing, n.Value)
	}
	if slices.Contains(existing, dir) {
		return nil
	}
	paths.Content = append(paths.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: dir})

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// mappingChild returns the value node for key in mapping m, creating an
// empty mapping entry when the key is absent.
func mappingChild(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			child := m.Content[i+1]
			if child.Kind == yaml.ScalarNode && (child.Tag == "!!null" || child.Value == "") {
				child.Kind = yaml.MappingNode
				child.Tag = "!!map"
				child.Value = ""
			}
			return child
		}
	}
	child := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	m.Content = append(m.Content, &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key}, child)
	return child
}
