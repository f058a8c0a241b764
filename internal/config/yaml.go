package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"amsprobe/internal/errors"
)

// DefaultSection is merged underneath every other top-level section.
const DefaultSection = "DEFAULT"

// StringList accepts either a YAML sequence or a comma separated scalar.
type StringList []string

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.ScalarNode:
		var out []string
		for _, s := range strings.Split(n.Value, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		*l = out
		return nil
	case yaml.SequenceNode:
		var out []string
		if err := n.Decode(&out); err != nil {
			return err
		}
		*l = out
		return nil
	}
	return fmt.Errorf("line %d: expected a list", n.Line)
}

// readSections parses a YAML file whose top level maps section names to
// bodies, returning the names in file order and each body merged over the
// DEFAULT section.
func readSections(path string) ([]string, map[string]*yaml.Node, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.ConfigInvalidf("cannot read %s: %v", path, err)
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, nil, errors.ConfigInvalidf("%s: %v", path, err)
	}
	if len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, nil, errors.ConfigInvalidf("%s: top level must be a mapping", path)
	}
	root := doc.Content[0]

	var def *yaml.Node
	var names []string
	sections := make(map[string]*yaml.Node)
	for i := 0; i+1 < len(root.Content); i += 2 {
		k, v := root.Content[i].Value, root.Content[i+1]
		if k == DefaultSection {
			def = v
			continue
		}
		if _, dup := sections[k]; dup {
			return nil, nil, errors.ConfigInvalidf("%s: duplicate section %q", path, k)
		}
		names = append(names, k)
		sections[k] = v
	}
	if def != nil {
		for k, v := range sections {
			sections[k] = mergeNode(def, v)
		}
	}
	return names, sections, nil
}

// mergeNode overlays over on base. Mappings merge key by key; anything else
// in over replaces base.
func mergeNode(base, over *yaml.Node) *yaml.Node {
	if base.Kind != yaml.MappingNode || over.Kind != yaml.MappingNode {
		return over
	}
	out := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Line: over.Line, Column: over.Column}
	index := make(map[string]int)
	for i := 0; i+1 < len(base.Content); i += 2 {
		out.Content = append(out.Content, base.Content[i], base.Content[i+1])
		index[base.Content[i].Value] = len(out.Content) - 1
	}
	for i := 0; i+1 < len(over.Content); i += 2 {
		k, v := over.Content[i], over.Content[i+1]
		if j, ok := index[k.Value]; ok {
			out.Content[j] = mergeNode(out.Content[j], v)
			continue
		}
		out.Content = append(out.Content, k, v)
		index[k.Value] = len(out.Content) - 1
	}
	return out
}

// ExpandPath substitutes ${VAR} references and makes the path absolute.
func ExpandPath(p string) string {
	p = os.ExpandEnv(strings.TrimSpace(p))
	if p == "" {
		return ""
	}
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func expandPaths(ps []string) []string {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		if p = ExpandPath(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
