package plotforge

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PipelineConfig is the read-only configuration collaborator: a nested
// key-value structure loaded from YAML, consumed by callers for output
// paths and enabled-feature flags. The engine itself never mutates it.
type PipelineConfig struct {
	root map[string]any
}

// LoadPipelineConfig reads a YAML pipeline configuration file.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrPipelineConfigRead, path, err)
	}
	return ParsePipelineConfig(raw)
}

// ParsePipelineConfig parses YAML pipeline configuration bytes.
func ParsePipelineConfig(raw []byte) (*PipelineConfig, error) {
	root := make(map[string]any)
	if err := yaml.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPipelineConfigRead, err)
	}
	return &PipelineConfig{root: root}, nil
}

// Lookup resolves a dotted path ("output.base_dir") through the nested
// structure.
func (c *PipelineConfig) Lookup(path string) (any, bool) {
	var current any = c.root
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = node[key]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// String returns the string at a dotted path, or def when absent or not a
// string.
func (c *PipelineConfig) String(path, def string) string {
	v, ok := c.Lookup(path)
	if !ok {
		return def
	}
	s, ok := v.(string)
	if !ok {
		return def
	}
	return s
}

// Bool returns the boolean at a dotted path, or def when absent or not a
// boolean. Used for enabled-feature flags.
func (c *PipelineConfig) Bool(path string, def bool) bool {
	v, ok := c.Lookup(path)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}
