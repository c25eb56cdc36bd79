// Package matchgraph implements the Match Graph Store: matcher
// configuration loading, idempotent MatchNode upsert, and bounded
// bipartite traversal over (Transaction, MatchNode) edges (spec §4.3).
package matchgraph

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/quave-io/frida-go/internal/domain"
)

// matcherEntry is the on-disk shape of one matcher's configuration.
type matcherEntry struct {
	Confidence int `yaml:"confidence"`
	Importance int `yaml:"importance"`
}

// rawConfig is the top-level YAML document shape: a map of matcher name to
// its (confidence, importance) pair.
type rawConfig struct {
	Matchers map[string]matcherEntry `yaml:"matchers"`
}

// StaticMatcherConfig resolves matcher name to MatcherConfig from a YAML
// file loaded once at startup, defaulting unknown matchers to
// domain.DefaultMatcherConfig. Implements domain.MatcherConfigProvider.
type StaticMatcherConfig struct {
	entries map[string]domain.MatcherConfig
}

// LoadMatcherConfig reads path, resolving any `!include <relative-path>`
// directive lines by recursively loading and deep-merging the included
// document underneath the including document, grounded on the original
// implementation's yaml_include merge algorithm (included values act as
// the base, the including file's own keys win on conflict).
func LoadMatcherConfig(path string) (*StaticMatcherConfig, error) {
	merged, err := loadIncludeMerged(path)
	if err != nil {
		return nil, fmt.Errorf("op=matchgraph.LoadMatcherConfig: %w", err)
	}

	var raw rawConfig
	if err := yaml.Unmarshal(merged, &raw); err != nil {
		return nil, fmt.Errorf("op=matchgraph.LoadMatcherConfig: %w: %w", domain.ErrConfig, err)
	}

	entries := make(map[string]domain.MatcherConfig, len(raw.Matchers))
	for name, e := range raw.Matchers {
		entries[name] = domain.MatcherConfig{Confidence: e.Confidence, Importance: e.Importance}
	}
	return &StaticMatcherConfig{entries: entries}, nil
}

// Resolve implements domain.MatcherConfigProvider.
func (c *StaticMatcherConfig) Resolve(matcher string) domain.MatcherConfig {
	if cfg, ok := c.entries[matcher]; ok {
		return cfg
	}
	return domain.DefaultMatcherConfig
}

// loadIncludeMerged reads path, separates `!include <path>` directive
// lines from the rest of the document, recursively resolves each include
// relative to path's directory, and deep-merges the includes (in listed
// order) underneath the document's own content, which always wins on key
// conflict.
func loadIncludeMerged(path string) ([]byte, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var includeLines []string
	var restLines []string
	for _, line := range strings.Split(string(contents), "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "!include") {
			includeLines = append(includeLines, line)
		} else {
			restLines = append(restLines, line)
		}
	}

	var rest map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(restLines, "\n")), &rest); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if rest == nil {
		rest = map[string]any{}
	}

	baseDir := filepath.Dir(path)
	merged := map[string]any{}
	for _, line := range includeLines {
		includePath := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "!include"))
		fullPath := filepath.Join(baseDir, includePath)

		includedRaw, err := loadIncludeMerged(fullPath)
		if err != nil {
			return nil, fmt.Errorf("processing include %q: %w", includePath, err)
		}
		var included map[string]any
		if err := yaml.Unmarshal(includedRaw, &included); err != nil {
			return nil, fmt.Errorf("parsing include %q: %w", includePath, err)
		}
		merged = mergeYAML(merged, included)
	}
	merged = mergeYAML(merged, rest)

	out, err := yaml.Marshal(merged)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// mergeYAML deep-merges override on top of base: override's scalar values
// replace base's, nested maps are merged recursively, and keys present
// only in base are preserved.
func mergeYAML(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}
	for k, overrideVal := range override {
		if baseVal, ok := result[k]; ok {
			baseMap, baseIsMap := baseVal.(map[string]any)
			overrideMap, overrideIsMap := overrideVal.(map[string]any)
			if baseIsMap && overrideIsMap {
				result[k] = mergeYAML(baseMap, overrideMap)
				continue
			}
		}
		result[k] = overrideVal
	}
	return result
}
