package main

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/Strob0t/agentgraph/internal/domain/project"
)

// decodeProject parses a project definition from YAML or JSON. The document
// is normalized through JSON so the definition's json tags apply to both.
func decodeProject(data []byte) (*project.FullProjectDefinition, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse definition: %w", err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, fmt.Errorf("parse definition: expected a mapping at the top level")
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize definition: %w", err)
	}
	var def project.FullProjectDefinition
	if err := json.Unmarshal(raw, &def); err != nil {
		return nil, fmt.Errorf("decode definition: %w", err)
	}
	return &def, nil
}

// encodeProject renders def as indented JSON or as YAML.
func encodeProject(def *project.FullProjectDefinition, format string) ([]byte, error) {
	raw, err := json.MarshalIndent(def, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode definition: %w", err)
	}
	switch format {
	case "json":
		return append(raw, '\n'), nil
	case "yaml":
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, fmt.Errorf("encode definition: %w", err)
		}
		out, err := yaml.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode definition: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown format %q (want json or yaml)", format)
	}
}
