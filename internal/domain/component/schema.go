package component

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/Strob0t/agentgraph/internal/domain"
)

// previewFlag marks a property as part of the artifact preview.
const previewFlag = "inPreview"

// ValidateProps checks that props is a resolvable JSON Schema document of
// type object. Empty props are accepted.
func ValidateProps(props json.RawMessage) error {
	if isEmpty(props) {
		return nil
	}
	s, err := parseSchema(props)
	if err != nil {
		return err
	}
	if s.Type != "" && s.Type != "object" {
		return fmt.Errorf("%w: props schema must be of type object, got %q", domain.ErrValidation, s.Type)
	}
	if _, err := s.Resolve(nil); err != nil {
		return fmt.Errorf("%w: props schema: %v", domain.ErrValidation, err)
	}
	return nil
}

// Resolve compiles props for validating instances.
func Resolve(props json.RawMessage) (*jsonschema.Resolved, error) {
	s, err := parseSchema(props)
	if err != nil {
		return nil, err
	}
	r, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("%w: props schema: %v", domain.ErrValidation, err)
	}
	return r, nil
}

// SplitProps returns the preview schema (only properties flagged inPreview)
// and the full schema. The flag itself is stripped from both.
func (a *ArtifactComponent) SplitProps() (preview, full json.RawMessage, err error) {
	if isEmpty(a.Props) {
		return nil, nil, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(a.Props, &doc); err != nil {
		return nil, nil, fmt.Errorf("%w: artifact props: %v", domain.ErrValidation, err)
	}
	props, _ := doc["properties"].(map[string]any)

	fullProps := make(map[string]any, len(props))
	previewProps := make(map[string]any)
	for name, raw := range props {
		p, ok := raw.(map[string]any)
		if !ok {
			fullProps[name] = raw
			continue
		}
		inPreview, _ := p[previewFlag].(bool)
		clean := make(map[string]any, len(p))
		for k, v := range p {
			if k != previewFlag {
				clean[k] = v
			}
		}
		fullProps[name] = clean
		if inPreview {
			previewProps[name] = clean
		}
	}

	fullDoc := cloneWith(doc, fullProps, doc["required"])
	previewDoc := cloneWith(doc, previewProps, filterRequired(doc["required"], previewProps))

	if full, err = json.Marshal(fullDoc); err != nil {
		return nil, nil, err
	}
	if preview, err = json.Marshal(previewDoc); err != nil {
		return nil, nil, err
	}
	return preview, full, nil
}

func parseSchema(props json.RawMessage) (*jsonschema.Schema, error) {
	var s jsonschema.Schema
	if err := json.Unmarshal(props, &s); err != nil {
		return nil, fmt.Errorf("%w: props is not a JSON Schema document: %v", domain.ErrValidation, err)
	}
	return &s, nil
}

func cloneWith(doc map[string]any, props map[string]any, required any) map[string]any {
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	out["properties"] = props
	if required == nil {
		delete(out, "required")
	} else {
		out["required"] = required
	}
	return out
}

func filterRequired(required any, keep map[string]any) any {
	list, ok := required.([]any)
	if !ok {
		return nil
	}
	var out []any
	for _, r := range list {
		if name, ok := r.(string); ok {
			if _, present := keep[name]; present {
				out = append(out, name)
			}
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isEmpty(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
