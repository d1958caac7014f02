package model

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// LoadOpenAPI reads and validates an OpenAPI 3 document.
func LoadOpenAPI(ctx context.Context, path string) (*openapi3.T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ModelNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to read spec file '%s': %w", path, err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("spec file '%s' is empty", path)
	}
	return ParseOpenAPI(ctx, data)
}

// ParseOpenAPI parses and validates an OpenAPI 3 document held in memory.
func ParseOpenAPI(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI 3.x spec: %w", err)
	}
	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("OpenAPI 3.x validation failed: %w", err)
	}
	return doc, nil
}

// Operations returns the operation ids of doc, sorted.
func Operations(doc *openapi3.T) []string {
	var ids []string
	if doc == nil || doc.Paths == nil {
		return ids
	}
	for _, item := range doc.Paths.Map() {
		for _, op := range item.Operations() {
			if op.OperationID != "" {
				ids = append(ids, op.OperationID)
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// FromOpenAPI derives a model from one operation of an OpenAPI document.
// Every enum or boolean parameter becomes a factor, followed by the enum or
// boolean properties of a JSON request body. An empty operationID selects
// the only operation of a single-operation document.
func FromOpenAPI(doc *openapi3.T, operationID string) (*Model, error) {
	available := Operations(doc)
	if operationID == "" {
		if len(available) != 1 {
			return nil, &OperationNotFoundError{Available: available}
		}
		operationID = available[0]
	}

	item, op := findOperation(doc, operationID)
	if op == nil {
		return nil, &OperationNotFoundError{OperationID: operationID, Available: available}
	}

	m := &Model{Name: operationID, Description: op.Summary}
	used := make(map[string]struct{})
	add := func(name string, levels []any) {
		if _, dup := used[name]; dup {
			name = "body." + name
		}
		used[name] = struct{}{}
		m.Factors = append(m.Factors, FactorSpec{Name: name, Levels: levels})
	}

	params := append(openapi3.Parameters{}, item.Parameters...)
	params = append(params, op.Parameters...)
	for _, ref := range params {
		if ref == nil || ref.Value == nil || ref.Value.Schema == nil {
			continue
		}
		if levels := schemaLevels(ref.Value.Schema.Value); levels != nil {
			add(ref.Value.Name, levels)
		}
	}

	if op.RequestBody != nil && op.RequestBody.Value != nil {
		for mediaType, content := range op.RequestBody.Value.Content {
			if !strings.Contains(mediaType, "json") || content.Schema == nil || content.Schema.Value == nil {
				continue
			}
			props := content.Schema.Value.Properties
			names := make([]string, 0, len(props))
			for name := range props {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if props[name] == nil {
					continue
				}
				if levels := schemaLevels(props[name].Value); levels != nil {
					add(name, levels)
				}
			}
			break
		}
	}

	if len(m.Factors) == 0 {
		return nil, invalid("factors", "operation '%s' has no enum or boolean inputs", operationID)
	}
	if len(m.Factors) >= 2 {
		m.Strength = 2
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return m, nil
}

func findOperation(doc *openapi3.T, operationID string) (*openapi3.PathItem, *openapi3.Operation) {
	if doc == nil || doc.Paths == nil {
		return nil, nil
	}
	for _, item := range doc.Paths.Map() {
		for _, op := range item.Operations() {
			if op.OperationID == operationID {
				return item, op
			}
		}
	}
	return nil, nil
}

// schemaLevels returns the levels a schema admits, or nil when it is not a
// closed domain.
func schemaLevels(schema *openapi3.Schema) []any {
	if schema == nil {
		return nil
	}
	if len(schema.Enum) > 0 {
		levels := make([]any, len(schema.Enum))
		copy(levels, schema.Enum)
		return levels
	}
	if schema.Type != nil && schema.Type.Is("boolean") {
		return []any{true, false}
	}
	return nil
}
