package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// marshalAttributes converts entity attributes to canonical JSON TEXT.
func marshalAttributes(attrs map[string]string) (string, error) {
	obj := make(map[string]any, len(attrs))
	for k, v := range attrs {
		obj[k] = v
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal attributes: %w", err)
	}
	return string(data), nil
}

func unmarshalAttributes(data string) (map[string]string, error) {
	if data == "" || data == "{}" {
		return nil, nil
	}
	var attrs map[string]string
	if err := json.Unmarshal([]byte(data), &attrs); err != nil {
		return nil, fmt.Errorf("unmarshal attributes: %w", err)
	}
	return attrs, nil
}

// marshalProperties converts a property list to canonical JSON TEXT.
func marshalProperties(props []string) (string, error) {
	arr := make([]any, len(props))
	for i, p := range props {
		arr[i] = p
	}
	data, err := ir.MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("marshal properties: %w", err)
	}
	return string(data), nil
}

func unmarshalProperties(data string) ([]string, error) {
	if data == "" || data == "[]" {
		return nil, nil
	}
	var props []string
	if err := json.Unmarshal([]byte(data), &props); err != nil {
		return nil, fmt.Errorf("unmarshal properties: %w", err)
	}
	return props, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
