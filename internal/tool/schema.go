package tool

import (
	"encoding/json"
	"fmt"
	"math"

	"toolbridge/internal/domain"
)

// validateArgs checks args against a tool's declared schema. Required
// arguments must be present; present declared arguments must match their
// type. Arguments the schema does not declare are ignored.
func validateArgs(args map[string]any, schema domain.InputSchema) *domain.ToolError {
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			return domain.Errf(domain.ErrInvalidArguments, "missing required argument: %s", field)
		}
	}
	for key, value := range args {
		prop, ok := schema.Properties[key]
		if !ok {
			continue
		}
		if err := checkType(value, prop.Type); err != nil {
			return domain.Errf(domain.ErrInvalidArguments, "argument %s: %v", key, err)
		}
	}
	return nil
}

func checkType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "integer":
		if !isInteger(value) {
			return fmt.Errorf("expected integer, got %v", value)
		}
	case "number":
		if !isNumber(value) {
			return fmt.Errorf("expected number, got %v", value)
		}
	}
	return nil
}

// isNumber accepts any JSON numeric representation. Decoded JSON arrives as
// float64, but native ints and json.Number are handled for direct callers.
func isNumber(v any) bool {
	switch v.(type) {
	case float64, float32,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		return true
	}
	return false
}

// isInteger accepts integral values only. A float64 counts when it has no
// fractional part, since JSON decoding turns every number into float64.
func isInteger(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return true
	case float64:
		return n == math.Trunc(n)
	case float32:
		return float64(n) == math.Trunc(float64(n))
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

// ArgsString returns the string value for key; non-string values are
// JSON-encoded. Absent keys yield "".
func ArgsString(args map[string]any, key string) string {
	if args == nil {
		return ""
	}
	v, ok := args[key]
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}

// ArgsStringDefault returns def when key is absent or empty.
func ArgsStringDefault(args map[string]any, key, def string) string {
	if v := ArgsString(args, key); v != "" {
		return v
	}
	return def
}

// ArgsInt returns the integer value for key, or def when the key is absent
// or not numeric.
func ArgsInt(args map[string]any, key string, def int) int {
	if args == nil {
		return def
	}
	switch n := args[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case int64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}
