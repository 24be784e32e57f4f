package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"time"

	kuraErrors "github.com/harunnryd/kura/internal/errors"
)

// toJSONModel converts any serializable Go value into the JSON model used
// internally: map[string]any, []any, string, bool, nil, int64 or float64.
func toJSONModel(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, kuraErrors.Deserialize(err)
	}
	return decodeJSON(data)
}

func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, kuraErrors.Deserialize(err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, kuraErrors.Deserialize(fmt.Errorf("trailing data after JSON value"))
	}
	return normalize(out), nil
}

// parseEnvValue reads an environment value as JSON, falling back to the raw
// string when it is not a single valid JSON document.
func parseEnvValue(raw string) any {
	v, err := decodeJSON([]byte(raw))
	if err != nil {
		return raw
	}
	return v
}

// ParseValue applies the environment parsing rule to a value typed by a user,
// so "8080" becomes a number and "hello" stays a string.
func ParseValue(raw string) any {
	return parseEnvValue(raw)
}

// normalize folds YAML and JSON decoder output into the JSON model.
func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	case int:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return float64(t)
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []byte:
		return string(t)
	default:
		return v
	}
}

// decode converts a JSON-model value into T.
func decode[T any](key string, v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, kuraErrors.Deserialize(fmt.Errorf("%s: %w", key, err))
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, kuraErrors.Deserialize(fmt.Errorf("%s: %w", key, err))
	}
	return out, nil
}
