package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{"8080", int64(8080)},
		{"1.5", 1.5},
		{"true", true},
		{"null", nil},
		{`"quoted"`, "quoted"},
		{`["a",1]`, []any{"a", int64(1)}},
		{`{"host":"x"}`, map[string]any{"host": "x"}},
		{"hello", "hello"},
		{"", ""},
		{"1 2", "1 2"},
		{`{"a":1} trailing`, `{"a":1} trailing`},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseValue(tt.raw))
		})
	}
}

func TestNormalizeYAMLShapes(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	in := map[string]any{
		"nested": map[any]any{1: "one", "b": []any{int(2), float32(0.5)}},
		"when":   ts,
		"big":    uint64(1 << 63),
	}

	out := normalize(in).(map[string]any)
	nested := out["nested"].(map[string]any)
	assert.Equal(t, "one", nested["1"])
	assert.Equal(t, []any{int64(2), float64(0.5)}, nested["b"])
	assert.Equal(t, "2024-01-02T03:04:05Z", out["when"])
	assert.IsType(t, float64(0), out["big"])
}
