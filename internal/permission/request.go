package permission

import (
	"encoding/json"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Request is a tool invocation awaiting an authorization decision.
type Request interface {
	ToolName() string
	// ToolArguments must be JSON-serializable.
	ToolArguments() any
}

// Describer is implemented by requests that can echo themselves for humans.
// The text is stored as readable_context on recorded decisions.
type Describer interface {
	Readable() string
}

// ToolCall is the plain Request implementation. ID identifies the invocation
// and is not part of the lookup key.
type ToolCall struct {
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// NewToolCall builds a ToolCall with a fresh ID, marshalling args to JSON.
func NewToolCall(name string, args any) (ToolCall, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return ToolCall{}, fmt.Errorf("marshal arguments for %s: %w", name, err)
	}
	return ToolCall{ID: ulid.Make().String(), Name: name, Arguments: raw}, nil
}

func (c ToolCall) ToolName() string { return c.Name }

func (c ToolCall) ToolArguments() any {
	if len(c.Arguments) == 0 {
		return nil
	}
	return c.Arguments
}

func (c ToolCall) Readable() string {
	args := "{}"
	if canonical, err := canonicalJSON(c.ToolArguments()); err == nil && string(canonical) != "null" {
		args = string(canonical)
	}
	return fmt.Sprintf("Tool: %s, Args: %s", c.Name, args)
}

var (
	_ Request   = ToolCall{}
	_ Describer = ToolCall{}
)
