package permission

import "time"

// CurrentVersion is the schema version written by this package.
const CurrentVersion = 1

// Record is one authorization decision. Records under a lookup key form an
// append-only history; the newest unexpired one is authoritative.
type Record struct {
	ToolName        string `json:"tool_name"`
	Allowed         bool   `json:"allowed"`
	ContextHash     string `json:"context_hash"`
	ReadableContext string `json:"readable_context,omitempty"`
	// Unix seconds.
	Timestamp int64 `json:"timestamp"`
	// Unix seconds; nil never expires. Valid while now < Expiry.
	Expiry *int64 `json:"expiry"`
}

// Valid reports whether the record is still in force at now.
func (r Record) Valid(now time.Time) bool {
	return r.Expiry == nil || *r.Expiry > now.Unix()
}

// document is the on-disk shape of tool_permissions.json.
type document struct {
	Permissions map[string][]Record `json:"permissions"`
	Version     int                 `json:"version"`
}
