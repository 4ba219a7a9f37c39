package tools

import (
	"context"
	"encoding/json"
)

// Tool is the interface for all builtin tools
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON schema of the tool's argument object.
	Parameters() json.RawMessage
	// Run executes the tool with a JSON-encoded argument object and
	// returns a display-ready string. Remote failures are reported in
	// the returned string, not as an error; a non-nil error means the
	// tool could not run at all.
	Run(ctx context.Context, args string) (string, error)
}
