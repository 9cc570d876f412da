package types

import "encoding/json"

// --- JSON envelope exchanged with the host ---

// Request is one named command invocation.
type Request struct {
	ID   string          `json:"id"`
	Cmd  string          `json:"cmd"`
	Args json.RawMessage `json:"args,omitempty"`
}

// Response answers the Request with the same ID. Error is set when the host
// reports a failure, Data otherwise.
type Response struct {
	ID    string          `json:"id"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}
