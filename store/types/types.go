package types

import (
	"encoding/json"
	"fmt"
)

// --- Command names understood by the host ---

const PluginPrefix = "plugin:sqlite-store|"

const (
	CommandLoad      = PluginPrefix + "load"
	CommandOpen      = PluginPrefix + "open"
	CommandSetPragma = PluginPrefix + "set_pragma"
	CommandSelect    = PluginPrefix + "select"
	CommandExecute   = PluginPrefix + "execute"
	CommandBatch     = PluginPrefix + "batch"
	CommandClose     = PluginPrefix + "close"
)

// OpenOptions are applied by the host when it opens a database.
type OpenOptions struct {
	// DisableForeignKeys turns foreign key validation off for the connection.
	DisableForeignKeys bool `json:"disable_foreign_keys,omitempty"`
}

// --- Command payloads ---

type LoadArgs struct {
	Options OpenOptions `json:"options"`
}

type OpenArgs struct {
	DBPath  string      `json:"dbPath"`
	Options OpenOptions `json:"options"`
}

type SetPragmaArgs struct {
	DBPath string `json:"dbPath"`
	Key    string `json:"key"`
	Value  any    `json:"value"`
}

// QueryArgs is the payload of both select and execute.
type QueryArgs struct {
	DBPath string `json:"dbPath"`
	Query  string `json:"query"`
	Params []any  `json:"params"`
}

type BatchArgs struct {
	DBPath  string       `json:"dbPath"`
	Queries BatchQueries `json:"queries"`
}

type CloseArgs struct {
	DBPath string `json:"dbPath"`
}

// BatchQuery is one statement of a batch. On the wire it is the pair
// [query, params].
type BatchQuery struct {
	Query  string
	Params []any
}

// BatchQueries run in order as a single all-or-nothing unit on the host.
type BatchQueries []BatchQuery

func (q BatchQuery) MarshalJSON() ([]byte, error) {
	params := q.Params
	if params == nil {
		params = []any{}
	}
	return json.Marshal([]any{q.Query, params})
}

func (q *BatchQuery) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("batch query must be a [query, params] pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("batch query must be a [query, params] pair, got %d elements", len(pair))
	}
	var query string
	if err := json.Unmarshal(pair[0], &query); err != nil {
		return fmt.Errorf("batch query text: %w", err)
	}
	var params []any
	if err := json.Unmarshal(pair[1], &params); err != nil {
		return fmt.Errorf("batch query params: %w", err)
	}
	q.Query = query
	q.Params = params
	return nil
}
