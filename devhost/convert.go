package devhost

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// sqlParams converts JSON parameters to values go-sqlite3 can bind.
func sqlParams(raw []json.RawMessage) ([]any, error) {
	params := make([]any, len(raw))
	for i, r := range raw {
		v, err := sqlValue(r)
		if err != nil {
			return nil, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		params[i] = v
	}
	return params, nil
}

// sqlValue maps one JSON value to SQLite: booleans become 0/1, integral
// numbers INTEGER, other numbers REAL, arrays and objects their JSON text.
func sqlValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	switch val := v.(type) {
	case nil:
		return nil, nil
	case bool:
		if val {
			return int64(1), nil
		}
		return int64(0), nil
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i, nil
		}
		f, err := val.Float64()
		if err != nil {
			return nil, err
		}
		return f, nil
	case string:
		return val, nil
	default:
		var compact bytes.Buffer
		if err := json.Compact(&compact, raw); err != nil {
			return nil, err
		}
		return compact.String(), nil
	}
}

func isJSONArray(raw json.RawMessage) bool {
	return bytes.HasPrefix(bytes.TrimSpace(raw), []byte("["))
}

// jsonValue prepares a scanned column value for the JSON response. The driver
// returns []byte only for BLOB storage, which is sent as a list of byte values
// whatever the declared column type. DATE, DATETIME and TIMESTAMP columns are
// parsed by the driver and come back as RFC 3339 text.
func jsonValue(v any) any {
	switch val := v.(type) {
	case []byte:
		blob := make([]int, len(val))
		for i, b := range val {
			blob[i] = int(b)
		}
		return blob
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}
