// Package devhost is a host for the sqlite-store commands that runs inside the
// current process. It owns real SQLite connections (go-sqlite3 through sqlx)
// and is used by tests and by cmd/storehost during development.
//
// Connections are keyed by database path. Each database gets a single
// connection so that pragmas set through set_pragma stay in effect.
package devhost

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/tomyedwab/sqlitestore/store/types"
)

// StoreFilename is the name of the default database created by load.
const StoreFilename = "store.sqlite"

// NotConnectedError is returned for commands on a path that was never opened
// or was already closed.
type NotConnectedError struct {
	Path string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("Not connected to %s", e.Path)
}

// Host implements bridge.Handler.
type Host struct {
	dataDir string
	conns   map[string]*sqlx.DB
	mu      sync.Mutex
	logger  *slog.Logger
}

type Option func(*Host)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// New creates a host whose default database lives in dataDir.
func New(dataDir string, options ...Option) *Host {
	h := &Host{
		dataDir: dataDir,
		conns:   make(map[string]*sqlx.DB),
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(h)
	}
	return h
}

// HandleInvoke runs one sqlite-store command.
func (h *Host) HandleInvoke(ctx context.Context, cmd string, args json.RawMessage) (any, error) {
	result, err := h.dispatch(ctx, cmd, args)
	if err != nil {
		h.logger.Debug("Command failed", "cmd", cmd, "error", err)
		return nil, err
	}
	return result, nil
}

func (h *Host) dispatch(ctx context.Context, cmd string, args json.RawMessage) (any, error) {
	switch cmd {
	case types.CommandLoad:
		var a types.LoadArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.load(ctx, a.Options)
	case types.CommandOpen:
		var a types.OpenArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.open(ctx, a.DBPath, a.Options)
	case types.CommandSetPragma:
		var a pragmaArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.setPragma(ctx, a)
	case types.CommandSelect:
		var a queryArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.selectRows(ctx, a)
	case types.CommandExecute:
		var a queryArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.execute(ctx, a)
	case types.CommandBatch:
		var a batchArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.batch(ctx, a)
	case types.CommandClose:
		var a types.CloseArgs
		if err := decodeArgs(args, &a); err != nil {
			return nil, err
		}
		return h.close(a.DBPath)
	default:
		return nil, fmt.Errorf("unknown command: %s", cmd)
	}
}

// Host-side payloads keep parameters raw so numbers can be bound as integers.

type pragmaArgs struct {
	DBPath string          `json:"dbPath"`
	Key    string          `json:"key"`
	Value  json.RawMessage `json:"value"`
}

type queryArgs struct {
	DBPath string            `json:"dbPath"`
	Query  string            `json:"query"`
	Params []json.RawMessage `json:"params"`
}

type batchArgs struct {
	DBPath  string              `json:"dbPath"`
	Queries [][]json.RawMessage `json:"queries"`
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		return fmt.Errorf("missing command arguments")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid command arguments: %w", err)
	}
	return nil
}

func (h *Host) load(ctx context.Context, options types.OpenOptions) (string, error) {
	if err := os.MkdirAll(h.dataDir, 0755); err != nil {
		return "", err
	}
	dbPath := filepath.Join(h.dataDir, StoreFilename)
	if _, err := h.open(ctx, dbPath, options); err != nil {
		return "", err
	}
	return dbPath, nil
}

func (h *Host) open(ctx context.Context, dbPath string, options types.OpenOptions) (bool, error) {
	db, err := sqlx.Open("sqlite3", dbPath)
	if err != nil {
		return false, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return false, err
	}
	if options.DisableForeignKeys {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = 0"); err != nil {
			h.logger.Warn("Failed to disable foreign keys", "path", dbPath, "error", err)
		}
	}

	h.mu.Lock()
	previous := h.conns[dbPath]
	h.conns[dbPath] = db
	h.mu.Unlock()

	if previous != nil {
		previous.Close()
	}
	h.logger.Info("Opened database", "path", dbPath)
	return true, nil
}

func (h *Host) conn(dbPath string) (*sqlx.DB, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	db, ok := h.conns[dbPath]
	if !ok {
		return nil, &NotConnectedError{Path: dbPath}
	}
	return db, nil
}

func (h *Host) setPragma(ctx context.Context, a pragmaArgs) (bool, error) {
	db, err := h.conn(a.DBPath)
	if err != nil {
		return false, err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA %s = %s", a.Key, string(a.Value))); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Host) selectRows(ctx context.Context, a queryArgs) ([]map[string]any, error) {
	db, err := h.conn(a.DBPath)
	if err != nil {
		return nil, err
	}
	params, err := sqlParams(a.Params)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryxContext(ctx, a.Query, params...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]map[string]any, 0)
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = jsonValue(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (h *Host) execute(ctx context.Context, a queryArgs) (bool, error) {
	db, err := h.conn(a.DBPath)
	if err != nil {
		return false, err
	}

	if len(a.Params) > 0 && isJSONArray(a.Params[0]) {
		// One parameter set per element, applied together.
		tx, err := db.BeginTxx(ctx, nil)
		if err != nil {
			return false, err
		}
		defer tx.Rollback()
		for i, raw := range a.Params {
			var set []json.RawMessage
			if err := json.Unmarshal(raw, &set); err != nil {
				return false, fmt.Errorf("parameter set %d: %w", i, err)
			}
			params, err := sqlParams(set)
			if err != nil {
				return false, err
			}
			if _, err := tx.ExecContext(ctx, a.Query, params...); err != nil {
				return false, err
			}
		}
		if err := tx.Commit(); err != nil {
			return false, err
		}
		return true, nil
	}

	params, err := sqlParams(a.Params)
	if err != nil {
		return false, err
	}
	if _, err := db.ExecContext(ctx, a.Query, params...); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Host) batch(ctx context.Context, a batchArgs) (bool, error) {
	db, err := h.conn(a.DBPath)
	if err != nil {
		return false, err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	for i, pair := range a.Queries {
		if len(pair) != 2 {
			return false, fmt.Errorf("batch query %d must be a [query, params] pair", i)
		}
		var query string
		if err := json.Unmarshal(pair[0], &query); err != nil {
			return false, fmt.Errorf("batch query %d: %w", i, err)
		}
		var set []json.RawMessage
		if err := json.Unmarshal(pair[1], &set); err != nil {
			return false, fmt.Errorf("batch query %d params: %w", i, err)
		}
		params, err := sqlParams(set)
		if err != nil {
			return false, err
		}
		if _, err := tx.ExecContext(ctx, query, params...); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (h *Host) close(dbPath string) (bool, error) {
	h.mu.Lock()
	db, ok := h.conns[dbPath]
	if ok {
		delete(h.conns, dbPath)
	}
	h.mu.Unlock()

	if !ok {
		return false, &NotConnectedError{Path: dbPath}
	}
	if err := db.Close(); err != nil {
		h.logger.Warn("Error closing database", "path", dbPath, "error", err)
	}
	h.logger.Info("Closed database", "path", dbPath)
	return true, nil
}

// Close closes every open database.
func (h *Host) Close() error {
	h.mu.Lock()
	conns := h.conns
	h.conns = make(map[string]*sqlx.DB)
	h.mu.Unlock()

	var errs []error
	for path, db := range conns {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
		}
	}
	return errors.Join(errs...)
}
