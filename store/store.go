// Package store is the typed client for SQLite databases owned by a host
// process.
//
// Every operation is a single command sent through a bridge.Invoker; the host
// parses and runs the SQL, keeps the connection and handles transactions. A
// Store only remembers the path of its database, so it can be shared between
// goroutines freely. Failures reported by the host are returned exactly as the
// invoker produced them.
//
//	db, err := store.Open(ctx, bridge.Local(host), "/path/to/the/db", types.OpenOptions{})
//	if err != nil {
//	    // handle error
//	}
//	rows, err := db.Select(ctx, "SELECT id, name FROM person WHERE age >= ?1", []any{18})
package store

import (
	"context"
	"log/slog"

	"github.com/tomyedwab/sqlitestore/bridge"
	"github.com/tomyedwab/sqlitestore/store/types"
	"github.com/tomyedwab/sqlitestore/tablegen"
)

// Row is a result row as sent by the host, keyed by column name.
type Row = map[string]any

// Store is a handle on one database of the host.
type Store struct {
	invoker bridge.Invoker
	path    string
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for open/close debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

func newStore(invoker bridge.Invoker, path string, options []Option) *Store {
	s := &Store{
		invoker: invoker,
		path:    path,
		logger:  slog.Default(),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Load asks the host to open its default database and returns a Store bound
// to the path the host chose.
func Load(ctx context.Context, invoker bridge.Invoker, opts types.OpenOptions, options ...Option) (*Store, error) {
	var path string
	if err := invoker.Invoke(ctx, types.CommandLoad, types.LoadArgs{Options: opts}, &path); err != nil {
		return nil, err
	}
	s := newStore(invoker, path, options)
	s.logger.Debug("Loaded default store", "path", path)
	return s, nil
}

// Open asks the host to open the database at path. A host answer of false is
// reported as an *Error of type ErrorTypeOpenFailed.
func Open(ctx context.Context, invoker bridge.Invoker, path string, opts types.OpenOptions, options ...Option) (*Store, error) {
	s := newStore(invoker, path, options)
	var success bool
	if err := invoker.Invoke(ctx, types.CommandOpen, types.OpenArgs{DBPath: path, Options: opts}, &success); err != nil {
		return nil, err
	}
	if !success {
		return nil, newOpenFailedError(path)
	}
	s.logger.Debug("Opened store", "path", path)
	return s, nil
}

// Path returns the host path of the database.
func (s *Store) Path() string {
	return s.path
}

// TableGenerator returns an empty generator for a table called name.
func (s *Store) TableGenerator(name string) *tablegen.TableGenerator {
	return tablegen.New(name)
}

func (s *Store) queryArgs(query string, params []any) types.QueryArgs {
	if params == nil {
		params = []any{}
	}
	return types.QueryArgs{DBPath: s.path, Query: query, Params: params}
}

func (s *Store) call(ctx context.Context, cmd string, args any) (bool, error) {
	var success bool
	if err := s.invoker.Invoke(ctx, cmd, args, &success); err != nil {
		return false, err
	}
	return success, nil
}

// Select runs a query and returns the rows as the host sent them.
func (s *Store) Select(ctx context.Context, query string, params []any) ([]Row, error) {
	var rows []Row
	if err := s.SelectInto(ctx, &rows, query, params); err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectInto runs a query and decodes the host's row array into dest, which
// must be a pointer to a slice.
func (s *Store) SelectInto(ctx context.Context, dest any, query string, params []any) error {
	return s.invoker.Invoke(ctx, types.CommandSelect, s.queryArgs(query, params), dest)
}

// SelectFirst runs a query and returns its first row.
func (s *Store) SelectFirst(ctx context.Context, query string, params []any) (Row, error) {
	return SelectFirstAs[Row](ctx, s, query, params)
}

// SelectAs runs a query and decodes each row into a T.
func SelectAs[T any](ctx context.Context, s *Store, query string, params []any) ([]T, error) {
	var rows []T
	if err := s.SelectInto(ctx, &rows, query, params); err != nil {
		return nil, err
	}
	return rows, nil
}

// SelectFirstAs runs a query and decodes its first row into a T. An empty
// result is reported as an *Error of type ErrorTypeNoResults.
func SelectFirstAs[T any](ctx context.Context, s *Store, query string, params []any) (T, error) {
	var zero T
	rows, err := SelectAs[T](ctx, s, query, params)
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, newNoResultsError(s.path)
	}
	return rows[0], nil
}

// Execute runs a statement that returns no rows.
func (s *Store) Execute(ctx context.Context, query string, params []any) (bool, error) {
	return s.call(ctx, types.CommandExecute, s.queryArgs(query, params))
}

// ExecuteMany runs one statement once per parameter set. The host applies all
// sets in a single transaction.
func (s *Store) ExecuteMany(ctx context.Context, query string, paramSets [][]any) (bool, error) {
	params := make([]any, len(paramSets))
	for i, set := range paramSets {
		if set == nil {
			set = []any{}
		}
		params[i] = set
	}
	return s.call(ctx, types.CommandExecute, s.queryArgs(query, params))
}

// Create renders data as a CREATE TABLE statement and executes it.
func (s *Store) Create(ctx context.Context, data tablegen.TableData) (bool, error) {
	query := tablegen.FromData(data).CreateTableQuery(false)
	return s.Execute(ctx, query, []any{})
}

// Batch runs queries in order; the host rolls all of them back if one fails.
func (s *Store) Batch(ctx context.Context, queries types.BatchQueries) (bool, error) {
	if queries == nil {
		queries = types.BatchQueries{}
	}
	return s.call(ctx, types.CommandBatch, types.BatchArgs{DBPath: s.path, Queries: queries})
}

// SetPragma sets a SQLite pragma on the connection.
func (s *Store) SetPragma(ctx context.Context, key string, value any) (bool, error) {
	return s.call(ctx, types.CommandSetPragma, types.SetPragmaArgs{DBPath: s.path, Key: key, Value: value})
}

// Close asks the host to close the database.
func (s *Store) Close(ctx context.Context) (bool, error) {
	success, err := s.call(ctx, types.CommandClose, types.CloseArgs{DBPath: s.path})
	if err == nil {
		s.logger.Debug("Closed store", "path", s.path)
	}
	return success, err
}
