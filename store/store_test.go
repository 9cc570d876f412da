package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tomyedwab/sqlitestore/bridge"
	"github.com/tomyedwab/sqlitestore/store/types"
	"github.com/tomyedwab/sqlitestore/tablegen"
)

// mockCall is a recorded command with its arguments as sent on the wire.
type mockCall struct {
	Cmd  string
	Args map[string]any
}

type mockReply struct {
	data string
	err  error
}

// mockInvoker records every command and answers with canned JSON.
type mockInvoker struct {
	mu      sync.Mutex
	replies map[string]mockReply
	calls   []mockCall
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{replies: make(map[string]mockReply)}
}

func (m *mockInvoker) reply(cmd, data string) {
	m.replies[cmd] = mockReply{data: data}
}

func (m *mockInvoker) fail(cmd string, err error) {
	m.replies[cmd] = mockReply{err: err}
}

func (m *mockInvoker) Invoke(ctx context.Context, cmd string, args any, result any) error {
	raw, err := json.Marshal(args)
	if err != nil {
		return err
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return err
	}

	m.mu.Lock()
	m.calls = append(m.calls, mockCall{Cmd: cmd, Args: decoded})
	reply, ok := m.replies[cmd]
	m.mu.Unlock()

	if !ok {
		reply = mockReply{data: "true"}
	}
	if reply.err != nil {
		return reply.err
	}
	if result == nil {
		return nil
	}
	return json.Unmarshal([]byte(reply.data), result)
}

func (m *mockInvoker) history() []mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockCall(nil), m.calls...)
}

func openMock(t *testing.T, m *mockInvoker) *Store {
	t.Helper()
	s, err := Open(context.Background(), m, "/data/test.db", types.OpenOptions{})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	return s
}

func TestLoad(t *testing.T) {
	m := newMockInvoker()
	m.reply(types.CommandLoad, `"/home/me/.local/share/app/store.sqlite"`)

	s, err := Load(context.Background(), m, types.OpenOptions{DisableForeignKeys: true})
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Path() != "/home/me/.local/share/app/store.sqlite" {
		t.Errorf("unexpected path %q", s.Path())
	}

	want := []mockCall{{
		Cmd:  "plugin:sqlite-store|load",
		Args: map[string]any{"options": map[string]any{"disable_foreign_keys": true}},
	}}
	if diff := cmp.Diff(want, m.history()); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestLoadDefaultOptions(t *testing.T) {
	m := newMockInvoker()
	m.reply(types.CommandLoad, `"store.sqlite"`)
	if _, err := Load(context.Background(), m, types.OpenOptions{}); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	want := map[string]any{"options": map[string]any{}}
	if diff := cmp.Diff(want, m.history()[0].Args); diff != "" {
		t.Errorf("unexpected args (-want +got):\n%s", diff)
	}
}

func TestLoadPropagatesHostError(t *testing.T) {
	m := newMockInvoker()
	hostErr := &bridge.HostError{Command: types.CommandLoad, Message: "Permission denied (os error 13)"}
	m.fail(types.CommandLoad, hostErr)

	_, err := Load(context.Background(), m, types.OpenOptions{})
	if err != hostErr {
		t.Fatalf("expected the host error untouched, got %v", err)
	}
}

func TestOpen(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	if s.Path() != "/data/test.db" {
		t.Errorf("unexpected path %q", s.Path())
	}
	want := []mockCall{{
		Cmd:  "plugin:sqlite-store|open",
		Args: map[string]any{"dbPath": "/data/test.db", "options": map[string]any{}},
	}}
	if diff := cmp.Diff(want, m.history()); diff != "" {
		t.Errorf("unexpected calls (-want +got):\n%s", diff)
	}
}

func TestOpenRefused(t *testing.T) {
	m := newMockInvoker()
	m.reply(types.CommandOpen, "false")

	s, err := Open(context.Background(), m, "/nowhere/db.sqlite", types.OpenOptions{})
	if err == nil {
		t.Fatal("expected an error when the host answers false")
	}
	if s != nil {
		t.Error("no store should be returned on failure")
	}
	if !IsOpenFailed(err) {
		t.Errorf("expected an open failure, got %T: %v", err, err)
	}
	if err.Error() != "Unable to open database /nowhere/db.sqlite." {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !strings.Contains(err.Error(), "/nowhere/db.sqlite") {
		t.Error("message should name the path")
	}
}

func TestOpenPropagatesHostError(t *testing.T) {
	m := newMockInvoker()
	hostErr := &bridge.HostError{Command: types.CommandOpen, Message: "unable to open database file"}
	m.fail(types.CommandOpen, hostErr)

	_, err := Open(context.Background(), m, "/nowhere/db.sqlite", types.OpenOptions{})
	if err != hostErr {
		t.Fatalf("expected the host error untouched, got %v", err)
	}
	if IsOpenFailed(err) {
		t.Error("host failures are not store open failures")
	}
}

func TestSelect(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	m.reply(types.CommandSelect, `[{"id":1,"name":"John"},{"id":2,"name":"Bill"}]`)

	rows, err := s.Select(context.Background(), "SELECT id, name FROM person WHERE age >= ?1", []any{18})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	want := []Row{{"id": float64(1), "name": "John"}, {"id": float64(2), "name": "Bill"}}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("unexpected rows (-want +got):\n%s", diff)
	}

	call := m.history()[1]
	if call.Cmd != "plugin:sqlite-store|select" {
		t.Errorf("unexpected command %q", call.Cmd)
	}
	wantArgs := map[string]any{
		"dbPath": "/data/test.db",
		"query":  "SELECT id, name FROM person WHERE age >= ?1",
		"params": []any{float64(18)},
	}
	if diff := cmp.Diff(wantArgs, call.Args); diff != "" {
		t.Errorf("unexpected args (-want +got):\n%s", diff)
	}
}

func TestNilParamsAreSentAsEmptyList(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	m.reply(types.CommandSelect, `[]`)

	if _, err := s.Select(context.Background(), "SELECT 1", nil); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Execute(context.Background(), "DELETE FROM person", nil); err != nil {
		t.Fatal(err)
	}
	for _, call := range m.history()[1:] {
		params, ok := call.Args["params"].([]any)
		if !ok || len(params) != 0 {
			t.Errorf("%s: expected params [], got %#v", call.Cmd, call.Args["params"])
		}
	}
}

type person struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func TestSelectAs(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	m.reply(types.CommandSelect, `[{"id":1,"name":"John"},{"id":2,"name":"Bill"}]`)

	people, err := SelectAs[person](context.Background(), s, "SELECT id, name FROM person", nil)
	if err != nil {
		t.Fatalf("SelectAs failed: %v", err)
	}
	want := []person{{ID: 1, Name: "John"}, {ID: 2, Name: "Bill"}}
	if diff := cmp.Diff(want, people); diff != "" {
		t.Errorf("unexpected rows (-want +got):\n%s", diff)
	}
}

func TestSelectFirst(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)

	m.reply(types.CommandSelect, `[{"id":1,"name":"John"},{"id":2,"name":"Bill"}]`)
	row, err := s.SelectFirst(context.Background(), "SELECT id, name FROM person", nil)
	if err != nil {
		t.Fatalf("SelectFirst failed: %v", err)
	}
	if row["name"] != "John" {
		t.Errorf("expected the first row, got %v", row)
	}

	p, err := SelectFirstAs[person](context.Background(), s, "SELECT id, name FROM person", nil)
	if err != nil {
		t.Fatalf("SelectFirstAs failed: %v", err)
	}
	if p != (person{ID: 1, Name: "John"}) {
		t.Errorf("expected the first row, got %+v", p)
	}

	// Composition over select: no extra command is sent.
	for _, call := range m.history()[1:] {
		if call.Cmd != types.CommandSelect {
			t.Errorf("unexpected command %q", call.Cmd)
		}
	}
}

func TestSelectFirstNoResults(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	m.reply(types.CommandSelect, `[]`)

	row, err := s.SelectFirst(context.Background(), "SELECT * FROM person WHERE age > ?1", []any{200})
	if err == nil {
		t.Fatalf("expected an error, got row %v", row)
	}
	if err.Error() != "No results" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !IsNoResults(err) {
		t.Errorf("expected a no-results error, got %T", err)
	}

	_, err = SelectFirstAs[person](context.Background(), s, "SELECT * FROM person", nil)
	if !IsNoResults(err) {
		t.Errorf("expected a no-results error from SelectFirstAs, got %v", err)
	}
}

func TestSelectFirstPropagatesHostError(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)
	hostErr := &bridge.HostError{Command: types.CommandSelect, Message: "no such table: person"}
	m.fail(types.CommandSelect, hostErr)

	_, err := s.SelectFirst(context.Background(), "SELECT * FROM person", nil)
	if err != hostErr {
		t.Fatalf("expected the host error untouched, got %v", err)
	}
	if IsNoResults(err) {
		t.Error("a host failure is not an empty result")
	}
}

func TestBooleanCommands(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name string
		run  func(s *Store) (bool, error)
		want mockCall
	}{
		{
			name: "execute",
			run: func(s *Store) (bool, error) {
				return s.Execute(ctx, "DELETE FROM person WHERE age < ?1 and sex = ?2", []any{18, "F"})
			},
			want: mockCall{Cmd: "plugin:sqlite-store|execute", Args: map[string]any{
				"dbPath": "/data/test.db",
				"query":  "DELETE FROM person WHERE age < ?1 and sex = ?2",
				"params": []any{float64(18), "F"},
			}},
		},
		{
			name: "execute_many",
			run: func(s *Store) (bool, error) {
				return s.ExecuteMany(ctx, "INSERT INTO person VALUES (NULL, ?1)", [][]any{{"Bob"}, nil})
			},
			want: mockCall{Cmd: "plugin:sqlite-store|execute", Args: map[string]any{
				"dbPath": "/data/test.db",
				"query":  "INSERT INTO person VALUES (NULL, ?1)",
				"params": []any{[]any{"Bob"}, []any{}},
			}},
		},
		{
			name: "batch",
			run: func(s *Store) (bool, error) {
				return s.Batch(ctx, types.BatchQueries{
					{Query: "DELETE FROM person WHERE age < ?1", Params: []any{18}},
					{Query: "INSERT INTO person VALUES (NULL, ?1, ?2, ?3)", Params: []any{"John", 16, "F"}},
					{Query: "DELETE FROM home"},
				})
			},
			want: mockCall{Cmd: "plugin:sqlite-store|batch", Args: map[string]any{
				"dbPath": "/data/test.db",
				"queries": []any{
					[]any{"DELETE FROM person WHERE age < ?1", []any{float64(18)}},
					[]any{"INSERT INTO person VALUES (NULL, ?1, ?2, ?3)", []any{"John", float64(16), "F"}},
					[]any{"DELETE FROM home", []any{}},
				},
			}},
		},
		{
			name: "set_pragma",
			run: func(s *Store) (bool, error) {
				return s.SetPragma(ctx, "foreign_keys", 0)
			},
			want: mockCall{Cmd: "plugin:sqlite-store|set_pragma", Args: map[string]any{
				"dbPath": "/data/test.db",
				"key":    "foreign_keys",
				"value":  float64(0),
			}},
		},
		{
			name: "close",
			run: func(s *Store) (bool, error) {
				return s.Close(ctx)
			},
			want: mockCall{Cmd: "plugin:sqlite-store|close", Args: map[string]any{
				"dbPath": "/data/test.db",
			}},
		},
		{
			name: "create",
			run: func(s *Store) (bool, error) {
				return s.Create(ctx, tablegen.TableData{
					Name:    "person",
					Options: tablegen.TableOptions{IfNotExists: true},
					Columns: []tablegen.Column{
						tablegen.ClassicIDColumn,
						{Name: "name", Type: "TEXT", Options: tablegen.ColumnOptions{NotNull: true, Default: "John"}},
					},
				})
			},
			want: mockCall{Cmd: "plugin:sqlite-store|execute", Args: map[string]any{
				"dbPath": "/data/test.db",
				"query":  `CREATE TABLE IF NOT EXISTS person (id INTEGER PRIMARY KEY AUTOINCREMENT,name TEXT NOT NULL DEFAULT "John")`,
				"params": []any{},
			}},
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m := newMockInvoker()
			s := openMock(t, m)

			ok, err := c.run(s)
			if err != nil {
				t.Fatalf("command failed: %v", err)
			}
			if !ok {
				t.Error("expected success")
			}
			history := m.history()
			if len(history) != 2 {
				t.Fatalf("expected exactly one command after open, got %d", len(history)-1)
			}
			if diff := cmp.Diff(c.want, history[1]); diff != "" {
				t.Errorf("unexpected call (-want +got):\n%s", diff)
			}
		})
	}
}

func TestBooleanCommandFalseAndErrors(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)

	m.reply(types.CommandExecute, "false")
	ok, err := s.Execute(context.Background(), "DELETE FROM person", nil)
	if err != nil || ok {
		t.Errorf("expected (false, nil), got (%v, %v)", ok, err)
	}

	transportErr := errors.New("bridge: call for plugin:sqlite-store|close failed: broken pipe")
	m.fail(types.CommandClose, transportErr)
	if _, err := s.Close(context.Background()); err != transportErr {
		t.Errorf("expected the invoker error untouched, got %v", err)
	}
}

func TestTableGenerator(t *testing.T) {
	m := newMockInvoker()
	s := openMock(t, m)

	g := s.TableGenerator("person")
	g.SetTableOptions(tablegen.TableOptions{IfNotExists: true})
	g.AddClassicIDColumn()
	g.AddColumn("name", "TEXT", tablegen.ColumnOptions{NotNull: true, Default: "John"})
	g.AddColumn("home", "INTEGER", tablegen.ColumnOptions{NotNull: true})
	g.AddForeignKey(tablegen.ForeignKey{Column: "home", TargetTable: "home", TargetColumn: "id", OnDelete: "CASCADE"})

	want := "CREATE TABLE IF NOT EXISTS person (\n" +
		"id INTEGER PRIMARY KEY AUTOINCREMENT,\n" +
		"name TEXT NOT NULL DEFAULT \"John\",\n" +
		"home INTEGER NOT NULL,\n" +
		"FOREIGN KEY(home) REFERENCES home(id) ON DELETE CASCADE\n" +
		");"
	if got := g.CreateTableQuery(true); got != want {
		t.Errorf("SQL mismatch:\n--- got ---\n%s\n--- want ---\n%s", got, want)
	}
	if len(m.history()) != 1 {
		t.Error("building a table must not talk to the host")
	}
}
