package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/ghodss/yaml"
	"github.com/spf13/cobra"

	"github.com/tomyedwab/sqlitestore/bridge"
	"github.com/tomyedwab/sqlitestore/store"
	"github.com/tomyedwab/sqlitestore/store/types"
	"github.com/tomyedwab/sqlitestore/tablegen"
)

type rootOptions struct {
	host               string
	db                 string
	disableForeignKeys bool
	debug              bool
	logger             *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:          "storectl",
		Short:        "storectl",
		Long:         `A CLI tool to run sqlite-store commands against a store host.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level := slog.LevelInfo
			if opts.debug {
				level = slog.LevelDebug
			}
			opts.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			return nil
		},
	}
	rootCmd.SetOut(out)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.host, "host", "http://localhost:8080", "Base URL of the store host")
	flags.StringVar(&opts.db, "db", "", "Database path on the host; the host's default store when empty")
	flags.BoolVar(&opts.disableForeignKeys, "disable-foreign-keys", false, "Open the database with foreign keys disabled")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(
		newDDLCmd(),
		newCreateCmd(opts),
		newSelectCmd(opts),
		newExecuteCmd(opts),
		newBatchCmd(opts),
		newPragmaCmd(opts),
	)
	return rootCmd
}

// openStore connects to the host and opens the configured database.
func (o *rootOptions) openStore(cmd *cobra.Command) (*store.Store, error) {
	client := bridge.NewClient(bridge.HTTPHostFunc(o.host), bridge.WithLogger(o.logger))
	openOpts := types.OpenOptions{DisableForeignKeys: o.disableForeignKeys}
	if o.db == "" {
		return store.Load(cmd.Context(), client, openOpts, store.WithLogger(o.logger))
	}
	return store.Open(cmd.Context(), client, o.db, openOpts, store.WithLogger(o.logger))
}

// parseParams reads each argument as JSON, falling back to a plain string.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, arg := range args {
		params[i] = parseParam(arg)
	}
	return params
}

func parseParam(arg string) any {
	var v any
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

func newDDLCmd() *cobra.Command {
	var pretty bool
	cmd := &cobra.Command{
		Use:   "ddl FILE",
		Short: "Print the CREATE TABLE statement for a table definition",
		Long: `Render a YAML or JSON table definition without contacting the host.

        $ storectl ddl person.yaml --pretty
        `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := tablegen.LoadFile(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tablegen.FromData(data).CreateTableQuery(pretty))
			return nil
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Put each column on its own line")
	return cmd
}

func newCreateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create FILE",
		Short: "Create the table described by a YAML or JSON definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := tablegen.LoadFile(args[0])
			if err != nil {
				return err
			}
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(cmd.Context())
			ok, err := db.Create(cmd.Context(), data)
			if err != nil {
				return err
			}
			return printJSON(cmd, ok)
		},
	}
}

func newSelectCmd(opts *rootOptions) *cobra.Command {
	var first bool
	cmd := &cobra.Command{
		Use:   "select QUERY [PARAM...]",
		Short: "Run a query and print the rows as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(cmd.Context())
			params := parseParams(args[1:])
			if first {
				row, err := db.SelectFirst(cmd.Context(), args[0], params)
				if err != nil {
					return err
				}
				return printJSON(cmd, row)
			}
			rows, err := db.Select(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			return printJSON(cmd, rows)
		},
	}
	cmd.Flags().BoolVar(&first, "first", false, "Print only the first row; fail when there is none")
	return cmd
}

func newExecuteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "execute QUERY [PARAM...]",
		Short: "Run a statement that returns no rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(cmd.Context())
			ok, err := db.Execute(cmd.Context(), args[0], parseParams(args[1:]))
			if err != nil {
				return err
			}
			return printJSON(cmd, ok)
		},
	}
}

func newBatchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "batch FILE",
		Short: "Run a list of [query, params] pairs in one transaction",
		Long: `Run every statement of a YAML or JSON file in order. The host rolls
        back all of them if one fails.

        - ["DELETE FROM person", []]
        - ["INSERT INTO person (name) VALUES (?1)", ["Riri"]]
        `,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := loadBatchFile(args[0])
			if err != nil {
				return err
			}
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(cmd.Context())
			ok, err := db.Batch(cmd.Context(), queries)
			if err != nil {
				return err
			}
			return printJSON(cmd, ok)
		},
	}
}

func loadBatchFile(path string) (types.BatchQueries, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var queries types.BatchQueries
	if err := yaml.Unmarshal(raw, &queries); err != nil {
		return nil, fmt.Errorf("failed to parse batch file %s: %w", path, err)
	}
	return queries, nil
}

func newPragmaCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pragma KEY VALUE",
		Short: "Set a SQLite pragma on the database connection",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := opts.openStore(cmd)
			if err != nil {
				return err
			}
			defer db.Close(cmd.Context())
			ok, err := db.SetPragma(cmd.Context(), args[0], parseParam(args[1]))
			if err != nil {
				return err
			}
			return printJSON(cmd, ok)
		},
	}
}
