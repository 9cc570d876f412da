//go:build wasip1

// storeguest is a small WASM front-end that exercises the store through the
// wasm bridge. Build it as a reactor and hand it to storehost:
//
//	GOOS=wasip1 GOARCH=wasm go build -buildmode=c-shared -o storeguest.wasm ./cmd/storeguest
//	storehost -wasm storeguest.wasm
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/tomyedwab/sqlitestore/bridge/wasmguest"
	"github.com/tomyedwab/sqlitestore/store"
	"github.com/tomyedwab/sqlitestore/store/types"
	"github.com/tomyedwab/sqlitestore/tablegen"
)

func main() {}

type visit struct {
	ID        int    `json:"id"`
	VisitedAt string `json:"visited_at"`
}

//go:wasmexport run
func run() int32 {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	if err := recordVisit(context.Background(), logger); err != nil {
		logger.Error("Front-end failed", "error", err)
		return 1
	}
	return 0
}

func recordVisit(ctx context.Context, logger *slog.Logger) error {
	db, err := store.Load(ctx, wasmguest.NewClient(), types.OpenOptions{}, store.WithLogger(logger))
	if err != nil {
		return err
	}

	table := db.TableGenerator("visit")
	table.SetTableOptions(tablegen.TableOptions{IfNotExists: true})
	table.AddClassicIDColumn()
	table.AddColumn("visited_at", "TEXT", tablegen.ColumnOptions{NotNull: true})
	if _, err := db.Create(ctx, table.Data()); err != nil {
		return err
	}

	if _, err := db.Execute(ctx, "INSERT INTO visit (visited_at) VALUES (?1)", []any{time.Now().UTC().Format(time.RFC3339)}); err != nil {
		return err
	}
	visits, err := store.SelectAs[visit](ctx, db, "SELECT * FROM visit ORDER BY id", nil)
	if err != nil {
		return err
	}
	logger.Info("Recorded visit", "path", db.Path(), "visits", len(visits))
	return nil
}
