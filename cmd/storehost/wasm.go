package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/tomyedwab/sqlitestore/bridge"
	"github.com/tomyedwab/sqlitestore/bridge/wasmhost"
)

// runFrontend instantiates a reactor-style WASM module with the sqlite-store
// bridge and calls its exported run function, if any.
func runFrontend(ctx context.Context, wasmBytes []byte, h bridge.Handler, logger *slog.Logger) error {
	r := wazero.NewRuntime(ctx)
	defer r.Close(context.Background())

	wasi_snapshot_preview1.MustInstantiate(ctx, r)
	if _, err := wasmhost.Instantiate(ctx, r, h, logger); err != nil {
		return fmt.Errorf("failed to instantiate bridge module: %w", err)
	}

	mod, err := r.InstantiateWithConfig(
		ctx,
		wasmBytes,
		wazero.NewModuleConfig().
			WithStartFunctions("_initialize").
			WithStdout(os.Stdout).
			WithStderr(os.Stderr),
	)
	if err != nil {
		return fmt.Errorf("failed to instantiate front-end: %w", err)
	}

	run := mod.ExportedFunction("run")
	if run == nil {
		logger.Info("Front-end has no run export, leaving it idle")
		<-ctx.Done()
		return nil
	}

	logger.Info("Running front-end")
	results, err := run.Call(ctx)
	if err != nil {
		return fmt.Errorf("front-end failed: %w", err)
	}
	if len(results) == 1 && int32(results[0]) != 0 {
		return fmt.Errorf("front-end exited with status %d", int32(results[0]))
	}
	logger.Info("Front-end finished")
	return nil
}
