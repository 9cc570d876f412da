package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/tomyedwab/sqlitestore/bridge"
	"github.com/tomyedwab/sqlitestore/devhost"
	"github.com/tomyedwab/sqlitestore/metrics"
)

const shutdownTimeout = 5 * time.Second

// newMux serves the command bridge, Prometheus metrics and a status check.
func newMux(h bridge.Handler, gatherer prometheus.Gatherer, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(bridge.InvokePath, bridge.NewHTTPHandler(h, logger))
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	return mux
}

func main() {
	dataDir := flag.String("dataDir", "data", "Directory holding the default store database")
	listenAddr := flag.String("listen", ":8080", "Address for the HTTP bridge")
	wasmFile := flag.String("wasm", "", "Optional path to a WASM front-end to run against the host")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var wasmBytes []byte
	if *wasmFile != "" {
		var err error
		wasmBytes, err = os.ReadFile(*wasmFile)
		if err != nil {
			logger.Error("Failed to read WASM file", "path", *wasmFile, "error", err)
			os.Exit(1)
		}
	}

	host := devhost.New(*dataDir, devhost.WithLogger(logger))
	defer func() {
		if err := host.Close(); err != nil {
			logger.Error("Failed to close databases", "error", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	handler := metrics.New(registry).Instrument(host)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:    *listenAddr,
		Handler: newMux(handler, registry, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting store host", "address", *listenAddr, "dataDir", *dataDir)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down store host")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	if wasmBytes != nil {
		g.Go(func() error {
			return runFrontend(gctx, wasmBytes, handler, logger)
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error("Store host stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Store host stopped")
}
