package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/RowanDark/scrdec/internal/findings"
	"github.com/RowanDark/scrdec/internal/logging"
	"github.com/RowanDark/scrdec/internal/observability/metrics"
	"github.com/RowanDark/scrdec/internal/observability/tracing"
	"github.com/RowanDark/scrdec/internal/rpc"
	"github.com/RowanDark/scrdec/internal/store"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the decoder over gRPC with Prometheus metrics",
		Flags: []cli.Flag{
			ListenFlag, MetricsAddrFlag, AuthTokenFlag, OutputFlag, StoreFlag,
			AuditLogFlag, TraceFileFlag, TraceRatioFlag,
		},
		Action: runServe,
	}
}

func runServe(c *cli.Context) error {
	rt, err := loadRuntime(c)
	if err != nil {
		return err
	}
	cfg := rt.cfg
	if c.IsSet(ListenFlag.Name) {
		cfg.Server.ListenAddr = c.String(ListenFlag.Name)
	}
	if c.IsSet(MetricsAddrFlag.Name) {
		cfg.Server.MetricsAddr = c.String(MetricsAddrFlag.Name)
	}
	if c.IsSet(AuthTokenFlag.Name) {
		cfg.Server.AuthToken = c.String(AuthTokenFlag.Name)
	}
	logger := rt.logger.With().Str("listen", cfg.Server.ListenAddr).Logger()

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if path := c.String(TraceFileFlag.Name); path != "" {
		shutdown, err := tracing.Setup(ctx, tracing.Config{
			ServiceName:    "scrdec",
			ServiceVersion: version,
			SampleRatio:    c.Float64(TraceRatioFlag.Name),
			FilePath:       path,
		})
		if err != nil {
			return fmt.Errorf("setup tracing: %w", err)
		}
		defer shutdown(context.Background())
	}

	auditOpts := []logging.Option{logging.WithoutStdout(), logging.WithWriter(c.App.ErrWriter)}
	if path := c.String(AuditLogFlag.Name); path != "" {
		auditOpts = []logging.Option{logging.WithoutStdout(), logging.WithFile(path)}
	}
	audit, err := logging.NewAuditLogger("scrdec-serve", auditOpts...)
	if err != nil {
		return fmt.Errorf("audit log: %w", err)
	}
	defer audit.Close()

	var st *store.Store
	storePath := c.String(StoreFlag.Name)
	if storePath == "" {
		storePath = cfg.StorePath
	}
	if storePath != "" {
		st, err = store.Open(storePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()
	}

	bus := findings.NewBus()
	outPath := c.String(OutputFlag.Name)
	if outPath == "" {
		outPath = filepath.Join(cfg.OutputDir, "findings.jsonl")
	}
	writer := findings.NewWriter(outPath)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for f := range bus.Subscribe(ctx) {
			if err := writer.Write(f); err != nil {
				logger.Error().Err(err).Str("id", f.ID).Msg("write finding")
			}
		}
	}()

	lis, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.ListenAddr, err)
	}
	srv := rpc.NewServer(rpc.Options{
		AuthToken: cfg.Server.AuthToken,
		Logger:    logger,
		Audit:     audit,
		Bus:       bus,
		Store:     st,
		Decoder:   rt.decoderOptions(),
	}).NewGRPCServer()

	var metricsSrv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.Server.MetricsAddr).Msg("metrics listener failed")
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Serve(lis) }()
	logger.Info().Str("addr", lis.Addr().String()).Bool("auth", cfg.Server.AuthToken != "").Msg("scrdec service listening")

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
	case err = <-serveErr:
	}

	// Watch streams only end when clients leave, so graceful stop is bounded.
	stopped := make(chan struct{})
	go func() {
		srv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		srv.Stop()
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		cancel()
	}
	stop()
	<-writerDone
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}
