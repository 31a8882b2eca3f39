//go:build linux

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/nftables"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"grimm.is/warden/internal/config"
	"grimm.is/warden/internal/engine"
	"grimm.is/warden/internal/entitle"
	"grimm.is/warden/internal/logging"
	"grimm.is/warden/internal/netfilter"
	"grimm.is/warden/internal/store"
)

// RunStart runs the sync daemon in the foreground until a stop signal.
func RunStart(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}
	logger := logging.New(logging.Config{
		Level:  level,
		Output: os.Stderr,
		JSON:   cfg.Log.JSON,
	})
	logging.SetDefault(logger)

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("failed to open user store: %w", err)
	}
	defer db.Close()

	conn, err := nftables.New()
	if err != nil {
		return fmt.Errorf("failed to open netlink connection: %w", err)
	}

	manager := netfilter.NewManager(netfilter.NewRealConn(conn), netfilter.Options{
		Table:        cfg.Service.Table,
		WhitelistSet: cfg.Service.WhitelistSet,
		VIPSet:       cfg.Service.VIPSet,
		Port:         uint16(cfg.Service.Port),
		WhitelistTTL: cfg.WhitelistTTL(),
	}, logger)

	evaluator := entitle.NewEvaluator(db, entitle.Policy{
		FreeQuotaBytes: cfg.Billing.FreeQuotaBytes,
		PricePerByte:   cfg.Billing.PricePerByte,
		RecencyWindow:  cfg.RecencyWindow(),
	}, nil, logger)

	eng, err := engine.New(evaluator, manager, engine.Options{
		Interval:     cfg.Interval(),
		VIPEvery:     uint64(cfg.Sync.VIPEvery),
		WhitelistSet: cfg.Service.WhitelistSet,
		VIPSet:       cfg.Service.VIPSet,
	}, nil, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(),
		syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer stop()

	if cfg.Metrics.Listen != "" {
		go serveMetrics(ctx, cfg.Metrics.Listen, logger)
	}

	logger.Info("daemon starting",
		"config", configFile,
		"store", cfg.Store.Path,
		"port", cfg.Service.Port)

	if err := eng.Run(ctx); err != nil {
		return err
	}

	logger.Info("daemon stopped")
	return nil
}

// serveMetrics exposes the Prometheus endpoint until ctx is cancelled.
func serveMetrics(ctx context.Context, listen string, logger *logging.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: listen, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", "addr", listen)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server failed", "error", err)
	}
}
