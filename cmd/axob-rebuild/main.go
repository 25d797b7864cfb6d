package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/sinotrade/axob-rebuild/internal/book"
	"github.com/sinotrade/axob-rebuild/internal/logging"
	"github.com/sinotrade/axob-rebuild/internal/mu"
	"github.com/sinotrade/axob-rebuild/internal/reconcile"
	"github.com/sinotrade/axob-rebuild/pkg/axsbe"
	"github.com/sinotrade/axob-rebuild/pkg/config"
)

// Decoding, transport, and persistence are out of scope for this engine
// (spec.md §1/§6 "CLI/packaging: out of scope"); the composition root
// here wires only the in-process components: config, logging, metrics,
// the book-engine factory, and the multiplexer. A deployment embeds this
// module and supplies its own message source and snapshot sink.
func main() {
	app := fx.New(
		fx.Provide(
			loadConfig,
			newLogger,
			newMetricsRegistry,
			newMetrics,
			newBookFactory,
			newMultiplexer,
		),
		fx.Invoke(registerLifecycle),
	)
	app.Run()
}

func loadConfig() *config.Config {
	return config.Default()
}

func newLogger(cfg *config.Config) logging.Logger {
	return logging.New("axob-rebuild", cfg.Logging.Level)
}

func newMetricsRegistry() prometheus.Registerer {
	return prometheus.NewRegistry()
}

func newMetrics(reg prometheus.Registerer) *book.Metrics {
	return book.NewMetrics(reg)
}

// newBookFactory returns the constructor the multiplexer uses to build a
// fresh InstrumentBook the first time an instrument is seen. Emitted
// snapshots are handed to the reconciler instead of any outbound
// transport, since none is in scope here.
func newBookFactory(cfg *config.Config, log logging.Logger, metrics *book.Metrics) mu.BookFactory {
	reconcilers := make(map[int64]*reconcile.Reconciler)
	return func(source axsbe.SecurityIDSource, securityID int64) *book.InstrumentBook {
		r := reconcile.New(cfg.Reconcile.SZSETolerance(), time.Duration(cfg.Reconcile.SSETimestampToleranceNanos), log)
		reconcilers[securityID] = r
		return book.NewInstrumentBook(source, securityID, axsbe.InstrumentStock, cfg.Engine.LadderDepth, log, metrics,
			func(snap *axsbe.SnapshotStock) { r.OnRebuiltSnapshot(snap) },
			func(snap *axsbe.SnapshotStock) { r.OnMarketSnapshot(snap) },
		)
	}
}

func newMultiplexer(cfg *config.Config, factory mu.BookFactory, log logging.Logger) (*mu.Multiplexer, error) {
	return mu.New(cfg.Engine.ChannelWorkerPoolSize, factory, log)
}

func registerLifecycle(lc fx.Lifecycle, m *mu.Multiplexer, log logging.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("axob-rebuild multiplexer ready")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			m.Release()
			return nil
		},
	})
}
