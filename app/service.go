// Package app wires configuration into a ready-to-use engine.
package app

import (
	"context"
	"fmt"

	"github.com/kfloy/apron/config"
	"github.com/kfloy/apron/core/engine"
	"github.com/kfloy/apron/core/heartbeat"
	coremetrics "github.com/kfloy/apron/core/metrics"
	"github.com/kfloy/apron/core/results"
	"github.com/kfloy/apron/infra/logger"
	"github.com/kfloy/apron/infra/metrics"
	"github.com/kfloy/apron/infra/mqtt"
	"github.com/kfloy/apron/internal/eventbus"
)

// Service owns the engine and its sinks.
type Service struct {
	Engine      *engine.Engine
	log         logger.Logger
	promEnabled bool
	promAddr    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	var store results.Store
	var err error
	switch cfg.Results.Backend {
	case "sqlite":
		store, err = results.NewSQLiteStore(cfg.Results.Path)
	default:
		store, err = results.NewJSONLStore(cfg.Results.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("result store: %w", err)
	}

	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics.InfluxURL, cfg.Metrics.InfluxToken, cfg.Metrics.InfluxOrg, cfg.Metrics.InfluxBucket)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.Sink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	var hb heartbeat.Publisher = heartbeat.NopPublisher{}
	if cfg.MQTT.Enabled {
		pub, err := mqtt.NewPahoPublisher(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("heartbeat publisher: %w", err)
		}
		hb = pub
	}

	eng := engine.New(engine.Options{
		Logger:      logg,
		Metrics:     sink,
		Results:     store,
		Heartbeat:   hb,
		Bus:         eventbus.New(),
		WorkerCount: cfg.Settings.WorkerCount,
	})
	return &Service{
		Engine:      eng,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promAddr:    fmt.Sprintf(":%d", cfg.Metrics.PrometheusPort),
	}, nil
}

// Start launches background servers. It returns immediately.
func (s *Service) Start(ctx context.Context) {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promAddr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
}

// Close releases resources held by the service.
func (s *Service) Close() error { return s.Engine.Close() }
