package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mihaimyh/hookgen/internal/config"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
	"github.com/mihaimyh/hookgen/pkg/hookgen/llm/gemini"
	zerologadapter "github.com/mihaimyh/hookgen/pkg/hookgen/logger/zerolog"
	prommetrics "github.com/mihaimyh/hookgen/pkg/hookgen/metrics/prometheus"
)

// app is the wired pipeline shared by every command.
type app struct {
	base      hookgen.Store
	store     hookgen.Store
	recorder  hookgen.GenerationRecorder
	access    *hookgen.Access
	admin     *hookgen.Admin
	gate      *hookgen.Gate
	service   *hookgen.Service
	generator *hookgen.Generator // nil without a model
	logger    hookgen.Logger
	metrics   hookgen.Metrics
	closers   []func()
}

type appOptions struct {
	// registry enables Prometheus metrics when non-nil
	registry prometheus.Registerer

	// withModel builds the generation service; admin commands skip it
	withModel bool

	// model overrides the Gemini client
	model hookgen.Model
}

func newApp(ctx context.Context, cfg *config.Config, opts appOptions) (_ *app, err error) {
	a := &app{
		logger:  zerologadapter.NewLogger(logger),
		metrics: &hookgen.NoopMetrics{},
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	if opts.registry != nil && cfg.Metrics.Enabled {
		a.metrics = prommetrics.NewMetrics(opts.registry, cfg.Metrics.Namespace)
	}

	base, closers, err := openStore(ctx, cfg.Storage, a.logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, closers...)
	if rec, ok := base.(hookgen.GenerationRecorder); ok {
		a.recorder = rec
	}

	a.base = base
	a.store = base
	if cfg.Quota.CircuitBreaker.Enabled {
		cb := hookgen.NewCircuitBreaker(hookgen.CircuitBreakerConfig{
			FailureThreshold: cfg.Quota.CircuitBreaker.FailureThreshold,
			ResetTimeout:     cfg.Quota.CircuitBreaker.ResetTimeout,
			OnStateChange: func(state hookgen.CircuitState) {
				a.metrics.RecordCircuitBreakerStateChange(string(state))
				a.logger.Warn("quota store circuit breaker changed state",
					hookgen.Field{Key: "state", Value: string(state)})
			},
		})
		a.store = hookgen.NewCircuitBreakerStore(base, cb)
	}

	var roles hookgen.RoleCache
	if cfg.Access.CacheSize > 0 {
		roles = hookgen.NewLRUCache(cfg.Access.CacheSize)
	}
	if a.access, err = hookgen.NewAccess(a.store, hookgen.AccessConfig{
		AdminEmails: cfg.Access.AdminEmails,
		Cache:       roles,
		CacheTTL:    cfg.Access.CacheTTL,
		Logger:      a.logger,
	}); err != nil {
		return nil, err
	}
	if a.admin, err = hookgen.NewAdmin(a.store, a.logger); err != nil {
		return nil, err
	}
	a.admin.OnChange(a.access.Invalidate)
	if a.gate, err = hookgen.NewGate(a.store, hookgen.GateConfig{
		FreeLimit: cfg.Quota.FreeLimit,
		ProLimit:  cfg.Quota.ProLimit,
		Metrics:   a.metrics,
		Logger:    a.logger,
	}); err != nil {
		return nil, err
	}

	if !opts.withModel {
		return a, nil
	}

	model := opts.model
	if model == nil {
		client, err := gemini.New(ctx, gemini.Config{APIKey: cfg.Gemini.APIKey, Model: cfg.Gemini.Model})
		if err != nil {
			return nil, err
		}
		model = client
	}

	caller, err := hookgen.NewCaller(model, hookgen.CallerConfig{
		Temperature: cfg.Gemini.Temperature,
		Timeout:     cfg.Gemini.Timeout,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	generator, err := hookgen.NewGenerator(caller, hookgen.GeneratorConfig{
		MaxRetries:     cfg.Generation.MaxRetries,
		RetryDelays:    cfg.Generation.RetryDelays,
		StrictCaptions: cfg.Generation.StrictCaptions,
		Metrics:        a.metrics,
		Logger:         a.logger,
	})
	if err != nil {
		return nil, err
	}
	a.generator = generator
	a.service, err = hookgen.NewService(hookgen.ServiceConfig{
		Gate:      a.gate,
		Generator: generator,
		Caller:    caller,
		Access:    a.access,
		Recorder:  a.recorder,
		Metrics:   a.metrics,
		Logger:    a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build service: %w", err)
	}
	return a, nil
}

// Close releases storage connections in reverse order of opening.
func (a *app) Close() {
	runClosers(a.closers)
	a.closers = nil
}

// Ping checks the storage backend when it supports health checks.
func (a *app) Ping(ctx context.Context) error {
	if p, ok := a.base.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
