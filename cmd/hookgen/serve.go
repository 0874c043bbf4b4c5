package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/mihaimyh/hookgen/internal/config"
	"github.com/mihaimyh/hookgen/pkg/api"
	"github.com/mihaimyh/hookgen/pkg/billing"
	billingmetrics "github.com/mihaimyh/hookgen/pkg/billing/metrics/prometheus"
	"github.com/mihaimyh/hookgen/pkg/billing/stripe"
	"github.com/mihaimyh/hookgen/pkg/hookgen"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

func serve(ctx context.Context, cfg *config.Config) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := newApp(ctx, cfg, appOptions{registry: reg, withModel: true})
	if err != nil {
		return err
	}
	defer a.Close()

	engine, err := newEngine(cfg, a, reg)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: writeTimeout(cfg.Server.WriteTimeout, a.generator),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Str("storage", cfg.Storage.Driver).Msg("hookgen listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		logger.Info().Msg("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// writeSlack covers quota, persistence and encoding around the model calls.
const writeSlack = 10 * time.Second

// writeTimeout never cuts off a generation that can still succeed.
func writeTimeout(configured time.Duration, gen *hookgen.Generator) time.Duration {
	if gen == nil {
		return configured
	}
	return max(configured, gen.MaxDuration()+writeSlack)
}

// newEngine mounts the API, billing webhook, metrics and health routes.
func newEngine(cfg *config.Config, a *app, reg *prometheus.Registry) (*gin.Engine, error) {
	if !cfg.Server.Development() {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())

	handler, err := api.NewHandler(api.Config{
		Service:     a.service,
		Admin:       a.admin,
		Access:      a.access,
		Development: cfg.Server.Development(),
		Logger:      a.logger,
	})
	if err != nil {
		return nil, err
	}
	handler.Register(engine)

	if cfg.Billing.StripeWebhookSecret != "" {
		provider, err := stripe.NewProvider(billing.Config{
			Pro:              a.admin,
			WebhookSecret:    cfg.Billing.StripeWebhookSecret,
			WebhookRateLimit: cfg.Billing.WebhookRateLimit,
			Metrics:          billingmetrics.NewMetrics(reg, cfg.Metrics.Namespace),
			Logger:           a.logger,
		})
		if err != nil {
			return nil, err
		}
		engine.POST("/api/webhooks/"+provider.Name(), gin.WrapH(provider.WebhookHandler()))
	} else {
		logger.Warn().Msg("billing.stripeWebhookSecret not set, stripe webhook disabled")
	}

	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	}

	engine.GET("/healthz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := a.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unavailable",
				"error":  hookgen.RedactSecrets(err.Error()),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return engine, nil
}
