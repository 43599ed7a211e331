package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/shipping"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/session"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server and background
// sweepers, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// Fail on a bad tax rate before opening any backend.
	if _, err := cfg.TaxRate(); err != nil {
		return err
	}

	res, err := openResources(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer res.Close(lg)

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(res.kv))
	if res.pool != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(res.pool))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Domain services.
	rates := shipping.DefaultTable()
	cartCfg, err := cartConfig(cfg, res.promotions, rates)
	if err != nil {
		return err
	}
	sessions := session.NewRegistry(session.Options{
		Cart:    cartCfg,
		Storage: res.kv,
		IdleTTL: cfg.Session.IdleTTL,
		Logger:  lg.Named("session"),
	})
	orders := order.NewService(res.sink, order.Options{
		Logger:         lg.Named("order"),
		TracerProvider: m.TracerProvider(),
		SubmitTimeout:  cfg.Orders.SubmitTimeout,
	})
	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: handler.RateLimitKey,
	})

	// HTTP handlers.
	h, err := handler.New(handler.Config{
		Catalog:          res.catalog,
		Rates:            rates,
		Sessions:         sessions,
		Orders:           orders,
		PromotionLimiter: limiter,
		MeterProvider:    m.MeterProvider(),
		SecureCookie:     cfg.Session.SecureCookie,
	})
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// The cart event stream clears its own write deadline.
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", handler.SessionHeader, httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{handler.SessionHeader, httpmiddleware.RequestIDHeader},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument("storefront-api", m.TracerProvider(), m.MeterProvider()),
			httpmiddleware.LogRequests(),
			httpmiddleware.Labeler(),
		),
	}
	server.RegisterOnShutdown(h.CloseStreams)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sessions.Run(gctx, cfg.Session.CleanupInterval)
	})
	g.Go(func() error {
		return limiter.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	// Graceful shutdown: wait for cancellation, drain, then stop.
	g.Go(func() error {
		<-gctx.Done()
		healthSvc.SetReady(false)
		if ctx.Err() != nil {
			lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
			time.Sleep(cfg.Graceful.ReadinessDelay)
		}

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		shutdown(lg, server, orders, cfg.Graceful.ShutdownTimeout)
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}

// shutdown stops the server, then drains order submissions. Each step gets
// its own timeout.
func shutdown(lg *zap.Logger, server *http.Server, orders *order.Service, timeout time.Duration) {
	serverCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(serverCtx); err != nil {
		lg.Error("Server shutdown error", zap.Error(err))
	}

	ordersCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := orders.Close(ordersCtx); err != nil {
		lg.Error("Pending order submissions abandoned", zap.Error(err))
	}
}
