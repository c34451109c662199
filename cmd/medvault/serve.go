package main

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/contrib/otelfiber"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/swagger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"medvault/docs"
	handlers "medvault/internal/http/handler"
	"medvault/internal/http/middleware"
	"medvault/internal/otel"
	"medvault/internal/service"
)

// multipartOverhead is headroom on top of the upload limit for multipart boundaries and headers.
const multipartOverhead = 1 << 20

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context())
		},
	}
}

// newApp wires the service graph into a Fiber app. Metrics are registered on reg.
func newApp(d *deps, reg *prometheus.Registry) (*fiber.App, *service.Metrics, error) {
	cfg := d.cfg

	metrics, err := service.NewMetrics(reg)
	if err != nil {
		return nil, nil, err
	}
	promMW, err := middleware.NewPrometheusMiddleware(reg)
	if err != nil {
		return nil, nil, err
	}

	policy := service.NewAdmissionPolicy(cfg.Upload.MaxBytes, cfg.Upload.AllowedMIMETypes)
	docSvc := service.NewDocumentService(d.store, d.repo,
		service.WithLogger(d.logger),
		service.WithPolicy(policy),
		service.WithMetrics(metrics),
	)

	app := fiber.New(fiber.Config{
		AppName:               "medvault",
		ErrorHandler:          handlers.ErrorHandler(),
		BodyLimit:             int(policy.MaxBytes) + multipartOverhead,
		DisableStartupMessage: true,
	})

	// Register global middleware
	app.Use(otelfiber.Middleware(otelfiber.WithNext(func(c *fiber.Ctx) bool {
		return c.Path() == "/metrics" || c.Path() == "/healthz"
	})))
	// RequestID middleware adds/propagates X-Request-ID and stores it in context
	app.Use(middleware.RequestID())
	// JSON Logger middleware for structured request logs
	app.Use(middleware.LoggerWithWriter(nil, cfg.TimeLocation()))
	app.Use(promMW.Handler())
	app.Use(middleware.NoSniff())
	app.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSAllowOrigins,
		AllowMethods:  "GET,POST,DELETE,OPTIONS",
		ExposeHeaders: middleware.RequestIDHeader + ",Content-Disposition",
	}))

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	// Swagger UI with dynamic host and scheme
	app.Get("/swagger/*", func(c *fiber.Ctx) error {
		scheme := c.Protocol()
		if proto := c.Get("X-Forwarded-Proto"); proto != "" {
			scheme = strings.Split(proto, ",")[0]
		}

		docs.SwaggerInfo.Host = c.Get("Host")
		docs.SwaggerInfo.Schemes = []string{scheme}

		return swagger.HandlerDefault(c)
	})

	var routeOpts handlers.RouteOptions
	if cfg.Storage.IsLocal() {
		routeOpts.UploadDir = cfg.Storage.UploadDir
	}
	handlers.RegisterRoutes(app, d.db, docSvc, routeOpts)

	return app, metrics, nil
}

func serve(ctx context.Context) error {
	d, err := openDeps(ctx)
	if err != nil {
		return err
	}
	defer d.Close()

	shutdownTracing, err := otel.Init(ctx, d.logger)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			d.logger.Error("tracing_shutdown_failed", "error", err.Error())
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	app, metrics, err := newApp(d, reg)
	if err != nil {
		return err
	}

	rs := service.NewReconcileService(d.store, d.repo, d.cfg.Reconcile.Grace, d.logger, metrics)
	rs.Start(ctx, d.cfg.Reconcile.Interval)

	addr := ":" + d.cfg.Port
	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("server_listening", "addr", addr, "app_host", d.cfg.AppHost)
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	d.logger.Info("server_shutting_down")
	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
