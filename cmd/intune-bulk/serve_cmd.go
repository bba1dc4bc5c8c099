package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/httpapi"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/middleware"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/server"
	"github.com/rafallz10100/IntuneAppBulkAssignment/pkg/tracing"
)

func newServeCmd(rt *runtime) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API for a browser front end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = rt.conf.ServerAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return rt.serve(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to SERVER_ADDR)")
	return cmd
}

func (rt *runtime) serve(ctx context.Context, addr string) error {
	logger := rt.app.Logger()

	shutdown, err := tracing.Setup(ctx, rt.conf.OpenTelemetry)
	if err != nil {
		return withCode(exitUsage, err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.WithError(err).Warn("tracing shutdown failed")
		}
	}()

	rt.app.RegisterMiddleware(
		middleware.WithLogger(logger, middleware.DefaultLoggerOptions()),
		middleware.TracedMiddleware("intune-bulk"),
	)
	if rt.conf.RateLimit.Enabled {
		rt.app.RegisterMiddleware(
			middleware.TracedMiddleware("rateLimit"),
			middleware.RateLimit(middleware.RateLimitConfig{
				RequestsPerPeriod: rt.conf.RateLimit.PerMinute,
				Period:            time.Minute,
			}),
		)
	}
	srv := server.NewHTTPServer(rt.app, httpapi.NotFound(), httpapi.MethodNotAllowed(), rt.conf.CORSAllowedOrigins)
	logger.WithField("addr", addr).Info("listening")
	return srv.Start(ctx, addr)
}
