// cmd/checkouts/server.go
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/codr1/cockpit-checkouts/internal/api"
	checkoutsapi "github.com/codr1/cockpit-checkouts/internal/api/checkouts"
	"github.com/codr1/cockpit-checkouts/internal/popup"
	"github.com/codr1/cockpit-checkouts/internal/ratelimit"
)

const (
	defaultPort     = 8080
	shutdownTimeout = 30 * time.Second
)

func runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	var (
		configPath = fs.String("config", defaultConfigPath, "Path to configuration file")
		port       = fs.Int("port", 0, "Port to listen on (overrides app.port)")
		trustProxy = fs.Bool("trust-proxy", false, "Read client addresses from X-Forwarded-For")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := newApp(*configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	listenPort := a.cfg.App.Port
	if *port > 0 {
		listenPort = *port
	}
	if listenPort == 0 {
		listenPort = defaultPort
	}

	checkoutsapi.InitHandlers(checkoutsapi.Deps{
		Engine:     a.engine,
		Owner:      &popup.Owner{},
		Limiter:    ratelimit.New(&ratelimit.Config{Cooldown: a.cfg.App.RunCooldown}),
		TrustProxy: *trustProxy,
	})

	server := newServer(listenPort)

	g, ctx := errgroup.WithContext(ctx)

	// Run server
	g.Go(func() error {
		log.Info().Int("port", listenPort).Msg("Starting server")
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Wait for interrupt signal
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		log.Info().Msg("Shutting down server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func newServer(port int) *http.Server {
	router := http.NewServeMux()

	// Setup middleware chain
	handler := api.ChainMiddleware(
		router,
		api.WithLogging,
		api.WithRecovery,
		api.WithRequestID,
		api.WithContentType,
	)

	// Register routes
	registerRoutes(router)

	return &http.Server{
		Addr:        ":" + strconv.Itoa(port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		// A count walks every bookings page before answering.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
}

func registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/en/cockpit", http.StatusFound)
	})

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Check-out routes
	mux.HandleFunc("GET /{locale}/cockpit", checkoutsapi.HandleCockpitPage)
	mux.HandleFunc("POST /api/v1/checkouts/count", checkoutsapi.HandleCount)
	mux.HandleFunc("DELETE /api/v1/checkouts/popup/{id}", checkoutsapi.HandleDismiss)
}
