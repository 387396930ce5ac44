package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"orca-agent-backend/logging"
)

const shutdownTimeout = 15 * time.Second

// NewEngine builds a gin engine with CORS applied and lets register add
// middleware and routes.
func NewEngine(cfg Config, register func(*gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(cors.New(corsConfig(cfg.CORSAllowedOrigins)))
	register(r)
	return r
}

func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Api-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	return c
}

// Run serves the agent API on cfg.Port until ctx is canceled, then shuts
// the listener down gracefully.
func Run(ctx context.Context, cfg Config, register func(*gin.Engine)) error {
	return serve(ctx, "agent", cfg.Port, NewEngine(cfg, register))
}

// RunProxy serves the Grazie proxy on cfg.ProxyPort
func RunProxy(ctx context.Context, cfg Config, register func(*gin.Engine)) error {
	return serve(ctx, "grazie-proxy", cfg.ProxyPort, NewEngine(cfg, register))
}

func serve(ctx context.Context, name string, port int, handler http.Handler) error {
	log := logging.NewLogger("server")
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("service", name).Infof("Listening on port %d", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("%s server failed: %w", name, err)
		}
		return nil
	case <-ctx.Done():
	}

	log.WithField("service", name).Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s server shutdown: %w", name, err)
	}
	return nil
}
