package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mmynk/saferound/internal/auth"
	"github.com/mmynk/saferound/internal/config"
	"github.com/mmynk/saferound/internal/middleware"
	"github.com/mmynk/saferound/internal/service"
	"github.com/mmynk/saferound/internal/storage/sqlite"
	"github.com/mmynk/saferound/pkg/logging"
)

// tokenLifetime is the validity of tokens minted by "server token USER_ID".
const tokenLifetime = 24 * time.Hour

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logging.Setup(cfg.LogLevel)

	if len(os.Args) == 3 && os.Args[1] == "token" {
		if err := printToken(cfg.JWTSecret, os.Args[2]); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", cfg.DBPath)

	opts := []service.Option{
		service.WithMetrics(middleware.NewMetrics()),
		service.WithNotifyRate(cfg.NotifyRatePerMin),
	}
	if cfg.JWTSecret != "" {
		opts = append(opts, service.WithJWT(auth.NewJWTManager(cfg.JWTSecret, tokenLifetime)))
		slog.Info("Bearer tokens required on /groups and /users")
	} else {
		slog.Warn("JWT_SECRET not set, group and user routes are open")
	}

	handler := corsMiddleware(service.New(store, opts...).Handler())

	// h2c serves HTTP/2 without TLS alongside HTTP/1.1
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           h2c.NewHandler(handler, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	slog.Info("Server starting", "address", srv.Addr, "url", fmt.Sprintf("http://localhost%s", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

// printToken mints a bearer token for userID signed with secret.
func printToken(secret, userID string) error {
	if secret == "" {
		return errors.New("JWT_SECRET is not set")
	}
	token, err := auth.NewJWTManager(secret, tokenLifetime).Generate(userID)
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

// corsMiddleware adds CORS headers for browser access
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
