package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container
	"golang.org/x/sync/errgroup"

	firestoreadapter "github.com/ericfisherdev/firechat/internal/adapter/driven/firestore"
	"github.com/ericfisherdev/firechat/internal/adapter/driven/identitytoolkit"
	"github.com/ericfisherdev/firechat/internal/adapter/driven/memory"
	sqliteadapter "github.com/ericfisherdev/firechat/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/firechat/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/firechat/internal/adapter/driving/web"
	"github.com/ericfisherdev/firechat/internal/application"
	"github.com/ericfisherdev/firechat/internal/config"
	"github.com/ericfisherdev/firechat/internal/domain/model"
	"github.com/ericfisherdev/firechat/internal/domain/port/driven"
	"github.com/ericfisherdev/firechat/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on invalid env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel})))
	slog.Info("config loaded",
		"backend", cfg.Backend,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"collection", cfg.Collection,
		"credentials_sealed", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(ctx, cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", db.Path())

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire local stores.
	kv := sqliteadapter.NewKVRepo(db)
	credentialStore, err := sqliteadapter.NewCredentialRepo(kv, cfg.SecretKey)
	if err != nil {
		return err
	}
	sessionStore := sqliteadapter.NewSessionRepo(kv)
	messageCache := sqliteadapter.NewMessageCacheRepo(kv)

	// 6. Wire the identity provider and the auth gateway. The collection
	// authorizes its calls with the gateway's session tokens.
	authSvc := application.NewAuthService(newIdentityProvider(cfg), sessionStore, credentialStore)

	collection, closer, err := newCollection(ctx, cfg, authSvc)
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() {
			if closeErr := closer.Close(); closeErr != nil {
				slog.Error("error closing backend client", "error", closeErr)
			}
		}()
	}

	// 7. Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	// 8. Application services.
	bootstrapper := application.NewBootstrapper(authSvc, credentialStore, recorder)
	router := application.NewSessionRouter(ctx, func(identity model.Identity) *application.FeedService {
		return application.NewFeedService(collection, messageCache, identity, recorder)
	})
	defer router.Close()
	bootstrapper.Watch(router.Route)

	// 9. HTTP handlers.
	limiter := httphandler.NewRateLimiter(httphandler.DefaultRateLimiterConfig())
	defer limiter.Stop()

	apiHandler := httphandler.NewHandler(authSvc, bootstrapper, router, webhandler.NewMultipartPicker, limiter, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)
	mux.Handle("GET /metrics", metrics.Handler(registry))

	webHandler, err := webhandler.NewHandler(authSvc, bootstrapper, router, slog.Default())
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	webhandler.RegisterRoutes(mux, webHandler)

	// Apply middleware.
	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// 10. Run the bootstrapper and the server until shutdown.
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return bootstrapper.Run(gctx)
	})

	g.Go(func() error {
		authSvc.Start(gctx)
		if err := bootstrapper.Wait(gctx); err != nil {
			return nil
		}
		state, identity := bootstrapper.State()
		slog.Info("session resolved", "state", state, "identity", identity)
		return nil
	})

	g.Go(func() error {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http server shutdown error", "error", err)
		}
		return nil
	})

	slog.Info("firechat started", "listen_addr", cfg.ListenAddr, "backend", cfg.Backend)

	err = g.Wait()

	// Unmount before the backend client and database close.
	router.Close()
	slog.Info("shutdown complete")
	return err
}

func newIdentityProvider(cfg *config.Config) driven.IdentityProvider {
	if cfg.Backend == model.BackendMemory {
		slog.Warn("using in-process backend; accounts and messages are lost on exit")
		return memory.NewIdentityProvider()
	}
	return identitytoolkit.NewClient(cfg.FirebaseAPIKey)
}

// newCollection returns the message collection and, for Firestore, the
// client to close on shutdown.
func newCollection(ctx context.Context, cfg *config.Config, tokens firestoreadapter.SessionTokens) (driven.MessageCollection, io.Closer, error) {
	if cfg.Backend == model.BackendMemory {
		return memory.NewCollection(), nil, nil
	}

	client, err := firestoreadapter.NewClient(ctx, cfg.FirebaseProjectID, cfg.FirebaseCredentials, tokens)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("firestore client created", "project", cfg.FirebaseProjectID)

	return firestoreadapter.NewCollection(client, cfg.Collection), client, nil
}
