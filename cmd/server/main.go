package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/example/rendezvous/internal/config"
	"github.com/example/rendezvous/internal/coordinator"
	"github.com/example/rendezvous/internal/dispatch"
	"github.com/example/rendezvous/internal/geocode"
	"github.com/example/rendezvous/internal/geostore"
	"github.com/example/rendezvous/internal/httpapi"
	"github.com/example/rendezvous/internal/ingest"
	"github.com/example/rendezvous/internal/logging"
	"github.com/example/rendezvous/internal/route"
	"github.com/example/rendezvous/internal/session"
	"github.com/example/rendezvous/internal/trip"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if db, err := sql.Open("postgres", cfg.PGDSN); err == nil {
			if b, err := os.ReadFile(filepath.Join("migrations", "001_create_trips.sql")); err == nil {
				if _, err := db.Exec(string(b)); err != nil {
					logger.Warn("migration exec error", "error", err)
				} else {
					logger.Info("migration applied", "file", "001_create_trips.sql")
				}
			}
			_ = db.Close()
		} else {
			logger.Warn("migration db open error", "error", err)
		}
	}

	var store geostore.Store
	if cfg.RedisAddr != "" {
		store = geostore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		store = geostore.NewMemoryStore()
	}

	var remote trip.RemoteStore
	if cfg.PGDSN != "" {
		if ps, err := trip.NewPostgresStore(cfg.PGDSN); err == nil {
			remote = ps
		} else {
			logger.Warn("postgres unavailable, using in-memory trip history", "error", err)
		}
	}
	if remote == nil {
		remote = trip.NewMemoryRemote()
	}

	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "."
	}
	local := trip.NewFileLocal(filepath.Join(dataDir, "current_trip.json"))
	sessions := session.NewFileStore(filepath.Join(dataDir, "session.json"))

	recorder := trip.NewRecorder(local, remote, cfg.MinSampleDistance, logger)

	provider := route.NewHTTPClient(cfg.RouteAPIEndpoint, cfg.RouteAPIKey)
	cache := route.NewCache(cfg.RouteCacheTTL, cfg.RouteDriftFloor, cfg.RouteEndpointEpsilon)

	var producer coordinator.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kp.Close()
		producer = kp
	}

	wsreg := dispatch.NewWSRegistry()

	var gc *geocode.Client
	if cfg.RouteAPIEndpoint != "" {
		gc = geocode.NewClient(cfg.RouteAPIEndpoint, cfg.RouteAPIKey)
	}

	coord := coordinator.New(coordinator.Config{
		MeetupDistance:   cfg.MeetupDistance,
		GeofenceRadiusKm: cfg.GeofenceRadiusKm,
		DriverRefresh:    cfg.DriverRefresh,
		PilotRefresh:     cfg.PilotRefresh,
	}, store, provider, cache, recorder, sessions, wsreg, producer, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	coord.Start(ctx)

	srv := httpapi.NewServer(logger, coord, recorder, gc, wsreg)
	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("rendezvous engine listening", "addr", cfg.HTTPAddr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
