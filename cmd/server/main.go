package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"

	"beast-crm/internal/auth"
	"beast-crm/internal/chat"
	"beast-crm/internal/config"
	"beast-crm/internal/db"
	"beast-crm/internal/events"
	"beast-crm/internal/logging"
	"beast-crm/internal/middleware"
	"beast-crm/internal/notification"
)

func main() {
	// 1. Config & Flags
	addr := flag.String("addr", "", "http service address (overrides config)")
	configPath := flag.String("config", "", "path to a YAML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", logging.Err(err))
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Service.Addr = *addr
	}

	log := logging.New(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *slog.Logger) error {
	// 2. Realtime core
	hub := events.NewHub(log)

	var (
		bus     events.Publisher
		emitter events.Emitter
	)

	// 3. Redis (multi-instance mode)
	if cfg.Redis.URL != "" {
		rdb, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()
		log.Info("redis connected", slog.String("channel", cfg.Redis.Channel))

		relay := events.NewRelay(rdb, cfg.Redis.Channel, hub, log)
		ready := make(chan struct{})
		relayErr := make(chan error, 1)
		go func() { relayErr <- relay.Run(ctx, ready) }()
		select {
		case <-ready:
		case err := <-relayErr:
			return err
		}
		go func() {
			if err := <-relayErr; err != nil {
				log.Error("relay stopped", logging.Err(err))
			}
		}()

		bus = relay
		emitter = events.NewRelayEmitter(hub, relay, log)
	} else {
		emitter = events.NewLoopbackEmitter(cfg.LoopbackTarget(), cfg.Events.InternalKey, cfg.Events.EmitTimeout, log)
	}

	eventsHandler := events.NewHandler(hub, bus, events.HandlerOptions{
		SendBuffer:        cfg.Events.SendBuffer,
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
		InternalKey:       cfg.Events.InternalKey,
	})

	authMiddleware := middleware.NewAuthMiddleware(auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.Audience))

	// 4. Routes
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Tracing(cfg.Service.Name))
	r.Use(middleware.CORS)

	r.Route("/api/events", func(r chi.Router) {
		r.Post("/", eventsHandler.Trigger)
		r.Get("/status", eventsHandler.Status)

		r.Group(func(r chi.Router) {
			if cfg.Auth.RequireStreamAuth {
				r.Use(authMiddleware.Handle)
			} else {
				r.Use(authMiddleware.Optional)
			}
			r.Get("/", eventsHandler.Stream)
			r.Get("/ws", eventsHandler.ServeWS)
		})
	})

	// 5. CRM producers (Postgres)
	if cfg.Postgres.DSN != "" {
		database, err := db.NewDatabase(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer database.Close()
		log.Info("postgres connected")

		if err := database.AutoMigrate(ctx); err != nil {
			return err
		}

		notifications := notification.NewHandler(notification.NewService(notification.NewRepository(database.Conn), emitter))
		chats := chat.NewHandler(chat.NewService(chat.NewRepository(database.Conn), emitter))

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Handle)
			r.Route("/api/notificaciones", notifications.Routes)
			r.Route("/api/chats", chats.Routes)
		})
	} else {
		log.Warn("no database configured, serving events only")
	}

	// 6. Serve
	srv := &http.Server{
		Addr:              cfg.Service.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		// Streams are long-lived; per-write deadlines are set by the stream writers.
		WriteTimeout: 0,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", slog.String("addr", cfg.Service.Addr), slog.Bool("relay", bus != nil))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", slog.Int("active_connections", hub.Size()))
	hub.CloseAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func connectRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return rdb, nil
}
