package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"collab-sync/config"
	"collab-sync/internal/cache"
	"collab-sync/internal/editor"
	"collab-sync/internal/store"
)

func main() {
	var (
		configPath = flag.String("config", "", "Path to the YAML config file")
		addr       = flag.String("addr", "", "Listen address (overrides config)")
	)
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	service := editor.NewService(&editor.Config{
		MaxMessageSize: cfg.Editor.MaxMessageSize,
		WriteTimeout:   cfg.Editor.WriteTimeout,
		ReadTimeout:    cfg.Editor.ReadTimeout,
		PingInterval:   cfg.Editor.PingInterval,
		SelectionTTL:   cfg.Editor.SelectionTTL,
	}, log)

	ctx := context.Background()

	if cfg.Postgres.DSN != "" {
		snapshots, err := store.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			log.Fatal().Err(err).Msg("connect postgres")
		}
		defer snapshots.Close()
		service.SetStore(snapshots)
		log.Info().Msg("snapshot store enabled")
	}

	if cfg.Redis.Addr != "" {
		redisClient, err := cache.New(ctx, cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Fatal().Err(err).Msg("connect redis")
		}
		defer redisClient.Close()
		service.SetCache(redisClient)
		service.SetPresence(redisClient)
		log.Info().Msg("document cache and presence enabled")
	}

	service.Start()

	router := mux.NewRouter()
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("healthy"))
	}).Methods(http.MethodGet)
	router.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(service.Stats())
	}).Methods(http.MethodGet)
	router.HandleFunc("/ws", service.HandleWebSocket)

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan

		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		service.Shutdown(shutdownCtx)
		server.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", cfg.Server.Addr).Msg("sync service listening")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("server failed")
	}
}
