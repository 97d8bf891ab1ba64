package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coder/websocket"
	"github.com/gogpu/gg"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/haxtrace/haxtrace/backend-go/internal/asset"
	"github.com/haxtrace/haxtrace/backend-go/internal/collab"
	"github.com/haxtrace/haxtrace/backend-go/internal/config"
	"github.com/haxtrace/haxtrace/backend-go/internal/export"
	mw "github.com/haxtrace/haxtrace/backend-go/internal/middleware"
	"github.com/haxtrace/haxtrace/backend-go/internal/storage"
	"github.com/haxtrace/haxtrace/backend-go/internal/store"
	"github.com/haxtrace/haxtrace/backend-go/internal/typeid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	slog.SetDefault(logger)
	gg.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	slot, closeSlot, err := openSlot(ctx, cfg)
	if err != nil {
		slog.Error("open storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer closeSlot()

	st := store.New(store.Options{
		Slot:         slot,
		Key:          cfg.SessionKey,
		CoalesceDrag: cfg.CoalesceDrag,
		Logger:       logger,
	})

	hub := collab.NewHub(st, collab.Options{
		Width:  cfg.ViewportWidth,
		Height: cfg.ViewportHeight,
		Decode: asset.Decode,
	})
	go hub.Run()

	assetHandler := asset.NewHandler(cfg.MaxUploadBytes)
	exportHandler := export.NewHandler(hub, cfg.ViewportWidth, cfg.ViewportHeight, asset.Decode)
	origins := cfg.Origins()

	r := mux.NewRouter()

	// Global middleware
	r.Use(mw.Recovery)
	r.Use(mw.Logger)
	r.Use(mw.CORS(origins))

	// Health check
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	// Background image upload
	r.HandleFunc("/assets/upload", assetHandler.Upload).Methods("POST", "OPTIONS")

	// Map exchange and render
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/map", exportHandler.GetMap).Methods("GET")
	api.HandleFunc("/map", exportHandler.PutMap).Methods("PUT")
	api.HandleFunc("/map/render.png", exportHandler.RenderPNG).Methods("GET")

	// WebSocket endpoint
	patterns := mw.OriginPatterns(origins)
	r.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		handleWebSocket(w, r, hub, patterns)
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down server")

		// Stop the hub first so an open drag is flushed to storage.
		hub.Stop()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server starting", "addr", addr, "storage", cfg.StorageBackend, "session", hub.SessionID())
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

// openSlot opens the configured session storage. The returned func releases
// it.
func openSlot(ctx context.Context, cfg *config.Config) (storage.Slot, func(), error) {
	noop := func() {}
	switch cfg.StorageBackend {
	case config.StorageMemory:
		return storage.NewMemorySlot(), noop, nil
	case config.StorageFile:
		slot, err := storage.NewFileSlot(cfg.StorageDir)
		if err != nil {
			return nil, noop, err
		}
		return slot, noop, nil
	case config.StorageSQLite:
		slot, err := storage.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return slot, func() { slot.Close() }, nil
	case config.StoragePostgres:
		pool, err := storage.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		slot, err := storage.NewPostgresSlot(ctx, pool)
		if err != nil {
			pool.Close()
			return nil, noop, err
		}
		return slot, pool.Close, nil
	}
	return nil, noop, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
}

func handleWebSocket(w http.ResponseWriter, r *http.Request, hub *collab.Hub, originPatterns []string) {
	displayName := r.URL.Query().Get("name")
	userID := r.URL.Query().Get("user")
	if userID == "" {
		userID = "anon-" + uuid.New().String()[:8]
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		slog.Error("websocket accept", "error", err)
		return
	}

	clientID := typeid.NewClientID()
	client := collab.NewClient(hub, conn, userID, displayName, clientID)

	hub.Register(client)

	ctx := r.Context()
	go client.WritePump(ctx)
	client.ReadPump(ctx)
}
