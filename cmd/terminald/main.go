package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tillsync/internal/config"
	"tillsync/internal/connectivity"
	"tillsync/internal/datalayer"
	"tillsync/internal/handler"
	"tillsync/internal/remote"
	"tillsync/internal/router"
	"tillsync/internal/store"
	enginesync "tillsync/internal/sync"
	"tillsync/internal/ws"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting tillsync terminal daemon...")

	cfg := config.MustLoad()
	log.Printf("Environment: %s", cfg.App.Environment)

	// Local store first: the terminal must come up with or without network.
	localStore, err := store.Open(cfg.LocalDB.Path)
	if err != nil {
		log.Fatalf("Failed to open local store: %v", err)
	}
	defer localStore.Close()

	// The remote pool opens lazily; an unreachable backend at boot is the
	// normal offline case, not an error.
	remoteStore, err := remote.NewMySQLStore(cfg.Remote.DSN())
	if err != nil {
		log.Fatalf("Failed to configure remote store: %v", err)
	}
	defer remoteStore.Close()

	tracker := connectivity.NewTracker(false)

	engine := enginesync.NewEngine(localStore, remoteStore, tracker, enginesync.Config{
		OrdersPullLimit: cfg.Sync.OrdersPullLimit,
	})

	hub := ws.NewHub()
	go hub.Run()
	tracker.Subscribe(hub.BroadcastState)

	// Reachability edges drive the state machine: coming online triggers a
	// sync, going offline flips the state immediately.
	probe := connectivity.ProbeFunc(func(ctx context.Context) bool {
		return remoteStore.Ping(ctx) == nil
	})
	poller := connectivity.NewPoller(probe, cfg.Sync.ProbeInterval, cfg.Sync.ProbeTimeout, func(online bool) {
		if !online {
			tracker.SetOffline()
			return
		}
		tracker.SetOnline()
		if engine.Session().IsZero() {
			return
		}
		go func() {
			if err := engine.SyncNow(context.Background()); err != nil {
				log.Printf("Sync after reconnect failed: %v", err)
			}
		}()
	})

	dl := datalayer.New(localStore, engine, tracker, poller)
	dl.Start()
	defer dl.Stop()

	r := router.New(router.Config{
		Handler:        handler.New(localStore),
		SessionHandler: handler.NewSessionHandler(dl),
		CatalogHandler: handler.NewCatalogHandler(dl),
		OrderHandler:   handler.NewOrderHandler(dl),
		SyncHandler:    handler.NewSyncHandler(dl),
		StateSocket:    hub,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
