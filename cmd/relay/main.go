package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"sharedscriptures/api/internal/config"
	"sharedscriptures/api/internal/relay"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var bridge *relay.Bridge
	if strings.TrimSpace(cfg.RedisURL) != "" {
		var err error
		bridge, err = relay.NewBridge(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis bridge setup failed: %v", err)
		}
		defer bridge.Close()
		log.Printf("Cross-instance fan-out enabled via Redis")
	}

	hub := relay.NewHub(bridge)
	if bridge != nil {
		go bridge.Run(ctx, hub)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWS)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	server := &http.Server{
		Addr:              cfg.RelayAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Shared Scriptures relay listening on %s", cfg.RelayAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("relay failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
}
