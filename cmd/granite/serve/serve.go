package serve

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/granitedb/granite/internal/config"
	"github.com/granitedb/granite/internal/engine"
	"github.com/granitedb/granite/internal/logging"
	"github.com/granitedb/granite/internal/replication"
	"github.com/granitedb/granite/pkg/api"
	"github.com/granitedb/granite/pkg/objectstore"
)

func Run(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	addr := fs.String("addr", "", "Listen address (overrides config)")
	fs.Parse(args)

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *addr != "" {
		cfg.ListenAddr = *addr
	}

	store, err := objectstore.New(objectstore.Config{
		Type:      cfg.ObjectStore.Type,
		RootPath:  cfg.ObjectStore.RootPath,
		Endpoint:  cfg.ObjectStore.Endpoint,
		Bucket:    cfg.ObjectStore.Bucket,
		AccessKey: cfg.ObjectStore.AccessKey,
		SecretKey: cfg.ObjectStore.SecretKey,
		Region:    cfg.ObjectStore.Region,
		UseSSL:    cfg.ObjectStore.UseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to initialize object store: %v", err)
	}
	fmt.Printf("Connected to object store: %s\n", cfg.ObjectStore.Type)

	logger := logging.New()

	provider := replication.NewFromConfig(cfg.Membership)
	if err := provider.Start(); err != nil {
		log.Fatalf("Failed to start membership provider: %v", err)
	}

	selfAddr := cfg.ListenAddr
	if gossip, ok := provider.(*replication.GossipProvider); ok {
		selfAddr = gossip.SelfAddr()
	}
	fetcher := replication.NewHTTPFetcher(provider, store, selfAddr)

	eng := engine.New(cfg, logger, store, fetcher)
	eng.Start()

	router := api.NewRouter(cfg, eng, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		fmt.Printf("Starting granite server on %s\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	fmt.Println("\nShutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Shutdown error: %v", err)
	}

	eng.Stop()
	provider.Stop()
	fmt.Println("Server stopped")
}
