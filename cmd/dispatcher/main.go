package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	api "scrape-dispatch/internal/api/http"
	"scrape-dispatch/internal/config"
	"scrape-dispatch/internal/domain"
	"scrape-dispatch/internal/infra/etcd"
	infrahttp "scrape-dispatch/internal/infra/http"
	"scrape-dispatch/internal/infra/sqlite"
	"scrape-dispatch/internal/scheduler"
	"scrape-dispatch/internal/tracing"
	"scrape-dispatch/internal/usecase"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// 1. Initialize logger and tracer
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	tracerShutdown, err := tracing.InitTracer("scrape-dispatch")
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tracerShutdown(context.Background()); err != nil {
			log.Printf("failed to shutdown tracer: %v", err)
		}
	}()

	log.Println("Starting scrape dispatch node...")

	// 2. Load configuration. Missing store path or worker API URL is
	// fatal here, before any pass can run.
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	nodeID := uuid.New().String()
	log.Printf("Node ID: %s", nodeID)

	// 3. Create root context for lifecycle management
	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	setupGracefulShutdown(cancel)

	// 4. Open the job store
	db, err := sqlite.Open(rootCtx, cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open job store: %v", err)
	}
	defer db.Close()
	store := sqlite.NewJobStore(db, logger)
	log.Printf("Job store ready at %s", cfg.DatabasePath)

	// 5. Optional etcd pass lock. Without it the eligibility predicate is
	// the only safeguard against overlapping passes.
	var locker domain.Locker
	if len(cfg.EtcdEndpoints) > 0 {
		etcdClient, err := etcd.NewClient(cfg.EtcdEndpoints, cfg.EtcdTimeout)
		if err != nil {
			log.Fatalf("Failed to create etcd client: %v", err)
		}
		defer etcdClient.Close()
		locker = etcd.NewPassLocker(etcdClient)
		log.Println("Connected to etcd, pass locking enabled.")
	}

	// 6. Instantiate components
	executor := infrahttp.NewWorkerExecutor(cfg.WorkerAPIURL, cfg.WorkerAPIKey, cfg.WorkerTimeout, logger)
	dispatchService := usecase.NewDispatchService(store, executor, locker, logger)
	handler := api.NewDispatchHandler(dispatchService, logger)

	// 7. Register routes and metrics endpoint
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	// 8. Optional cron trigger for passes
	if cfg.DispatchCron != "" {
		passScheduler := scheduler.NewPassScheduler(cfg.DispatchCron, dispatchService, logger)
		go func() {
			if err := passScheduler.Start(rootCtx); err != nil && err != context.Canceled {
				log.Fatalf("Pass scheduler stopped with error: %v", err)
			}
		}()
	}

	// 9. Start HTTP API server with CORS middleware
	log.Printf("Starting HTTP API server on %s", cfg.HTTPListenAddr)
	server := &http.Server{
		Addr:    cfg.HTTPListenAddr,
		Handler: api.CORS(mux),
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	// 10. Block until shutdown
	<-rootCtx.Done()
	log.Println("Shutting down application gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("HTTP server shutdown failed: %v", err)
	}

	log.Println("Application shut down.")
}

func setupGracefulShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Printf("Received signal %v. Initiating graceful shutdown...", sig)
		cancel()
	}()
}
