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

	"agrilink-system/services/lifecycle-service/internal/config"
	"agrilink-system/services/lifecycle-service/internal/domain"
	"agrilink-system/services/lifecycle-service/internal/handlers"
	"agrilink-system/services/lifecycle-service/internal/lifecycle"
	"agrilink-system/services/lifecycle-service/internal/middleware"
	"agrilink-system/services/lifecycle-service/internal/repository"
	"agrilink-system/shared/kafka"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var configPath string
	flagSet := pflag.NewFlagSet("lifecycle-service", pflag.ContinueOnError)
	flagSet.StringVar(&configPath, "config", "", "path to YAML config file (default: $"+config.EnvVar+")")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Stores: Postgres when configured, in-memory otherwise.
	var (
		products domain.ProductRepository
		orders   domain.OrderRepository
		payments domain.PaymentRepository
	)
	if cfg.Postgres.DSN != "" {
		store, err := repository.NewPostgresStore(cfg.Postgres.DSN)
		if err != nil {
			return fmt.Errorf("connecting to postgres: %w", err)
		}
		defer store.Close()
		products, orders, payments = store.Products(), store.Orders(), store.Payments()
	} else {
		slog.Warn("no postgres DSN configured, using in-memory store")
		store := repository.NewMemoryStore()
		products, orders, payments = store.Products(), store.Orders(), store.Payments()
	}

	var rdb *redis.Client
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		products = repository.NewCachedProductRepository(products, rdb, cfg.Redis.CacheTTL.Std())
	}

	engine := lifecycle.NewEngine(products, orders, payments)

	handler := &handlers.LifecycleHandler{
		Engine: engine,
		Topics: handlers.Topics{
			Notifications: cfg.Kafka.NotificationsTopic,
			Changes:       cfg.Kafka.ChangesTopic,
		},
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := kafka.NewProducer(cfg.Kafka.Brokers)
		if err != nil {
			return fmt.Errorf("starting kafka producer: %w", err)
		}
		defer producer.Close()
		handler.Events = producer
	}

	mux := setupRoutes(handler)
	var root http.Handler = mux
	if rdb != nil {
		root = middleware.RateLimit(rdb, cfg.RateLimit.Requests, cfg.RateLimit.Window.Std())(root)
	}

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: root,
	}

	scanCtx, stopScanner := context.WithCancel(context.Background())
	defer stopScanner()
	go runCollectionScanner(scanCtx, products, handler, cfg.Collection.ScanInterval.Std())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("starting lifecycle service", "addr", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	<-quit
	slog.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(ctx)
}

func setupRoutes(h *handlers.LifecycleHandler) *http.ServeMux {
	mux := http.NewServeMux()
	withActor := func(hf http.HandlerFunc) http.Handler {
		return middleware.Actor(hf)
	}

	mux.Handle("POST /products", withActor(h.HandleSubmitProduct))
	mux.Handle("POST /products/{id}/transition", withActor(h.HandleProductTransition))
	mux.Handle("GET /products/aggregated", withActor(h.HandleAggregatedProducts))
	mux.Handle("POST /orders", withActor(h.HandlePlaceOrder))
	mux.Handle("POST /orders/{id}/transition", withActor(h.HandleOrderTransition))
	mux.Handle("GET /orders/{id}/payment", withActor(h.HandleOrderPayment))
	mux.Handle("POST /payments/{id}/payout", withActor(h.HandlePayout))
	mux.Handle("GET /farmers/{id}/earnings", withActor(h.HandleFarmerEarnings))
	mux.Handle("GET /farmers/top", withActor(h.HandleTopFarmers))

	// Health check endpoint for Kubernetes
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return mux
}

// runCollectionScanner periodically reminds farmers about products
// whose collection date has arrived. Each product is reminded once
// per process lifetime.
func runCollectionScanner(ctx context.Context, products domain.ProductRepository, h *handlers.LifecycleHandler, interval time.Duration) {
	if h.Events == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	reminded := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			scanCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			due, err := products.FindDueCollections(scanCtx, time.Now())
			cancel()
			if err != nil {
				slog.Error("failed to scan for due collections", "error", err)
				continue
			}

			for _, p := range due {
				if _, seen := reminded[p.ID]; seen {
					continue
				}
				reminded[p.ID] = struct{}{}
				h.Events.Publish(h.Topics.Notifications, domain.Notification{
					TargetUserID:    p.FarmerID,
					Title:           "Collection due",
					Message:         fmt.Sprintf("%s is scheduled for collection today", p.Category),
					Type:            domain.NotificationCollection,
					RelatedEntityID: p.ID,
				})
			}
		}
	}
}
