package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asynkron/protoactor-go/actor"
	"github.com/example/shopeasy/gateway"
	"github.com/example/shopeasy/pkg/checkout"
	"github.com/example/shopeasy/pkg/config"
	"github.com/example/shopeasy/pkg/grpc"
	"github.com/example/shopeasy/pkg/logging"
	"github.com/example/shopeasy/pkg/notify"
	"github.com/example/shopeasy/pkg/pricing"
	"github.com/example/shopeasy/pkg/repository"
	"github.com/example/shopeasy/pkg/validation"
	"github.com/example/shopeasy/pkg/widget"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	configPath := "config/config.yaml"
	if p := os.Getenv("SHOPEASY_CONFIG"); p != "" {
		configPath = p
	}

	// Load config
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Using default config: %v\n", err)
		if cfg, err = config.Default(); err != nil {
			panic(fmt.Sprintf("Failed to load config: %v", err))
		}
	}

	// Setup logger
	logger, err := logging.New(cfg.Log)
	if err != nil {
		panic(fmt.Sprintf("Failed to create logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("Starting storefront",
		zap.String("name", cfg.Server.Name),
		zap.String("storage", cfg.Storage.Backend),
		zap.String("orders", cfg.Storage.Orders))

	policy, err := pricing.PolicyFromConfig(cfg.Checkout)
	if err != nil {
		logger.Fatal("Invalid checkout pricing", zap.Error(err))
	}

	b, err := openBackends(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to open storage", zap.Error(err))
	}
	defer b.Close()

	// Actor system for checkout sessions and notifications
	system := actor.NewActorSystem()
	defer system.Shutdown()

	notifier, err := notify.Spawn(system, logger, 20)
	if err != nil {
		logger.Fatal("Failed to start notifications", zap.Error(err))
	}

	cart := repository.NewCartStore(b.store)
	users := repository.NewUserSession(b.store, nil)
	validator := validation.New(time.Now)
	orders := repository.NewOrderBook(b.orders, b.audit, logger.Named("orders"))
	committer := checkout.NewCommitter(orders, cart, users, b.audit, logger.Named("commit"), nil)

	manager := checkout.NewManager(system, checkout.Deps{
		Cart:      cart,
		Committer: committer,
		Validator: validator,
		Widgets:   widget.SandboxFactory(cfg.Checkout.Widget),
		Notifier:  notifier,
		Policy:    policy,
		Logger:    logger.Named("checkout"),
		Timeout:   cfg.Checkout.RequestTimeout,
	})
	defer manager.Close()

	gin.SetMode(gin.ReleaseMode)
	gw := gateway.NewGateway(cfg, logger.Named("gateway"), gateway.Services{
		Cart:     cart,
		Users:    users,
		Orders:   orders,
		Checkout: manager,
		Notices:  notifier,
		History:  b.history,
		Policy:   policy,
	})

	serverErr := make(chan error, 2)
	go func() {
		if err := gw.Start(); err != nil {
			serverErr <- fmt.Errorf("gateway: %w", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var health *grpc.HealthServer
	if cfg.GRPC.Enabled {
		health = grpc.NewHealthServer(cfg, logger.Named("health"))
		for name, probe := range b.probes {
			health.AddProbe(name, probe)
		}
		health.Check(ctx)
		go health.Watch(ctx, 15*time.Second)
		go func() {
			if err := health.Start(); err != nil {
				serverErr <- fmt.Errorf("grpc: %w", err)
			}
		}()
	}

	logger.Info("Storefront started", zap.String("address", cfg.Server.Addr()))

	// Wait for interrupt signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("Received shutdown signal")
	case err := <-serverErr:
		logger.Error("Server error", zap.Error(err))
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	if err := gw.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to stop gateway", zap.Error(err))
	}
	if health != nil {
		health.Stop()
	}

	logger.Info("Storefront stopped")
}
