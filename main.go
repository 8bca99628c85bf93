package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"storefront/config"
	"storefront/consumers"
	"storefront/controllers"
	"storefront/database"
	"storefront/events"
	"storefront/kafka"
	"storefront/logger"
	"storefront/rabbitmq"
	"storefront/routes"
	"storefront/services"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Logger initialization failed: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("Server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openOrderStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Error("Failed to close order store", zap.Error(err))
		}
	}()

	publisher, err := openPublisher(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer publisher.Close()

	catalog := database.NewFileCatalog(cfg.ProductsFile)
	orders := services.NewOrderService(catalog, store, publisher, cfg.PricingMode == config.PricingClient, log)

	router := routes.NewRouter(routes.Options{
		Products:       controllers.NewProductController(catalog, log),
		Orders:         controllers.NewOrderController(orders, log),
		Logger:         log,
		CORSOrigins:    cfg.CORSOrigins,
		AdminJWTSecret: cfg.AdminJWTSecret,
		StaticDir:      cfg.StaticDir,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Storefront server starting",
			zap.String("port", cfg.Port),
			zap.String("order_store", cfg.OrderStore),
			zap.String("pricing_mode", cfg.PricingMode),
			zap.String("event_broker", cfg.EventBroker))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	log.Info("Server exited")
	return nil
}

// openOrderStore returns the configured store. The file store always sits
// behind a single writer so concurrent checkouts cannot overwrite each other.
func openOrderStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (database.OrderStore, error) {
	ids := database.NewIDGenerator()

	switch cfg.OrderStore {
	case config.StoreMySQL:
		db, err := database.OpenMySQL(cfg.MySQLDSN)
		if err != nil {
			return nil, err
		}
		store := database.NewMySQLOrderStore(db, ids, log)
		initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := store.Init(initCtx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info("Using MySQL order store")
		return store, nil

	default:
		file, err := database.NewFileOrderStore(cfg.OrdersFile, ids, log)
		if err != nil {
			return nil, err
		}
		log.Info("Using file order store", zap.String("path", cfg.OrdersFile))
		return database.NewSerialOrderStore(file, 64), nil
	}
}

func openPublisher(ctx context.Context, cfg *config.Config, log *zap.Logger) (events.Publisher, error) {
	switch cfg.EventBroker {
	case config.BrokerRabbitMQ:
		rmq, err := rabbitmq.NewRabbitMQ(cfg.RabbitMQURL, rabbitmq.Topology{
			Exchange:        cfg.OrderExchange,
			Queue:           cfg.OrderQueue,
			DeadLetterQueue: cfg.DeadLetterQueue,
		})
		if err != nil {
			return nil, err
		}
		if err := rmq.SetupQueues(); err != nil {
			rmq.Close()
			return nil, err
		}
		consumeCh, err := rmq.ConsumerChannel()
		if err != nil {
			rmq.Close()
			return nil, err
		}
		consumer := consumers.NewOrderConsumer(consumeCh, cfg.OrderQueue, cfg.DeadLetterQueue, log)
		if err := consumer.Start(ctx); err != nil {
			rmq.Close()
			return nil, err
		}
		log.Info("Publishing order events to RabbitMQ", zap.String("exchange", cfg.OrderExchange))
		return rmq, nil

	case config.BrokerKafka:
		log.Info("Publishing order events to Kafka", zap.String("topic", cfg.KafkaTopic))
		return kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic), nil

	default:
		return events.Nop{}, nil
	}
}
