package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"storefront/chatbot"
	"storefront/config"
	"storefront/consumers"
	"storefront/controllers"
	"storefront/database"
	"storefront/kafka"
	"storefront/messaging"
	"storefront/payment"
	"storefront/policy"
	"storefront/rabbitmq"
	"storefront/repository/mysql"
	"storefront/services"
	"storefront/session"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	setupLogger(cfg)

	// missing collaborator credentials are fatal at startup
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("Storefront stopped with error", "err", err)
		os.Exit(1)
	}
}

func setupLogger(cfg *config.Config) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler = slog.NewTextHandler(os.Stdout, opts)
	if strings.EqualFold(cfg.LogFormat, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
		gin.SetMode(gin.ReleaseMode)
	}
	slog.SetDefault(slog.New(handler))
}

func run(ctx context.Context, cfg *config.Config) error {
	db, err := database.InitDB(ctx, cfg.DSN())
	if err != nil {
		return err
	}
	defer database.CloseDB(db)

	products := mysql.NewProductRepository(db)
	carts := mysql.NewCartRepository(db)
	orders := mysql.NewOrderRepository(db)
	users := mysql.NewUserRepository(db)

	sessions, closeSessions, err := newSessionStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSessions()

	publisher, subscriber, closeBroker, err := newBroker(cfg)
	if err != nil {
		return err
	}
	defer closeBroker()

	responder, err := chatbot.NewGeminiResponder(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
	if err != nil {
		return err
	}
	defer responder.Close()

	admins := policy.NewAdminPolicy(cfg.AdminEmails...)
	gateway := payment.NewStripeGateway(cfg.StripeSecretKey, cfg.StripeWebhookSecret, nil)

	svc := controllers.Services{
		Catalog: services.NewCatalogService(products),
		Carts:   services.NewCartService(carts, products),
		Orders:  services.NewOrderService(orders, products, carts, sessions, publisher),
		Payments: services.NewPaymentService(gateway, products, sessions, publisher, services.PaymentOptions{
			Timeout:    cfg.UpstreamTimeout,
			CheckDelay: cfg.PaymentCheckDelay,
		}),
		Admin: services.NewAdminService(products, orders, users),
		Users: services.NewUserService(users, admins.IsAdminEmail),
		Chat:  services.NewChatService(responder, cfg.UpstreamTimeout),
	}

	if cfg.SeedCatalog {
		if err := svc.Catalog.Seed(ctx); err != nil {
			return err
		}
	}

	if subscriber != nil {
		reconciler := consumers.NewReconciler(svc.Orders)
		go func() {
			if err := reconciler.Run(ctx, subscriber); err != nil {
				slog.Error("Order event consumer stopped", "err", err)
			}
		}()
		if rmq, ok := subscriber.(*rabbitmq.RabbitMQ); ok {
			go func() {
				if err := rmq.ConsumeDeadLetters(ctx, reconciler.DeadLetter); err != nil {
					slog.Error("Dead letter consumer stopped", "err", err)
				}
			}()
		}
	}

	router := controllers.NewRouter(svc, controllers.RouterConfig{
		JWTSecret:   cfg.JWTSecret,
		CORSOrigins: cfg.CORSOrigins,
		IsAdmin:     admins.IsAdmin,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Storefront starting", "port", cfg.Port, "broker", cfg.EventBroker)
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

	slog.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		slog.Info("Using in-memory checkout sessions")
		return session.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
	client, err := session.Dial(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("Failed to close redis client", "err", err)
		}
	}
	return session.NewRedisStore(client, cfg.SessionTTL), closeFn, nil
}

func newBroker(cfg *config.Config) (messaging.Publisher, messaging.Subscriber, func(), error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		rmq, err := rabbitmq.NewRabbitMQ(cfg)
		if err != nil {
			return nil, nil, nil, err
		}
		if err := rmq.SetupQueues(); err != nil {
			rmq.Close()
			return nil, nil, nil, err
		}
		return rmq, rmq, rmq.Close, nil
	case "kafka":
		b := kafka.NewBroker(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		closeFn := func() {
			if err := b.Close(); err != nil {
				slog.Warn("Failed to close kafka writer", "err", err)
			}
		}
		return b, b, closeFn, nil
	default:
		slog.Warn("No event broker configured; order events are dropped")
		return messaging.NopPublisher{}, nil, func() {}, nil
	}
}
