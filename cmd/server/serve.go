package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"payment-webhooks/internal/api"
	"payment-webhooks/internal/config"
	"payment-webhooks/internal/database"
	"payment-webhooks/internal/metrics"
	"payment-webhooks/internal/services"
	"payment-webhooks/pkg/logging"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := bootstrap(); err != nil {
		return err
	}
	defer database.CloseDatabase()

	cfg := config.AppConfig
	if cfg.MetricsEnabled {
		metrics.Init()
	}

	store := database.NewTransactionStore(database.GetDB())
	orders := database.NewOrderRepository(database.GetDB())
	resolver := services.NewOrderResolver(orders)
	hooks, closeHooks := buildHooks(cfg, orders)
	defer closeHooks()

	var locker services.KeyLocker = services.NewMemoryLocker()
	if client := database.GetRedis(); client != nil {
		locker = services.NewRedisLocker(client, cfg.LockTTL, cfg.LockWait)
		logging.Infof("Using Redis key locks")
		if cfg.LockTTL <= services.HookDeliveryBudget {
			logging.Warnf("LOCK_TTL %s does not cover hook delivery (up to %s), locks may expire mid-callback",
				cfg.LockTTL, services.HookDeliveryBudget)
		}
	}

	handlers := &api.Handlers{
		Transactions:   store,
		Orders:         orders,
		AdminAPIKey:    cfg.AdminAPIKey,
		MetricsEnabled: cfg.MetricsEnabled,
	}
	if cfg.Payme.Enabled {
		handlers.Payme = services.NewPaymeService(cfg.Payme, store, resolver, locker, hooks)
		if cfg.MetricsEnabled {
			handlers.Payme.SetObserver(metrics.ObserveCallback)
		}
		logging.Infof("Payme endpoint enabled - merchant: %s, account field: %s", cfg.Payme.MerchantID, cfg.Payme.AccountField)
	}
	if cfg.Click.Enabled {
		handlers.Click = services.NewClickService(cfg.Click, store, resolver, locker, hooks)
		if cfg.MetricsEnabled {
			handlers.Click.SetObserver(metrics.ObserveCallback)
		}
		logging.Infof("Click endpoint enabled - service: %s, commission: %s%%", cfg.Click.ServiceID, cfg.Click.CommissionPercent)
	}

	// Set Gin mode
	gin.SetMode(cfg.Mode)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	api.SetupRoutes(r, handlers)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logging.Infof("Starting server on port %s", cfg.Port)
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

	logging.Infof("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// buildHooks assembles the hook chain from configuration. The returned func releases hook resources.
func buildHooks(cfg *config.Config, orders *database.OrderRepository) (services.Hooks, func()) {
	chain := services.HookChain{services.NewOrderStatusHooks(orders)}
	closers := []func(){}

	if cfg.MetricsEnabled {
		chain = append(chain, metrics.TransitionHooks())
	}
	if cfg.MerchantWebhookURL != "" {
		chain = append(chain, services.NewWebhookNotifier(cfg.MerchantWebhookURL, cfg.MerchantWebhookSecret))
		logging.Infof("Merchant webhook notifications enabled")
	}
	if cfg.BrevoAPIKey != "" && cfg.NotifyEmail != "" {
		sender := services.NewBrevoService(cfg.BrevoAPIKey, cfg.BrevoFromEmail, cfg.BrevoFromName)
		chain = append(chain, services.NewPaymentEmailHooks(sender, cfg.NotifyEmail))
		logging.Infof("Payment e-mail notifications enabled")
	}
	if cfg.KafkaBroker != "" {
		writer := services.NewKafkaWriter(cfg.KafkaBroker, cfg.KafkaTopic)
		chain = append(chain, services.NewEventPublisher(writer))
		closers = append(closers, func() {
			if err := writer.Close(); err != nil {
				logging.Errorf("Failed to close Kafka writer: %v", err)
			}
		})
		logging.Infof("Kafka event stream enabled - topic: %s", cfg.KafkaTopic)
	}

	return chain, func() {
		for _, c := range closers {
			c()
		}
	}
}
