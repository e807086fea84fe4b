package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pillpath-finance/internal/application/query"
	"pillpath-finance/internal/application/store"
	"pillpath-finance/internal/domain/event"
	"pillpath-finance/internal/infrastructure/backend"
	"pillpath-finance/internal/infrastructure/bus"
	httpHandler "pillpath-finance/internal/infrastructure/http"
	jwtutil "pillpath-finance/pkg/jwt"
	"pillpath-finance/pkg/middleware"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or could not be loaded")
	}

	log.Println("Starting PillPath Admin Finance API...")

	platformConfig := &backend.Config{
		BaseURL: getEnv("PLATFORM_API_URL", "http://localhost:9000"),
		Timeout: 30 * time.Second,
	}

	// The admin session of the incoming request is forwarded to the core
	// platform API on every call.
	tokens := backend.TokenSourceFunc(func(ctx context.Context) (string, error) {
		if token, ok := middleware.GetBearerToken(ctx); ok {
			return token, nil
		}
		return "", fmt.Errorf("no admin session token in context")
	})

	platformClient := backend.NewClient(platformConfig, tokens)

	// Initialize infrastructure
	eventBus := bus.NewInMemoryEventBus()
	financeStore := store.NewFinanceStore(platformClient, eventBus)

	// Subscribe observability consumers to store events
	eventBus.Subscribe("SourceRefreshed", bus.EventHandlerFunc(
		func(ctx context.Context, e event.DomainEvent) error {
			refreshed := e.(*event.SourceRefreshed)
			log.Printf("Refreshed %s: %d of %d records", refreshed.Source, refreshed.Count, refreshed.Total)
			return nil
		}))

	eventBus.Subscribe("SourceRefreshFailed", bus.EventHandlerFunc(
		func(ctx context.Context, e event.DomainEvent) error {
			failed := e.(*event.SourceRefreshFailed)
			log.Printf("Refresh of %s failed: %s", failed.Source, failed.Reason)
			return nil
		}))

	eventBus.Subscribe("CommissionStatusChanged", bus.EventHandlerFunc(
		func(ctx context.Context, e event.DomainEvent) error {
			changed := e.(*event.CommissionStatusChanged)
			log.Printf("Commission %s is now %s", changed.CommissionID, changed.Status)
			return nil
		}))

	eventBus.Subscribe("PayoutPaid", bus.EventHandlerFunc(
		func(ctx context.Context, e event.DomainEvent) error {
			paid := e.(*event.PayoutPaid)
			log.Printf("Payout %s marked paid, receipt at %s", paid.PayoutID, paid.ReceiptURL)
			return nil
		}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus:", err)
	}

	// Initialize query handlers
	ledgerHandler := query.NewGetLedgerHandler(financeStore)
	walletHandler := query.NewGetWalletSummaryHandler(financeStore)
	orderPaymentsHandler := query.NewGetOrderPaymentsHandler(financeStore)

	// Initialize HTTP layer
	jwtManager := jwtutil.NewJWTManager(
		getEnv("JWT_SECRET", ""),
		getEnv("JWT_ISSUER", "pillpath"),
	)
	controller := httpHandler.NewHTTPFinanceController(financeStore, ledgerHandler, walletHandler, orderPaymentsHandler)
	router := httpHandler.NewRouter(controller, jwtManager)

	port := getEnv("PORT", "8080")
	server := &http.Server{
		Addr:    ":" + port,
		Handler: router,
	}

	// Start HTTP server
	go func() {
		log.Printf("Server starting on port %s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server:", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down server: %v", err)
	}
	eventBus.Stop()
	log.Println("Server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
