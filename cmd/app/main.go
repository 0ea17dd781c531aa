package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"stock_go/internal/app"
	"stock_go/internal/engine"
	"stock_go/internal/infra/hantu"
	"stock_go/internal/service"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	// 1. Pprof Server (for performance profiling)
	go func() {
		// Localhost only for security
		slog.Info("🕵️ Pprof server started on localhost:6060")
		if err := http.ListenAndServe("localhost:6060", nil); err != nil {
			slog.Error("Pprof server failed", slog.Any("error", err))
		}
	}()

	// 2. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		os.Exit(1)
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := bootstrap.Config
	store := bootstrap.Store

	// 4. Price Oracle + Hantu feed worker
	prices := service.NewPriceService()
	prices.StartQuoteProcessor(ctx)

	feed := hantu.NewWorker(cfg.API.Hantu.WSURL, cfg.API.Hantu.AppKey, cfg.API.Hantu.Symbols, prices.QuoteChan())
	if err := feed.Connect(ctx); err != nil {
		slog.Error("Failed to connect Hantu feed", slog.Any("error", err))
	}
	defer feed.Disconnect()
	slog.InfoContext(ctx, "✅ Hantu feed worker started", slog.Int("symbols", len(cfg.API.Hantu.Symbols)))

	// 5. Services + Execution Engine
	locks := engine.NewMemberLocks()
	portfolios := service.NewPortfolioService()
	notifier := service.NewNotificationService(store)

	executor := engine.NewExecutor(store, prices, portfolios, notifier, locks)
	scanner := engine.NewScanner(store, executor, bootstrap.Market, cfg.ScanInterval(), cfg.BatchTimeout())
	go scanner.Run(ctx)
	slog.InfoContext(ctx, "✅ Limit order scanner started")

	// 6. Daily profit rate scheduler
	profits := service.NewProfitService(store, portfolios, prices, bootstrap.Loc)
	go profits.RunDaily(ctx)

	slog.InfoContext(ctx, "✨ Stock Go fully operational. Press Ctrl+C to exit.")

	// Wait for shutdown signal
	<-ctx.Done()

	slog.InfoContext(ctx, "👋 Shutting down gracefully...")
}
