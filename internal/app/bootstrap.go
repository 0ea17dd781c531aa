package app

import (
	"log/slog"
	"time"

	"stock_go/internal/domain"
	"stock_go/internal/infra"
	"stock_go/internal/infra/storage"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config *infra.Config
	Store  *storage.Store
	Market *domain.MarketHours
	Loc    *time.Location
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, logger, DB)
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Stock Go...")

	// 1. Load Config
	cfg, err := infra.LoadConfig("configs/config.yaml")
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStore(cfg)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Database initialized", slog.String("driver", cfg.DB.Driver))

	// 4. Market hours gate
	market, err := domain.NewMarketHours(cfg.Market.Timezone, nil)
	if err != nil {
		return err
	}
	b.Market = market

	loc, err := time.LoadLocation(cfg.Market.Timezone)
	if err != nil {
		return err
	}
	b.Loc = loc
	slog.Info("✅ Market calendar ready", slog.String("timezone", cfg.Market.Timezone))

	return nil
}
