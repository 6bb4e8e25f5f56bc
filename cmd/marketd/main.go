package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"capmarket/config"
	"capmarket/gateway"
	"capmarket/native/bank"
	"capmarket/native/market"
	"capmarket/observability"
	"capmarket/observability/logging"
	"capmarket/state"
	"capmarket/storage"
)

func main() {
	configPath := flag.String("config", "marketd.toml", "path to the daemon configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logging.Setup("marketd", "").Error("load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup("marketd", cfg.Environment)

	var db storage.Database
	if cfg.DataDir != "" {
		db, err = storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("no DataDir configured, using in-memory storage")
		db = storage.NewMemDB()
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}()

	store := state.NewMarketStore(db)
	if err := store.InitMarket(&market.Market{
		CollateralCap:         cfg.CollateralCapWei,
		FlashFeeBips:          cfg.FlashFeeBips,
		ReserveFactorMantissa: cfg.ReserveFactorMantissa,
	}); err != nil {
		logger.Error("initialise market record", "error", err)
		os.Exit(1)
	}

	marketAddr := config.Address(cfg.MarketAddress)
	engine := market.NewEngine(marketAddr, config.Address(cfg.UnderlyingAddress), config.Address(cfg.FeeRecipient))
	engine.SetState(store)
	engine.SetTokenAdapter(bank.NewAdapter(bank.NewLedger(db), marketAddr))
	engine.SetController(&market.OpenPolicy{Membership: true}, config.Address(cfg.ControllerAddress))
	engine.SetAccrualSource(market.NewStoredAccrual(cfg.BlockHeight, cfg.ExchangeRateMantissa))
	engine.SetBorrowLedger(market.NewPrincipalLedger())
	engine.SetAdmin(config.Address(cfg.AdminAddress))
	engine.SetBlockHeight(cfg.BlockHeight)
	engine.SetEmitter(observability.NewEventObserver(logger))

	server := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           gateway.NewServer(engine, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("market gateway listening", "address", cfg.ListenAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("gateway serve", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("gateway shutdown", "error", err)
	}
	logger.Info("marketd stopped")
}
