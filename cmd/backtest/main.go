package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crypto-backtester/internal/backtest"
	"crypto-backtester/internal/data"
	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
	"crypto-backtester/internal/service"
	"crypto-backtester/internal/store"
	"crypto-backtester/internal/strategy"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func main() {
	configPath := pflag.StringP("config", "c", "config", "directory containing config.yaml")
	dataPath := pflag.StringP("data", "d", "", "CSV file with OHLCV bars (or ticks with --ticks)")
	dbPath := pflag.String("db", "", "sqlite file for run results, overrides Store.Path")
	ticks := pflag.Bool("ticks", false, "treat --data as a tick CSV and aggregate it to Backtest.Interval bars")
	debug := pflag.Bool("debug", false, "log every order and fill")
	pflag.Parse()

	service.InitLogger(*debug)
	defer service.Logger.Sync()

	if err := run(*configPath, *dataPath, *dbPath, *ticks); err != nil {
		service.Logger.Fatal("Backtest failed", zap.Error(err))
	}
}

func run(configPath, dataPath, dbPath string, ticks bool) error {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return fmt.Errorf("configuration directory %q not found", configPath)
	}
	cfg, err := service.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if dataPath == "" {
		return errors.New("no data file given, use --data")
	}

	symbol, err := cfg.SymbolTable().Lookup(cfg.Backtest.Symbol)
	if err != nil {
		return err
	}

	bars, err := loadBars(cfg, dataPath, ticks)
	if err != nil {
		return err
	}
	service.Logger.Info("Bars loaded",
		zap.String("Symbol", symbol.Name),
		zap.Int("Count", len(bars)),
		zap.Time("From", bars[0].Time),
		zap.Time("To", bars[len(bars)-1].Time))

	logger := service.Logger.With(zap.String("Symbol", symbol.Name)).Sugar()
	strat := strategy.NewSMACross(cfg.Strategy, cfg.Risk)
	bt, err := backtest.New(engine.Config{
		Symbol:          symbol,
		InitialBalance:  cfg.Backtest.InitialBalance,
		MakerFee:        cfg.Backtest.MakerFee,
		TakerFee:        cfg.Backtest.TakerFee,
		ExclusiveOrders: cfg.Backtest.ExclusiveOrders,
		KeepUnfilled:    cfg.Backtest.KeepUnfilled,
		CascadeCloses:   cfg.Backtest.CascadeCloses,
		ReturnPrincipal: cfg.Backtest.ReturnPrincipal,
		RefundReserved:  cfg.Backtest.RefundReserved,
	}, bars, strat, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := bt.Run(ctx)
	if err != nil {
		return err
	}
	logStats(res)

	if dbPath == "" {
		dbPath = cfg.Store.Path
	}
	if dbPath == "" {
		return nil
	}
	db, err := store.NewSqliteStore(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	runID, err := db.SaveResult(ctx, res, bars)
	if err != nil {
		return err
	}
	service.Logger.Info("Run saved", zap.String("RunID", runID), zap.String("DB", dbPath))
	return nil
}

func loadBars(cfg *service.Config, path string, ticks bool) ([]model.Bar, error) {
	if !ticks {
		return data.LoadBarsFile(path, cfg.Backtest.Symbol)
	}
	interval, err := service.ParseIntervalDuration(cfg.Backtest.Interval)
	if err != nil {
		return nil, err
	}
	return data.LoadTicksFile(path, cfg.Backtest.Symbol, interval)
}

func logStats(res *backtest.Result) {
	st := res.Stats
	service.Logger.Info("Backtest result",
		zap.String("Strategy", res.Strategy),
		zap.Time("Start", st.Start),
		zap.Time("End", st.End),
		zap.Duration("Duration", st.Duration),
		zap.Float64("ExposurePct", st.ExposurePct),
		zap.Float64("EquityFinal", st.EquityFinal),
		zap.Float64("EquityPeak", st.EquityPeak),
		zap.Float64("ReturnPct", st.ReturnPct),
		zap.Float64("BuyHoldReturnPct", st.BuyHoldReturnPct),
		zap.Float64("MaxDrawdownPct", st.MaxDrawdownPct),
		zap.Int("Trades", st.Trades),
		zap.Float64("WinRatePct", st.WinRatePct),
		zap.Float64("BestTradePct", st.BestTradePct),
		zap.Float64("WorstTradePct", st.WorstTradePct),
		zap.Float64("AvgTradePct", st.AvgTradePct),
		zap.Float64("ProfitFactor", st.ProfitFactor),
		zap.Float64("Expectancy", st.Expectancy),
		zap.Float64("TotalFees", st.TotalFees),
		zap.Duration("AvgTradeDuration", st.AvgDuration))
}
