package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"crypto-backtester/internal/backtest"
	"crypto-backtester/internal/model"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrRunNotFound = errors.New("store: run not found")

// SqliteStore 把回测结果落到 sqlite
type SqliteStore struct {
	db *gorm.DB
}

func NewSqliteStore(path string) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewSqliteStoreFromDB(db)
}

func NewSqliteStoreFromDB(db *gorm.DB) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	if err := db.AutoMigrate(&RunModel{}, &TradeModel{}, &EquityPointModel{}); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveResult 在一个事务内写入汇总、交易与资金曲线，返回新生成的 run ID
func (s *SqliteStore) SaveResult(ctx context.Context, res *backtest.Result, bars []model.Bar) (string, error) {
	if res == nil {
		return "", errors.New("result cannot be nil")
	}
	runID := uuid.NewString()
	st := res.Stats
	run := RunModel{
		ID:               runID,
		Strategy:         res.Strategy,
		Symbol:           res.Symbol,
		StartTime:        st.Start,
		EndTime:          st.End,
		InitialBalance:   st.InitialBalance,
		FinalBalance:     st.EquityFinal,
		ReturnPct:        st.ReturnPct,
		BuyHoldReturnPct: st.BuyHoldReturnPct,
		MaxDrawdownPct:   st.MaxDrawdownPct,
		Trades:           st.Trades,
		WinRatePct:       st.WinRatePct,
		ProfitFactor:     finite(st.ProfitFactor),
		Expectancy:       st.Expectancy,
		TotalFees:        st.TotalFees,
		CreatedAt:        time.Now().UTC(),
	}

	trades := make([]TradeModel, 0, len(res.Trades))
	for _, t := range res.Trades {
		trades = append(trades, TradeModel{
			RunID:      runID,
			Seq:        t.ID,
			Side:       t.Side.String(),
			Status:     string(t.Status),
			Size:       t.Size,
			EntryPrice: t.EntryPrice,
			EntryTime:  t.EntryTime,
			EntryOrder: t.EntryOrderID,
			ExitPrice:  t.ExitPrice,
			ExitTime:   t.ExitTime,
			ExitOrder:  t.ExitOrderID,
			PnL:        t.PnL,
			Fee:        t.Fee,
		})
	}

	points := make([]EquityPointModel, 0, len(res.EquityCurve))
	for i, equity := range res.EquityCurve {
		p := EquityPointModel{RunID: runID, Equity: equity}
		if i < len(bars) {
			p.BarTime = bars[i].Time
		}
		if i < len(res.MarketValue) {
			p.MarketValue = res.MarketValue[i]
		}
		points = append(points, p)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return err
		}
		if len(trades) > 0 {
			if err := tx.CreateInBatches(trades, 500).Error; err != nil {
				return err
			}
		}
		if len(points) > 0 {
			if err := tx.CreateInBatches(points, 500).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("save run %s: %w", runID, err)
	}
	return runID, nil
}

func (s *SqliteStore) GetRun(ctx context.Context, id string) (*RunModel, error) {
	var run RunModel
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRuns 按创建时间倒序列出最近的回测
func (s *SqliteStore) ListRuns(ctx context.Context, limit int) ([]RunModel, error) {
	if limit <= 0 {
		limit = 100
	}
	var runs []RunModel
	if err := s.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&runs).Error; err != nil {
		return nil, err
	}
	return runs, nil
}

func (s *SqliteStore) ListTrades(ctx context.Context, runID string) ([]TradeModel, error) {
	var trades []TradeModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("seq ASC").
		Find(&trades).Error; err != nil {
		return nil, err
	}
	return trades, nil
}

func (s *SqliteStore) ListEquity(ctx context.Context, runID string) ([]EquityPointModel, error) {
	var points []EquityPointModel
	if err := s.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("id ASC").
		Find(&points).Error; err != nil {
		return nil, err
	}
	return points, nil
}

// finite sqlite 不能可靠地保存 Inf，按最大值记录
func finite(v float64) float64 {
	switch {
	case math.IsInf(v, 1):
		return math.MaxFloat64
	case math.IsInf(v, -1):
		return -math.MaxFloat64
	case math.IsNaN(v):
		return 0
	}
	return v
}
