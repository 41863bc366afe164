package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trading-journal-go/internal/config"
	"trading-journal-go/internal/database"
	"trading-journal-go/internal/journal"
	"trading-journal-go/internal/models"
	"trading-journal-go/internal/rollup"
)

var now = time.Date(2024, 3, 20, 12, 0, 0, 0, time.UTC)

func day(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

type MockRollup struct {
	mock.Mock
}

func (m *MockRollup) Recompute(ctx context.Context, tickerID string) error {
	return m.Called(tickerID).Error(0)
}

type testEnv struct {
	journal *Journal
	tickers *database.TickerRepository
}

// setupTest wires a journal on a fresh in-memory database with a real rollup.
func setupTest(t *testing.T) testEnv {
	return setupTestWithCap(t, 100)
}

func setupTestWithCap(t *testing.T, maxStatisticsTrades int) testEnv {
	db, err := database.NewDatabase(config.Database{DSN: "file::memory:"})
	require.NoError(t, err)

	trades := database.NewTradeRepository(db)
	tickers := database.NewTickerRepository(db)
	roll := rollup.NewService(trades, tickers, zap.NewNop())
	calc := journal.Calculator{Now: func() time.Time { return now }}
	cfg := config.Journal{TargetPositionSize: 2000, MaxStatisticsTrades: maxStatisticsTrades}

	return testEnv{
		journal: NewJournal(trades, tickers, roll, calc, cfg, zap.NewNop()),
		tickers: tickers,
	}
}

func longInput(symbol string) journal.TradeInput {
	return journal.TradeInput{
		Symbol:          symbol,
		EntryDate:       journal.On(day(1)),
		EntryPrice:      journal.Num(100),
		Shares:          journal.Num(10),
		InitialStopLoss: journal.Num(95),
	}
}

func TestJournal_CreateTrade(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)

	trade, err := env.journal.CreateTrade(ctx, longInput("aapl"))

	require.NoError(t, err)
	assert.NotEmpty(t, trade.ID)
	assert.Equal(t, models.StatusOpen, trade.Status)
	assert.Equal(t, 1000.0, trade.PositionSize)
	assert.Equal(t, 50.0, trade.RiskAmount)
	assert.Equal(t, 2000.0, trade.TargetPositionSize, "configured default target")
	assert.Equal(t, 0.5, trade.NormalizationFactor)
	require.NotNil(t, trade.Ticker)
	assert.Equal(t, "AAPL", trade.Ticker.Symbol)

	ticker, err := env.tickers.Get(ctx, trade.TickerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), ticker.TradeCount)
	assert.Equal(t, int64(1), ticker.OpenTradeCount)
}

func TestJournal_CreateTradeValidation(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)

	in := longInput("AAPL")
	in.Shares = journal.Number{}
	_, err := env.journal.CreateTrade(ctx, in)
	assert.ErrorIs(t, err, journal.ErrValidation)

	in = longInput("")
	_, err = env.journal.CreateTrade(ctx, in)
	var verr *journal.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ticker", verr.Field)

	in = longInput("")
	in.TickerID = "missing"
	_, err = env.journal.CreateTrade(ctx, in)
	assert.ErrorIs(t, err, journal.ErrValidation)
}

func TestJournal_AddExitLifecycle(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)
	trade, err := env.journal.CreateTrade(ctx, longInput("MSFT"))
	require.NoError(t, err)

	trade, err = env.journal.AddExit(ctx, trade.ID, journal.ExitInput{
		Price: journal.Num(110), Shares: journal.Num(4), Date: journal.On(day(5)), Reason: "strength",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, trade.Status)
	assert.Equal(t, 40.0, trade.ProfitLossAmount)

	_, err = env.journal.AddExit(ctx, trade.ID, journal.ExitInput{Price: journal.Num(120), Shares: journal.Num(7)})
	assert.ErrorIs(t, err, ErrExitExceedsShares)

	trade, err = env.journal.AddExit(ctx, trade.ID, journal.ExitInput{
		Price: journal.Num(90), Shares: journal.Num(6), Date: journal.On(day(8)), Reason: "stop",
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, trade.Status)
	assert.Equal(t, -20.0, trade.ProfitLossAmount)
	assert.True(t, trade.CompletionDate.Equal(day(8)))
	assert.Equal(t, 7, trade.DaysHeld)

	stored, err := env.journal.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Exits, 2)
	assert.Equal(t, models.ExitReasonStopHit, stored.Exits[1].Reason)

	ticker, err := env.tickers.Get(ctx, trade.TickerID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), ticker.OpenTradeCount)
	assert.Equal(t, -20.0, ticker.TotalProfitLoss)
}

func TestJournal_AddExitValidation(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)
	trade, err := env.journal.CreateTrade(ctx, longInput("MSFT"))
	require.NoError(t, err)

	_, err = env.journal.AddExit(ctx, trade.ID, journal.ExitInput{Price: journal.Num(110)})
	assert.ErrorIs(t, err, journal.ErrValidation)

	_, err = env.journal.AddExit(ctx, "nope", journal.ExitInput{Price: journal.Num(110), Shares: journal.Num(1)})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_UpdateTrade(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)

	in := longInput("AMD")
	in.Exits = []journal.ExitInput{{Price: journal.Num(110), Shares: journal.Num(5), Date: journal.On(day(3))}}
	trade, err := env.journal.CreateTrade(ctx, in)
	require.NoError(t, err)
	require.Equal(t, models.StatusPartial, trade.Status)

	// Exits left out are kept; the target size never changes.
	update := longInput("")
	update.EntryPrice = journal.Num(105)
	update.TargetPositionSize = journal.Num(99999)
	update.Notes = "re-entered higher"
	updated, err := env.journal.UpdateTrade(ctx, trade.ID, update)
	require.NoError(t, err)
	assert.Equal(t, trade.ID, updated.ID)
	assert.Equal(t, trade.TickerID, updated.TickerID)
	assert.Equal(t, 2000.0, updated.TargetPositionSize)
	assert.Equal(t, 1050.0, updated.PositionSize)
	assert.Equal(t, 25.0, updated.ProfitLossAmount)
	assert.Len(t, updated.Exits, 1)

	// An empty list clears them.
	update.Exits = []journal.ExitInput{}
	updated, err = env.journal.UpdateTrade(ctx, trade.ID, update)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, updated.Status)
	assert.Zero(t, updated.ProfitLossAmount)

	stored, err := env.journal.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Empty(t, stored.Exits)
	assert.Equal(t, "re-entered higher", stored.Notes)

	_, err = env.journal.UpdateTrade(ctx, "nope", update)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJournal_UpdateTradeMovesTicker(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)
	trade, err := env.journal.CreateTrade(ctx, longInput("OLD"))
	require.NoError(t, err)

	updated, err := env.journal.UpdateTrade(ctx, trade.ID, longInput("NEW"))
	require.NoError(t, err)
	assert.NotEqual(t, trade.TickerID, updated.TickerID)

	old, err := env.tickers.Get(ctx, trade.TickerID)
	require.NoError(t, err)
	assert.Zero(t, old.TradeCount)
	moved, err := env.tickers.Get(ctx, updated.TickerID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), moved.TradeCount)
}

func TestJournal_StopAndCurrentPrice(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)
	trade, err := env.journal.CreateTrade(ctx, longInput("NVDA"))
	require.NoError(t, err)

	trade, err = env.journal.UpdateCurrentPrice(ctx, trade.ID, 110)
	require.NoError(t, err)
	assert.Equal(t, 100.0, trade.Current.ProfitLossAmount)
	assert.Equal(t, 50.0, trade.Current.RiskAmount)
	assert.Equal(t, 4.0, trade.Current.BreakEvenShares)
	require.NotNil(t, trade.Current.LastUpdated)

	trade, err = env.journal.AddStopModification(ctx, trade.ID, journal.StopInput{Price: journal.Num(102), Date: journal.On(day(4))})
	require.NoError(t, err)
	assert.Equal(t, 50.0, trade.RiskAmount, "realized risk stays on the initial stop")
	assert.Zero(t, trade.Current.RiskAmount)
	assert.Zero(t, trade.Current.BreakEvenShares)

	stored, err := env.journal.GetTrade(ctx, trade.ID)
	require.NoError(t, err)
	assert.Equal(t, 110.0, stored.CurrentPrice)
	assert.Len(t, stored.StopModifications, 1)

	_, err = env.journal.UpdateCurrentPrice(ctx, trade.ID, 0)
	assert.ErrorIs(t, err, journal.ErrValidation)
	_, err = env.journal.AddStopModification(ctx, trade.ID, journal.StopInput{})
	assert.ErrorIs(t, err, journal.ErrValidation)
}

func TestJournal_DeleteTrade(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)
	trade, err := env.journal.CreateTrade(ctx, longInput("META"))
	require.NoError(t, err)

	require.NoError(t, env.journal.DeleteTrade(ctx, trade.ID))

	_, err = env.journal.GetTrade(ctx, trade.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, env.journal.DeleteTrade(ctx, trade.ID), ErrNotFound)

	ticker, err := env.tickers.Get(ctx, trade.TickerID)
	require.NoError(t, err)
	assert.Zero(t, ticker.TradeCount)
}

func TestJournal_Statistics(t *testing.T) {
	ctx := context.Background()
	env := setupTest(t)

	closeAt := func(symbol string, price float64, exitDay int) {
		in := longInput(symbol)
		in.Exits = []journal.ExitInput{{Price: journal.Num(price), Shares: journal.Num(10), Date: journal.On(day(exitDay))}}
		_, err := env.journal.CreateTrade(ctx, in)
		require.NoError(t, err)
	}
	closeAt("AAPL", 110, 5) // +100
	closeAt("AAPL", 95, 6)  // -50
	closeAt("TSLA", 120, 9) // +200
	_, err := env.journal.CreateTrade(ctx, longInput("TSLA"))
	require.NoError(t, err)

	snap, err := env.journal.Statistics(ctx, journal.StatisticsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, snap.TotalTrades)
	assert.Equal(t, 2, snap.WinningTrades)
	assert.Equal(t, 250.0, snap.TotalProfitLoss)
	assert.Equal(t, 3, snap.Normalized.TotalTrades)
	assert.Equal(t, 500.0, snap.Normalized.TotalProfitLoss)

	windowed, err := env.journal.Statistics(ctx, journal.StatisticsOptions{
		Status:    journal.ClosedOnly,
		DateRange: &journal.DateRange{Start: day(5), End: day(6)},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, windowed.TotalTrades)
	assert.Equal(t, 50.0, windowed.TotalProfitLoss)

	tickers, err := env.journal.ListTickers(ctx)
	require.NoError(t, err)
	require.Len(t, tickers, 2)
	tsla, err := env.journal.Statistics(ctx, journal.StatisticsOptions{TickerID: tickers[1].ID})
	require.NoError(t, err)
	assert.Equal(t, 1, tsla.TotalTrades)
	assert.Equal(t, 200.0, tsla.TotalProfitLoss)
}

func TestJournal_StatisticsWindowBeforeCap(t *testing.T) {
	ctx := context.Background()
	env := setupTestWithCap(t, 2)

	for _, exitDay := range []int{2, 8, 9} {
		in := longInput("NVDA")
		in.Exits = []journal.ExitInput{{Price: journal.Num(110), Shares: journal.Num(10), Date: journal.On(day(exitDay))}}
		_, err := env.journal.CreateTrade(ctx, in)
		require.NoError(t, err)
	}

	// The two newest trades fill the cap; the window still sees the oldest one.
	snap, err := env.journal.Statistics(ctx, journal.StatisticsOptions{
		DateRange: &journal.DateRange{Start: day(1), End: day(3)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalTrades)
	assert.Equal(t, 100.0, snap.TotalProfitLoss)

	unbounded, err := env.journal.Statistics(ctx, journal.StatisticsOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, unbounded.TotalTrades)
}

func TestJournal_RollupFailureIsSwallowed(t *testing.T) {
	db, err := database.NewDatabase(config.Database{DSN: "file::memory:"})
	require.NoError(t, err)
	roll := new(MockRollup)
	roll.On("Recompute", mock.Anything).Return(errors.New("rollup down"))
	j := NewJournal(database.NewTradeRepository(db), database.NewTickerRepository(db), roll,
		journal.NewCalculator(), config.Journal{}, zap.NewNop())

	trade, err := j.CreateTrade(context.Background(), longInput("IBM"))

	require.NoError(t, err)
	assert.NotEmpty(t, trade.ID)
	roll.AssertCalled(t, "Recompute", trade.TickerID)
}
