package rollup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"trading-journal-go/internal/config"
	"trading-journal-go/internal/database"
	"trading-journal-go/internal/models"
)

type MockTickerStore struct {
	mock.Mock
}

func (m *MockTickerStore) SetTotals(ctx context.Context, id string, totals database.TickerTotals) error {
	args := m.Called(id, totals)
	return args.Error(0)
}

func (m *MockTickerStore) List(ctx context.Context) ([]models.Ticker, error) {
	args := m.Called()
	return args.Get(0).([]models.Ticker), args.Error(1)
}

// slowTotals records how many Totals calls run at once per ticker.
type slowTotals struct {
	mu      sync.Mutex
	active  map[string]int
	maxSeen int32
}

func (s *slowTotals) Totals(ctx context.Context, tickerID string) (database.TickerTotals, error) {
	s.mu.Lock()
	s.active[tickerID]++
	if n := int32(s.active[tickerID]); n > atomic.LoadInt32(&s.maxSeen) {
		atomic.StoreInt32(&s.maxSeen, n)
	}
	s.mu.Unlock()

	time.Sleep(2 * time.Millisecond)

	s.mu.Lock()
	s.active[tickerID]--
	s.mu.Unlock()
	return database.TickerTotals{TradeCount: 1}, nil
}

func TestService_RecomputeFromDatabase(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDatabase(config.Database{DSN: "file::memory:"})
	require.NoError(t, err)
	trades := database.NewTradeRepository(db)
	tickers := database.NewTickerRepository(db)
	svc := NewService(trades, tickers, zap.NewNop())

	ticker, err := tickers.FindOrCreateBySymbol(ctx, "TSLA")
	require.NoError(t, err)
	for _, tr := range []models.Trade{
		{TickerID: ticker.ID, EntryDate: time.Now(), EntryPrice: 10, Shares: 1, Status: models.StatusClosed, ProfitLossAmount: 40},
		{TickerID: ticker.ID, EntryDate: time.Now(), EntryPrice: 10, Shares: 1, Status: models.StatusOpen},
	} {
		tr := tr
		require.NoError(t, trades.Create(ctx, &tr))
	}

	require.NoError(t, svc.Recompute(ctx, ticker.ID))
	require.NoError(t, svc.Recompute(ctx, ticker.ID))

	got, err := tickers.Get(ctx, ticker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.TradeCount)
	assert.Equal(t, int64(1), got.OpenTradeCount)
	assert.Equal(t, 40.0, got.TotalProfitLoss)

	n, err := svc.RecomputeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestService_RecomputeSerializesPerTicker(t *testing.T) {
	totals := &slowTotals{active: make(map[string]int)}
	store := new(MockTickerStore)
	store.On("SetTotals", mock.Anything, mock.Anything).Return(nil)
	svc := NewService(totals, store, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := "even"
			if i%2 == 1 {
				id = "odd"
			}
			assert.NoError(t, svc.Recompute(context.Background(), id))
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&totals.maxSeen))
	assert.Zero(t, svc.locks.size(), "idle keys are released")
	store.AssertNumberOfCalls(t, "SetTotals", 20)
}

func TestService_RecomputeAllSkipsFailures(t *testing.T) {
	store := new(MockTickerStore)
	store.On("List").Return([]models.Ticker{{ID: "a", Symbol: "A"}, {ID: "b", Symbol: "B"}}, nil)
	store.On("SetTotals", "a", mock.Anything).Return(errors.New("disk full"))
	store.On("SetTotals", "b", mock.Anything).Return(nil)
	svc := NewService(&slowTotals{active: make(map[string]int)}, store, zap.NewNop())

	n, err := svc.RecomputeAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	store.AssertExpectations(t)
}

func TestService_RecomputeEmptyTicker(t *testing.T) {
	store := new(MockTickerStore)
	svc := NewService(&slowTotals{active: make(map[string]int)}, store, zap.NewNop())

	assert.NoError(t, svc.Recompute(context.Background(), ""))
	store.AssertNotCalled(t, "SetTotals", mock.Anything, mock.Anything)
}
