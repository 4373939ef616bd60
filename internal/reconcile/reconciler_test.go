package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/example/ec-checkout/internal/domain/refund"
	"github.com/example/ec-checkout/internal/infrastructure/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettler struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeSettler) SettleRefund(_ context.Context, rec *refund.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rec.ID)
	return f.fail[rec.ID]
}

func (f *fakeSettler) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func newTestReconciler(t *testing.T, records ...*refund.Record) (*Reconciler, *fakeSettler) {
	t.Helper()
	s := store.NewMemoryStore()
	for _, rec := range records {
		require.NoError(t, s.Refunds().Create(context.Background(), rec))
	}
	settler := &fakeSettler{fail: map[string]error{}}
	r := New(s.Refunds(), settler, Config{Interval: 10 * time.Millisecond, Grace: time.Minute, Batch: 10}, nil)
	r.now = func() time.Time { return testNow }
	return r, settler
}

func pendingRecord(id string, age time.Duration) *refund.Record {
	return &refund.Record{
		ID:          id,
		OrderID:     "order-" + id,
		PaymentID:   "pay-" + id,
		AmountMinor: 20000,
		Currency:    "INR",
		Status:      refund.StatusPending,
		CreatedAt:   testNow.Add(-age),
		UpdatedAt:   testNow.Add(-age),
	}
}

func TestReconciler_RunOnce(t *testing.T) {
	done := pendingRecord("r-done", time.Hour)
	done.Status = refund.StatusCompleted

	r, settler := newTestReconciler(t,
		pendingRecord("r-old", time.Hour),
		pendingRecord("r-failing", 30*time.Minute),
		pendingRecord("r-fresh", 10*time.Second),
		done,
	)
	settler.fail["r-failing"] = errors.New("gateway unavailable")

	res, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Result{Settled: 1, Failed: 1}, res)
	assert.Equal(t, []string{"r-old", "r-failing"}, settler.calls)
}

func TestReconciler_RunOnce_Cancelled(t *testing.T) {
	r, settler := newTestReconciler(t, pendingRecord("r-1", time.Hour))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, settler.calls)
}

func TestReconciler_Run_StopsOnCancel(t *testing.T) {
	r, settler := newTestReconciler(t, pendingRecord("r-1", time.Hour))
	settler.fail["r-1"] = errors.New("gateway unavailable")

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return settler.callCount() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
