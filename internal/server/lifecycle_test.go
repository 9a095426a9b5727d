package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// blockingService runs until its context ends and records stop order.
type blockingService struct {
	name    string
	started chan struct{}
	order   *[]string
	mu      *sync.Mutex
}

func newBlocking(name string, order *[]string, mu *sync.Mutex) *blockingService {
	return &blockingService{name: name, started: make(chan struct{}), order: order, mu: mu}
}

func (b *blockingService) Start(ctx context.Context) error {
	close(b.started)
	<-ctx.Done()
	return ctx.Err()
}

func (b *blockingService) Stop(context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()
	*b.order = append(*b.order, b.name)
}

func waitStarted(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(2 * time.Second):
		t.Fatal("service did not start in time")
	}
}

func TestLifecycleStopsInReverseOrder(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	var (
		mu    sync.Mutex
		order []string
	)
	first := newBlocking("first", &order, &mu)
	second := newBlocking("second", &order, &mu)
	lc.Add("first", first)
	lc.Add("second", second)

	var closed bool
	lc.OnShutdown(func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		closed = true
		order = append(order, "closer")
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- lc.Run(ctx) }()

	waitStarted(t, first.started)
	waitStarted(t, second.started)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("lifecycle did not shut down in time")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.True(t, closed)
	assert.Equal(t, []string{"second", "first", "closer"}, order)
}

func TestLifecycleReturnsFirstFailure(t *testing.T) {
	lc := NewLifecycle(zaptest.NewLogger(t), time.Second)
	boom := errors.New("listener closed")
	var stopped bool
	lc.Add("broken", &FuncService{
		StartFn: func(context.Context) error { return boom },
		StopFn:  func(context.Context) { stopped = true },
	})

	err := lc.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "service broken")
	assert.True(t, stopped)
}

func TestFuncService_NilStop(t *testing.T) {
	svc := &FuncService{StartFn: func(context.Context) error { return nil }}
	assert.NoError(t, svc.Start(context.Background()))
	assert.NotPanics(t, func() { svc.Stop(context.Background()) })
}

func TestNewLifecycle_RejectsZeroTimeout(t *testing.T) {
	assert.Panics(t, func() { NewLifecycle(zaptest.NewLogger(t), 0) })
}
