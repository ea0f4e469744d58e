package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_InvalidCapacity(t *testing.T) {
	_, err := New("bad", &Config{Capacity: 0})
	assert.ErrorIs(t, err, ErrInvalidPoolConfig)
}

func TestPool_Submit(t *testing.T) {
	p, err := New("submit", DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	var n atomic.Int32
	done := make(chan struct{}, 10)
	for i := 0; i < 10; i++ {
		require.NoError(t, p.Submit(func() {
			n.Add(1)
			done <- struct{}{}
		}))
	}
	for i := 0; i < 10; i++ {
		<-done
	}
	assert.Equal(t, int32(10), n.Load())
	stats := p.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, "submit", stats.Name)
	assert.Equal(t, DefaultConfig().Capacity, stats.Capacity)
}

func TestPool_SubmitAfterRelease(t *testing.T) {
	p, err := New("closed", DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, p.Release(0))

	assert.ErrorIs(t, p.Submit(func() {}), ErrPoolClosed)
	assert.NoError(t, p.Release(0))
}

func TestGroup_CollectsErrors(t *testing.T) {
	p, err := New("group", &Config{Capacity: 2})
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	boom := errors.New("boom")
	var ok atomic.Int32

	g := p.NewGroup(context.Background())
	for i := 0; i < 6; i++ {
		i := i
		g.Go(func(context.Context) error {
			if i%3 == 0 {
				return boom
			}
			ok.Add(1)
			return nil
		})
	}

	err = g.Wait()
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(4), ok.Load())
}

func TestGroup_PanicBecomesError(t *testing.T) {
	var handled atomic.Int32
	p, err := New("panic", &Config{Capacity: 1, PanicHandler: func(any) { handled.Add(1) }})
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	g := p.NewGroup(context.Background())
	g.Go(func(context.Context) error { panic("bad page") })

	err = g.Wait()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad page")
}

func TestGroup_CanceledContext(t *testing.T) {
	p, err := New("cancel", DefaultConfig())
	require.NoError(t, err)
	defer func() { _ = p.Release(time.Second) }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var ran atomic.Bool
	g := p.NewGroup(ctx)
	g.Go(func(context.Context) error { ran.Store(true); return nil })

	assert.ErrorIs(t, g.Wait(), context.Canceled)
	assert.False(t, ran.Load())
}
