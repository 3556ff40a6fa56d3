package otp

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/fx/fxtest"
)

type countingExpirer struct {
	calls atomic.Int32
	err   error
}

func (e *countingExpirer) SweepExpired(context.Context) (int64, error) {
	e.calls.Add(1)
	return 2, e.err
}

func TestSweeper_RunsUntilCancelled(t *testing.T) {
	exp := &countingExpirer{}
	s := NewSweeper(exp, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}
}

func TestSweeper_KeepsGoingAfterErrors(t *testing.T) {
	exp := &countingExpirer{err: errors.New("store down")}
	s := NewSweeper(exp, 5*time.Millisecond, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.Run(ctx)

	assert.Eventually(t, func() bool { return exp.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestSweeper_Lifecycle(t *testing.T) {
	exp := &countingExpirer{}
	s := NewSweeper(exp, 5*time.Millisecond, nil)
	lc := fxtest.NewLifecycle(t)

	s.Start(lc)
	lc.RequireStart()
	assert.Eventually(t, func() bool { return exp.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)
	lc.RequireStop()
}
