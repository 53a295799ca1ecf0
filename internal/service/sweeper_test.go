package service

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"escrow-trade-service/internal/core/ports/mocks"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"go.uber.org/mock/gomock"
)

func TestSweeper_RunsPeriodically(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trades := mocks.NewMockTradeService(ctrl)

	var sweeps atomic.Int32
	trades.EXPECT().ExpireOverdue(gomock.Any(), 50).
		DoAndReturn(func(_ interface{}, _ int) (int, error) {
			sweeps.Add(1)
			return 2, nil
		}).MinTimes(2)

	s := NewSweeper(trades, 10*time.Millisecond, 50, zerolog.Nop())
	s.Start()

	assert.Eventually(t, func() bool { return sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSweeper_SurvivesSweepErrors(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trades := mocks.NewMockTradeService(ctrl)

	var sweeps atomic.Int32
	trades.EXPECT().ExpireOverdue(gomock.Any(), 50).
		DoAndReturn(func(_ interface{}, _ int) (int, error) {
			if sweeps.Add(1) == 1 {
				return 0, errors.New("db gone")
			}
			return 0, nil
		}).MinTimes(2)

	s := NewSweeper(trades, 10*time.Millisecond, 50, zerolog.Nop())
	s.Start()

	// The loop keeps ticking after a failed sweep.
	assert.Eventually(t, func() bool { return sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
}

func TestSweeper_StopWaitsForLoopExit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	trades := mocks.NewMockTradeService(ctrl)
	trades.EXPECT().ExpireOverdue(gomock.Any(), 50).Return(0, nil).AnyTimes()

	s := NewSweeper(trades, 5*time.Millisecond, 50, zerolog.Nop())
	s.Start()
	time.Sleep(20 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
