package service

import (
	"context"
	"time"

	"escrow-trade-service/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"
)

// Sweeper periodically cancels trades whose payment window has lapsed. It is
// a safety net behind the lazy per-request check, so polling-free trades
// still converge to CANCELLED.
type Sweeper struct {
	trades    ports.TradeService
	interval  time.Duration
	batchSize int
	log       zerolog.Logger

	wg   conc.WaitGroup
	stop chan struct{}
}

// NewSweeper creates a new payment-window sweeper.
func NewSweeper(trades ports.TradeService, interval time.Duration, batchSize int, log zerolog.Logger) *Sweeper {
	return &Sweeper{
		trades:    trades,
		interval:  interval,
		batchSize: batchSize,
		log:       log,
		stop:      make(chan struct{}),
	}
}

// Start launches the sweep loop in the background.
func (s *Sweeper) Start() {
	s.wg.Go(s.loop)
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish.
func (s *Sweeper) Stop() {
	close(s.stop)
	s.wg.Wait()
}

func (s *Sweeper) loop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.interval)
	defer cancel()

	expired, err := s.trades.ExpireOverdue(ctx, s.batchSize)
	if err != nil {
		s.log.Error().Err(err).Msg("payment window sweep failed")
		return
	}
	if expired > 0 {
		s.log.Info().Int("expired", expired).Msg("payment window sweep")
	}
}
