package round

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Scheduler runs the perpetual round loop: open, accept bets for the fixed
// waiting window, run until the multiplier reaches the hidden crash point,
// settle, repeat. A round that attracted no bets is ended without ever
// entering the running phase.
type Scheduler struct {
	engine *Engine
	logger *slog.Logger
}

func NewScheduler(engine *Engine) *Scheduler {
	return &Scheduler{engine: engine, logger: slog.Default()}
}

// SetLogger overrides the logger.
func (s *Scheduler) SetLogger(logger *slog.Logger) {
	if logger == nil {
		s.logger = slog.Default()
		return
	}
	s.logger = logger
}

// Run drives rounds until the context is cancelled. The current round is
// ended on shutdown so no bet is left dangling in a non-terminal state.
func (s *Scheduler) Run(ctx context.Context) error {
	cfg := s.engine.Config()
	for {
		view, err := s.engine.OpenRound()
		if err != nil {
			return err
		}
		s.logger.Info("round opened", "round", view.ID, "commitment", view.ServerSeedHash)

		if err := s.sleep(ctx, cfg.WaitingDuration); err != nil {
			s.endQuietly()
			return err
		}

		if s.engine.BetCount() == 0 {
			// Nobody joined; skip straight to settlement.
			if _, err := s.engine.EndRound(); err != nil {
				s.logger.Error("skip empty round", "round", view.ID, "err", err)
			}
			continue
		}

		if err := s.engine.StartRunning(); err != nil {
			return err
		}
		if err := s.runUntilCrash(ctx, cfg.TickInterval); err != nil {
			s.endQuietly()
			return err
		}

		ended, err := s.engine.EndRound()
		if err != nil {
			return err
		}
		s.logger.Info("round ended",
			"round", ended.ID, "crashPoint", ended.CrashPoint, "bets", len(ended.Bets))
	}
}

func (s *Scheduler) runUntilCrash(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_, crashed, err := s.engine.Tick()
			if err != nil {
				return err
			}
			if crashed {
				return nil
			}
		}
	}
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Scheduler) endQuietly() {
	if _, err := s.engine.EndRound(); err != nil && !errors.Is(err, ErrNoRound) && !errors.Is(err, errAlreadyEnded) {
		s.logger.Error("end round on shutdown", "err", err)
	}
}
