// Package sweeper periodically deletes expired sessions.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"coursebook/config"
	"coursebook/internal/delivery"
	"coursebook/internal/usecase"

	"go.uber.org/fx"
)

// PurgeObserver counts removed sessions.
type PurgeObserver interface {
	ObserveSessionsPurged(n int64)
}

// Params holds dependencies for the sweeper, injected by Fx.
type Params struct {
	fx.In

	Lc       fx.Lifecycle
	Cfg      *config.Config
	Logger   *slog.Logger
	Sessions usecase.SessionUsecase
	Observer PurgeObserver
}

type sessionSweeper struct {
	sessions usecase.SessionUsecase
	observer PurgeObserver
	interval time.Duration
	logger   *slog.Logger

	stopped context.Context
	cancel  context.CancelFunc
}

// New returns the sweeper delivery. A zero session.sweepInterval disables it.
func New(params Params) delivery.Delivery {
	stopped, cancel := context.WithCancel(context.Background())
	s := &sessionSweeper{
		sessions: params.Sessions,
		observer: params.Observer,
		interval: params.Cfg.Session.SweepInterval,
		logger:   params.Logger,
		stopped:  stopped,
		cancel:   cancel,
	}

	params.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			s.cancel()

			return nil
		},
	})

	return s
}

// Serve purges on every tick until stopped.
func (s *sessionSweeper) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		s.logger.Info("Session sweeper disabled")

		return nil
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-s.stopped.Done():
			return nil
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *sessionSweeper) sweep(ctx context.Context) {
	removed, err := s.sessions.PurgeExpired(ctx)
	if err != nil {
		s.logger.Warn("Failed to purge expired sessions", slog.Any("error", err))

		return
	}

	s.observer.ObserveSessionsPurged(removed)
	if removed > 0 {
		s.logger.Info("Purged expired sessions", slog.Int64("removed", removed))
	}
}
