package otp

import (
	"context"
	"time"

	"StudentPortal/internal/metrics"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

type expirer interface {
	SweepExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically deletes expired codes.
type Sweeper struct {
	ledger   expirer
	interval time.Duration
	log      *zap.Logger
}

func NewSweeper(ledger expirer, interval time.Duration, log *zap.Logger) *Sweeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{ledger: ledger, interval: interval, log: log.Named("otp-sweeper")}
}

// Start runs the sweeper for the lifetime of the fx application.
func (s *Sweeper) Start(lc fx.Lifecycle) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.log.Info("starting", zap.Duration("interval", s.interval))
			go func() {
				defer close(done)
				s.Run(ctx)
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			s.log.Info("stopping")
			cancel()
			select {
			case <-done:
			case <-stopCtx.Done():
			}
			return nil
		},
	})
}

// Run sweeps on every tick until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.ledger.SweepExpired(ctx)
	if err != nil {
		if ctx.Err() == nil {
			metrics.UpstreamErrors.WithLabelValues("otps.sweep").Inc()
			s.log.Warn("sweep failed", zap.Error(err))
		}
		return
	}
	if n > 0 {
		s.log.Info("removed expired codes", zap.Int64("count", n))
	}
}
