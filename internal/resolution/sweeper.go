package resolution

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Sweeper periodically extends the deadline of battles left in choosing
// past their decision window. It never resolves a turn itself.
type Sweeper struct {
	store     Store
	interval  time.Duration
	extension time.Duration
	clock     func() time.Time
	logger    *zap.Logger
}

// NewSweeper returns a Sweeper.
//
// Precondition: interval and extension must be > 0.
func NewSweeper(store Store, interval, extension time.Duration, logger *zap.Logger) *Sweeper {
	if interval <= 0 || extension <= 0 {
		panic("resolution.NewSweeper: interval and extension must be > 0")
	}
	return &Sweeper{store: store, interval: interval, extension: extension, clock: time.Now, logger: logger}
}

// WithClock overrides the time source and returns s.
func (s *Sweeper) WithClock(clock func() time.Time) *Sweeper {
	s.clock = clock
	return s
}

// SweepOnce extends every overdue deadline and returns how many moved.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	now := s.clock().UTC()
	overdue, err := s.store.Overdue(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("listing overdue battles: %w", err)
	}
	extended := 0
	for _, d := range overdue {
		ok, err := s.store.ExtendDeadline(ctx, d.BattleID, d.Version, now.Add(s.extension))
		if err != nil {
			return extended, fmt.Errorf("extending %s: %w", d.BattleID, err)
		}
		if !ok {
			continue
		}
		extended++
		s.logger.Info("deadline extended",
			zap.String("battle_id", d.BattleID),
			zap.Int("version", d.Version),
			zap.Duration("overdue_by", now.Sub(d.DeadlineAt)),
		)
	}
	return extended, nil
}

// Start runs SweepOnce every interval until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SweepOnce(ctx); err != nil {
					s.logger.Error("deadline sweep failed", zap.Error(err))
				}
			}
		}
	}()
}
