package engine

import (
	"context"
	"errors"
	"time"
)

// RunHeadless ticks s at tickRate per second until it terminates or ctx is
// done. Normal termination returns nil.
func RunHeadless(ctx context.Context, s *Scheduler, tickRate int) error {
	if tickRate <= 0 {
		tickRate = DefaultTickRate
	}
	s.log.Info("Headless mode enabled", "tick_rate", tickRate)

	ticker := time.NewTicker(time.Second / time.Duration(tickRate))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Terminate()
			return ctx.Err()
		case <-ticker.C:
			if err := s.Update(); err != nil {
				if errors.Is(err, ErrTerminated) {
					return nil
				}
				return err
			}
		}
	}
}

// RunTicks runs at most n ticks without waiting and returns the number run.
// It stops early when the scheduler terminates.
func RunTicks(s *Scheduler, n int) int {
	start := s.tick
	for i := 0; i < n; i++ {
		if err := s.Update(); err != nil {
			break
		}
	}
	return int(s.tick - start)
}
