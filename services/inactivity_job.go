package services

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ResetInactiveStreaks zeroes the current streak of every user with no
// activity yesterday. A failure on one user is logged and the sweep goes on;
// only a failure to list candidates is returned. Longest streaks are untouched.
func (s *StreakService) ResetInactiveStreaks(ctx context.Context) (int, error) {
	const op = "reset inactive streaks"
	start := time.Now()
	yesterday := DayKey(civilDay(s.clock()).AddDate(0, 0, -1))

	users, err := s.repo.UsersWithActiveStreak(ctx)
	if err != nil {
		return 0, wrapOp(op, err)
	}

	reset := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			s.log.Warn("streak reset interrupted", zap.Int("reset", reset), zap.Error(err))
			break
		}
		row, err := s.repo.ContributionOn(ctx, u.ID, yesterday)
		if err != nil {
			s.log.Error("streak reset: load contribution failed", zap.Uint("user_id", u.ID), zap.Error(err))
			continue
		}
		if row != nil && row.Active() {
			continue
		}
		ok, err := s.repo.ResetCurrentStreak(ctx, u.ID)
		if err != nil {
			s.log.Error("streak reset: save failed", zap.Uint("user_id", u.ID), zap.Error(err))
			continue
		}
		if ok {
			reset++
		}
	}

	s.metrics.ObserveResets(reset)
	s.log.Info("streak reset finished",
		zap.String("yesterday", yesterday),
		zap.Int("candidates", len(users)),
		zap.Int("reset", reset),
		zap.Duration("took", time.Since(start)),
	)
	return reset, nil
}
