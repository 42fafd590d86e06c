package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/blogstreak/models"
	"github.com/cppla/blogstreak/utils"
)

// DecrementPolicy selects which ledger day a decrement lands on.
type DecrementPolicy string

const (
	// DecrementToday always lowers today's counter, whenever the activity happened.
	DecrementToday DecrementPolicy = "today"
	// DecrementOriginalDay lowers the counter of the day the activity happened.
	DecrementOriginalDay DecrementPolicy = "original-day"
)

// ParseDecrementPolicy maps a config value to a policy; unknown values fall back to today.
func ParseDecrementPolicy(raw string) DecrementPolicy {
	if DecrementPolicy(raw) == DecrementOriginalDay {
		return DecrementOriginalDay
	}
	return DecrementToday
}

// StreakSnapshot is returned by every ledger write.
type StreakSnapshot struct {
	CurrentStreak     int `json:"current_streak"`
	LongestStreak     int `json:"longest_streak"`
	TodayContribution int `json:"today_contribution"`
	TotalPosts        int `json:"total_posts"`
}

// StreakData backs the profile streak view.
type StreakData struct {
	CalendarData       []CalendarDay `json:"calendar_data"`
	CurrentStreak      int           `json:"current_streak"`
	LongestStreak      int           `json:"longest_streak"`
	TotalPosts         int           `json:"total_posts"`
	PublishedPosts     int64         `json:"published_posts"`
	TotalLikesReceived int64         `json:"total_likes_received"`
	TotalContributions int           `json:"total_contributions"`
}

// StreakService owns the contribution ledger, streak derivation, badges and the inactivity sweep.
type StreakService struct {
	repo    Repository
	calc    StreakCalculator
	clock   Clock
	log     *zap.Logger
	policy  DecrementPolicy
	metrics *utils.StreakMetrics
	catalog []BadgeRule
}

type Option func(*StreakService)

func WithClock(clock Clock) Option {
	return func(s *StreakService) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(s *StreakService) {
		if log != nil {
			s.log = log
		}
	}
}

func WithCalculator(calc StreakCalculator) Option {
	return func(s *StreakService) {
		if calc != nil {
			s.calc = calc
		}
	}
}

func WithDecrementPolicy(p DecrementPolicy) Option {
	return func(s *StreakService) { s.policy = p }
}

// WithMetrics enables prometheus counters; nil disables them.
func WithMetrics(m *utils.StreakMetrics) Option {
	return func(s *StreakService) { s.metrics = m }
}

func NewStreakService(repo Repository, opts ...Option) *StreakService {
	s := &StreakService{
		repo:    repo,
		calc:    FullScanCalculator{},
		clock:   time.Now,
		log:     zap.NewNop(),
		policy:  DecrementToday,
		catalog: BadgeCatalog,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StreakService) Policy() DecrementPolicy { return s.policy }

// Today returns the current civil-date key.
func (s *StreakService) Today() string { return DayKey(s.clock()) }

// RecordContribution adds one unit of activity to today's ledger row and
// re-derives both streaks inside a single transaction.
func (s *StreakService) RecordContribution(ctx context.Context, userID uint, activity Activity) (StreakSnapshot, error) {
	const op = "record contribution"
	if _, ok := activity.column(); !ok {
		return StreakSnapshot{}, invalid(op, "unknown activity %q", activity)
	}
	now := s.clock()
	today := DayKey(now)

	var snap StreakSnapshot
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		if _, err := tx.FindUser(ctx, userID); err != nil {
			return err
		}
		if err := tx.IncrementContribution(ctx, userID, today, activity); err != nil {
			return err
		}
		if activity == ActivityPosts {
			if err := tx.AdjustTotalPosts(ctx, userID, 1); err != nil {
				return err
			}
		}
		var err error
		snap, err = s.recompute(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return StreakSnapshot{}, wrapOp(op, err)
	}
	s.metrics.ObserveContribution(string(activity), "inc")
	return snap, nil
}

// DecrementContribution lowers today's counter for activity, never below zero.
func (s *StreakService) DecrementContribution(ctx context.Context, userID uint, activity Activity) (StreakSnapshot, error) {
	return s.decrement(ctx, userID, activity, s.clock())
}

// DecrementContributionAt withdraws an activity that happened at occurredAt.
// Under DecrementToday the timestamp is ignored.
func (s *StreakService) DecrementContributionAt(ctx context.Context, userID uint, activity Activity, occurredAt time.Time) (StreakSnapshot, error) {
	day := s.clock()
	if s.policy == DecrementOriginalDay && !occurredAt.IsZero() {
		day = occurredAt.In(day.Location())
	}
	return s.decrement(ctx, userID, activity, day)
}

func (s *StreakService) decrement(ctx context.Context, userID uint, activity Activity, day time.Time) (StreakSnapshot, error) {
	const op = "decrement contribution"
	if _, ok := activity.column(); !ok {
		return StreakSnapshot{}, invalid(op, "unknown activity %q", activity)
	}
	now := s.clock()

	var (
		snap    StreakSnapshot
		applied bool
	)
	err := s.repo.Transaction(ctx, func(tx Repository) error {
		user, err := tx.FindUser(ctx, userID)
		if err != nil {
			return err
		}
		applied, err = tx.DecrementContribution(ctx, userID, DayKey(day), activity)
		if err != nil {
			return err
		}
		if !applied {
			snap, err = s.snapshot(ctx, tx, user, now)
			return err
		}
		if activity == ActivityPosts {
			if err := tx.AdjustTotalPosts(ctx, userID, -1); err != nil {
				return err
			}
		}
		snap, err = s.recompute(ctx, tx, userID, now)
		return err
	})
	if err != nil {
		return StreakSnapshot{}, wrapOp(op, err)
	}
	if applied {
		s.metrics.ObserveContribution(string(activity), "dec")
	}
	return snap, nil
}

// recompute derives streaks from the stored ledger and persists them.
func (s *StreakService) recompute(ctx context.Context, tx Repository, userID uint, now time.Time) (StreakSnapshot, error) {
	ledger, err := tx.Ledger(ctx, userID)
	if err != nil {
		return StreakSnapshot{}, err
	}
	res := s.calc.Calculate(ledger, now)
	if err := tx.SaveStreak(ctx, userID, res.CurrentStreak, res.LongestStreak); err != nil {
		return StreakSnapshot{}, err
	}
	user, err := tx.FindUser(ctx, userID)
	if err != nil {
		return StreakSnapshot{}, err
	}
	return StreakSnapshot{
		CurrentStreak:     user.CurrentStreak,
		LongestStreak:     user.LongestStreak,
		TodayContribution: todayTotal(ledger, DayKey(now)),
		TotalPosts:        user.TotalPosts,
	}, nil
}

func (s *StreakService) snapshot(ctx context.Context, tx Repository, user *models.User, now time.Time) (StreakSnapshot, error) {
	row, err := tx.ContributionOn(ctx, user.ID, DayKey(now))
	if err != nil {
		return StreakSnapshot{}, err
	}
	snap := StreakSnapshot{
		CurrentStreak: user.CurrentStreak,
		LongestStreak: user.LongestStreak,
		TotalPosts:    user.TotalPosts,
	}
	if row != nil {
		snap.TodayContribution = row.Total()
	}
	return snap, nil
}

func todayTotal(ledger []models.DailyContribution, today string) int {
	total := 0
	for _, row := range ledger {
		if row.Day == today {
			total += row.Total()
		}
	}
	return total
}

// GetStreakData projects the calendar for the last days days and derives
// streaks from the ledger as of now. Nothing is written.
func (s *StreakService) GetStreakData(ctx context.Context, userID uint, days int) (StreakData, error) {
	const op = "get streak data"
	user, err := s.repo.FindUser(ctx, userID)
	if err != nil {
		return StreakData{}, wrapOp(op, err)
	}
	ledger, err := s.repo.Ledger(ctx, userID)
	if err != nil {
		return StreakData{}, wrapOp(op, err)
	}
	likes, err := s.repo.SumLikesOnPostsByAuthor(ctx, userID)
	if err != nil {
		return StreakData{}, wrapOp(op, err)
	}
	published, err := s.repo.CountPostsByAuthor(ctx, userID)
	if err != nil {
		return StreakData{}, wrapOp(op, err)
	}

	now := s.clock()
	res := s.calc.Calculate(ledger, now)
	longest := res.LongestStreak
	if user.LongestStreak > longest {
		longest = user.LongestStreak
	}
	return StreakData{
		CalendarData:       ProjectCalendar(ledger, days, now),
		CurrentStreak:      res.CurrentStreak,
		LongestStreak:      longest,
		TotalPosts:         user.TotalPosts,
		PublishedPosts:     published,
		TotalLikesReceived: likes,
		TotalContributions: len(ledger),
	}, nil
}

// Calendar returns only the projected calendar for userID.
func (s *StreakService) Calendar(ctx context.Context, userID uint, days int) ([]CalendarDay, error) {
	const op = "calendar"
	if _, err := s.repo.FindUser(ctx, userID); err != nil {
		return nil, wrapOp(op, err)
	}
	ledger, err := s.repo.Ledger(ctx, userID)
	if err != nil {
		return nil, wrapOp(op, err)
	}
	return ProjectCalendar(ledger, days, s.clock()), nil
}

// GetGlobalStreakStats aggregates streak figures across all users.
func (s *StreakService) GetGlobalStreakStats(ctx context.Context) (StreakStats, error) {
	stats, err := s.repo.StreakAggregate(ctx)
	if err != nil {
		return StreakStats{}, wrapOp("global streak stats", err)
	}
	return stats, nil
}

// Leaderboard ranks users with a live streak by current then longest streak.
func (s *StreakService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return nil, invalid("leaderboard", "limit must be positive")
	}
	rows, err := s.repo.Leaderboard(ctx, limit)
	if err != nil {
		return nil, wrapOp("leaderboard", err)
	}
	if rows == nil {
		rows = []LeaderboardEntry{}
	}
	return rows, nil
}

// wrapOp tags typed errors with the public operation name.
func wrapOp(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return &Error{Kind: se.Kind, Op: op, Err: se.Err}
	}
	return persistence(op, err)
}
