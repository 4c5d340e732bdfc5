package schedule

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/sprachlab/sprachlab/internal/progress"
	"github.com/sprachlab/sprachlab/internal/storage"
)

// Store is the storage surface the scheduled sweeps use.
type Store interface {
	DeleteExpiredJoinCodes(now time.Time) (int64, error)
	ListUserIDsWithAttempts() ([]string, error)
	ActiveDays(userID string, limit int) ([]string, error)
	SetUserStats(st storage.UserStats) error
	ListChannelUsers(channel string) ([]storage.ChannelUser, error)
}

// Dashboards builds progress dashboards for digest messages.
type Dashboards interface {
	Build(userID, timeRange string) (progress.Dashboard, error)
}

// Digester delivers a digest to a Telegram chat.
type Digester interface {
	SendDigest(chatID int64, d progress.Dashboard) error
}

// Scheduler runs the nightly maintenance sweep and the daily digest.
type Scheduler struct {
	cron       *gocron.Scheduler
	store      Store
	dashboards Dashboards
	digester   Digester
	digestHour int
	logger     *slog.Logger
}

func New(store Store, dashboards Dashboards, digester Digester, digestHour int, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       gocron.NewScheduler(time.UTC),
		store:      store,
		dashboards: dashboards,
		digester:   digester,
		digestHour: digestHour,
		logger:     logger,
	}
}

// Start registers the jobs and runs the scheduler in the background.
func (s *Scheduler) Start() error {
	if _, err := s.cron.Every(1).Day().At("03:00").Do(s.NightlySweep); err != nil {
		return fmt.Errorf("scheduling nightly sweep: %w", err)
	}

	if s.digester != nil {
		at := fmt.Sprintf("%02d:00", s.digestHour)
		if _, err := s.cron.Every(1).Day().At(at).Do(s.SendDigests); err != nil {
			return fmt.Errorf("scheduling daily digest: %w", err)
		}
	}

	s.cron.StartAsync()
	return nil
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// NightlySweep deletes expired join codes and recomputes streaks from the
// attempt history.
func (s *Scheduler) NightlySweep() {
	now := time.Now().UTC()

	deleted, err := s.store.DeleteExpiredJoinCodes(now)
	if err != nil {
		s.logger.Error("join code sweep failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("expired join codes deleted", "count", deleted)
	}

	userIDs, err := s.store.ListUserIDsWithAttempts()
	if err != nil {
		s.logger.Error("listing users for streak recompute", "error", err)
		return
	}

	for _, userID := range userIDs {
		days, err := s.store.ActiveDays(userID, 366)
		if err != nil {
			s.logger.Error("loading active days", "user_id", userID, "error", err)
			continue
		}

		stats := storage.UserStats{
			UserID:     userID,
			StreakDays: progress.Streak(days, now),
		}
		if len(days) > 0 {
			if last, err := time.Parse("2006-01-02", days[0]); err == nil {
				stats.LastActive = last
			}
		}
		if err := s.store.SetUserStats(stats); err != nil {
			s.logger.Error("saving user stats", "user_id", userID, "error", err)
		}
	}
}

// SendDigests pushes a daily progress digest to every registered Telegram
// chat. One failed recipient does not stop the rest.
func (s *Scheduler) SendDigests() {
	recipients, err := s.store.ListChannelUsers("telegram")
	if err != nil {
		s.logger.Error("listing digest recipients", "error", err)
		return
	}

	for _, r := range recipients {
		chatID, err := strconv.ParseInt(r.Address, 10, 64)
		if err != nil {
			s.logger.Warn("invalid telegram chat id", "address", r.Address)
			continue
		}

		dashboard, err := s.dashboards.Build(r.UserID, progress.RangeWeek)
		if err != nil {
			s.logger.Error("building digest dashboard", "user_id", r.UserID, "error", err)
			continue
		}

		if err := s.digester.SendDigest(chatID, dashboard); err != nil {
			s.logger.Error("sending digest", "user_id", r.UserID, "error", err)
		}
	}
}
