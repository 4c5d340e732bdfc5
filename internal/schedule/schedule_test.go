package schedule

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/sprachlab/sprachlab/internal/progress"
	"github.com/sprachlab/sprachlab/internal/storage"
)

type fakeScheduleStore struct {
	deleted    int64
	userIDs    []string
	days       map[string][]string
	stats      map[string]storage.UserStats
	recipients []storage.ChannelUser
}

func newFakeScheduleStore() *fakeScheduleStore {
	return &fakeScheduleStore{
		days:  map[string][]string{},
		stats: map[string]storage.UserStats{},
	}
}

func (f *fakeScheduleStore) DeleteExpiredJoinCodes(now time.Time) (int64, error) {
	return f.deleted, nil
}

func (f *fakeScheduleStore) ListUserIDsWithAttempts() ([]string, error) {
	return f.userIDs, nil
}

func (f *fakeScheduleStore) ActiveDays(userID string, limit int) ([]string, error) {
	return f.days[userID], nil
}

func (f *fakeScheduleStore) SetUserStats(st storage.UserStats) error {
	f.stats[st.UserID] = st
	return nil
}

func (f *fakeScheduleStore) ListChannelUsers(channel string) ([]storage.ChannelUser, error) {
	return f.recipients, nil
}

type fakeDashboards struct {
	dashboards map[string]progress.Dashboard
	err        error
}

func (f *fakeDashboards) Build(userID, timeRange string) (progress.Dashboard, error) {
	if f.err != nil {
		return progress.Dashboard{}, f.err
	}
	return f.dashboards[userID], nil
}

type fakeDigester struct {
	sent map[int64]progress.Dashboard
	err  error
}

func (f *fakeDigester) SendDigest(chatID int64, d progress.Dashboard) error {
	if f.err != nil {
		return f.err
	}
	if f.sent == nil {
		f.sent = map[int64]progress.Dashboard{}
	}
	f.sent[chatID] = d
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNightlySweep_RecomputesStreaks(t *testing.T) {
	now := time.Now().UTC()
	today := now.Format("2006-01-02")
	yesterday := now.AddDate(0, 0, -1).Format("2006-01-02")

	store := newFakeScheduleStore()
	store.userIDs = []string{"user-1", "user-2"}
	store.days["user-1"] = []string{today, yesterday}
	store.days["user-2"] = []string{now.AddDate(0, 0, -10).Format("2006-01-02")}

	s := New(store, nil, nil, 7, testLogger())
	s.NightlySweep()

	if got := store.stats["user-1"].StreakDays; got != 2 {
		t.Errorf("user-1 streak = %d, want 2", got)
	}
	if got := store.stats["user-2"].StreakDays; got != 0 {
		t.Errorf("user-2 streak = %d, want 0", got)
	}
	if store.stats["user-1"].LastActive.IsZero() {
		t.Error("user-1 last active not set")
	}
}

func TestSendDigests(t *testing.T) {
	store := newFakeScheduleStore()
	store.recipients = []storage.ChannelUser{
		{Channel: "telegram", Address: "1001", UserID: "user-1"},
		{Channel: "telegram", Address: "not-a-chat-id", UserID: "user-2"},
		{Channel: "telegram", Address: "1003", UserID: "user-3"},
	}
	dashboards := &fakeDashboards{dashboards: map[string]progress.Dashboard{
		"user-1": {UserID: "user-1", PrepScore: 55},
		"user-3": {UserID: "user-3", PrepScore: 80},
	}}
	digester := &fakeDigester{}

	s := New(store, dashboards, digester, 7, testLogger())
	s.SendDigests()

	if len(digester.sent) != 2 {
		t.Fatalf("sent %d digests, want 2", len(digester.sent))
	}
	if digester.sent[1001].PrepScore != 55 || digester.sent[1003].PrepScore != 80 {
		t.Errorf("sent = %v", digester.sent)
	}
}

func TestSendDigests_FailedRecipientDoesNotStopRest(t *testing.T) {
	store := newFakeScheduleStore()
	store.recipients = []storage.ChannelUser{
		{Channel: "telegram", Address: "1001", UserID: "user-1"},
		{Channel: "telegram", Address: "1002", UserID: "user-2"},
	}
	dashboards := &fakeDashboards{err: errors.New("db closed")}
	digester := &fakeDigester{}

	s := New(store, dashboards, digester, 7, testLogger())
	s.SendDigests()

	if len(digester.sent) != 0 {
		t.Errorf("sent = %v", digester.sent)
	}
}
