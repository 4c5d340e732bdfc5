package progress

import (
	"fmt"
	"sync"
	"time"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// Store defines the storage reads the dashboard needs.
// Implemented by storage.Store.
type Store interface {
	AverageSkillPercentage(userID, skill string, cutoff time.Time) (float64, int, error)
	ActiveDays(userID string, limit int) ([]string, error)
	CountVocabulary(userID string) (int, int, error)
	ListGrammarErrors(userID string, limit int) ([]storage.GrammarError, error)
	ListAttempts(userID, skill string, limit int) ([]storage.TaskAttempt, error)
}

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// Dashboard is the assembled progress payload for one user and time range.
type Dashboard struct {
	UserID         string                `json:"user_id"`
	TimeRange      string                `json:"time_range"`
	PrepScore      int                   `json:"prep_score"`
	SkillAverages  map[string]float64    `json:"skill_averages"`
	StreakDays     int                   `json:"streak_days"`
	VocabTotal     int                   `json:"vocabulary_total"`
	VocabMastered  int                   `json:"vocabulary_mastered"`
	GrammarSummary []CategorySummary     `json:"grammar_summary"`
	RecentAttempts []storage.TaskAttempt `json:"recent_attempts"`
	GeneratedAt    time.Time             `json:"generated_at"`
}

// Service builds dashboards with a short TTL cache, since a single dashboard
// view fans out into several queries per skill.
type Service struct {
	store Store
	clock Clock
	ttl   time.Duration

	mu       sync.RWMutex
	cached   map[string]*Dashboard
	cachedAt map[string]time.Time
}

// NewService creates a Service with a 30-second cache TTL.
func NewService(store Store) *Service {
	return &Service{
		store:    store,
		clock:    realClock{},
		ttl:      30 * time.Second,
		cached:   make(map[string]*Dashboard),
		cachedAt: make(map[string]time.Time),
	}
}

// NewServiceWithClock creates a Service with a custom clock and TTL (for testing).
func NewServiceWithClock(store Store, clock Clock, ttl time.Duration) *Service {
	return &Service{
		store:    store,
		clock:    clock,
		ttl:      ttl,
		cached:   make(map[string]*Dashboard),
		cachedAt: make(map[string]time.Time),
	}
}

// Build assembles the dashboard for a user and time range, serving from cache
// when fresh.
func (s *Service) Build(userID, timeRange string) (Dashboard, error) {
	if timeRange == "" {
		timeRange = RangeWeek
	}
	key := userID + "|" + timeRange

	s.mu.RLock()
	if d, ok := s.cached[key]; ok && s.clock.Now().Before(s.cachedAt[key].Add(s.ttl)) {
		out := *d
		s.mu.RUnlock()
		return out, nil
	}
	s.mu.RUnlock()

	d, err := s.build(userID, timeRange)
	if err != nil {
		return Dashboard{}, err
	}

	s.mu.Lock()
	s.cached[key] = &d
	s.cachedAt[key] = s.clock.Now()
	s.mu.Unlock()

	return d, nil
}

// Invalidate drops cached dashboards for a user after a new submission.
func (s *Service) Invalidate(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key := range s.cached {
		if len(key) > len(userID) && key[:len(userID)] == userID && key[len(userID)] == '|' {
			delete(s.cached, key)
			delete(s.cachedAt, key)
		}
	}
}

func (s *Service) build(userID, timeRange string) (Dashboard, error) {
	now := s.clock.Now().UTC()
	cutoff := rangeCutoff(timeRange, now)

	skills := []string{storage.SkillSpeaking, storage.SkillListening, storage.SkillReading, storage.SkillWriting}
	averages := make(map[string]float64, len(skills))
	totalAttempts := 0
	for _, skill := range skills {
		avg, n, err := s.store.AverageSkillPercentage(userID, skill, cutoff)
		if err != nil {
			return Dashboard{}, fmt.Errorf("averaging %s: %w", skill, err)
		}
		averages[skill] = avg
		totalAttempts += n
	}

	days, err := s.store.ActiveDays(userID, 60)
	if err != nil {
		return Dashboard{}, fmt.Errorf("loading active days: %w", err)
	}
	streak := Streak(days, now)

	daysSinceActive := -1
	if len(days) > 0 {
		if head, perr := time.Parse(dayFormat, days[0]); perr == nil {
			daysSinceActive = int(now.Truncate(24*time.Hour).Sub(head).Hours() / 24)
		}
	}

	vocabTotal, vocabMastered, err := s.store.CountVocabulary(userID)
	if err != nil {
		return Dashboard{}, fmt.Errorf("counting vocabulary: %w", err)
	}

	grammarErrs, err := s.store.ListGrammarErrors(userID, 200)
	if err != nil {
		return Dashboard{}, fmt.Errorf("loading grammar errors: %w", err)
	}

	recent, err := s.store.ListAttempts(userID, "", 10)
	if err != nil {
		return Dashboard{}, fmt.Errorf("loading attempts: %w", err)
	}

	prep := CalculatePrepScore(PrepInputs{
		LessonsCompleted:   countCompleted(recent),
		SpeakingPct:        averages[storage.SkillSpeaking],
		ListeningPct:       averages[storage.SkillListening],
		ReadingPct:         averages[storage.SkillReading],
		WritingPct:         averages[storage.SkillWriting],
		TestAttempts:       totalAttempts,
		DaysSinceActive:    daysSinceActive,
		VocabularyMastered: vocabMastered,
		StreakDays:         streak,
		TimeRange:          timeRange,
	})

	return Dashboard{
		UserID:         userID,
		TimeRange:      timeRange,
		PrepScore:      prep,
		SkillAverages:  averages,
		StreakDays:     streak,
		VocabTotal:     vocabTotal,
		VocabMastered:  vocabMastered,
		GrammarSummary: SummarizeGrammarErrors(grammarErrs),
		RecentAttempts: recent,
		GeneratedAt:    now,
	}, nil
}

// countCompleted counts attempts that passed (>= 70%), the threshold used
// for marking a lesson completed.
func countCompleted(attempts []storage.TaskAttempt) int {
	n := 0
	for _, a := range attempts {
		if a.Percentage >= 70 {
			n++
		}
	}
	return n
}

func rangeCutoff(timeRange string, now time.Time) time.Time {
	switch timeRange {
	case RangeToday:
		return now.Truncate(24 * time.Hour)
	case RangeMonth:
		return now.AddDate(0, -1, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}
