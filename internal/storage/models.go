package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrCodeExhausted is returned when a join code is expired or over quota.
var ErrCodeExhausted = errors.New("join code expired or over quota")

// Skill names used across tests, attempts, and scores.
const (
	SkillListening = "listening"
	SkillReading   = "reading"
	SkillWriting   = "writing"
	SkillSpeaking  = "speaking"
)

// Test is one exercise test (listening or reading) with its question set.
type Test struct {
	ID         string
	Skill      string
	Section    int
	Title      string
	Language   string
	Level      string
	Passage    string
	Transcript string
	AudioURL   string
	CreatedAt  time.Time
	Questions  []Question
}

type Question struct {
	ID        string
	TestID    string
	Number    int
	Text      string
	IsExample bool
	Options   []Option
}

type Option struct {
	ID         string
	QuestionID string
	Letter     string
	Text       string
	IsCorrect  bool
}

// WritingTask is a tagged union: Kind is "form" (structured fields, FieldsJSON
// holds the field definitions) or "simple" (free-text prompt only). The
// discriminant is set at write time; readers never probe for field presence.
type WritingTask struct {
	ID         string
	Kind       string
	Title      string
	Prompt     string
	FieldsJSON string
	Language   string
	Level      string
	CreatedAt  time.Time
}

const (
	WritingKindForm   = "form"
	WritingKindSimple = "simple"
)

// ConversationTurn is one logged message within a conversation.
type ConversationTurn struct {
	ID             string
	ConversationID string
	TaskID         string
	UserID         string
	TurnIndex      int
	Role           string
	Content        string
	Channel        string
	CreatedAt      time.Time
}

// TaskAttempt is one scored submission for a task. AttemptNumber is assigned
// from the atomic per-user-per-task counter.
type TaskAttempt struct {
	ID            string
	UserID        string
	TaskID        string
	Skill         string
	AttemptNumber int
	Score         int
	Total         int
	Percentage    int
	DetailsJSON   string
	CompletedAt   time.Time
}

// SectionScore is a persisted result for one scored test section.
type SectionScore struct {
	ID            string
	UserID        string
	TestID        string
	Skill         string
	Section       int
	AttemptNumber int
	Score         int
	Total         int
	Percentage    int
	ResultsJSON   string
	CreatedAt     time.Time
}

// WritingScore holds the structured AI evaluation of a writing submission.
type WritingScore struct {
	ID            string
	UserID        string
	TaskID        string
	AttemptNumber int
	Overall       int
	Grammar       int
	Vocabulary    int
	Coherence     int
	FeedbackJSON  string
	CreatedAt     time.Time
}

type GrammarError struct {
	ID         string
	UserID     string
	TaskID     string
	Category   string
	ErrorText  string
	Correction string
	Severity   string
	CreatedAt  time.Time
}

type VocabularyEntry struct {
	ID           string
	UserID       string
	Word         string
	Translation  string
	Language     string
	Mastered     bool
	ReviewCount  int
	LastReviewed time.Time
	CreatedAt    time.Time
}

// AudioCacheEntry maps (kind, text hash, language) to a generated audio URL.
type AudioCacheEntry struct {
	ID        string
	Kind      string
	TextHash  string
	Language  string
	URL       string
	CreatedAt time.Time
}

type UserStats struct {
	UserID     string
	StreakDays int
	LastActive time.Time
	UpdatedAt  time.Time
}

type JoinCode struct {
	Code        string
	TeacherID   string
	Role        string
	MaxUses     int
	CurrentUses int
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

type Membership struct {
	ID        string
	UserID    string
	TeacherID string
	Role      string
	JoinCode  string
	CreatedAt time.Time
}

// ChannelUser maps a messaging channel address (e.g. a WhatsApp number) to an
// internal user id.
type ChannelUser struct {
	Channel   string
	Address   string
	UserID    string
	CreatedAt time.Time
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
