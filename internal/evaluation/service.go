package evaluation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/llm"
	"github.com/sprachlab/sprachlab/internal/storage"
)

// Chatter is the subset of the LLM client the evaluators use.
type Chatter interface {
	Complete(ctx context.Context, model string, messages []llm.Message) (string, error)
	CompleteStructured(ctx context.Context, model string, messages []llm.Message, name string, schema llm.Schema) (string, error)
	Chat(ctx context.Context, req llm.ChatRequest) (io.ReadCloser, error)
}

// Store is the storage surface the evaluators read and write.
type Store interface {
	GetConversation(conversationID string) ([]storage.ConversationTurn, error)
	AppendConversationTurn(t storage.ConversationTurn) (int, error)
	GetWritingTask(id string) (storage.WritingTask, error)
	NextAttemptNumber(userID, taskID string) (int, error)
	SaveWritingScore(ws storage.WritingScore) error
}

// Service runs AI evaluations of learner output.
type Service struct {
	chat      Chatter
	store     Store
	model     string
	chatModel string
	logger    *slog.Logger
}

func NewService(chat Chatter, store Store, model string, logger *slog.Logger) *Service {
	return NewServiceWithChatModel(chat, store, model, model, logger)
}

// NewServiceWithChatModel uses a separate, usually cheaper model for live
// conversation turns while evaluations run on evalModel.
func NewServiceWithChatModel(chat Chatter, store Store, evalModel, chatModel string, logger *slog.Logger) *Service {
	return &Service{chat: chat, store: store, model: evalModel, chatModel: chatModel, logger: logger}
}

// DebateResult is the structured verdict on a debate transcript.
type DebateResult struct {
	GrammarScore    int      `json:"grammar_score"`
	VocabularyScore int      `json:"vocabulary_score"`
	FluencyScore    int      `json:"fluency_score"`
	ArgumentScore   int      `json:"argument_score"`
	OverallScore    int      `json:"overall_score"`
	Strengths       []string `json:"strengths"`
	Improvements    []string `json:"improvements"`
	Feedback        string   `json:"feedback"`
}

var debateSchema = llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"grammar_score":    {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(100)},
		"vocabulary_score": {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(100)},
		"fluency_score":    {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(100)},
		"argument_score":   {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(100)},
		"overall_score":    {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(100)},
		"strengths":        {Type: "array", Items: &llm.Schema{Type: "string"}},
		"improvements":     {Type: "array", Items: &llm.Schema{Type: "string"}},
		"feedback":         {Type: "string"},
	},
	Required: []string{"grammar_score", "vocabulary_score", "fluency_score", "argument_score", "overall_score", "strengths", "improvements", "feedback"},
}

// EvaluateDebate evaluates the learner's side of a logged debate conversation.
func (s *Service) EvaluateDebate(ctx context.Context, conversationID string, p DebatePromptParams) (DebateResult, error) {
	var result DebateResult

	turns, err := s.store.GetConversation(conversationID)
	if err != nil {
		return result, fmt.Errorf("loading conversation %s: %w", conversationID, err)
	}
	if len(turns) == 0 {
		return result, fmt.Errorf("conversation %s: %w", conversationID, storage.ErrNotFound)
	}

	parts := buildDebatePrompt(p, turns)
	messages := []llm.Message{
		{Role: "system", Content: parts[0]},
		{Role: "user", Content: parts[1]},
	}

	content, err := s.chat.CompleteStructured(ctx, s.model, messages, "debate_evaluation", debateSchema)
	if err != nil {
		return result, fmt.Errorf("debate evaluation: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("decoding debate evaluation: %w", err)
	}
	return result, nil
}

// WritingResult is the structured verdict on a writing submission.
type WritingResult struct {
	TaskCompletion int    `json:"task_completion"`
	Coherence      int    `json:"coherence"`
	Vocabulary     int    `json:"vocabulary"`
	Grammar        int    `json:"grammar"`
	Total          int    `json:"total"`
	Feedback       string `json:"feedback"`
}

var writingSchema = llm.Schema{
	Type: "object",
	Properties: map[string]llm.SchemaProperty{
		"task_completion": {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(5)},
		"coherence":       {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(5)},
		"vocabulary":      {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(5)},
		"grammar":         {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(5)},
		"total":           {Type: "integer", Minimum: intPtr(0), Maximum: intPtr(20)},
		"feedback":        {Type: "string"},
	},
	Required: []string{"task_completion", "coherence", "vocabulary", "grammar", "total", "feedback"},
}

// WritingSubmission is what the learner handed in for a writing task. Text is
// used for simple tasks, Fields for form tasks; the task's kind decides which.
type WritingSubmission struct {
	UserID string
	TaskID string
	Text   string
	Fields map[string]string
}

// EvaluateWriting evaluates a writing submission against its task and saves
// the score row. Saving is best-effort: a storage failure is logged and the
// evaluation still returned.
func (s *Service) EvaluateWriting(ctx context.Context, sub WritingSubmission) (WritingResult, error) {
	var result WritingResult

	task, err := s.store.GetWritingTask(sub.TaskID)
	if err != nil {
		return result, fmt.Errorf("loading writing task %s: %w", sub.TaskID, err)
	}

	params := WritingPromptParams{
		Language: task.Language,
		Level:    task.Level,
		Prompt:   task.Prompt,
		Text:     sub.Text,
	}

	var parts []string
	switch task.Kind {
	case storage.WritingKindForm:
		parts = buildFormPrompt(params, sub.Fields)
	default:
		parts = buildWritingPrompt(params)
	}

	messages := []llm.Message{
		{Role: "system", Content: parts[0]},
		{Role: "user", Content: parts[1]},
	}

	content, err := s.chat.CompleteStructured(ctx, s.model, messages, "writing_evaluation", writingSchema)
	if err != nil {
		return result, fmt.Errorf("writing evaluation: %w", err)
	}
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return result, fmt.Errorf("decoding writing evaluation: %w", err)
	}

	if sub.UserID != "" {
		if err := s.saveWritingScore(sub, result); err != nil {
			s.logger.Error("saving writing score", "user_id", sub.UserID, "task_id", sub.TaskID, "error", err)
		}
	}
	return result, nil
}

func (s *Service) saveWritingScore(sub WritingSubmission, result WritingResult) error {
	attempt, err := s.store.NextAttemptNumber(sub.UserID, sub.TaskID)
	if err != nil {
		return err
	}
	feedback, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.store.SaveWritingScore(storage.WritingScore{
		ID:            uuid.NewString(),
		UserID:        sub.UserID,
		TaskID:        sub.TaskID,
		AttemptNumber: attempt,
		Overall:       result.Total,
		Grammar:       result.Grammar,
		Vocabulary:    result.Vocabulary,
		Coherence:     result.Coherence,
		FeedbackJSON:  string(feedback),
		CreatedAt:     time.Now().UTC(),
	})
}

func intPtr(v int) *int { return &v }
