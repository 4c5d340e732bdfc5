package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/llm"
	"github.com/sprachlab/sprachlab/internal/storage"
)

// RoleplayRequest starts or continues a roleplay conversation. Message is the
// learner's newest turn; earlier turns are loaded from the conversation log.
type RoleplayRequest struct {
	ConversationID string
	TaskID         string
	UserID         string
	Language       string
	Level          string
	Scenario       string
	Message        string
	Channel        string
}

// Roleplay persists the learner's turn, streams the partner's reply as SSE
// and persists the assembled reply once the stream is fully read.
func (s *Service) Roleplay(ctx context.Context, req RoleplayRequest) (io.ReadCloser, error) {
	if req.ConversationID == "" {
		req.ConversationID = uuid.NewString()
	}

	history, err := s.store.GetConversation(req.ConversationID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	if _, err := s.store.AppendConversationTurn(storage.ConversationTurn{
		ID:             uuid.NewString(),
		ConversationID: req.ConversationID,
		TaskID:         req.TaskID,
		UserID:         req.UserID,
		Role:           "user",
		Content:        req.Message,
		Channel:        req.Channel,
		CreatedAt:      time.Now().UTC(),
	}); err != nil {
		return nil, fmt.Errorf("logging turn: %w", err)
	}

	messages := []llm.Message{{Role: "system", Content: roleplaySystemPrompt(req)}}
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	msgs, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("marshaling messages: %w", err)
	}

	rc, err := s.chat.Chat(ctx, llm.ChatRequest{Model: s.chatModel, Messages: msgs, Stream: true})
	if err != nil {
		return nil, fmt.Errorf("roleplay chat: %w", err)
	}

	return &turnRecorder{rc: rc, svc: s, req: req}, nil
}

func roleplaySystemPrompt(req RoleplayRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are a conversation partner for a %s learner at level %s. ",
		orDefault(req.Language, "German"), orDefault(req.Level, "B1"))
	b.WriteString("Stay in character, keep replies short and at the learner's level, and gently rephrase their mistakes in your answer.")
	if req.Scenario != "" {
		fmt.Fprintf(&b, " Scenario: %s.", req.Scenario)
	}
	return b.String()
}

// turnRecorder passes the SSE stream through while collecting the assistant
// delta content, and logs the assembled reply when the stream is closed.
type turnRecorder struct {
	rc      io.ReadCloser
	svc     *Service
	req     RoleplayRequest
	buf     strings.Builder
	pending []byte
	saved   bool
}

func (t *turnRecorder) Read(p []byte) (int, error) {
	n, err := t.rc.Read(p)
	if n > 0 {
		t.pending = append(t.pending, p[:n]...)
		t.drainLines()
	}
	return n, err
}

func (t *turnRecorder) drainLines() {
	for {
		i := bytes.IndexByte(t.pending, '\n')
		if i < 0 {
			return
		}
		line := strings.TrimSpace(string(t.pending[:i]))
		t.pending = t.pending[i+1:]

		data, ok := strings.CutPrefix(line, "data: ")
		if !ok || data == "[DONE]" {
			continue
		}
		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) > 0 {
			t.buf.WriteString(chunk.Choices[0].Delta.Content)
		}
	}
}

func (t *turnRecorder) Close() error {
	err := t.rc.Close()
	if !t.saved && t.buf.Len() > 0 {
		t.saved = true
		if _, saveErr := t.svc.store.AppendConversationTurn(storage.ConversationTurn{
			ID:             uuid.NewString(),
			ConversationID: t.req.ConversationID,
			TaskID:         t.req.TaskID,
			UserID:         t.req.UserID,
			Role:           "assistant",
			Content:        t.buf.String(),
			Channel:        t.req.Channel,
			CreatedAt:      time.Now().UTC(),
		}); saveErr != nil {
			t.svc.logger.Error("logging assistant turn", "conversation_id", t.req.ConversationID, "error", saveErr)
		}
	}
	return err
}

// ConversationID reports the id the stream's turns are logged under, so the
// route can hand it back to a client that started a new conversation.
func (t *turnRecorder) ConversationID() string {
	return t.req.ConversationID
}

// StreamConversationID extracts the conversation id from a Roleplay stream.
func StreamConversationID(rc io.ReadCloser) string {
	if t, ok := rc.(*turnRecorder); ok {
		return t.ConversationID()
	}
	return ""
}
