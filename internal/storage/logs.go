package storage

import (
	"fmt"
	"time"
)

// AppendConversationTurn logs one message, assigning the next turn index for
// the conversation inside the INSERT itself so concurrent writers cannot
// produce duplicate indexes. Returns the assigned index.
func (s *Store) AppendConversationTurn(t ConversationTurn) (int, error) {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	channel := t.Channel
	if channel == "" {
		channel = "web"
	}

	var idx int
	err := s.db.QueryRow(`
		INSERT INTO conversation_logs (id, conversation_id, task_id, user_id, turn_index, role, content, channel, created_at)
		VALUES (?, ?, ?, ?,
			(SELECT COALESCE(MAX(turn_index), -1) + 1 FROM conversation_logs WHERE conversation_id = ?),
			?, ?, ?, ?)
		RETURNING turn_index`,
		t.ID, t.ConversationID, t.TaskID, t.UserID, t.ConversationID,
		t.Role, t.Content, channel, createdAt.Format(time.RFC3339),
	).Scan(&idx)
	if err != nil {
		return 0, fmt.Errorf("appending conversation turn: %w", err)
	}
	return idx, nil
}

// GetConversation returns all turns of a conversation in order.
func (s *Store) GetConversation(conversationID string) ([]ConversationTurn, error) {
	rows, err := s.db.Query(`
		SELECT id, conversation_id, task_id, user_id, turn_index, role, content, channel, created_at
		FROM conversation_logs WHERE conversation_id = ? ORDER BY turn_index ASC`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []ConversationTurn
	for rows.Next() {
		var t ConversationTurn
		var createdAt string
		if err := rows.Scan(&t.ID, &t.ConversationID, &t.TaskID, &t.UserID, &t.TurnIndex, &t.Role, &t.Content, &t.Channel, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, rows.Err()
}
