package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// NextAttemptNumber atomically assigns the next attempt sequence number for
// (userID, taskID). The counter row is upserted and incremented in a single
// statement so concurrent submissions can never observe the same number.
func (s *Store) NextAttemptNumber(userID, taskID string) (int, error) {
	var seq int
	err := s.db.QueryRow(`
		INSERT INTO attempt_counters (user_id, task_id, seq) VALUES (?, ?, 1)
		ON CONFLICT(user_id, task_id) DO UPDATE SET seq = seq + 1
		RETURNING seq`,
		userID, taskID,
	).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("incrementing attempt counter: %w", err)
	}
	return seq, nil
}

// SaveAttempt persists a scored attempt. AttemptNumber must come from
// NextAttemptNumber.
func (s *Store) SaveAttempt(a TaskAttempt) error {
	completedAt := a.CompletedAt
	if completedAt.IsZero() {
		completedAt = time.Now().UTC()
	}
	details := a.DetailsJSON
	if details == "" {
		details = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO task_attempts (id, user_id, task_id, skill, attempt_number, score, total, percentage, details_json, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.UserID, a.TaskID, a.Skill, a.AttemptNumber, a.Score, a.Total, a.Percentage,
		details, completedAt.Format(time.RFC3339),
	)
	return err
}

// LatestAttempt returns the highest-numbered attempt for (userID, taskID).
func (s *Store) LatestAttempt(userID, taskID string) (TaskAttempt, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, task_id, skill, attempt_number, score, total, percentage, details_json, completed_at
		FROM task_attempts WHERE user_id = ? AND task_id = ?
		ORDER BY attempt_number DESC LIMIT 1`, userID, taskID,
	)
	return scanAttempt(row)
}

// ListAttempts returns a user's attempts, newest first. Pass skill "" for all.
func (s *Store) ListAttempts(userID, skill string, limit int) ([]TaskAttempt, error) {
	query := `
		SELECT id, user_id, task_id, skill, attempt_number, score, total, percentage, details_json, completed_at
		FROM task_attempts WHERE user_id = ?`
	args := []any{userID}
	if skill != "" {
		query += ` AND skill = ?`
		args = append(args, skill)
	}
	query += ` ORDER BY completed_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []TaskAttempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

// CountAttemptsSince returns the number of a user's attempts for a skill
// completed at or after the cutoff.
func (s *Store) CountAttemptsSince(userID, skill string, cutoff time.Time) (int, error) {
	var n int
	err := s.db.QueryRow(`
		SELECT COUNT(*) FROM task_attempts
		WHERE user_id = ? AND skill = ? AND completed_at >= ?`,
		userID, skill, cutoff.UTC().Format(time.RFC3339),
	).Scan(&n)
	return n, err
}

// AverageSkillPercentage returns the mean percentage over a user's attempts
// for a skill since the cutoff, and the attempt count. Zero attempts yields
// (0, 0, nil).
func (s *Store) AverageSkillPercentage(userID, skill string, cutoff time.Time) (float64, int, error) {
	var avg sql.NullFloat64
	var n int
	err := s.db.QueryRow(`
		SELECT AVG(percentage), COUNT(*) FROM task_attempts
		WHERE user_id = ? AND skill = ? AND completed_at >= ?`,
		userID, skill, cutoff.UTC().Format(time.RFC3339),
	).Scan(&avg, &n)
	if err != nil {
		return 0, 0, err
	}
	return avg.Float64, n, nil
}

// ActiveDays returns the distinct UTC days (YYYY-MM-DD) on which the user
// completed attempts, newest first.
func (s *Store) ActiveDays(userID string, limit int) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT substr(completed_at, 1, 10) AS day
		FROM task_attempts WHERE user_id = ?
		ORDER BY day DESC LIMIT ?`, userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var days []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (TaskAttempt, error) {
	var a TaskAttempt
	var completedAt string
	err := row.Scan(&a.ID, &a.UserID, &a.TaskID, &a.Skill, &a.AttemptNumber, &a.Score, &a.Total, &a.Percentage, &a.DetailsJSON, &completedAt)
	if err == sql.ErrNoRows {
		return TaskAttempt{}, ErrNotFound
	}
	if err != nil {
		return TaskAttempt{}, err
	}
	if a.CompletedAt, err = parseTime(completedAt); err != nil {
		return TaskAttempt{}, fmt.Errorf("parsing completed_at: %w", err)
	}
	return a, nil
}

// --- Section scores ---

func (s *Store) SaveSectionScore(sc SectionScore) error {
	createdAt := sc.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	results := sc.ResultsJSON
	if results == "" {
		results = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO section_scores (id, user_id, test_id, skill, section, attempt_number, score, total, percentage, results_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.UserID, sc.TestID, sc.Skill, sc.Section, sc.AttemptNumber,
		sc.Score, sc.Total, sc.Percentage, results, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListSectionScores(userID string, limit int) ([]SectionScore, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, test_id, skill, section, attempt_number, score, total, percentage, results_json, created_at
		FROM section_scores WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SectionScore
	for rows.Next() {
		var sc SectionScore
		var createdAt string
		if err := rows.Scan(&sc.ID, &sc.UserID, &sc.TestID, &sc.Skill, &sc.Section, &sc.AttemptNumber, &sc.Score, &sc.Total, &sc.Percentage, &sc.ResultsJSON, &createdAt); err != nil {
			return nil, err
		}
		if sc.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, sc)
	}
	return results, rows.Err()
}

// --- Writing scores ---

func (s *Store) SaveWritingScore(ws WritingScore) error {
	createdAt := ws.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	feedback := ws.FeedbackJSON
	if feedback == "" {
		feedback = "{}"
	}
	_, err := s.db.Exec(`
		INSERT INTO writing_scores (id, user_id, task_id, attempt_number, overall, grammar, vocabulary, coherence, feedback_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ws.ID, ws.UserID, ws.TaskID, ws.AttemptNumber, ws.Overall, ws.Grammar, ws.Vocabulary, ws.Coherence,
		feedback, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListWritingScores(userID string, limit int) ([]WritingScore, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, task_id, attempt_number, overall, grammar, vocabulary, coherence, feedback_json, created_at
		FROM writing_scores WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []WritingScore
	for rows.Next() {
		var ws WritingScore
		var createdAt string
		if err := rows.Scan(&ws.ID, &ws.UserID, &ws.TaskID, &ws.AttemptNumber, &ws.Overall, &ws.Grammar, &ws.Vocabulary, &ws.Coherence, &ws.FeedbackJSON, &createdAt); err != nil {
			return nil, err
		}
		if ws.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, ws)
	}
	return results, rows.Err()
}
