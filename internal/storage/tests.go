package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveTest inserts a test together with its questions and options in one
// transaction. An existing test with the same id is replaced, which lets
// content packs be reloaded at startup.
func (s *Store) SaveTest(t Test) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning test save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM tests WHERE id = ?`, t.ID); err != nil {
		return fmt.Errorf("clearing existing test: %w", err)
	}

	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err = tx.Exec(`
		INSERT INTO tests (id, skill, section, title, language, level, passage, transcript, audio_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Skill, t.Section, t.Title, t.Language, t.Level, t.Passage, t.Transcript, t.AudioURL,
		createdAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting test: %w", err)
	}

	for _, q := range t.Questions {
		if _, err := tx.Exec(`
			INSERT INTO questions (id, test_id, number, text, is_example)
			VALUES (?, ?, ?, ?, ?)`,
			q.ID, t.ID, q.Number, q.Text, boolToInt(q.IsExample),
		); err != nil {
			return fmt.Errorf("inserting question %d: %w", q.Number, err)
		}
		for _, o := range q.Options {
			if _, err := tx.Exec(`
				INSERT INTO options (id, question_id, letter, text, is_correct)
				VALUES (?, ?, ?, ?, ?)`,
				o.ID, q.ID, o.Letter, o.Text, boolToInt(o.IsCorrect),
			); err != nil {
				return fmt.Errorf("inserting option %s for question %d: %w", o.Letter, q.Number, err)
			}
		}
	}

	return tx.Commit()
}

// GetTest loads a test with its questions (ordered by number) and options
// (ordered by letter).
func (s *Store) GetTest(id string) (Test, error) {
	var t Test
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, skill, section, title, language, level, passage, transcript, audio_url, created_at
		FROM tests WHERE id = ?`, id,
	).Scan(&t.ID, &t.Skill, &t.Section, &t.Title, &t.Language, &t.Level, &t.Passage, &t.Transcript, &t.AudioURL, &createdAt)
	if err == sql.ErrNoRows {
		return Test{}, ErrNotFound
	}
	if err != nil {
		return Test{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Test{}, fmt.Errorf("parsing created_at: %w", err)
	}

	qRows, err := s.db.Query(`
		SELECT id, test_id, number, text, is_example
		FROM questions WHERE test_id = ? ORDER BY number ASC`, id,
	)
	if err != nil {
		return Test{}, err
	}
	defer qRows.Close()

	for qRows.Next() {
		var q Question
		var isExample int
		if err := qRows.Scan(&q.ID, &q.TestID, &q.Number, &q.Text, &isExample); err != nil {
			return Test{}, err
		}
		q.IsExample = isExample != 0
		t.Questions = append(t.Questions, q)
	}
	if err := qRows.Err(); err != nil {
		return Test{}, err
	}

	for i := range t.Questions {
		oRows, err := s.db.Query(`
			SELECT id, question_id, letter, text, is_correct
			FROM options WHERE question_id = ? ORDER BY letter ASC`, t.Questions[i].ID,
		)
		if err != nil {
			return Test{}, err
		}
		for oRows.Next() {
			var o Option
			var isCorrect int
			if err := oRows.Scan(&o.ID, &o.QuestionID, &o.Letter, &o.Text, &isCorrect); err != nil {
				oRows.Close()
				return Test{}, err
			}
			o.IsCorrect = isCorrect != 0
			t.Questions[i].Options = append(t.Questions[i].Options, o)
		}
		if err := oRows.Err(); err != nil {
			oRows.Close()
			return Test{}, err
		}
		oRows.Close()
	}

	return t, nil
}

// ListTests returns test headers (no questions) filtered by skill; pass ""
// for all skills.
func (s *Store) ListTests(skill string, limit int) ([]Test, error) {
	query := `
		SELECT id, skill, section, title, language, level, passage, transcript, audio_url, created_at
		FROM tests`
	args := []any{}
	if skill != "" {
		query += ` WHERE skill = ?`
		args = append(args, skill)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Test
	for rows.Next() {
		var t Test
		var createdAt string
		if err := rows.Scan(&t.ID, &t.Skill, &t.Section, &t.Title, &t.Language, &t.Level, &t.Passage, &t.Transcript, &t.AudioURL, &createdAt); err != nil {
			return nil, err
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// UpdateTestAudioURL records the generated passage audio URL on a test.
func (s *Store) UpdateTestAudioURL(id, url string) error {
	res, err := s.db.Exec(`UPDATE tests SET audio_url = ? WHERE id = ?`, url, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveWritingTask inserts or replaces a writing task.
func (s *Store) SaveWritingTask(t WritingTask) error {
	createdAt := t.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	fields := t.FieldsJSON
	if fields == "" {
		fields = "[]"
	}
	_, err := s.db.Exec(`
		INSERT INTO writing_tasks (id, kind, title, prompt, fields_json, language, level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind, title = excluded.title, prompt = excluded.prompt,
			fields_json = excluded.fields_json, language = excluded.language, level = excluded.level`,
		t.ID, t.Kind, t.Title, t.Prompt, fields, t.Language, t.Level, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetWritingTask(id string) (WritingTask, error) {
	var t WritingTask
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, kind, title, prompt, fields_json, language, level, created_at
		FROM writing_tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Kind, &t.Title, &t.Prompt, &t.FieldsJSON, &t.Language, &t.Level, &createdAt)
	if err == sql.ErrNoRows {
		return WritingTask{}, ErrNotFound
	}
	if err != nil {
		return WritingTask{}, err
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return WritingTask{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
