package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// --- Grammar errors ---

func (s *Store) SaveGrammarError(g GrammarError) error {
	createdAt := g.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	severity := g.Severity
	if severity == "" {
		severity = "minor"
	}
	_, err := s.db.Exec(`
		INSERT INTO grammar_errors (id, user_id, task_id, category, error_text, correction, severity, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, g.UserID, g.TaskID, g.Category, g.ErrorText, g.Correction, severity,
		createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListGrammarErrors(userID string, limit int) ([]GrammarError, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, task_id, category, error_text, correction, severity, created_at
		FROM grammar_errors WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []GrammarError
	for rows.Next() {
		var g GrammarError
		var createdAt string
		if err := rows.Scan(&g.ID, &g.UserID, &g.TaskID, &g.Category, &g.ErrorText, &g.Correction, &g.Severity, &createdAt); err != nil {
			return nil, err
		}
		if g.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

// --- Vocabulary ---

// UpsertVocabulary inserts a vocabulary entry or, if (user, language, word)
// already exists, updates the translation.
func (s *Store) UpsertVocabulary(v VocabularyEntry) error {
	createdAt := v.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO vocabulary (id, user_id, word, translation, language, mastered, review_count, last_reviewed, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)
		ON CONFLICT(user_id, language, word) DO UPDATE SET translation = excluded.translation`,
		v.ID, v.UserID, v.Word, v.Translation, v.Language, boolToInt(v.Mastered), v.ReviewCount,
		createdAt.Format(time.RFC3339),
	)
	return err
}

// MarkVocabularyReviewed bumps the review counter and optionally flags the
// word mastered.
func (s *Store) MarkVocabularyReviewed(userID, language, word string, mastered bool) error {
	res, err := s.db.Exec(`
		UPDATE vocabulary
		SET review_count = review_count + 1, mastered = ?, last_reviewed = ?
		WHERE user_id = ? AND language = ? AND word = ?`,
		boolToInt(mastered), time.Now().UTC().Format(time.RFC3339), userID, language, word,
	)
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

func (s *Store) ListVocabulary(userID string, limit int) ([]VocabularyEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, word, translation, language, mastered, review_count, last_reviewed, created_at
		FROM vocabulary WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []VocabularyEntry
	for rows.Next() {
		v, err := scanVocabulary(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// SearchVocabulary finds entries whose word or translation contains the query.
func (s *Store) SearchVocabulary(userID, query string, limit int) ([]VocabularyEntry, error) {
	like := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT id, user_id, word, translation, language, mastered, review_count, last_reviewed, created_at
		FROM vocabulary WHERE user_id = ? AND (word LIKE ? OR translation LIKE ?)
		ORDER BY word ASC LIMIT ?`,
		userID, like, like, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []VocabularyEntry
	for rows.Next() {
		v, err := scanVocabulary(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// CountVocabulary returns (total, mastered) entry counts for a user.
func (s *Store) CountVocabulary(userID string) (int, int, error) {
	var total, mastered int
	err := s.db.QueryRow(`
		SELECT COUNT(*), COALESCE(SUM(mastered), 0) FROM vocabulary WHERE user_id = ?`,
		userID,
	).Scan(&total, &mastered)
	return total, mastered, err
}

func scanVocabulary(row rowScanner) (VocabularyEntry, error) {
	var v VocabularyEntry
	var mastered int
	var lastReviewed sql.NullString
	var createdAt string
	err := row.Scan(&v.ID, &v.UserID, &v.Word, &v.Translation, &v.Language, &mastered, &v.ReviewCount, &lastReviewed, &createdAt)
	if err != nil {
		return VocabularyEntry{}, err
	}
	v.Mastered = mastered != 0
	if lastReviewed.Valid && lastReviewed.String != "" {
		if v.LastReviewed, err = parseTime(lastReviewed.String); err != nil {
			return VocabularyEntry{}, fmt.Errorf("parsing last_reviewed: %w", err)
		}
	}
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return VocabularyEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return v, nil
}

// --- Audio cache ---

func (s *Store) SaveAudioCache(e AudioCacheEntry) error {
	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO audio_cache (id, kind, text_hash, language, url, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(kind, text_hash, language) DO UPDATE SET url = excluded.url`,
		e.ID, e.Kind, e.TextHash, e.Language, e.URL, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) LookupAudioCache(kind, textHash, language string) (AudioCacheEntry, error) {
	var e AudioCacheEntry
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, kind, text_hash, language, url, created_at
		FROM audio_cache WHERE kind = ? AND text_hash = ? AND language = ?`,
		kind, textHash, language,
	).Scan(&e.ID, &e.Kind, &e.TextHash, &e.Language, &e.URL, &createdAt)
	if err == sql.ErrNoRows {
		return AudioCacheEntry{}, ErrNotFound
	}
	if err != nil {
		return AudioCacheEntry{}, err
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return AudioCacheEntry{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return e, nil
}

// --- User stats ---

func (s *Store) SetUserStats(st UserStats) error {
	var lastActive any
	if !st.LastActive.IsZero() {
		lastActive = st.LastActive.UTC().Format(time.RFC3339)
	}
	_, err := s.db.Exec(`
		INSERT INTO user_stats (user_id, streak_days, last_active, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			streak_days = excluded.streak_days,
			last_active = excluded.last_active,
			updated_at = excluded.updated_at`,
		st.UserID, st.StreakDays, lastActive, time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetUserStats(userID string) (UserStats, error) {
	var st UserStats
	var lastActive sql.NullString
	var updatedAt string
	err := s.db.QueryRow(`
		SELECT user_id, streak_days, last_active, updated_at FROM user_stats WHERE user_id = ?`,
		userID,
	).Scan(&st.UserID, &st.StreakDays, &lastActive, &updatedAt)
	if err == sql.ErrNoRows {
		return UserStats{}, ErrNotFound
	}
	if err != nil {
		return UserStats{}, err
	}
	if lastActive.Valid && lastActive.String != "" {
		if st.LastActive, err = parseTime(lastActive.String); err != nil {
			return UserStats{}, fmt.Errorf("parsing last_active: %w", err)
		}
	}
	if st.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return UserStats{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return st, nil
}

// ListUserIDsWithAttempts returns distinct user ids that have at least one
// attempt. Used by the nightly streak recomputation.
func (s *Store) ListUserIDsWithAttempts() ([]string, error) {
	rows, err := s.db.Query(`SELECT DISTINCT user_id FROM task_attempts`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
