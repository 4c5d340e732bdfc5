package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// SaveJoinCode inserts or replaces an invite code.
func (s *Store) SaveJoinCode(c JoinCode) error {
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	var expiresAt any
	if !c.ExpiresAt.IsZero() {
		expiresAt = c.ExpiresAt.UTC().Format(time.RFC3339)
	}
	role := c.Role
	if role == "" {
		role = "student"
	}
	_, err := s.db.Exec(`
		INSERT INTO join_codes (code, teacher_id, role, max_uses, current_uses, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			teacher_id = excluded.teacher_id, role = excluded.role,
			max_uses = excluded.max_uses, expires_at = excluded.expires_at`,
		c.Code, c.TeacherID, role, c.MaxUses, c.CurrentUses, expiresAt, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) GetJoinCode(code string) (JoinCode, error) {
	var c JoinCode
	var expiresAt sql.NullString
	var createdAt string
	err := s.db.QueryRow(`
		SELECT code, teacher_id, role, max_uses, current_uses, expires_at, created_at
		FROM join_codes WHERE code = ?`, code,
	).Scan(&c.Code, &c.TeacherID, &c.Role, &c.MaxUses, &c.CurrentUses, &expiresAt, &createdAt)
	if err == sql.ErrNoRows {
		return JoinCode{}, ErrNotFound
	}
	if err != nil {
		return JoinCode{}, err
	}
	if expiresAt.Valid && expiresAt.String != "" {
		if c.ExpiresAt, err = parseTime(expiresAt.String); err != nil {
			return JoinCode{}, fmt.Errorf("parsing expires_at: %w", err)
		}
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return JoinCode{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return c, nil
}

// RedeemJoinCode increments the usage counter if and only if the code exists,
// is unexpired, and is under quota (max_uses 0 means unlimited). The
// conditional UPDATE makes the quota check and the increment one atomic
// operation. Returns the redeemed code on success, ErrNotFound for an unknown
// code, ErrCodeExhausted otherwise.
func (s *Store) RedeemJoinCode(code, userID string, now time.Time) (JoinCode, error) {
	nowStr := now.UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE join_codes SET current_uses = current_uses + 1
		WHERE code = ?
			AND (max_uses = 0 OR current_uses < max_uses)
			AND (expires_at IS NULL OR expires_at > ?)`,
		code, nowStr,
	)
	if err != nil {
		return JoinCode{}, fmt.Errorf("redeeming join code: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return JoinCode{}, err
	}
	if n == 0 {
		if _, getErr := s.GetJoinCode(code); getErr != nil {
			return JoinCode{}, getErr
		}
		return JoinCode{}, ErrCodeExhausted
	}

	if _, err := s.db.Exec(`
		INSERT INTO join_code_usage (id, code, user_id, created_at) VALUES (?, ?, ?, ?)`,
		newUsageID(code, userID, now), code, userID, nowStr,
	); err != nil {
		return JoinCode{}, fmt.Errorf("logging join code usage: %w", err)
	}

	return s.GetJoinCode(code)
}

func newUsageID(code, userID string, now time.Time) string {
	return fmt.Sprintf("%s:%s:%d", code, userID, now.UnixNano())
}

// DeleteExpiredJoinCodes removes codes whose expiry has passed. Returns the
// number deleted.
func (s *Store) DeleteExpiredJoinCodes(now time.Time) (int64, error) {
	res, err := s.db.Exec(`
		DELETE FROM join_codes WHERE expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// --- Memberships ---

// SaveMembership inserts a membership row; replaying the same (user, teacher)
// pair is a no-op so webhook redelivery stays idempotent.
func (s *Store) SaveMembership(m Membership) error {
	createdAt := m.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO memberships (id, user_id, teacher_id, role, join_code, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, teacher_id) DO NOTHING`,
		m.ID, m.UserID, m.TeacherID, m.Role, m.JoinCode, createdAt.Format(time.RFC3339),
	)
	return err
}

func (s *Store) ListMemberships(userID string) ([]Membership, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, teacher_id, role, join_code, created_at
		FROM memberships WHERE user_id = ? ORDER BY created_at ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Membership
	for rows.Next() {
		var m Membership
		var createdAt string
		if err := rows.Scan(&m.ID, &m.UserID, &m.TeacherID, &m.Role, &m.JoinCode, &createdAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, m)
	}
	return results, rows.Err()
}

func (s *Store) DeleteMembership(userID, teacherID string) error {
	res, err := s.db.Exec(`DELETE FROM memberships WHERE user_id = ? AND teacher_id = ?`, userID, teacherID)
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

// --- Webhook events (idempotency) ---

// MarkWebhookEvent records a processed event id. Returns false if the event
// was already recorded, which callers use to skip replayed deliveries.
func (s *Store) MarkWebhookEvent(id, eventType string) (bool, error) {
	res, err := s.db.Exec(`
		INSERT OR IGNORE INTO webhook_events (id, type, processed_at) VALUES (?, ?, ?)`,
		id, eventType, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// MarkEventAndEnqueue records a processed event id and, when the event is new
// and a job is given, enqueues it in the same transaction. A failed enqueue
// rolls back the event record, so the provider's redelivery is processed
// again instead of being treated as a replay.
func (s *Store) MarkEventAndEnqueue(id, eventType string, job *Job) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := tx.Exec(`
		INSERT OR IGNORE INTO webhook_events (id, type, processed_at) VALUES (?, ?, ?)`,
		id, eventType, now,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if job != nil {
		maxAttempts := job.MaxAttempts
		if maxAttempts == 0 {
			maxAttempts = 3
		}
		runAfter := now
		if !job.RunAfter.IsZero() {
			runAfter = job.RunAfter.UTC().Format(time.RFC3339)
		}
		_, err = tx.Exec(`
			INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
			VALUES (?, ?, ?, 'pending', 0, ?, ?, ?, ?)`,
			job.ID, job.Type, job.PayloadJSON, maxAttempts, runAfter, now, now,
		)
		if err != nil {
			return false, err
		}
	}
	return true, tx.Commit()
}

// --- Channel users ---

func (s *Store) SaveChannelUser(cu ChannelUser) error {
	createdAt := cu.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO channel_users (channel, address, user_id, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(channel, address) DO UPDATE SET user_id = excluded.user_id`,
		cu.Channel, cu.Address, cu.UserID, createdAt.Format(time.RFC3339),
	)
	return err
}

// ListChannelUsers returns every address registered on a channel.
func (s *Store) ListChannelUsers(channel string) ([]ChannelUser, error) {
	rows, err := s.db.Query(`
		SELECT channel, address, user_id, created_at FROM channel_users
		WHERE channel = ? ORDER BY created_at ASC`,
		channel,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []ChannelUser
	for rows.Next() {
		var cu ChannelUser
		var createdAt string
		if err := rows.Scan(&cu.Channel, &cu.Address, &cu.UserID, &createdAt); err != nil {
			return nil, err
		}
		if cu.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		users = append(users, cu)
	}
	return users, rows.Err()
}

// ResolveChannelUser maps a (channel, address) pair to the internal user id.
func (s *Store) ResolveChannelUser(channel, address string) (string, error) {
	var userID string
	err := s.db.QueryRow(`
		SELECT user_id FROM channel_users WHERE channel = ? AND address = ?`,
		channel, address,
	).Scan(&userID)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	return userID, err
}
