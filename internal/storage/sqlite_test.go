package storage

import (
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}

	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

// TestIndexesExist verifies key indexes are created by the migrations.
func TestIndexesExist(t *testing.T) {
	s := openTestStore(t)

	indexes := []string{
		"idx_questions_test_id",
		"idx_task_attempts_user_task",
		"idx_section_scores_user",
		"idx_grammar_errors_user",
		"idx_vocabulary_user",
		"idx_jobs_status_run_after",
	}
	for _, idx := range indexes {
		var count int
		err := s.db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='index' AND name=?", idx).Scan(&count)
		if err != nil {
			t.Fatalf("querying sqlite_master for %q: %v", idx, err)
		}
		if count != 1 {
			t.Errorf("index %q not found in sqlite_master", idx)
		}
	}
}

func TestSaveAndGetTest(t *testing.T) {
	s := openTestStore(t)

	want := Test{
		ID:       "lt-001",
		Skill:    SkillListening,
		Section:  3,
		Title:    "Ansagen verstehen",
		Language: "de",
		Level:    "A1",
		AudioURL: "https://audio.example/lt-001.mp3",
		Questions: []Question{
			{
				ID: "q0", Number: 0, Text: "Beispiel", IsExample: true,
				Options: []Option{
					{ID: "q0a", Letter: "a", Text: "richtig", IsCorrect: true},
					{ID: "q0b", Letter: "b", Text: "falsch"},
				},
			},
			{
				ID: "q1", Number: 1, Text: "Wann kommt der Zug?",
				Options: []Option{
					{ID: "q1a", Letter: "a", Text: "um acht", IsCorrect: true},
					{ID: "q1b", Letter: "b", Text: "um neun"},
					{ID: "q1c", Letter: "c", Text: "um zehn"},
				},
			},
		},
	}

	if err := s.SaveTest(want); err != nil {
		t.Fatalf("SaveTest: %v", err)
	}

	got, err := s.GetTest("lt-001")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}

	if got.Title != want.Title || got.Skill != want.Skill || got.Section != want.Section {
		t.Errorf("header mismatch: got %+v", got)
	}
	if len(got.Questions) != 2 {
		t.Fatalf("question count = %d, want 2", len(got.Questions))
	}
	if !got.Questions[0].IsExample {
		t.Error("question 0 should be flagged is_example")
	}
	if len(got.Questions[1].Options) != 3 {
		t.Errorf("option count = %d, want 3", len(got.Questions[1].Options))
	}
	if !got.Questions[1].Options[0].IsCorrect {
		t.Error("option a of question 1 should be correct")
	}
}

func TestSaveTestReplacesExisting(t *testing.T) {
	s := openTestStore(t)

	first := Test{ID: "t1", Skill: SkillReading, Title: "v1", Language: "de", Level: "A1",
		Questions: []Question{{ID: "q1", Number: 1, Text: "old"}}}
	if err := s.SaveTest(first); err != nil {
		t.Fatalf("SaveTest: %v", err)
	}

	second := first
	second.Title = "v2"
	second.Questions = []Question{{ID: "q1", Number: 1, Text: "new"}}
	if err := s.SaveTest(second); err != nil {
		t.Fatalf("SaveTest replace: %v", err)
	}

	got, err := s.GetTest("t1")
	if err != nil {
		t.Fatalf("GetTest: %v", err)
	}
	if got.Title != "v2" || got.Questions[0].Text != "new" {
		t.Errorf("test not replaced: %+v", got)
	}
}

func TestGetTestNotFound(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.GetTest("missing"); err != ErrNotFound {
		t.Errorf("GetTest(missing) = %v, want ErrNotFound", err)
	}
}

func TestWritingTaskKindDiscriminant(t *testing.T) {
	s := openTestStore(t)

	form := WritingTask{
		ID: "wt-form", Kind: WritingKindForm, Title: "Anmeldeformular",
		Prompt: "Fill in the registration form", Language: "de", Level: "A1",
		FieldsJSON: `[{"name":"Vorname"},{"name":"Nachname"}]`,
	}
	simple := WritingTask{
		ID: "wt-simple", Kind: WritingKindSimple, Title: "Brief an einen Freund",
		Prompt: "Write a short letter", Language: "de", Level: "A2",
	}

	for _, task := range []WritingTask{form, simple} {
		if err := s.SaveWritingTask(task); err != nil {
			t.Fatalf("SaveWritingTask(%s): %v", task.ID, err)
		}
	}

	got, err := s.GetWritingTask("wt-form")
	if err != nil {
		t.Fatalf("GetWritingTask: %v", err)
	}
	if got.Kind != WritingKindForm {
		t.Errorf("kind = %q, want form", got.Kind)
	}

	got, err = s.GetWritingTask("wt-simple")
	if err != nil {
		t.Fatalf("GetWritingTask: %v", err)
	}
	if got.Kind != WritingKindSimple {
		t.Errorf("kind = %q, want simple", got.Kind)
	}
	if got.FieldsJSON != "[]" {
		t.Errorf("simple task fields = %q, want empty array default", got.FieldsJSON)
	}
}

func TestConversationTurnIndexing(t *testing.T) {
	s := openTestStore(t)

	for i, content := range []string{"hallo", "Hallo! Wie geht's?", "gut danke"} {
		role := "user"
		if i == 1 {
			role = "assistant"
		}
		idx, err := s.AppendConversationTurn(ConversationTurn{
			ID:             newTestID(t, i),
			ConversationID: "conv-1",
			UserID:         "u1",
			Role:           role,
			Content:        content,
		})
		if err != nil {
			t.Fatalf("AppendConversationTurn %d: %v", i, err)
		}
		if idx != i {
			t.Errorf("turn index = %d, want %d", idx, i)
		}
	}

	turns, err := s.GetConversation("conv-1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if len(turns) != 3 {
		t.Fatalf("turn count = %d, want 3", len(turns))
	}
	for i, turn := range turns {
		if turn.TurnIndex != i {
			t.Errorf("turn %d has index %d", i, turn.TurnIndex)
		}
	}
	if turns[0].Channel != "web" {
		t.Errorf("default channel = %q, want web", turns[0].Channel)
	}
}

func newTestID(t *testing.T, i int) string {
	t.Helper()
	return time.Now().Format("150405.000000000") + string(rune('a'+i))
}
