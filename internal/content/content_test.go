package content

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/sprachlab/sprachlab/internal/storage"
)

type fakeContentStore struct {
	tests []storage.Test
	tasks []storage.WritingTask
}

func (f *fakeContentStore) SaveTest(t storage.Test) error {
	f.tests = append(f.tests, t)
	return nil
}

func (f *fakeContentStore) SaveWritingTask(t storage.WritingTask) error {
	f.tasks = append(f.tasks, t)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const samplePack = `
tests:
  - id: listening-3-umzug
    skill: listening
    section: 3
    title: Der Umzug
    language: de
    level: B1
    passage: Anna zieht am Samstag nach Hamburg um.
    transcript: Hallo! Ich ziehe am Samstag nach Hamburg um, sagt Anna.
    questions:
      - number: 0
        text: Beispiel
        is_example: true
        options:
          - letter: a
            text: richtig
            is_correct: true
          - letter: b
            text: falsch
      - number: 1
        text: Wohin zieht Anna?
        options:
          - letter: a
            text: Hamburg
            is_correct: true
          - letter: b
            text: Berlin
writing_tasks:
  - id: writing-anmeldung
    kind: form
    title: Anmeldung
    prompt: Füllen Sie das Formular aus.
    fields:
      Name: ""
      Stadt: ""
    language: de
    level: A2
`

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pack.yaml"), []byte(samplePack), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &fakeContentStore{}
	n, err := LoadDir(dir, store, testLogger())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded = %d, want 2", n)
	}

	if len(store.tests) != 1 {
		t.Fatalf("saved %d tests", len(store.tests))
	}
	test := store.tests[0]
	if test.ID != "listening-3-umzug" || test.Skill != storage.SkillListening || test.Section != 3 {
		t.Errorf("test = %+v", test)
	}
	if test.Transcript != "Hallo! Ich ziehe am Samstag nach Hamburg um, sagt Anna." {
		t.Errorf("transcript = %q", test.Transcript)
	}
	if len(test.Questions) != 2 || !test.Questions[0].IsExample {
		t.Errorf("questions = %+v", test.Questions)
	}
	if !test.Questions[1].Options[0].IsCorrect {
		t.Errorf("correct option lost: %+v", test.Questions[1].Options)
	}

	if len(store.tasks) != 1 {
		t.Fatalf("saved %d tasks", len(store.tasks))
	}
	task := store.tasks[0]
	if task.Kind != storage.WritingKindForm || task.FieldsJSON == "" {
		t.Errorf("task = %+v", task)
	}
}

func TestLoadDir_MissingDirIsNotAnError(t *testing.T) {
	n, err := LoadDir(filepath.Join(t.TempDir(), "nope"), &fakeContentStore{}, testLogger())
	if err != nil || n != 0 {
		t.Errorf("got n=%d err=%v", n, err)
	}
}

func TestLoadDir_SkipsMalformedPack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("tests: [}"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good.yaml"), []byte(samplePack), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &fakeContentStore{}
	n, err := LoadDir(dir, store, testLogger())
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if n != 2 {
		t.Errorf("loaded = %d, want 2 from the good pack", n)
	}
}

func TestTestDef_UnknownSkillRejected(t *testing.T) {
	_, err := TestDef{ID: "x", Skill: "juggling"}.toTest()
	if err == nil {
		t.Fatal("expected error for unknown skill")
	}
}

func TestWritingTaskDef_FormRequiresFields(t *testing.T) {
	_, err := WritingTaskDef{ID: "x", Kind: storage.WritingKindForm}.toWritingTask()
	if err == nil {
		t.Fatal("expected error for form task without fields")
	}
}

func TestImportPassage_Text(t *testing.T) {
	store := &fakeContentStore{}
	test, err := ImportPassage("  Der   Zug  fährt \n um acht.  ", PassageParams{Title: "Zug", Language: "de"}, store)
	if err != nil {
		t.Fatalf("ImportPassage: %v", err)
	}
	if test.Passage != "Der Zug fährt um acht." {
		t.Errorf("passage = %q", test.Passage)
	}
	if test.Skill != storage.SkillReading {
		t.Errorf("skill = %q, want reading default", test.Skill)
	}
	if len(store.tests) != 1 {
		t.Errorf("saved %d tests", len(store.tests))
	}
}

func TestImportPassage_Empty(t *testing.T) {
	_, err := ImportPassage("   \n ", PassageParams{}, &fakeContentStore{})
	if err == nil {
		t.Fatal("expected error for empty passage")
	}
}

func TestStripHTML(t *testing.T) {
	src := `<html><head><style>body{color:red}</style><script>alert(1)</script></head>
<body><h1>Die Stadt</h1><p>Berlin ist <b>groß</b>.</p></body></html>`

	got := normalizeWhitespace(StripHTML(src))
	want := "Die Stadt Berlin ist groß."
	if got != want {
		t.Errorf("StripHTML = %q, want %q", got, want)
	}
}

func TestImportPassageFile_HTML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "passage.html")
	if err := os.WriteFile(path, []byte("<p>Berlin ist groß.</p>"), 0o644); err != nil {
		t.Fatal(err)
	}

	store := &fakeContentStore{}
	test, err := ImportPassageFile(path, PassageParams{Language: "de"}, store)
	if err != nil {
		t.Fatalf("ImportPassageFile: %v", err)
	}
	if test.Passage != "Berlin ist groß." {
		t.Errorf("passage = %q", test.Passage)
	}
}
