package content

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// Store is the storage surface content loading writes to.
type Store interface {
	SaveTest(t storage.Test) error
	SaveWritingTask(t storage.WritingTask) error
}

// Pack is one YAML content file holding exercise definitions.
type Pack struct {
	Tests        []TestDef        `yaml:"tests"`
	WritingTasks []WritingTaskDef `yaml:"writing_tasks"`
}

type TestDef struct {
	ID       string `yaml:"id"`
	Skill    string `yaml:"skill"`
	Section  int    `yaml:"section"`
	Title    string `yaml:"title"`
	Language string `yaml:"language"`
	Level    string `yaml:"level"`
	Passage  string `yaml:"passage"`
	// Transcript is the spoken script of a listening test; audio generation
	// prefers it over the passage.
	Transcript string        `yaml:"transcript"`
	Questions  []QuestionDef `yaml:"questions"`
}

type QuestionDef struct {
	Number    int         `yaml:"number"`
	Text      string      `yaml:"text"`
	IsExample bool        `yaml:"is_example"`
	Options   []OptionDef `yaml:"options"`
}

type OptionDef struct {
	Letter    string `yaml:"letter"`
	Text      string `yaml:"text"`
	IsCorrect bool   `yaml:"is_correct"`
}

type WritingTaskDef struct {
	ID       string            `yaml:"id"`
	Kind     string            `yaml:"kind"`
	Title    string            `yaml:"title"`
	Prompt   string            `yaml:"prompt"`
	Fields   map[string]string `yaml:"fields"`
	Language string            `yaml:"language"`
	Level    string            `yaml:"level"`
}

// LoadDir parses every .yaml/.yml file under dir and upserts the defined
// tests and writing tasks. A missing directory is not an error; a malformed
// file is skipped with a log entry so one bad pack cannot block startup.
func LoadDir(dir string, store Store, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return 0, nil
	}

	loaded := 0
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		n, err := loadPack(path, store)
		if err != nil {
			logger.Error("loading content pack", "path", path, "error", err)
			return nil
		}
		loaded += n
		return nil
	})
	if err != nil {
		return loaded, fmt.Errorf("walking content dir: %w", err)
	}
	return loaded, nil
}

func loadPack(path string, store Store) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	var pack Pack
	if err := yaml.Unmarshal(data, &pack); err != nil {
		return 0, fmt.Errorf("parsing yaml: %w", err)
	}

	count := 0
	for _, def := range pack.Tests {
		test, err := def.toTest()
		if err != nil {
			return count, err
		}
		if err := store.SaveTest(test); err != nil {
			return count, fmt.Errorf("saving test %s: %w", def.ID, err)
		}
		count++
	}
	for _, def := range pack.WritingTasks {
		task, err := def.toWritingTask()
		if err != nil {
			return count, err
		}
		if err := store.SaveWritingTask(task); err != nil {
			return count, fmt.Errorf("saving writing task %s: %w", def.ID, err)
		}
		count++
	}
	return count, nil
}

func (d TestDef) toTest() (storage.Test, error) {
	if d.ID == "" {
		return storage.Test{}, fmt.Errorf("test without id")
	}
	switch d.Skill {
	case storage.SkillListening, storage.SkillReading:
	default:
		return storage.Test{}, fmt.Errorf("test %s: unknown skill %q", d.ID, d.Skill)
	}

	test := storage.Test{
		ID:         d.ID,
		Skill:      d.Skill,
		Section:    d.Section,
		Title:      d.Title,
		Language:   d.Language,
		Level:      d.Level,
		Passage:    d.Passage,
		Transcript: d.Transcript,
		CreatedAt:  time.Now().UTC(),
	}
	for _, q := range d.Questions {
		question := storage.Question{
			Number:    q.Number,
			Text:      q.Text,
			IsExample: q.IsExample,
		}
		for _, o := range q.Options {
			question.Options = append(question.Options, storage.Option{
				Letter:    strings.ToLower(o.Letter),
				Text:      o.Text,
				IsCorrect: o.IsCorrect,
			})
		}
		test.Questions = append(test.Questions, question)
	}
	return test, nil
}

func (d WritingTaskDef) toWritingTask() (storage.WritingTask, error) {
	if d.ID == "" {
		return storage.WritingTask{}, fmt.Errorf("writing task without id")
	}

	kind := d.Kind
	if kind == "" {
		kind = storage.WritingKindSimple
	}
	if kind != storage.WritingKindForm && kind != storage.WritingKindSimple {
		return storage.WritingTask{}, fmt.Errorf("writing task %s: unknown kind %q", d.ID, kind)
	}
	if kind == storage.WritingKindForm && len(d.Fields) == 0 {
		return storage.WritingTask{}, fmt.Errorf("writing task %s: form kind requires fields", d.ID)
	}

	fieldsJSON := ""
	if len(d.Fields) > 0 {
		data, err := json.Marshal(d.Fields)
		if err != nil {
			return storage.WritingTask{}, fmt.Errorf("writing task %s: %w", d.ID, err)
		}
		fieldsJSON = string(data)
	}

	return storage.WritingTask{
		ID:         d.ID,
		Kind:       kind,
		Title:      d.Title,
		Prompt:     d.Prompt,
		FieldsJSON: fieldsJSON,
		Language:   d.Language,
		Level:      d.Level,
		CreatedAt:  time.Now().UTC(),
	}, nil
}
