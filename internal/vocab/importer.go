package vocab

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// Store is the storage surface the importer writes to.
type Store interface {
	UpsertVocabulary(v storage.VocabularyEntry) error
}

// ImportResult summarizes one workbook import.
type ImportResult struct {
	Processed int
	Imported  int
	Skipped   []string
}

// ImportFile imports vocabulary rows for a user from an .xlsx workbook or a
// .csv file. Expected columns: word, translation, optional language. Rows
// without a word or translation are recorded in Skipped, not fatal.
func ImportFile(path, userID, defaultLanguage string, store Store) (*ImportResult, error) {
	if userID == "" {
		return nil, errors.New("user id is required")
	}

	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		rows, err = readCSV(path)
	case ".xlsx":
		rows, err = readWorkbook(path)
	default:
		return nil, fmt.Errorf("unsupported file type %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}

	result := &ImportResult{}
	for i, row := range rows {
		if i == 0 && looksLikeHeader(row) {
			continue
		}
		result.Processed++

		entry, err := rowToEntry(row, userID, defaultLanguage)
		if err != nil {
			result.Skipped = append(result.Skipped, fmt.Sprintf("row %d: %v", i+1, err))
			continue
		}
		if err := store.UpsertVocabulary(entry); err != nil {
			return result, fmt.Errorf("saving word %q: %w", entry.Word, err)
		}
		result.Imported++
	}
	return result, nil
}

func readWorkbook(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening csv: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var rows [][]string
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func rowToEntry(row []string, userID, defaultLanguage string) (storage.VocabularyEntry, error) {
	word := cell(row, 0)
	translation := cell(row, 1)
	language := cell(row, 2)
	if language == "" {
		language = defaultLanguage
	}

	if word == "" {
		return storage.VocabularyEntry{}, errors.New("missing word")
	}
	if translation == "" {
		return storage.VocabularyEntry{}, errors.New("missing translation")
	}

	return storage.VocabularyEntry{
		ID:          uuid.NewString(),
		UserID:      userID,
		Word:        word,
		Translation: translation,
		Language:    language,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func looksLikeHeader(row []string) bool {
	first := strings.ToLower(cell(row, 0))
	return first == "word" || first == "wort" || first == "vocabulary"
}
