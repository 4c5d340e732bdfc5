package content

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"
	"golang.org/x/net/html"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// PassageParams describes a passage import.
type PassageParams struct {
	Title    string
	Skill    string
	Section  int
	Language string
	Level    string
}

// ImportPassageFile reads a passage from a PDF, HTML or plain-text file and
// saves it as a test without questions. Questions are added later from a
// content pack or by hand.
func ImportPassageFile(path string, p PassageParams, store Store) (storage.Test, error) {
	var (
		text string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		text, err = extractPDFText(path)
	case ".html", ".htm":
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			text = StripHTML(string(data))
		}
	default:
		var data []byte
		if data, err = os.ReadFile(path); err == nil {
			text = string(data)
		}
	}
	if err != nil {
		return storage.Test{}, fmt.Errorf("reading passage from %s: %w", path, err)
	}

	return ImportPassage(text, p, store)
}

// ImportPassage saves passage text as a test row.
func ImportPassage(text string, p PassageParams, store Store) (storage.Test, error) {
	text = normalizeWhitespace(text)
	if text == "" {
		return storage.Test{}, fmt.Errorf("passage is empty")
	}

	skill := p.Skill
	if skill == "" {
		skill = storage.SkillReading
	}

	test := storage.Test{
		ID:        uuid.NewString(),
		Skill:     skill,
		Section:   p.Section,
		Title:     p.Title,
		Language:  p.Language,
		Level:     p.Level,
		Passage:   text,
		CreatedAt: time.Now().UTC(),
	}
	if err := store.SaveTest(test); err != nil {
		return storage.Test{}, fmt.Errorf("saving passage: %w", err)
	}
	return test, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	r, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting pdf text: %w", err)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading pdf text: %w", err)
	}
	return string(data), nil
}

// StripHTML extracts the visible text of an HTML document, skipping script
// and style content. Block boundaries become newlines so words from adjacent
// paragraphs do not run together.
func StripHTML(src string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skipDepth := 0

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) {
				skipDepth++
			}
			if string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.SelfClosingTagToken:
			if name, _ := tokenizer.TagName(); string(name) == "br" {
				b.WriteByte('\n')
			}
		case html.EndTagToken:
			name, _ := tokenizer.TagName()
			if skippedTag(string(name)) && skipDepth > 0 {
				skipDepth--
			}
			if blockTag(string(name)) {
				b.WriteByte('\n')
			}
		case html.TextToken:
			if skipDepth == 0 {
				b.Write(tokenizer.Text())
			}
		}
	}
}

func skippedTag(name string) bool {
	switch name {
	case "script", "style", "noscript":
		return true
	}
	return false
}

func blockTag(name string) bool {
	switch name {
	case "p", "div", "li", "tr", "h1", "h2", "h3", "h4", "h5", "h6":
		return true
	}
	return false
}

func normalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
