package progress

import (
	"testing"

	"github.com/sprachlab/sprachlab/internal/storage"
)

func TestSummarizeGrammarErrorsGrouping(t *testing.T) {
	errs := []storage.GrammarError{
		{Category: "cases", ErrorText: "mit der Auto", Severity: "major"},
		{Category: "cases", ErrorText: "zu die Schule", Severity: "minor"},
		{Category: "articles", ErrorText: "das Hund", Severity: "minor"},
		{Category: "cases", ErrorText: "für dem Kind", Severity: "major"},
	}

	summary := SummarizeGrammarErrors(errs)

	if len(summary) != 2 {
		t.Fatalf("category count = %d, want 2", len(summary))
	}
	if summary[0].Category != "cases" {
		t.Errorf("first category = %q, want cases (highest count)", summary[0].Category)
	}
	if summary[0].Count != 3 || summary[0].Major != 2 || summary[0].Minor != 1 {
		t.Errorf("cases summary = %+v", summary[0])
	}
	if summary[1].Count != 1 {
		t.Errorf("articles count = %d, want 1", summary[1].Count)
	}
}

func TestSummarizeGrammarErrorsColors(t *testing.T) {
	errs := []storage.GrammarError{
		{Category: "articles"},
		{Category: "something_new"},
	}

	summary := SummarizeGrammarErrors(errs)

	for _, s := range summary {
		if s.Color == "" {
			t.Errorf("category %s has no color", s.Category)
		}
		if s.Category == "something_new" && s.Color != defaultCategoryColor {
			t.Errorf("unknown category color = %q, want fallback", s.Color)
		}
	}
}

func TestSummarizeGrammarErrorsDeterministicTieBreak(t *testing.T) {
	errs := []storage.GrammarError{
		{Category: "spelling", Severity: "minor"},
		{Category: "plurals", Severity: "minor"},
	}

	first := SummarizeGrammarErrors(errs)
	for i := 0; i < 10; i++ {
		again := SummarizeGrammarErrors(errs)
		for j := range first {
			if again[j].Category != first[j].Category {
				t.Fatalf("ordering not deterministic: %v vs %v", first, again)
			}
		}
	}
	if first[0].Category != "plurals" {
		t.Errorf("tie-break should be alphabetical, got %q first", first[0].Category)
	}
}

func TestSummarizeGrammarErrorsExampleCap(t *testing.T) {
	var errs []storage.GrammarError
	for i := 0; i < 10; i++ {
		errs = append(errs, storage.GrammarError{Category: "cases", ErrorText: "example"})
	}

	summary := SummarizeGrammarErrors(errs)
	if len(summary[0].Examples) != maxExamplesPerCategory {
		t.Errorf("examples = %d, want capped at %d", len(summary[0].Examples), maxExamplesPerCategory)
	}
}

func TestSummarizeGrammarErrorsEmpty(t *testing.T) {
	if got := SummarizeGrammarErrors(nil); len(got) != 0 {
		t.Errorf("empty input produced %v", got)
	}
}
