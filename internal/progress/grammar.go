package progress

import (
	"sort"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// CategorySummary aggregates a user's grammar errors for one category.
type CategorySummary struct {
	Category string   `json:"category"`
	Count    int      `json:"count"`
	Major    int      `json:"major"`
	Minor    int      `json:"minor"`
	Color    string   `json:"color"`
	Examples []string `json:"examples,omitempty"`
}

// categoryColors assigns stable dashboard colors to the common categories.
// Unknown categories fall back to grey.
var categoryColors = map[string]string{
	"articles":     "#e0584f",
	"cases":        "#e8903a",
	"conjugation":  "#d4b83a",
	"word_order":   "#5da85c",
	"prepositions": "#4a90c4",
	"spelling":     "#8a6bc1",
	"plurals":      "#c161a8",
}

const defaultCategoryColor = "#8c8c8c"
const maxExamplesPerCategory = 3

// SummarizeGrammarErrors groups errors by category and orders the summaries
// by total count descending, breaking ties by major-error count and then
// category name so output is deterministic.
func SummarizeGrammarErrors(errs []storage.GrammarError) []CategorySummary {
	byCategory := make(map[string]*CategorySummary)
	for _, e := range errs {
		s, ok := byCategory[e.Category]
		if !ok {
			color, found := categoryColors[e.Category]
			if !found {
				color = defaultCategoryColor
			}
			s = &CategorySummary{Category: e.Category, Color: color}
			byCategory[e.Category] = s
		}
		s.Count++
		if e.Severity == "major" {
			s.Major++
		} else {
			s.Minor++
		}
		if len(s.Examples) < maxExamplesPerCategory && e.ErrorText != "" {
			s.Examples = append(s.Examples, e.ErrorText)
		}
	}

	result := make([]CategorySummary, 0, len(byCategory))
	for _, s := range byCategory {
		result = append(result, *s)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		if result[i].Major != result[j].Major {
			return result[i].Major > result[j].Major
		}
		return result[i].Category < result[j].Category
	})
	return result
}
