package evaluation

import (
	"fmt"
	"strings"

	"github.com/sprachlab/sprachlab/internal/storage"
)

// DebatePromptParams describes a debate transcript to evaluate.
type DebatePromptParams struct {
	Language               string
	Level                  string
	Topic                  string
	AdditionalInstructions string
}

func buildDebatePrompt(p DebatePromptParams, turns []storage.ConversationTurn) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an examiner for %s at level %s. ", orDefault(p.Language, "German"), orDefault(p.Level, "B1"))
	b.WriteString("Evaluate the learner's side of the following debate transcript. ")
	b.WriteString("Assess grammar, vocabulary range, fluency and the strength of the argumentation. ")
	b.WriteString("Give concrete feedback with examples taken from the transcript.")
	if p.Topic != "" {
		fmt.Fprintf(&b, " The debate topic was: %s.", p.Topic)
	}
	if p.AdditionalInstructions != "" {
		b.WriteString(" " + p.AdditionalInstructions)
	}

	var t strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&t, "%s: %s\n", turn.Role, turn.Content)
	}

	return []string{b.String(), "Transcript:\n\n" + t.String()}
}

// WritingPromptParams describes a writing submission to evaluate.
type WritingPromptParams struct {
	Language string
	Level    string
	Prompt   string
	Text     string
}

func buildWritingPrompt(p WritingPromptParams) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an examiner for %s at level %s. ", orDefault(p.Language, "German"), orDefault(p.Level, "B1"))
	b.WriteString("Score the learner's writing on task completion, coherence, vocabulary and grammar, each from 0 to 5. ")
	b.WriteString("Provide short feedback in English naming specific errors and how to fix them.")
	if p.Prompt != "" {
		fmt.Fprintf(&b, " The writing task was: %s.", p.Prompt)
	}

	return []string{b.String(), "Submission:\n\n" + p.Text}
}

func buildFormPrompt(p WritingPromptParams, fields map[string]string) []string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an examiner for %s at level %s. ", orDefault(p.Language, "German"), orDefault(p.Level, "B1"))
	b.WriteString("The learner filled in a form. Score correctness and appropriateness of the entries on task completion, coherence, vocabulary and grammar, each from 0 to 5, with short feedback.")
	if p.Prompt != "" {
		fmt.Fprintf(&b, " The form task was: %s.", p.Prompt)
	}

	var f strings.Builder
	for field, value := range fields {
		fmt.Fprintf(&f, "%s: %s\n", field, value)
	}

	return []string{b.String(), "Form entries:\n\n" + f.String()}
}

func buildFillInPrompt(language, sentence, answer string) []string {
	return []string{
		fmt.Sprintf("You are a %s teacher. Decide whether the learner's word fits the gap grammatically and semantically. Accept any correct alternative, not only one canonical answer.", orDefault(language, "German")),
		fmt.Sprintf("Sentence with gap: %s\nLearner's answer: %s", sentence, answer),
	}
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
