package api

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/sprachlab/sprachlab/internal/progress"
	"github.com/sprachlab/sprachlab/internal/storage"
)

// MCPDeps holds dependencies for the MCP server.
type MCPDeps struct {
	Store      *storage.Store
	Dashboards *progress.Service
	// UserID scopes the whole MCP session to one learner; the transport is
	// stdio, so there is no per-request identity to consult.
	UserID string
}

// NewMCPServer creates an MCP server exposing learner progress and
// vocabulary tools.
func NewMCPServer(deps MCPDeps) *server.MCPServer {
	s := server.NewMCPServer(
		"sprachlab",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithInstructions("sprachlab — language exam preparation: learner progress, vocabulary, and grammar error tracking."),
		server.WithRecovery(),
	)

	// Tools
	s.AddTool(
		mcp.NewTool("get_progress",
			mcp.WithDescription("Fetch the learner's progress dashboard including preparation score, streak, and per-skill averages."),
			mcp.WithString("range", mcp.Description("Time range: today, week, or month (default week)")),
		),
		mcpGetProgress(deps),
	)

	s.AddTool(
		mcp.NewTool("lookup_vocabulary",
			mcp.WithDescription("Search the learner's saved vocabulary by word or translation."),
			mcp.WithString("query", mcp.Description("Search text"), mcp.Required()),
			mcp.WithNumber("limit", mcp.Description("Maximum number of results (default 10)")),
		),
		mcpLookupVocabulary(deps),
	)

	s.AddTool(
		mcp.NewTool("save_vocabulary",
			mcp.WithDescription("Save a word the learner just encountered to their vocabulary list."),
			mcp.WithString("word", mcp.Description("The word in the target language"), mcp.Required()),
			mcp.WithString("translation", mcp.Description("Translation of the word")),
			mcp.WithString("language", mcp.Description("Language code (default de)")),
		),
		mcpSaveVocabulary(deps),
	)

	s.AddTool(
		mcp.NewTool("log_grammar_error",
			mcp.WithDescription("Record a grammar mistake the learner made so it shows up in their weak-area summary."),
			mcp.WithString("category", mcp.Description("Error category, e.g. cases, word_order, verb_conjugation"), mcp.Required()),
			mcp.WithString("error_text", mcp.Description("The incorrect phrase"), mcp.Required()),
			mcp.WithString("correction", mcp.Description("The corrected phrase")),
			mcp.WithString("severity", mcp.Description("minor, moderate, or major")),
		),
		mcpLogGrammarError(deps),
	)

	// Resources
	s.AddResource(
		mcp.NewResource(
			"user://progress",
			"Learner Progress",
			mcp.WithResourceDescription("Current progress dashboard as JSON"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceProgress(deps),
	)

	s.AddResource(
		mcp.NewResource(
			"user://grammar-errors",
			"Recent Grammar Errors",
			mcp.WithResourceDescription("Last 20 recorded grammar errors"),
			mcp.WithMIMEType("application/json"),
		),
		mcpResourceGrammarErrors(deps),
	)

	return s
}

func mcpGetProgress(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		timeRange := req.GetString("range", progress.RangeWeek)

		d, err := deps.Dashboards.Build(deps.UserID, timeRange)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to build dashboard: %v", err)), nil
		}

		b, err := json.Marshal(d)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal dashboard: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpLookupVocabulary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := req.RequireString("query")
		if err != nil {
			return mcpError("query is required"), nil
		}

		limit := req.GetInt("limit", 10)
		if limit <= 0 {
			limit = 10
		}
		if limit > 100 {
			limit = 100
		}

		entries, err := deps.Store.SearchVocabulary(deps.UserID, query, limit)
		if err != nil {
			return mcpError(fmt.Sprintf("lookup failed: %v", err)), nil
		}
		if len(entries) == 0 {
			return mcpText("[]"), nil
		}

		type entryResult struct {
			Word        string `json:"word"`
			Translation string `json:"translation"`
			Language    string `json:"language"`
			Mastered    bool   `json:"mastered"`
			ReviewCount int    `json:"review_count"`
		}

		results := make([]entryResult, len(entries))
		for i, e := range entries {
			results[i] = entryResult{
				Word:        e.Word,
				Translation: e.Translation,
				Language:    e.Language,
				Mastered:    e.Mastered,
				ReviewCount: e.ReviewCount,
			}
		}

		b, err := json.Marshal(results)
		if err != nil {
			return mcpError(fmt.Sprintf("failed to marshal results: %v", err)), nil
		}
		return mcpText(string(b)), nil
	}
}

func mcpSaveVocabulary(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		word, err := req.RequireString("word")
		if err != nil {
			return mcpError("word is required"), nil
		}

		entry := storage.VocabularyEntry{
			ID:          uuid.New().String(),
			UserID:      deps.UserID,
			Word:        word,
			Translation: req.GetString("translation", ""),
			Language:    req.GetString("language", "de"),
			CreatedAt:   time.Now().UTC(),
		}
		if err := deps.Store.UpsertVocabulary(entry); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		deps.Dashboards.Invalidate(deps.UserID)

		return mcpText(fmt.Sprintf("Saved %q", word)), nil
	}
}

func mcpLogGrammarError(deps MCPDeps) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		category, err := req.RequireString("category")
		if err != nil {
			return mcpError("category is required"), nil
		}
		errorText, err := req.RequireString("error_text")
		if err != nil {
			return mcpError("error_text is required"), nil
		}

		g := storage.GrammarError{
			ID:         uuid.New().String(),
			UserID:     deps.UserID,
			Category:   category,
			ErrorText:  errorText,
			Correction: req.GetString("correction", ""),
			Severity:   req.GetString("severity", "minor"),
			CreatedAt:  time.Now().UTC(),
		}
		if err := deps.Store.SaveGrammarError(g); err != nil {
			return mcpError(fmt.Sprintf("failed to save: %v", err)), nil
		}
		deps.Dashboards.Invalidate(deps.UserID)

		return mcpText(fmt.Sprintf("Logged %s error %s", category, g.ID)), nil
	}
}

func mcpResourceProgress(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		d, err := deps.Dashboards.Build(deps.UserID, progress.RangeWeek)
		if err != nil {
			return nil, fmt.Errorf("failed to build dashboard: %w", err)
		}

		b, err := json.Marshal(d)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal dashboard: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpResourceGrammarErrors(deps MCPDeps) server.ResourceHandlerFunc {
	return func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		errs, err := deps.Store.ListGrammarErrors(deps.UserID, 20)
		if err != nil {
			return nil, fmt.Errorf("failed to list grammar errors: %w", err)
		}

		type errorSummary struct {
			Category   string `json:"category"`
			ErrorText  string `json:"error_text"`
			Correction string `json:"correction,omitempty"`
			Severity   string `json:"severity"`
			CreatedAt  string `json:"created_at"`
		}

		summaries := make([]errorSummary, len(errs))
		for i, e := range errs {
			summaries[i] = errorSummary{
				Category:   e.Category,
				ErrorText:  e.ErrorText,
				Correction: e.Correction,
				Severity:   e.Severity,
				CreatedAt:  e.CreatedAt.Format(time.RFC3339),
			}
		}

		b, err := json.Marshal(summaries)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal grammar errors: %w", err)
		}

		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     string(b),
			},
		}, nil
	}
}

func mcpText(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

func mcpError(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
