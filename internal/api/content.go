package api

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/sprachlab/sprachlab/internal/content"
	"github.com/sprachlab/sprachlab/internal/storage"
)

const maxURLFetchSize = 5 << 20 // 5MB

type importPassageRequest struct {
	Type     string `json:"type"` // "text", "url" or "file"
	Title    string `json:"title"`
	Content  string `json:"content"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
	Skill    string `json:"skill"`
	Section  int    `json:"section"`
	Language string `json:"language"`
	Level    string `json:"level"`
}

func handleImportPassage(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req importPassageRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.Content == "" && req.URL == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "at least one of content or url is required")
			return
		}
		if req.Type == "" {
			req.Type = "text"
		}

		params := content.PassageParams{
			Title:    req.Title,
			Skill:    req.Skill,
			Section:  req.Section,
			Language: req.Language,
			Level:    req.Level,
		}

		var (
			test storage.Test
			err  error
		)
		switch {
		case req.Type == "url" && req.URL != "":
			var page string
			page, err = fetchPage(r.Context(), deps.HTTPClient, req.URL)
			if err != nil {
				httpError(w, http.StatusBadGateway, "api_error", "failed to fetch url: %v", err)
				return
			}
			if params.Title == "" {
				params.Title = req.URL
			}
			test, err = content.ImportPassage(content.StripHTML(page), params, deps.Store)

		case req.Type == "file" && req.Content != "":
			var decoded []byte
			decoded, err = base64.StdEncoding.DecodeString(req.Content)
			if err != nil {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid base64 content: %v", err)
				return
			}
			var path string
			path, err = writeTempFile(decoded, req.Filename)
			if err != nil {
				httpError(w, http.StatusInternalServerError, "api_error", "failed to stage file: %v", err)
				return
			}
			defer os.Remove(path)
			test, err = content.ImportPassageFile(path, params, deps.Store)

		default:
			test, err = content.ImportPassage(req.Content, params, deps.Store)
		}
		if err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "passage import failed: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success": true,
			"test_id": test.ID,
		})
	}
}

func fetchPage(ctx context.Context, client *http.Client, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("url returned status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxURLFetchSize))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// writeTempFile stages an uploaded document so the extension-dispatching
// importer can pick a parser. The caller removes the file.
func writeTempFile(data []byte, filename string) (string, error) {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".txt"
	}
	f, err := os.CreateTemp("", "passage-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

type createJoinCodeRequest struct {
	TeacherID string `json:"teacher_id"`
	Role      string `json:"role"`
	MaxUses   int    `json:"max_uses"`
	ExpiresIn string `json:"expires_in"` // Go duration, e.g. "720h"
}

const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func handleCreateJoinCode(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req createJoinCodeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.TeacherID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "teacher_id is required")
			return
		}
		if req.Role == "" {
			req.Role = "student"
		}
		if req.MaxUses <= 0 {
			req.MaxUses = 30
		}
		expiresIn := 30 * 24 * time.Hour
		if req.ExpiresIn != "" {
			d, err := time.ParseDuration(req.ExpiresIn)
			if err != nil || d <= 0 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid expires_in: %q", req.ExpiresIn)
				return
			}
			expiresIn = d
		}

		code, err := randomCode(6)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to generate code: %v", err)
			return
		}

		now := time.Now().UTC()
		jc := storage.JoinCode{
			Code:      code,
			TeacherID: req.TeacherID,
			Role:      req.Role,
			MaxUses:   req.MaxUses,
			ExpiresAt: now.Add(expiresIn),
			CreatedAt: now,
		}
		if err := deps.Store.SaveJoinCode(jc); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to save join code: %v", err)
			return
		}

		writeJSON(w, map[string]any{
			"success":    true,
			"code":       jc.Code,
			"expires_at": jc.ExpiresAt.Format(time.RFC3339),
		})
	}
}

func randomCode(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = codeAlphabet[int(buf[i])%len(codeAlphabet)]
	}
	return string(buf), nil
}
