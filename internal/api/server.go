package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sprachlab/sprachlab/internal/evaluation"
	"github.com/sprachlab/sprachlab/internal/progress"
	"github.com/sprachlab/sprachlab/internal/storage"
	"github.com/sprachlab/sprachlab/internal/tts"
	"github.com/sprachlab/sprachlab/internal/webhooks"
)

// Deps holds the wired services the HTTP surface exposes.
type Deps struct {
	Store      *storage.Store
	Evaluator  *evaluation.Service
	Audio      *tts.Service
	Dashboards *progress.Service
	Webhooks   *webhooks.Handler // optional; nil disables the webhook route
	Token      string
	// ChannelKeys maps channel names (e.g. "whatsapp") to their shared
	// secrets for X-Channel-Key attribution.
	ChannelKeys map[string]string
	HTTPClient  *http.Client // used for passage URL fetches; nil falls back to http.DefaultClient
	Logger      *slog.Logger
}

// NewHandler builds the complete route tree.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)

	r.Route("/api", func(r chi.Router) {
		if deps.Webhooks != nil {
			r.Post("/webhooks/clerk", handleClerkWebhook(deps))
		}

		// Learner-facing routes; messaging bridges authenticate with a
		// channel key, web clients pass through.
		r.Group(func(r chi.Router) {
			r.Use(ChannelAuth(deps.ChannelKeys, deps.Store))

			r.Post("/listening/section-3", handleScoreSection(deps, storage.SkillListening, 3))
			r.Post("/reading/section-2", handleScoreSection(deps, storage.SkillReading, 2))
			r.Get("/tests", handleListTests(deps))
			r.Get("/tests/{id}", handleGetTest(deps))

			r.Post("/debate-evaluation", handleDebateEvaluation(deps))
			r.Post("/writing-evaluation", handleWritingEvaluation(deps))
			r.Post("/fill-in-evaluation", handleFillInEvaluation(deps))
			r.Post("/roleplay-partner", handleRoleplayPartner(deps))

			r.Post("/generate-word-audio", handleWordAudio(deps))
			r.Post("/generate-passage-audio", handlePassageAudio(deps))

			r.Get("/progress/{user_id}", handleProgress(deps))
			r.Get("/vocabulary/{user_id}", handleListVocabulary(deps))
			r.Post("/vocabulary", handleSaveVocabulary(deps))
			r.Post("/vocabulary/{user_id}/review", handleReviewVocabulary(deps))
			r.Post("/grammar-errors", handleLogGrammarError(deps))
		})

		// Management routes.
		r.Group(func(r chi.Router) {
			r.Use(BearerAuth(deps.Token))

			r.Post("/content/passages", handleImportPassage(deps))
			r.Post("/join-codes", handleCreateJoinCode(deps))
			r.Post("/channel-users", handleRegisterChannelUser(deps))
		})
	})

	return r
}
