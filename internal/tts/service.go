package tts

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sprachlab/sprachlab/internal/storage"
)

const uploadTimeout = 30 * time.Second

// Synthesizer renders text to audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Store is the storage surface the audio pipeline uses.
type Store interface {
	LookupAudioCache(kind, textHash, language string) (storage.AudioCacheEntry, error)
	SaveAudioCache(e storage.AudioCacheEntry) error
	GetTest(id string) (storage.Test, error)
	UpdateTestAudioURL(id, url string) error
}

// Service synthesizes audio, uploads it to the audio worker and caches the
// resulting URLs.
type Service struct {
	synth      Synthesizer
	store      Store
	workerURL  string
	workerKey  string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewService(synth Synthesizer, store Store, workerURL, workerKey string, logger *slog.Logger) *Service {
	return &Service{
		synth:     synth,
		store:     store,
		workerURL: workerURL,
		workerKey: workerKey,
		httpClient: &http.Client{
			Timeout: uploadTimeout,
		},
		logger: logger,
	}
}

// WordAudio returns a playable URL for a single word or phrase. Cached URLs
// are returned without synthesis; on upload failure the audio is returned
// inline as a base64 data URL and not cached.
func (s *Service) WordAudio(ctx context.Context, text, language string) (string, error) {
	return s.audioURL(ctx, "word", text, language)
}

// GeneratePassageAudio synthesizes a test's spoken text and stores the
// resulting URL on the test row. The transcript is the spoken script of a
// listening test and wins over the passage when both are set. Meant to run
// from the job worker.
func (s *Service) GeneratePassageAudio(ctx context.Context, testID string) error {
	test, err := s.store.GetTest(testID)
	if err != nil {
		return fmt.Errorf("loading test %s: %w", testID, err)
	}
	text := test.Transcript
	if text == "" {
		text = test.Passage
	}
	if text == "" {
		return fmt.Errorf("test %s has no transcript or passage", testID)
	}

	url, err := s.audioURL(ctx, "passage", text, test.Language)
	if err != nil {
		return err
	}
	if err := s.store.UpdateTestAudioURL(testID, url); err != nil {
		return fmt.Errorf("saving audio url: %w", err)
	}
	return nil
}

func (s *Service) audioURL(ctx context.Context, kind, text, language string) (string, error) {
	hash := TextHash(text)

	if entry, err := s.store.LookupAudioCache(kind, hash, language); err == nil {
		return entry.URL, nil
	} else if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("audio cache lookup: %w", err)
	}

	audio, err := s.synth.Synthesize(ctx, text)
	if err != nil {
		return "", fmt.Errorf("synthesizing %s audio: %w", kind, err)
	}

	url, err := s.upload(ctx, kind, hash, audio)
	if err != nil {
		s.logger.Warn("audio upload failed, inlining", "kind", kind, "hash", hash, "error", err)
		return dataURL(audio), nil
	}

	if err := s.store.SaveAudioCache(storage.AudioCacheEntry{
		ID:        uuid.NewString(),
		Kind:      kind,
		TextHash:  hash,
		Language:  language,
		URL:       url,
		CreatedAt: time.Now().UTC(),
	}); err != nil {
		s.logger.Error("saving audio cache entry", "hash", hash, "error", err)
	}
	return url, nil
}

func (s *Service) upload(ctx context.Context, kind, hash string, audio []byte) (string, error) {
	if s.workerURL == "" {
		return "", errors.New("no audio worker configured")
	}

	target := fmt.Sprintf("%s/%s/%s.mp3", s.workerURL, kind, hash)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, target, bytes.NewReader(audio))
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "audio/mpeg")
	req.Header.Set("X-Worker-Key", s.workerKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("audio worker returned status %d", resp.StatusCode)
	}
	return target, nil
}

// TextHash is the cache key for a piece of synthesized text.
func TextHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func dataURL(audio []byte) string {
	return "data:audio/mpeg;base64," + base64.StdEncoding.EncodeToString(audio)
}
