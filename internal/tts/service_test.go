package tts

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sprachlab/sprachlab/internal/storage"
)

type fakeSynth struct {
	audio []byte
	calls int
	texts []string
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	f.calls++
	f.texts = append(f.texts, text)
	return f.audio, nil
}

type fakeAudioStore struct {
	cache     map[string]storage.AudioCacheEntry
	saved     []storage.AudioCacheEntry
	test      storage.Test
	testErr   error
	audioURLs map[string]string
}

func newFakeAudioStore() *fakeAudioStore {
	return &fakeAudioStore{
		cache:     map[string]storage.AudioCacheEntry{},
		audioURLs: map[string]string{},
	}
}

func (f *fakeAudioStore) LookupAudioCache(kind, textHash, language string) (storage.AudioCacheEntry, error) {
	if e, ok := f.cache[kind+"|"+textHash+"|"+language]; ok {
		return e, nil
	}
	return storage.AudioCacheEntry{}, storage.ErrNotFound
}

func (f *fakeAudioStore) SaveAudioCache(e storage.AudioCacheEntry) error {
	f.cache[e.Kind+"|"+e.TextHash+"|"+e.Language] = e
	f.saved = append(f.saved, e)
	return nil
}

func (f *fakeAudioStore) GetTest(id string) (storage.Test, error) {
	if f.testErr != nil {
		return storage.Test{}, f.testErr
	}
	return f.test, nil
}

func (f *fakeAudioStore) UpdateTestAudioURL(id, url string) error {
	f.audioURLs[id] = url
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWordAudio_CacheHit(t *testing.T) {
	store := newFakeAudioStore()
	hash := TextHash("Haus")
	store.cache["word|"+hash+"|de"] = storage.AudioCacheEntry{URL: "https://audio.example/word/x.mp3"}

	synth := &fakeSynth{audio: []byte("mp3")}
	svc := NewService(synth, store, "https://audio.example", "key", testLogger())

	url, err := svc.WordAudio(context.Background(), "Haus", "de")
	if err != nil {
		t.Fatalf("WordAudio: %v", err)
	}
	if url != "https://audio.example/word/x.mp3" {
		t.Errorf("url = %q", url)
	}
	if synth.calls != 0 {
		t.Errorf("synthesized despite cache hit")
	}
}

func TestWordAudio_UploadAndCache(t *testing.T) {
	var gotKey string
	var gotBody []byte
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Worker-Key")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer worker.Close()

	store := newFakeAudioStore()
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	svc := NewService(synth, store, worker.URL, "secret", testLogger())

	url, err := svc.WordAudio(context.Background(), "Haus", "de")
	if err != nil {
		t.Fatalf("WordAudio: %v", err)
	}

	wantURL := worker.URL + "/word/" + TextHash("Haus") + ".mp3"
	if url != wantURL {
		t.Errorf("url = %q, want %q", url, wantURL)
	}
	if gotKey != "secret" {
		t.Errorf("X-Worker-Key = %q", gotKey)
	}
	if string(gotBody) != "mp3-bytes" {
		t.Errorf("uploaded body = %q", gotBody)
	}
	if len(store.saved) != 1 {
		t.Fatalf("cached %d entries, want 1", len(store.saved))
	}
	if store.saved[0].Language != "de" || store.saved[0].Kind != "word" {
		t.Errorf("cache entry = %+v", store.saved[0])
	}
}

func TestWordAudio_FallsBackToDataURL(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer worker.Close()

	store := newFakeAudioStore()
	synth := &fakeSynth{audio: []byte("mp3-bytes")}
	svc := NewService(synth, store, worker.URL, "secret", testLogger())

	url, err := svc.WordAudio(context.Background(), "Haus", "de")
	if err != nil {
		t.Fatalf("WordAudio: %v", err)
	}
	if !strings.HasPrefix(url, "data:audio/mpeg;base64,") {
		t.Errorf("url = %q, want data URL", url)
	}
	if len(store.saved) != 0 {
		t.Errorf("data URL fallback must not be cached")
	}
}

func TestGeneratePassageAudio(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer worker.Close()

	store := newFakeAudioStore()
	store.test = storage.Test{ID: "test-1", Language: "de", Passage: "Am Montag fährt Anna nach Berlin."}

	svc := NewService(&fakeSynth{audio: []byte("mp3")}, store, worker.URL, "k", testLogger())
	if err := svc.GeneratePassageAudio(context.Background(), "test-1"); err != nil {
		t.Fatalf("GeneratePassageAudio: %v", err)
	}

	if store.audioURLs["test-1"] == "" {
		t.Error("test audio url not updated")
	}
}

func TestGeneratePassageAudio_TranscriptWins(t *testing.T) {
	worker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer worker.Close()

	store := newFakeAudioStore()
	store.test = storage.Test{
		ID:         "test-1",
		Language:   "de",
		Passage:    "Lesetext über Berlin.",
		Transcript: "Guten Tag, hier sind die Nachrichten.",
	}

	synth := &fakeSynth{audio: []byte("mp3")}
	svc := NewService(synth, store, worker.URL, "k", testLogger())
	if err := svc.GeneratePassageAudio(context.Background(), "test-1"); err != nil {
		t.Fatalf("GeneratePassageAudio: %v", err)
	}

	if len(synth.texts) != 1 || synth.texts[0] != "Guten Tag, hier sind die Nachrichten." {
		t.Errorf("synthesized %v, want the transcript", synth.texts)
	}
}

func TestGeneratePassageAudio_NoPassage(t *testing.T) {
	store := newFakeAudioStore()
	store.test = storage.Test{ID: "test-1"}

	svc := NewService(&fakeSynth{}, store, "", "", testLogger())
	if err := svc.GeneratePassageAudio(context.Background(), "test-1"); err == nil {
		t.Fatal("expected error for empty passage")
	}
}
