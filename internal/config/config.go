package config

import (
	"fmt"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	LLM      LLMConfig
	TTS      TTSConfig
	Webhook  WebhookConfig
	Channels ChannelConfig
	Content  ContentConfig
	Notify   NotifyConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	BaseURL   string
	APIKey    string
	ChatModel string
	EvalModel string
}

type TTSConfig struct {
	BaseURL      string
	WorkerURL    string
	WorkerKey    string
	DefaultVoice string
}

type WebhookConfig struct {
	// SigningSecret verifies Svix signatures on the auth-provider webhook.
	SigningSecret string
	// ProviderAPIKey authorizes role updates against the auth provider's
	// management API. Empty disables the role push.
	ProviderAPIKey string
}

type ChannelConfig struct {
	// WhatsAppKey is the shared secret presented by the WhatsApp bridge in
	// the X-Channel-Key header. Empty disables the channel.
	WhatsAppKey string
	// TelegramKey is the same for the Telegram bridge.
	TelegramKey string
}

type ContentConfig struct {
	// Dir holds YAML content packs loaded at startup.
	Dir string
}

type NotifyConfig struct {
	TelegramToken string
	DigestHour    int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4400,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			BaseURL:   "https://api.openai.com/v1",
			ChatModel: "gpt-4o-mini",
			EvalModel: "gpt-4o",
		},
		TTS: TTSConfig{
			BaseURL:      "https://api.openai.com/v1",
			DefaultVoice: "alloy",
		},
		Content: ContentConfig{
			Dir: "content",
		},
		Notify: NotifyConfig{
			DigestHour: 7,
		},
	}
}

// Load reads configuration from the JSON file backend at
// $XDG_CONFIG_HOME/sprachlab/config.json, then applies SPRACHLAB_*
// environment overrides. Secrets (API keys, webhook signing secret, channel
// keys) are environment-only and never written to the backend.
func Load() (Config, error) {
	return loadWith(newFileBackend())
}

func loadWith(b Backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if cfg.LLM.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: LLM API key. Set it via environment variable SPRACHLAB_LLM_API_KEY")
	}

	return cfg, nil
}
