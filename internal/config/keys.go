package config

import (
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "SPRACHLAB_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "storage.data_dir", typ: kString, env: "SPRACHLAB_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "llm.base_url", typ: kString, env: "SPRACHLAB_LLM_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.LLM.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.BaseURL },
	},
	{
		key: "llm.chat_model", typ: kString, env: "SPRACHLAB_LLM_CHAT_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.ChatModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.ChatModel },
	},
	{
		key: "llm.eval_model", typ: kString, env: "SPRACHLAB_LLM_EVAL_MODEL",
		apply:   func(cfg *Config, v any) { cfg.LLM.EvalModel = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.EvalModel },
	},
	{
		key: "llm.api_key", typ: kString, env: "SPRACHLAB_LLM_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.LLM.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.LLM.APIKey },
	},
	{
		key: "tts.base_url", typ: kString, env: "SPRACHLAB_TTS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.TTS.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.BaseURL },
	},
	{
		key: "tts.worker_url", typ: kString, env: "SPRACHLAB_TTS_WORKER_URL",
		apply:   func(cfg *Config, v any) { cfg.TTS.WorkerURL = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.WorkerURL },
	},
	{
		key: "tts.worker_key", typ: kString, env: "SPRACHLAB_TTS_WORKER_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.TTS.WorkerKey = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.WorkerKey },
	},
	{
		key: "tts.default_voice", typ: kString, env: "SPRACHLAB_TTS_DEFAULT_VOICE",
		apply:   func(cfg *Config, v any) { cfg.TTS.DefaultVoice = v.(string) },
		extract: func(cfg Config) any { return cfg.TTS.DefaultVoice },
	},
	{
		key: "webhook.signing_secret", typ: kString, env: "SPRACHLAB_WEBHOOK_SIGNING_SECRET", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Webhook.SigningSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Webhook.SigningSecret },
	},
	{
		key: "webhook.provider_api_key", typ: kString, env: "SPRACHLAB_AUTH_PROVIDER_API_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Webhook.ProviderAPIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Webhook.ProviderAPIKey },
	},
	{
		key: "channels.whatsapp_key", typ: kString, env: "SPRACHLAB_WHATSAPP_CHANNEL_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Channels.WhatsAppKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Channels.WhatsAppKey },
	},
	{
		key: "channels.telegram_key", typ: kString, env: "SPRACHLAB_TELEGRAM_CHANNEL_KEY", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Channels.TelegramKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Channels.TelegramKey },
	},
	{
		key: "content.dir", typ: kString, env: "SPRACHLAB_CONTENT_DIR",
		apply:   func(cfg *Config, v any) { cfg.Content.Dir = v.(string) },
		extract: func(cfg Config) any { return cfg.Content.Dir },
	},
	{
		key: "notify.telegram_token", typ: kString, env: "SPRACHLAB_TELEGRAM_TOKEN", secret: true,
		apply:   func(cfg *Config, v any) { cfg.Notify.TelegramToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Notify.TelegramToken },
	},
	{
		key: "notify.digest_hour", typ: kInt, env: "SPRACHLAB_DIGEST_HOUR",
		apply:   func(cfg *Config, v any) { cfg.Notify.DigestHour = v.(int) },
		extract: func(cfg Config) any { return cfg.Notify.DigestHour },
	},
}

// applyBackend reads each non-secret key from the backend and applies it.
func applyBackend(cfg *Config, b Backend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return err
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return err
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

// applyEnvOverrides applies SPRACHLAB_* environment variables over the
// backend values. Invalid integers are ignored.
func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		v := os.Getenv(s.env)
		if v == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, v)
		case kInt:
			if i, err := strconv.Atoi(v); err == nil {
				s.apply(cfg, i)
			}
		}
	}
}
