package main

import (
	"context"

	"github.com/gofiber/fiber/v2/log"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mrsingh-rishi/openclaw-voice/audio"
	"github.com/mrsingh-rishi/openclaw-voice/auth"
	"github.com/mrsingh-rishi/openclaw-voice/config"
	"github.com/mrsingh-rishi/openclaw-voice/llm"
	"github.com/mrsingh-rishi/openclaw-voice/pipeline"
	"github.com/mrsingh-rishi/openclaw-voice/stt"
	"github.com/mrsingh-rishi/openclaw-voice/tts"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sashabaranov/go-openai"
)

// buildProviders creates the shared speech collaborators for the selected
// vendors.
func buildProviders(cfg config.Config) pipeline.Providers {
	var oai *openai.Client
	if cfg.OpenAIKey != "" {
		oai = openai.NewClient(cfg.OpenAIKey)
	}

	p := pipeline.Providers{
		Cleaner: tts.DefaultCleaner,
		NewVAD:  func() audio.VAD { return audio.NewEnergyVAD() },
	}

	switch cfg.STTProvider {
	case config.STTDeepgram:
		dg := stt.NewDeepgram(cfg.DeepgramKey, cfg.STTLanguage, cfg.InputSampleRate, cfg.RealtimeSilenceMs)
		p.Transcriber = dg
		if cfg.RealtimeEnabled() {
			p.Realtime = dg
		}
	case config.STTDashScope:
		ds := stt.NewDashScope(cfg.DashScopeKey, cfg.STTLanguage, cfg.InputSampleRate, cfg.RealtimeSilenceMs, cfg.PrefixPaddingMs)
		p.Transcriber = ds
		if cfg.RealtimeEnabled() {
			p.Realtime = ds
		}
	default:
		p.Transcriber = stt.NewWhisper(oai, cfg.STTLanguage)
	}
	if p.Realtime != nil {
		log.Infof("STT: %s realtime (server VAD, silence %dms)", cfg.STTProvider, cfg.RealtimeSilenceMs)
	} else {
		log.Infof("STT: %s batch with local VAD", cfg.STTProvider)
	}

	switch cfg.TTSProvider {
	case config.TTSOpenAI:
		p.Synthesizer = tts.NewOpenAISpeech(oai, cfg.TTSVoice)
	default:
		p.Synthesizer = tts.NewElevenLabsClient(cfg.ElevenLabsKey, cfg.TTSVoice, "")
	}
	log.Infof("TTS: %s", cfg.TTSProvider)
	return p
}

// buildBackend returns a factory for per-connection conversations over one
// shared chat provider.
func buildBackend(ctx context.Context, cfg config.Config) (func() llm.Backend, error) {
	var (
		provider llm.Provider
		prompt   = cfg.SystemPrompt
	)
	switch {
	case cfg.GatewayURL != "":
		base := llm.GatewayBaseURL(cfg.GatewayURL)
		log.Infof("Connecting to OpenClaw gateway: %s", base)
		provider = llm.NewOpenAIClient(cfg.GatewayToken, base, cfg.GatewayModel)
		if prompt == "" {
			prompt = llm.VoiceGatewayPrompt
		}
	case cfg.BackendType == config.BackendGemini:
		gemini, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, cfg.ChatModel())
		if err != nil {
			return nil, err
		}
		provider = gemini
	case cfg.BackendType == config.BackendEcho:
		provider = llm.EchoProvider{}
	default:
		provider = llm.NewOpenAIClient(cfg.OpenAIKey, cfg.BackendURL, cfg.ChatModel())
	}
	log.Infof("Chat backend: %s", cfg.BackendType)

	return func() llm.Backend {
		return llm.NewConversation(provider, prompt)
	}, nil
}

// buildAuth picks Postgres and Redis when configured and falls back to
// process memory otherwise.
func buildAuth(ctx context.Context, cfg config.Config) (*auth.Manager, func(), error) {
	var (
		repo    auth.Repository = auth.NewMemoryRepository()
		limiter auth.Limiter    = auth.NewWindowLimiter()
		closers []func()
	)
	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, cleanup, errors.Wrap(err, "connect to database")
		}
		closers = append(closers, pool.Close)
		if err := auth.Migrate(ctx, pool); err != nil {
			return nil, cleanup, err
		}
		repo = auth.NewPostgresRepository(pool)
		log.Info("API keys stored in Postgres")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, cleanup, errors.Wrap(err, "parse redis url")
		}
		client := redis.NewClient(opts)
		closers = append(closers, func() { _ = client.Close() })
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, cleanup, errors.Wrap(err, "ping redis")
		}
		limiter = auth.NewRedisLimiter(client)
		log.Info("Rate limits shared through Redis")
	}

	manager := auth.NewManager(repo, limiter, auth.Options{
		MasterKey:   cfg.MasterKey,
		TokenSecret: cfg.JWTSecret,
	})
	return manager, cleanup, nil
}
