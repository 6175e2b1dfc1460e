// Package config loads server settings from the environment, with an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const envPrefix = "OPENCLAW_"

// Provider names.
const (
	STTWhisper   = "whisper"
	STTDeepgram  = "deepgram"
	STTDashScope = "dashscope"

	ASRRealtime = "realtime"
	ASRBatch    = "batch"

	TTSElevenLabs = "elevenlabs"
	TTSOpenAI     = "openai"

	BackendOpenAI = "openai"
	BackendGemini = "gemini"
	BackendEcho   = "echo"
)

type Config struct {
	Host string
	Port int

	RequireAuth bool
	MasterKey   string
	JWTSecret   string

	STTProvider       string
	ASRMode           string
	STTLanguage       string
	RealtimeSilenceMs int
	PrefixPaddingMs   int

	TTSProvider string
	TTSVoice    string

	BackendType   string
	BackendURL    string
	BackendModel  string
	SystemPrompt  string
	GatewayURL    string
	GatewayToken  string
	GatewayModel  string
	OpenAIKey     string
	GeminiKey     string
	DeepgramKey   string
	DashScopeKey  string
	ElevenLabsKey string

	InputSampleRate     int
	OutputSampleRate    int
	EnergyThreshold     float64
	RealtimeStopTimeout time.Duration
	TurnTimeout         time.Duration
	CloseTimeout        time.Duration

	DatabaseURL string
	RedisURL    string

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
	PublicURL        string
	PublicWSURL      string
	// TwilioValidate rejects webhook requests without a valid signature.
	TwilioValidate bool
	// EndpointSilence ends a phone turn after this much quiet.
	EndpointSilence time.Duration

	LogLevel string
}

// Load reads the environment. A missing .env file is not an error.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, falling back to environment variables")
	}

	cfg := Config{
		Host: str("HOST", "0.0.0.0"),
		Port: num("PORT", 8765),

		RequireAuth: boolean("REQUIRE_AUTH", false),
		MasterKey:   str("MASTER_KEY", ""),
		JWTSecret:   str("JWT_SECRET", ""),

		STTProvider:       strings.ToLower(str("STT_PROVIDER", STTWhisper)),
		ASRMode:           strings.ToLower(str("ASR_MODE", ASRRealtime)),
		STTLanguage:       str("STT_LANGUAGE", "en"),
		RealtimeSilenceMs: num("REALTIME_SILENCE_MS", 900),
		PrefixPaddingMs:   num("REALTIME_PREFIX_PADDING_MS", 300),

		TTSProvider: strings.ToLower(str("TTS_PROVIDER", TTSElevenLabs)),
		TTSVoice:    str("TTS_VOICE", ""),

		BackendType:   strings.ToLower(str("BACKEND_TYPE", BackendOpenAI)),
		BackendURL:    str("BACKEND_URL", ""),
		BackendModel:  str("BACKEND_MODEL", ""),
		SystemPrompt:  str("SYSTEM_PROMPT", ""),
		GatewayURL:    str("GATEWAY_URL", ""),
		GatewayToken:  str("GATEWAY_TOKEN", ""),
		GatewayModel:  str("GATEWAY_MODEL", "openclaw:voice"),
		OpenAIKey:     vendor("OPENAI_API_KEY"),
		GeminiKey:     vendor("GEMINI_API_KEY"),
		DeepgramKey:   vendor("DEEPGRAM_API_KEY"),
		DashScopeKey:  vendor("DASHSCOPE_API_KEY"),
		ElevenLabsKey: vendor("ELEVENLABS_API_KEY"),

		InputSampleRate:     num("INPUT_SAMPLE_RATE", 16000),
		OutputSampleRate:    num("TTS_OUTPUT_SAMPLE_RATE", 16000),
		EnergyThreshold:     float("ENERGY_THRESHOLD", 0.008),
		RealtimeStopTimeout: duration("REALTIME_STOP_TIMEOUT", 3*time.Second),
		TurnTimeout:         duration("TURN_TIMEOUT", 45*time.Second),
		CloseTimeout:        duration("CLOSE_TIMEOUT", 500*time.Millisecond),

		DatabaseURL: vendor("DATABASE_URL"),
		RedisURL:    vendor("REDIS_URL"),

		TwilioAccountSID: vendor("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:  vendor("TWILIO_AUTH_TOKEN"),
		TwilioFromNumber: vendor("TWILIO_FROM_NUMBER"),
		PublicURL:        str("PUBLIC_URL", ""),
		PublicWSURL:      str("PUBLIC_WS_URL", ""),
		TwilioValidate:   boolean("TWILIO_VALIDATE_SIGNATURE", false),
		EndpointSilence:  duration("ENDPOINT_SILENCE", 700*time.Millisecond),

		LogLevel: strings.ToLower(str("LOG_LEVEL", "info")),
	}
	return cfg
}

// Addr is the listen address.
func (c Config) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// RealtimeEnabled reports whether turns should open a realtime session.
func (c Config) RealtimeEnabled() bool {
	return c.ASRMode == ASRRealtime && (c.STTProvider == STTDeepgram || c.STTProvider == STTDashScope)
}

// ChatModel is the configured model or the backend's default.
func (c Config) ChatModel() string {
	if c.BackendModel != "" {
		return c.BackendModel
	}
	if c.BackendType == BackendGemini {
		return "gemini-2.0-flash"
	}
	return "gpt-4o-mini"
}

// TelephonyEnabled reports whether the Twilio routes can be served.
func (c Config) TelephonyEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFromNumber != "" && c.PublicURL != ""
}

// Validate fails when a selected provider is missing its credentials or a
// setting is out of range.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return errors.Errorf("%sPORT %d out of range", envPrefix, c.Port)
	}
	if c.InputSampleRate <= 0 || c.OutputSampleRate <= 0 {
		return errors.New("sample rates must be positive")
	}
	if c.ASRMode != ASRRealtime && c.ASRMode != ASRBatch {
		return errors.Errorf("unknown %sASR_MODE %q", envPrefix, c.ASRMode)
	}

	switch c.STTProvider {
	case STTWhisper:
		if c.OpenAIKey == "" {
			return missing("OPENAI_API_KEY", "whisper transcription")
		}
	case STTDeepgram:
		if c.DeepgramKey == "" {
			return missing("DEEPGRAM_API_KEY", "deepgram transcription")
		}
	case STTDashScope:
		if c.DashScopeKey == "" {
			return missing("DASHSCOPE_API_KEY", "dashscope transcription")
		}
	default:
		return errors.Errorf("unknown %sSTT_PROVIDER %q", envPrefix, c.STTProvider)
	}

	switch c.TTSProvider {
	case TTSElevenLabs:
		if c.ElevenLabsKey == "" {
			return missing("ELEVENLABS_API_KEY", "elevenlabs speech")
		}
	case TTSOpenAI:
		if c.OpenAIKey == "" {
			return missing("OPENAI_API_KEY", "openai speech")
		}
	default:
		return errors.Errorf("unknown %sTTS_PROVIDER %q", envPrefix, c.TTSProvider)
	}

	switch c.BackendType {
	case BackendOpenAI:
		if c.GatewayURL == "" && c.OpenAIKey == "" {
			return missing("OPENAI_API_KEY", "the openai backend (or set "+envPrefix+"GATEWAY_URL)")
		}
	case BackendGemini:
		if c.GeminiKey == "" {
			return missing("GEMINI_API_KEY", "the gemini backend")
		}
	case BackendEcho:
	default:
		return errors.Errorf("unknown %sBACKEND_TYPE %q", envPrefix, c.BackendType)
	}

	if c.RequireAuth && c.MasterKey == "" {
		log.Warnf("%sREQUIRE_AUTH is set without %sMASTER_KEY; keys can only come from storage", envPrefix, envPrefix)
	}
	return nil
}

func missing(name, what string) error {
	return errors.Errorf("%s%s (or %s) must be set for %s", envPrefix, name, name, what)
}

func lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(envPrefix + name)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func str(name, def string) string {
	if v, ok := lookup(name); ok {
		return v
	}
	return def
}

// vendor prefers the prefixed variable and falls back to the vendor's own.
func vendor(name string) string {
	if v, ok := lookup(name); ok {
		return v
	}
	return strings.TrimSpace(os.Getenv(name))
}

func num(name string, def int) int {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("invalid %s%s=%q, using %d", envPrefix, name, v, def)
		return def
	}
	return n
}

func float(name string, def float64) float64 {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warnf("invalid %s%s=%q, using %v", envPrefix, name, v, def)
		return def
	}
	return f
}

func boolean(name string, def bool) bool {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Warnf("invalid %s%s=%q, using %v", envPrefix, name, v, def)
		return def
	}
	return b
}

// duration accepts Go durations ("3s") or plain seconds ("3", "0.5").
func duration(name string, def time.Duration) time.Duration {
	v, ok := lookup(name)
	if !ok {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if f, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(f * float64(time.Second))
	}
	log.Warnf("invalid %s%s=%q, using %v", envPrefix, name, v, def)
	return def
}
