package openai

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/joseph-ayodele/certificate-verifier/internal/llm"
)

const (
	openRouterBaseURL   = "https://openrouter.ai/api/v1"
	openRouterKeyPrefix = "sk-or-"

	extractMaxTokens = 1500
	summaryMaxTokens = 200
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string
	BaseURL     string        // empty means the OpenAI default, or OpenRouter for sk-or- keys
	Model       string        // e.g., "gpt-4o-mini"
	Temperature float32       // 0..2
	Timeout     time.Duration // per call
}

// resolved is Config after provider detection.
type resolved struct {
	Config
	provider string
}

// resolve picks the provider. OpenRouter keys or base URLs route to OpenRouter,
// which expects vendor-prefixed model names.
func resolve(cfg Config) resolved {
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 45 * time.Second
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.1
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")

	r := resolved{Config: cfg, provider: "openai"}
	if cfg.BaseURL == "" && strings.HasPrefix(cfg.APIKey, openRouterKeyPrefix) {
		r.BaseURL = openRouterBaseURL
	}
	if strings.Contains(r.BaseURL, "openrouter.ai") {
		r.provider = "openrouter"
		if !strings.Contains(r.Model, "/") {
			r.Model = "openai/" + r.Model
		}
	} else if r.BaseURL != "" {
		r.provider = "custom"
	}
	return r
}

type Client struct {
	cfg    resolved
	api    *goopenai.Client
	logger *slog.Logger
}

// NewClient builds a client. A missing API key is not an error here; calls fail
// with a configuration error instead so the service can still start.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	r := resolve(cfg)

	c := &Client{cfg: r, logger: logger}
	if r.APIKey != "" {
		oc := goopenai.DefaultConfig(r.APIKey)
		if r.BaseURL != "" {
			oc.BaseURL = r.BaseURL
		}
		oc.HTTPClient = &http.Client{Timeout: r.Timeout}
		c.api = goopenai.NewClientWithConfig(oc)
	}
	logger.Info("llm.client.init",
		"provider", r.provider,
		"model", r.Model,
		"configured", c.api != nil,
	)
	return c
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool { return c.api != nil }

func (c *Client) Mode() llm.Mode { return llm.ModeAI }

// SelectEngine returns the model client when a key is present. Without a key it
// returns the offline engine if fallback is enabled, and otherwise the unconfigured
// client so every call reports the missing key.
func SelectEngine(cfg Config, fallbackEnabled bool, logger *slog.Logger) llm.Engine {
	c := NewClient(cfg, logger)
	if c.Configured() || !fallbackEnabled {
		return c
	}
	c.logger.Warn("llm.engine.fallback", "reason", "no api key")
	return llm.NewFallback(logger)
}
