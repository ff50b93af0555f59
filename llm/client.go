package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/config"
)

// Options tune a single generation call
type Options struct {
	System      string
	Temperature float64
	MaxTokens   int64
	JSON        bool
}

// Client talks to an OpenAI-compatible chat endpoint (Groq by default).
// It keeps its own cached model list so a missing model is swapped for an
// available fallback without a lookup on every call.
type Client struct {
	api     openai.Client
	cfg     config.LLMConfig
	enabled bool
	log     *logrus.Entry
	now     func() time.Time

	mu        sync.Mutex
	models    map[string]bool
	fetchedAt time.Time
}

// New creates a Client. Without an API key every Generate call returns "".
func New(cfg config.LLMConfig, apiKey string, log *logrus.Entry) *Client {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(1),
	}
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &Client{
		api:     openai.NewClient(opts...),
		cfg:     cfg,
		enabled: apiKey != "",
		log:     log,
		now:     time.Now,
	}
}

// Enabled reports whether the client has credentials
func (c *Client) Enabled() bool {
	return c.enabled
}

// Generate returns the model's reply to prompt, or "" on any failure.
// An empty string always means "use your fallback".
func (c *Client) Generate(ctx context.Context, prompt string, opts Options) string {
	if !c.enabled {
		return ""
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var msgs []openai.ChatCompletionMessageParamUnion
	if opts.System != "" {
		msgs = append(msgs, openai.SystemMessage(opts.System))
	}
	msgs = append(msgs, openai.UserMessage(prompt))

	temp := opts.Temperature
	if temp == 0 {
		temp = c.cfg.Temperature
	}
	maxTokens := opts.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.cfg.MaxTokens
	}

	params := openai.ChatCompletionNewParams{
		Messages:    msgs,
		Model:       c.Model(ctx),
		Temperature: openai.Float(temp),
		MaxTokens:   openai.Int(maxTokens),
	}
	if opts.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{Type: "json_object"},
		}
	}

	resp, err := c.api.Chat.Completions.New(ctx, params)
	if err != nil {
		c.log.Warnf("⚠️  text generation failed: %v", err)
		return ""
	}
	if len(resp.Choices) == 0 {
		c.log.Warn("⚠️  text generation returned no choices")
		return ""
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// Model returns the configured model if the endpoint lists it, otherwise the
// first listed fallback. If the list cannot be fetched the configured model is used.
func (c *Client) Model(ctx context.Context) string {
	available := c.availableModels(ctx)
	if len(available) == 0 || available[c.cfg.Model] {
		return c.cfg.Model
	}
	for _, m := range c.cfg.FallbackModels {
		if available[m] {
			c.log.Infof("model %s not offered, using %s", c.cfg.Model, m)
			return m
		}
	}
	return c.cfg.Model
}

func (c *Client) availableModels(ctx context.Context) map[string]bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.models != nil && c.now().Sub(c.fetchedAt) < c.cfg.ModelCacheTTL {
		return c.models
	}

	page, err := c.api.Models.List(ctx)
	if err != nil {
		c.log.Debugf("model list unavailable: %v", err)
		return c.models
	}
	models := make(map[string]bool, len(page.Data))
	for _, m := range page.Data {
		models[m.ID] = true
	}
	c.models = models
	c.fetchedAt = c.now()
	return models
}
