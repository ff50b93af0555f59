package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/mediatool"
)

// ErrNotConfigured means the synthesizer has no credential or binary
var ErrNotConfigured = errors.New("tts engine not configured")

// Synthesizer renders text to an audio file
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, text, outPath string) error
}

// ElevenLabs calls the ElevenLabs text-to-speech HTTP API
type ElevenLabs struct {
	BaseURL    string
	APIKey     string
	VoiceID    string
	ModelID    string
	HTTP       *http.Client
	MaxElapsed time.Duration
}

// NewElevenLabs creates a client from tts settings
func NewElevenLabs(cfg config.TTSConfig, apiKey string) *ElevenLabs {
	return &ElevenLabs{
		BaseURL:    strings.TrimSuffix(cfg.ElevenLabsURL, "/"),
		APIKey:     apiKey,
		VoiceID:    cfg.VoiceID,
		ModelID:    cfg.ModelID,
		HTTP:       &http.Client{Timeout: cfg.Timeout},
		MaxElapsed: cfg.Timeout,
	}
}

func (e *ElevenLabs) Name() string { return "elevenlabs" }

type elevenRequest struct {
	Text    string `json:"text"`
	ModelID string `json:"model_id,omitempty"`
}

// Synthesize writes MP3 audio to outPath. Server errors and rate limits are
// retried with exponential backoff; other non-2xx responses fail at once.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, outPath string) error {
	if e.APIKey == "" {
		return ErrNotConfigured
	}
	body, err := json.Marshal(elevenRequest{Text: text, ModelID: e.ModelID})
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/v1/text-to-speech/%s", e.BaseURL, e.VoiceID)

	var audio []byte
	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("xi-api-key", e.APIKey)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "audio/mpeg")

		resp, err := e.HTTP.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			err := fmt.Errorf("elevenlabs status %d: %s", resp.StatusCode, truncate(string(data), 200))
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				return err
			}
			return backoff.Permanent(err)
		}
		if len(data) == 0 {
			return backoff.Permanent(errors.New("elevenlabs returned empty audio"))
		}
		audio = data
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = e.MaxElapsed
	if err := backoff.Retry(op, backoff.WithContext(bo, ctx)); err != nil {
		return err
	}
	return os.WriteFile(outPath, audio, 0644)
}

// Edge runs the edge-tts command line tool
type Edge struct {
	Runner  mediatool.Runner
	Path    string
	Voice   string
	Timeout time.Duration
}

func (e *Edge) Name() string { return "edge-tts" }

// Synthesize writes MP3 audio to outPath via edge-tts --write-media
func (e *Edge) Synthesize(ctx context.Context, text, outPath string) error {
	if e.Path == "" {
		return ErrNotConfigured
	}
	res := e.Runner.Run(ctx, mediatool.Command{
		Name:    e.Path,
		Args:    []string{"--voice", e.Voice, "--text", text, "--write-media", outPath},
		Timeout: e.Timeout,
	})
	if !res.OK() {
		return fmt.Errorf("edge-tts: %w", res.Error())
	}
	if !mediatool.NonEmpty(outPath) {
		return errors.New("edge-tts produced no audio")
	}
	return nil
}

// Chain tries each synthesizer in order
type Chain []Synthesizer

// NewChain builds the configured synthesizers: ElevenLabs when a key is set,
// then edge-tts when the binary is installed.
func NewChain(cfg *config.Config, runner mediatool.Runner) Chain {
	var c Chain
	if cfg.Secrets.ElevenLabsKey != "" {
		c = append(c, NewElevenLabs(cfg.TTS, cfg.Secrets.ElevenLabsKey))
	}
	if cfg.TTS.EdgePath != "" && mediatool.Available(cfg.TTS.EdgePath) {
		c = append(c, &Edge{Runner: runner, Path: cfg.TTS.EdgePath, Voice: cfg.TTS.EdgeVoice, Timeout: cfg.TTS.Timeout})
	}
	return c
}

// Synthesize returns the name of the engine that produced outPath
func (c Chain) Synthesize(ctx context.Context, text, outPath string) (string, error) {
	if len(c) == 0 {
		return "", ErrNotConfigured
	}
	var errs []error
	for _, s := range c {
		err := s.Synthesize(ctx, text, outPath)
		if err == nil {
			return s.Name(), nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
	}
	return "", errors.Join(errs...)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
