package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Encoder modes
const (
	ModeMixed   = "mixed"
	ModeCPUOnly = "cpu-only"
	ModeGPUOnly = "gpu-only"
)

type Config struct {
	Run         RunConfig         `yaml:"run"`
	Discovery   DiscoveryConfig   `yaml:"discovery"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Narration   NarrationConfig   `yaml:"narration"`
	LLM         LLMConfig         `yaml:"llm"`
	TTS         TTSConfig         `yaml:"tts"`
	Render      RenderConfig      `yaml:"render"`
	Storage     StorageConfig     `yaml:"storage"`
	Secrets     Secrets           `yaml:"-"`
}

type RunConfig struct {
	OutputDir string `yaml:"output_dir" validate:"required"`
	ReportDir string `yaml:"report_dir" validate:"required"`
}

type DiscoveryConfig struct {
	LookbackHours int             `yaml:"lookback_hours" validate:"min=1"`
	Workers       int             `yaml:"workers" validate:"min=1"`
	SourceTimeout time.Duration   `yaml:"source_timeout" validate:"min=1s"`
	FallbackCount int             `yaml:"fallback_count" validate:"min=1"`
	MaxVideos     int             `yaml:"max_videos" validate:"min=1"`
	YouTube       YouTubeConfig   `yaml:"youtube"`
	Reddit        RedditConfig    `yaml:"reddit"`
	Partners      []Partner       `yaml:"partners" validate:"dive"`
	SeenStore     SeenStoreConfig `yaml:"seen_store"`
}

type YouTubeConfig struct {
	Channels   []string `yaml:"channels"`
	MaxResults int64    `yaml:"max_results" validate:"min=1,max=50"`
}

type RedditConfig struct {
	Subreddits []string `yaml:"subreddits"`
	Limit      int      `yaml:"limit" validate:"min=1,max=100"`
}

// Partner is a channel used to build placeholder videos when discovery finds nothing
type Partner struct {
	Name      string `yaml:"name" validate:"required"`
	ChannelID string `yaml:"channel_id"`
}

type SeenStoreConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Backend   string `yaml:"backend" validate:"oneof=file redis"`
	File      string `yaml:"file"`
	RedisAddr string `yaml:"redis_addr" validate:"required_if=Backend redis"`
	RedisDB   int    `yaml:"redis_db"`
	RedisKey  string `yaml:"redis_key"`
}

type AcquisitionConfig struct {
	FootageDir         string        `yaml:"footage_dir" validate:"required"`
	Workers            int           `yaml:"workers" validate:"min=1"`
	DownloadTimeout    time.Duration `yaml:"download_timeout" validate:"min=1s"`
	YTDLPPath          string        `yaml:"ytdlp_path" validate:"required"`
	Format             string        `yaml:"format"`
	PlaceholderSeconds int           `yaml:"placeholder_seconds" validate:"min=1"`
}

type AnalysisConfig struct {
	ClipSeconds   float64       `yaml:"clip_seconds" validate:"gt=0"`
	ClipsPerVideo int           `yaml:"clips_per_video" validate:"min=1"`
	Advisory      bool          `yaml:"advisory"`
	STTEngine     string        `yaml:"stt_engine" validate:"oneof=auto assemblyai whisper none"`
	STTTimeout    time.Duration `yaml:"stt_timeout" validate:"min=1s"`
	WhisperPath   string        `yaml:"whisper_path"`
	WhisperModel  string        `yaml:"whisper_model"`
	Subtitles     bool          `yaml:"subtitles"`
	SubtitleLang  string        `yaml:"subtitle_lang"`
}

type NarrationConfig struct {
	MaxWords      int     `yaml:"max_words" validate:"min=1"`
	ContextFile   string  `yaml:"context_file"`
	SilentSeconds float64 `yaml:"silent_seconds" validate:"gt=0"`
}

type LLMConfig struct {
	BaseURL        string        `yaml:"base_url" validate:"omitempty,url"`
	Model          string        `yaml:"model" validate:"required"`
	FallbackModels []string      `yaml:"fallback_models"`
	Temperature    float64       `yaml:"temperature" validate:"min=0,max=2"`
	MaxTokens      int64         `yaml:"max_tokens" validate:"min=1"`
	Timeout        time.Duration `yaml:"timeout" validate:"min=1s"`
	ModelCacheTTL  time.Duration `yaml:"model_cache_ttl" validate:"min=1s"`
}

type TTSConfig struct {
	ElevenLabsURL string        `yaml:"elevenlabs_url" validate:"omitempty,url"`
	VoiceID       string        `yaml:"voice_id"`
	ModelID       string        `yaml:"model_id"`
	EdgePath      string        `yaml:"edge_path"`
	EdgeVoice     string        `yaml:"edge_voice"`
	Timeout       time.Duration `yaml:"timeout" validate:"min=1s"`
}

type RenderConfig struct {
	Mode            string        `yaml:"mode" validate:"oneof=mixed cpu-only gpu-only"`
	FFmpegPath      string        `yaml:"ffmpeg_path" validate:"required"`
	FFprobePath     string        `yaml:"ffprobe_path" validate:"required"`
	BackgroundImage string        `yaml:"background_image" validate:"required"`
	BrandingTags    []string      `yaml:"branding_tags"`
	BrandCaption    string        `yaml:"brand_caption"`
	FontFile        string        `yaml:"font_file"`
	Width           int           `yaml:"width" validate:"min=16"`
	Height          int           `yaml:"height" validate:"min=16"`
	FPS             int           `yaml:"fps" validate:"min=1,max=120"`
	CardSeconds     float64       `yaml:"card_seconds" validate:"gt=0"`
	MaxClips        int           `yaml:"max_clips" validate:"min=1,max=8"`
	MinOutputBytes  int64         `yaml:"min_output_bytes" validate:"min=1"`
	CommandTimeout  time.Duration `yaml:"command_timeout" validate:"min=1s"`
	Loudnorm        bool          `yaml:"loudnorm"`
}

type StorageConfig struct {
	MinIO MinIOConfig `yaml:"minio"`
}

type MinIOConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Endpoint   string `yaml:"endpoint" validate:"required_if=Enabled true"`
	Bucket     string `yaml:"bucket" validate:"required_if=Enabled true"`
	Prefix     string `yaml:"prefix"`
	UseSSL     bool   `yaml:"use_ssl"`
	UploadReel bool   `yaml:"upload_reel"`
}

// Secrets are read from the environment only
type Secrets struct {
	YouTubeAPIKey       string `envconfig:"YOUTUBE_API_KEY"`
	YouTubeClientID     string `envconfig:"YOUTUBE_CLIENT_ID"`
	YouTubeClientSecret string `envconfig:"YOUTUBE_CLIENT_SECRET"`
	YouTubeRefreshToken string `envconfig:"YOUTUBE_REFRESH_TOKEN"`
	RedditUserAgent     string `envconfig:"REDDIT_USER_AGENT"`
	AssemblyAIKey       string `envconfig:"ASSEMBLYAI_API_KEY"`
	GroqAPIKey          string `envconfig:"GROQ_API_KEY"`
	ElevenLabsKey       string `envconfig:"ELEVENLABS_API_KEY"`
	MinIOAccessKey      string `envconfig:"MINIO_ACCESS_KEY"`
	MinIOSecretKey      string `envconfig:"MINIO_SECRET_KEY"`
	RedisPassword       string `envconfig:"REDIS_PASSWORD"`
}

// Default returns a Config with every field populated
func Default() *Config {
	return &Config{
		Run: RunConfig{
			OutputDir: "output",
			ReportDir: "reports",
		},
		Discovery: DiscoveryConfig{
			LookbackHours: 24,
			Workers:       4,
			SourceTimeout: 20 * time.Second,
			FallbackCount: 3,
			MaxVideos:     4,
			YouTube:       YouTubeConfig{MaxResults: 10},
			Reddit:        RedditConfig{Limit: 25},
			Partners:      []Partner{{Name: "Partner Channel"}},
			SeenStore: SeenStoreConfig{
				Backend:  "file",
				File:     "reports/seen_videos.json",
				RedisKey: "highlights:seen_videos",
			},
		},
		Acquisition: AcquisitionConfig{
			FootageDir:         "footage",
			Workers:            3,
			DownloadTimeout:    5 * time.Minute,
			YTDLPPath:          "yt-dlp",
			Format:             "mp4/bestvideo[height<=720]+bestaudio/best",
			PlaceholderSeconds: 120,
		},
		Analysis: AnalysisConfig{
			ClipSeconds:   60,
			ClipsPerVideo: 3,
			Advisory:      true,
			STTEngine:     "auto",
			STTTimeout:    10 * time.Minute,
			WhisperPath:   "whisper",
			WhisperModel:  "base",
			Subtitles:     true,
			SubtitleLang:  "en",
		},
		Narration: NarrationConfig{
			MaxWords:      45,
			SilentSeconds: 3,
		},
		LLM: LLMConfig{
			BaseURL:        "https://api.groq.com/openai/v1",
			Model:          "llama-3.3-70b-versatile",
			FallbackModels: []string{"llama-3.1-8b-instant"},
			Temperature:    0.4,
			MaxTokens:      600,
			Timeout:        30 * time.Second,
			ModelCacheTTL:  10 * time.Minute,
		},
		TTS: TTSConfig{
			ElevenLabsURL: "https://api.elevenlabs.io",
			VoiceID:       "21m00Tcm4TlvDq8ikWAM",
			ModelID:       "eleven_turbo_v2",
			EdgePath:      "edge-tts",
			EdgeVoice:     "en-US-GuyNeural",
			Timeout:       45 * time.Second,
		},
		Render: RenderConfig{
			Mode:            ModeMixed,
			FFmpegPath:      "ffmpeg",
			FFprobePath:     "ffprobe",
			BackgroundImage: "assets/background.png",
			BrandingTags:    []string{"assets/branding_tag.mp4", "assets/brand/tag.mp4"},
			BrandCaption:    "Daily Highlights",
			Width:           1280,
			Height:          720,
			FPS:             30,
			CardSeconds:     3.5,
			MaxClips:        8,
			MinOutputBytes:  100 * 1024,
			CommandTimeout:  10 * time.Minute,
			Loudnorm:        true,
		},
	}
}

// Load reads a YAML file over the defaults, then secrets from the environment.
// A missing file is not an error: defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if err := envconfig.Process("", &cfg.Secrets); err != nil {
		return nil, fmt.Errorf("read secrets: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New()

// Validate checks every field and reports all problems at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), tagWithParam(fe), fe.Value()))
	}
	return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

func tagWithParam(fe validator.FieldError) string {
	if fe.Param() == "" {
		return fe.Tag()
	}
	return fe.Tag() + "=" + fe.Param()
}
