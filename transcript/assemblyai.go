package transcript

import (
	"context"
	"fmt"
	"os"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"

	"highlight-reel-pipeline/types"
)

// AssemblyAI transcribes through the hosted AssemblyAI API
type AssemblyAI struct {
	client *aai.Client
	lang   string
}

// NewAssemblyAI creates an engine using the official SDK client
func NewAssemblyAI(apiKey, lang string) *AssemblyAI {
	return &AssemblyAI{client: aai.NewClient(apiKey), lang: lang}
}

func (a *AssemblyAI) Name() string { return "assemblyai" }

// Transcribe uploads the file, waits for completion and returns sentence segments
func (a *AssemblyAI) Transcribe(ctx context.Context, path string) ([]types.TranscriptSegment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	params := &aai.TranscriptOptionalParams{
		Punctuate:  aai.Bool(true),
		FormatText: aai.Bool(true),
	}
	if a.lang != "" {
		params.LanguageCode = aai.TranscriptLanguageCode(a.lang)
	}

	transcript, err := a.client.Transcripts.TranscribeFromReader(ctx, f, params)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	if transcript.Status == aai.TranscriptStatusError {
		msg := "unknown error"
		if transcript.Error != nil {
			msg = *transcript.Error
		}
		return nil, fmt.Errorf("assemblyai: %s", msg)
	}
	if transcript.ID == nil {
		return nil, fmt.Errorf("assemblyai: transcript has no id")
	}

	resp, err := a.client.Transcripts.GetSentences(ctx, *transcript.ID)
	if err != nil {
		return nil, fmt.Errorf("get sentences: %w", err)
	}
	segs := make([]types.TranscriptSegment, 0, len(resp.Sentences))
	for _, s := range resp.Sentences {
		if s.Start == nil || s.End == nil || s.Text == nil {
			continue
		}
		segs = append(segs, types.TranscriptSegment{
			Start: float64(*s.Start) / 1000,
			End:   float64(*s.End) / 1000,
			Text:  *s.Text,
		})
	}
	return segs, nil
}
