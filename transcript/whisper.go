package transcript

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

// scratchDir creates a uniquely named directory under workDir so concurrent
// runs sharing workDir never read each other's output
func scratchDir(workDir, prefix string) (string, error) {
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(workDir, prefix+"-*")
}

// Whisper runs the local whisper CLI and reads its JSON output
type Whisper struct {
	Runner  mediatool.Runner
	Path    string
	Model   string
	Lang    string
	WorkDir string
	Timeout time.Duration
}

func (w *Whisper) Name() string { return "whisper" }

type whisperOutput struct {
	Segments []struct {
		Start float64 `json:"start"`
		End   float64 `json:"end"`
		Text  string  `json:"text"`
	} `json:"segments"`
}

// Transcribe writes <base>.json into a private directory under WorkDir,
// parses it and removes the directory.
func (w *Whisper) Transcribe(ctx context.Context, path string) ([]types.TranscriptSegment, error) {
	outDir, err := scratchDir(w.WorkDir, "whisper")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)
	args := []string{path,
		"--model", w.Model,
		"--output_format", "json",
		"--output_dir", outDir,
	}
	if w.Lang != "" {
		args = append(args, "--language", w.Lang)
	}
	res := w.Runner.Run(ctx, mediatool.Command{Name: w.Path, Args: args, Timeout: w.Timeout})
	if !res.OK() {
		return nil, fmt.Errorf("whisper: %w", res.Error())
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	data, err := os.ReadFile(filepath.Join(outDir, base+".json"))
	if err != nil {
		return nil, fmt.Errorf("read whisper output: %w", err)
	}
	return parseWhisperJSON(data)
}

func parseWhisperJSON(data []byte) ([]types.TranscriptSegment, error) {
	var out whisperOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse whisper output: %w", err)
	}
	segs := make([]types.TranscriptSegment, 0, len(out.Segments))
	for _, s := range out.Segments {
		segs = append(segs, types.TranscriptSegment{Start: s.Start, End: s.End, Text: s.Text})
	}
	return segs, nil
}
