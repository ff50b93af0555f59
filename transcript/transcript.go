package transcript

import (
	"context"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

// Engine turns a local media file into timestamped segments
type Engine interface {
	Name() string
	Transcribe(ctx context.Context, path string) ([]types.TranscriptSegment, error)
}

// Source tries each speech-to-text engine in order, then falls back to
// platform subtitles. It never returns an error: no transcript is an empty one.
type Source struct {
	Engines   []Engine
	Subtitles *SubtitleFetcher
	log       *logrus.Entry
}

// NewSource wires the engines selected by cfg.Analysis.STTEngine
func NewSource(cfg *config.Config, runner mediatool.Runner, workDir string, log *logrus.Entry) *Source {
	s := &Source{log: log}
	engine := cfg.Analysis.STTEngine
	key := cfg.Secrets.AssemblyAIKey

	if (engine == "auto" || engine == "assemblyai") && key != "" {
		s.Engines = append(s.Engines, NewAssemblyAI(key, cfg.Analysis.SubtitleLang))
	}
	if engine == "whisper" || (engine == "auto" && mediatool.Available(cfg.Analysis.WhisperPath)) {
		s.Engines = append(s.Engines, &Whisper{
			Runner:  runner,
			Path:    cfg.Analysis.WhisperPath,
			Model:   cfg.Analysis.WhisperModel,
			Lang:    cfg.Analysis.SubtitleLang,
			WorkDir: workDir,
			Timeout: cfg.Analysis.STTTimeout,
		})
	}
	if cfg.Analysis.Subtitles {
		s.Subtitles = &SubtitleFetcher{
			Runner:  runner,
			Path:    cfg.Acquisition.YTDLPPath,
			Lang:    cfg.Analysis.SubtitleLang,
			WorkDir: workDir,
			Timeout: cfg.Acquisition.DownloadTimeout,
		}
	}
	return s
}

// Transcript returns the segments for one video, the name of the source
// that produced them ("none" when nothing did) and the reason each source
// tried before it failed.
func (s *Source) Transcript(ctx context.Context, video types.SourceVideo, footage types.RawFootage) ([]types.TranscriptSegment, string, []string) {
	if footage.Placeholder || video.IsFallback() {
		return nil, "none", nil
	}
	var failures []string
	fail := func(source string, err error) {
		s.log.Warnf("⚠️  %s for %s failed: %v", source, video.VideoID, err)
		failures = append(failures, source+": "+err.Error())
	}

	for _, e := range s.Engines {
		segs, err := e.Transcribe(ctx, footage.Path)
		if err != nil {
			fail(e.Name(), err)
			continue
		}
		if segs = Clean(segs); len(segs) > 0 {
			return segs, e.Name(), failures
		}
		failures = append(failures, e.Name()+": empty transcript")
	}
	if s.Subtitles != nil && video.Platform == "youtube" {
		segs, err := s.Subtitles.Fetch(ctx, video)
		if err != nil {
			fail("subtitles", err)
		} else if segs = Clean(segs); len(segs) > 0 {
			return segs, "subtitles", failures
		} else {
			failures = append(failures, "subtitles: empty transcript")
		}
	}
	return nil, "none", failures
}

// Clean drops empty or inverted segments and orders the rest by start offset
func Clean(segs []types.TranscriptSegment) []types.TranscriptSegment {
	out := make([]types.TranscriptSegment, 0, len(segs))
	for _, s := range segs {
		s.Text = strings.Join(strings.Fields(s.Text), " ")
		if s.Text == "" || s.End < s.Start || s.Start < 0 {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}
