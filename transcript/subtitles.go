package transcript

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

// SubtitleFetcher downloads platform captions with yt-dlp
type SubtitleFetcher struct {
	Runner  mediatool.Runner
	Path    string
	Lang    string
	WorkDir string
	Timeout time.Duration
}

// Fetch retrieves manual or automatic WebVTT captions for video
func (f *SubtitleFetcher) Fetch(ctx context.Context, video types.SourceVideo) ([]types.TranscriptSegment, error) {
	outDir, err := scratchDir(f.WorkDir, "subs-"+video.VideoID)
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(outDir)
	lang := f.Lang
	if lang == "" {
		lang = "en"
	}
	res := f.Runner.Run(ctx, mediatool.Command{
		Name: f.Path,
		Args: []string{
			"--skip-download",
			"--write-subs", "--write-auto-subs",
			"--sub-langs", lang + ".*",
			"--sub-format", "vtt",
			"-o", filepath.Join(outDir, video.VideoID+".%(ext)s"),
			videoURL(video),
		},
		Timeout: f.Timeout,
	})
	if !res.OK() {
		return nil, fmt.Errorf("yt-dlp subtitles: %w", res.Error())
	}

	matches, _ := filepath.Glob(filepath.Join(outDir, video.VideoID+"*.vtt"))
	if len(matches) == 0 {
		return nil, fmt.Errorf("no captions for %s", video.VideoID)
	}
	file, err := os.Open(matches[0])
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseVTT(bufio.NewScanner(file))
}

func videoURL(v types.SourceVideo) string {
	if v.URL != "" {
		return v.URL
	}
	return "https://www.youtube.com/watch?v=" + v.VideoID
}

var (
	cueTiming = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}\.\d{3})\s+-->\s+((?:\d+:)?\d{2}:\d{2}\.\d{3})`)
	cueTags   = regexp.MustCompile(`<[^>]+>`)
)

// ParseVTT reads WebVTT cues. Inline timing tags are stripped and the
// repeated lines of rolling auto-captions are emitted once.
func ParseVTT(sc *bufio.Scanner) ([]types.TranscriptSegment, error) {
	var (
		segs     []types.TranscriptSegment
		cur      *types.TranscriptSegment
		lines    []string
		lastLine string
	)
	flush := func() {
		if cur == nil {
			return
		}
		var kept []string
		for _, l := range lines {
			if l == lastLine {
				continue
			}
			kept = append(kept, l)
			lastLine = l
		}
		if len(kept) > 0 {
			cur.Text = strings.Join(kept, " ")
			segs = append(segs, *cur)
		}
		cur, lines = nil, nil
	}

	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if m := cueTiming.FindStringSubmatch(line); m != nil {
			flush()
			start, err := parseVTTTime(m[1])
			if err != nil {
				return nil, err
			}
			end, err := parseVTTTime(m[2])
			if err != nil {
				return nil, err
			}
			cur = &types.TranscriptSegment{Start: start, End: end}
			continue
		}
		if line == "" {
			flush()
			continue
		}
		if cur != nil {
			text := strings.TrimSpace(cueTags.ReplaceAllString(line, ""))
			if text != "" {
				lines = append(lines, text)
			}
		}
	}
	flush()
	return segs, sc.Err()
}

// parseVTTTime parses HH:MM:SS.mmm or MM:SS.mmm into seconds
func parseVTTTime(s string) (float64, error) {
	parts := strings.Split(s, ":")
	var total float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
		}
		total = total*60 + v
	}
	return total, nil
}
