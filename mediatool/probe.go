package mediatool

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Stream is one media stream reported by ffprobe
type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Duration  string `json:"duration,omitempty"`
}

// Format is the container section of ffprobe output
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
}

// ProbeResult holds the streams and container format of a media file
type ProbeResult struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Duration returns the container duration in seconds
func (pr *ProbeResult) Duration() (float64, error) {
	if pr.Format.Duration == "" {
		return 0, fmt.Errorf("duration not available in format metadata")
	}
	d, err := strconv.ParseFloat(pr.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", pr.Format.Duration, err)
	}
	return d, nil
}

// VideoStreams returns the video streams
func (pr *ProbeResult) VideoStreams() []Stream {
	return pr.streams("video")
}

func (pr *ProbeResult) streams(kind string) []Stream {
	var out []Stream
	for _, s := range pr.Streams {
		if s.CodecType == kind {
			out = append(out, s)
		}
	}
	return out
}

// Prober inspects media files
type Prober struct {
	Runner  Runner
	Path    string // ffprobe binary
	Timeout time.Duration
}

// Probe runs ffprobe in JSON mode on path
func (p *Prober) Probe(ctx context.Context, path string) (*ProbeResult, error) {
	res := p.Runner.Run(ctx, Command{
		Name:    p.Path,
		Args:    []string{"-v", "quiet", "-print_format", "json", "-show_streams", "-show_format", path},
		Timeout: p.Timeout,
	})
	if !res.OK() {
		return nil, fmt.Errorf("ffprobe %s: %w", path, res.Error())
	}
	var out ProbeResult
	if err := json.Unmarshal(res.Stdout, &out); err != nil {
		return nil, fmt.Errorf("parse ffprobe output: %w", err)
	}
	return &out, nil
}
