package acquisition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

// Acquirer turns SourceVideos into local footage files
type Acquirer struct {
	cfg      config.AcquisitionConfig
	render   config.RenderConfig
	runner   mediatool.Runner
	encoders *mediatool.EncoderPolicy
	log      *logrus.Entry
}

// New creates a new Acquirer
func New(cfg config.AcquisitionConfig, render config.RenderConfig, runner mediatool.Runner, encoders *mediatool.EncoderPolicy, log *logrus.Entry) *Acquirer {
	return &Acquirer{cfg: cfg, render: render, runner: runner, encoders: encoders, log: log}
}

// Target is the cached path of real footage for a video ID
func (a *Acquirer) Target(videoID string) string {
	return filepath.Join(a.cfg.FootageDir, videoID+".mp4")
}

// PlaceholderTarget is the cached path of synthetic footage for a video ID.
// It never shadows Target, so a later run still tries the real download.
func (a *Acquirer) PlaceholderTarget(videoID string) string {
	return filepath.Join(a.cfg.FootageDir, videoID+".placeholder.mp4")
}

// Run fetches every video on a bounded pool. Footage keeps the input order;
// videos that could not even get a placeholder are listed in failed.
func (a *Acquirer) Run(ctx context.Context, videos []types.SourceVideo) (footage []types.RawFootage, failed []types.FailedItem) {
	if err := os.MkdirAll(a.cfg.FootageDir, 0755); err != nil {
		a.log.Warnf("⚠️  footage dir: %v", err)
	}

	results := make([]types.RawFootage, len(videos))
	errs := make([]error, len(videos))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, a.cfg.Workers))
	for i, v := range videos {
		i, v := i, v
		g.Go(func() error {
			f, err := a.Fetch(gctx, v)
			mu.Lock()
			results[i], errs[i] = f, err
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	for i, f := range results {
		if errs[i] != nil {
			a.log.Warnf("⚠️  %s: %v", videos[i].VideoID, errs[i])
			failed = append(failed, types.FailedItem{ID: videos[i].VideoID, Reason: errs[i].Error()})
			continue
		}
		footage = append(footage, f)
	}
	a.log.Infof("✅ acquired %d/%d video(s)", len(footage), len(videos))
	return footage, failed
}

// Fetch returns local footage for v. Cached real footage is reused without
// running any command. Otherwise the download is attempted, and on failure
// a synthetic placeholder (cached under its own name) stands in; only a
// failed placeholder is an error.
func (a *Acquirer) Fetch(ctx context.Context, v types.SourceVideo) (types.RawFootage, error) {
	if v.VideoID == "" {
		return types.RawFootage{}, errors.New("empty video id")
	}
	target := a.Target(v.VideoID)
	if !v.IsFallback() && mediatool.NonEmpty(target) {
		a.log.Debugf("reusing %s", target)
		return types.RawFootage{VideoID: v.VideoID, Path: target, OK: true}, nil
	}

	var reason string
	switch {
	case v.IsFallback():
	case v.URL == "":
		reason = "no download url"
	default:
		err := a.download(ctx, v.VideoID, v.URL, target)
		if err == nil {
			return types.RawFootage{VideoID: v.VideoID, Path: target, OK: true}, nil
		}
		reason = "download failed: " + err.Error()
		a.log.Warnf("⚠️  download %s failed, using placeholder: %v", v.VideoID, err)
	}

	placeholder := a.PlaceholderTarget(v.VideoID)
	if !mediatool.NonEmpty(placeholder) {
		if err := a.placeholder(ctx, v.VideoID, placeholder); err != nil {
			return types.RawFootage{VideoID: v.VideoID, Reason: reason}, fmt.Errorf("placeholder: %w", err)
		}
	}
	return types.RawFootage{VideoID: v.VideoID, Path: placeholder, OK: true, Placeholder: true, Reason: reason}, nil
}

// scratch creates a private directory in the footage cache. Files are built
// there and published by rename, so concurrent runs never share a temp name.
func (a *Acquirer) scratch(videoID, kind string) (string, error) {
	if err := os.MkdirAll(a.cfg.FootageDir, 0755); err != nil {
		return "", err
	}
	return os.MkdirTemp(a.cfg.FootageDir, "."+videoID+"-"+kind+"-*")
}

func (a *Acquirer) download(ctx context.Context, videoID, url, target string) error {
	dir, err := a.scratch(videoID, "download")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	tmp := filepath.Join(dir, videoID+".mp4")

	args := []string{"--no-playlist", "--no-progress", "--merge-output-format", "mp4"}
	if a.cfg.Format != "" {
		args = append(args, "-f", a.cfg.Format)
	}
	args = append(args, url, "-o", tmp)

	res := a.runner.Run(ctx, mediatool.Command{Name: a.cfg.YTDLPPath, Args: args, Timeout: a.cfg.DownloadTimeout})
	if !res.OK() {
		return res.Error()
	}
	if !mediatool.NonEmpty(tmp) {
		return errors.New("yt-dlp produced no file")
	}
	return os.Rename(tmp, target)
}

// placeholder renders a dark frame with a silent track
func (a *Acquirer) placeholder(ctx context.Context, videoID, target string) error {
	dir, err := a.scratch(videoID, "placeholder")
	if err != nil {
		return err
	}
	defer os.RemoveAll(dir)
	tmp := filepath.Join(dir, videoID+".mp4")

	secs := fmt.Sprintf("%d", a.cfg.PlaceholderSeconds)
	video := fmt.Sprintf("color=c=0x101820:s=%dx%d:r=%d:d=%s", a.render.Width, a.render.Height, a.render.FPS, secs)
	_, _, err = a.encoders.Run(ctx, a.runner, "placeholder", func(enc mediatool.Encoder) mediatool.Command {
		args := []string{"-y",
			"-f", "lavfi", "-i", video,
			"-f", "lavfi", "-i", "anullsrc=r=44100:cl=stereo",
			"-t", secs,
		}
		args = append(args, enc.Args...)
		args = append(args, "-c:a", "aac", "-shortest", tmp)
		return mediatool.Command{Name: a.render.FFmpegPath, Args: args, Timeout: a.render.CommandTimeout}
	})
	if err != nil {
		return err
	}
	if !mediatool.NonEmpty(tmp) {
		return errors.New("ffmpeg produced no file")
	}
	return os.Rename(tmp, target)
}
