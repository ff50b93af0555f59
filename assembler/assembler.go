// Package assembler renders the highlight reel: preflight, per-unit
// intermediate renders, playlist concatenation, loudness normalization and
// validation of the final file.
package assembler

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

// ErrMissingAssets means preflight found required inputs absent
var ErrMissingAssets = errors.New("missing required assets")

// OutputName is the reel's file name inside the run directory
const OutputName = "highlight_reel.mp4"

// Assembler turns clips and narration audio into one validated reel
type Assembler struct {
	cfg      config.RenderConfig
	runner   mediatool.Runner
	encoders *mediatool.EncoderPolicy
	prober   *mediatool.Prober
	log      *logrus.Entry
	now      func() time.Time

	mu   sync.Mutex
	used map[string]bool
}

// New creates a new Assembler
func New(cfg config.RenderConfig, runner mediatool.Runner, encoders *mediatool.EncoderPolicy, log *logrus.Entry) *Assembler {
	return &Assembler{
		cfg:      cfg,
		runner:   runner,
		encoders: encoders,
		prober:   &mediatool.Prober{Runner: runner, Path: cfg.FFprobePath, Timeout: cfg.CommandTimeout},
		log:      log,
		now:      time.Now,
		used:     make(map[string]bool),
	}
}

// BrandTag returns the first configured branding clip that exists locally
func (a *Assembler) BrandTag() string {
	for _, p := range a.cfg.BrandingTags {
		if localFile(p) {
			return p
		}
	}
	return ""
}

// Run renders the reel into runDir. Missing inputs fail before any command
// runs; a render that does not validate is deleted and reported.
func (a *Assembler) Run(ctx context.Context, clips []types.SelectedClip, audio types.AudioBlock, runDir string) types.AssembleResult {
	res := types.AssembleResult{StageResult: types.StageResult{Stage: "assemble", StartedAt: a.now()}}
	finish := func(msg string) types.AssembleResult {
		res.Message = msg
		res.FinishedAt = a.now()
		res.Encoders = a.encoderNames()
		return res
	}

	if len(clips) > a.cfg.MaxClips {
		clips = clips[:a.cfg.MaxClips]
	}
	if missing := Preflight(a.cfg.BackgroundImage, clips, audio); len(missing) > 0 {
		res.MissingAssets = missing
		msg := fmt.Sprintf("%v: %s", ErrMissingAssets, MissingSummary(missing))
		a.log.Error(msg)
		return finish(msg)
	}
	if len(clips) == 0 {
		return finish("no clips to assemble")
	}

	workDir := filepath.Join(runDir, "assembly")
	if err := os.MkdirAll(workDir, 0755); err != nil {
		return finish(fmt.Sprintf("work dir: %v", err))
	}

	steps := Plan(clips, audio, a.BrandTag(), a.cfg.MaxClips, workDir)
	var rendered []Step
	clipCount := 0
	for _, s := range steps {
		if err := ctx.Err(); err != nil {
			return finish(fmt.Sprintf("cancelled: %v", err))
		}
		err := a.renderStep(ctx, s)
		if err == nil && !mediatool.NonEmpty(s.Entry.Path) {
			err = errors.New("render produced no file")
		}
		if err != nil {
			a.log.Warnf("⚠️  dropping %s from timeline: %v", s.Entry.Label, err)
			res.Dropped = append(res.Dropped, types.DroppedStep{Kind: s.Entry.Kind, Label: s.Entry.Label, Reason: err.Error()})
			continue
		}
		if s.Entry.Kind == KindClip {
			clipCount++
		}
		rendered = append(rendered, s)
	}
	res.Timeline = Entries(rendered)
	if clipCount == 0 {
		return finish("no clip could be rendered")
	}

	files := make([]string, len(rendered))
	for i, s := range rendered {
		files[i] = s.Entry.Path
	}
	list := filepath.Join(workDir, "concat.txt")
	if err := mediatool.WritePlaylist(list, files); err != nil {
		return finish(fmt.Sprintf("playlist: %v", err))
	}

	joined := filepath.Join(workDir, "reel_concat.mp4")
	if err := a.concat(ctx, list, joined); err != nil {
		return finish(fmt.Sprintf("concat: %v", err))
	}

	candidate := joined
	if a.cfg.Loudnorm {
		normalized := filepath.Join(workDir, "reel_loudnorm.mp4")
		if err := a.normalize(ctx, joined, normalized); err != nil || !mediatool.NonEmpty(normalized) {
			a.log.Warnf("⚠️  loudness normalization failed, keeping unnormalized render: %v", err)
		} else {
			candidate = normalized
			res.Normalized = true
		}
	}

	report, err := Validate(ctx, candidate, a.cfg.MinOutputBytes, a.prober)
	res.SizeBytes = report.SizeBytes
	if err != nil {
		res.ValidationFailure = err.Error()
		a.log.Errorf("validation failed: %v", err)
		return finish("validation failed: " + err.Error())
	}

	// only a validated file ever reaches the final name
	final := filepath.Join(runDir, OutputName)
	if err := os.Rename(candidate, final); err != nil {
		return finish(fmt.Sprintf("publish reel: %v", err))
	}
	res.OutputPath = final
	res.DurationSec = report.DurationSec
	res.OK = true
	msg := fmt.Sprintf("reel validated: %.1f MB, %.1fs, %d timeline entries",
		float64(report.SizeBytes)/(1024*1024), report.DurationSec, len(rendered))
	a.log.Infof("✅ %s", msg)
	return finish(msg)
}

func (a *Assembler) encoderNames() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	names := make([]string, 0, len(a.used))
	for n := range a.used {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// MissingSummary formats a missing-asset list for logs and messages
func MissingSummary(missing []types.MissingAsset) string {
	parts := make([]string, len(missing))
	for i, m := range missing {
		parts[i] = m.Kind + "=" + m.Path
	}
	return strings.Join(parts, ", ")
}
