// Package pipeline runs ingest, analyze, narrate and assemble once, in
// order, and records every stage result in a PipelineRunReport.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/logger"
	"highlight-reel-pipeline/types"
)

// Stage names, in execution order
const (
	StageIngest   = "ingest"
	StageAnalyze  = "analyze"
	StageNarrate  = "narrate"
	StageAssemble = "assemble"
)

var stageOrder = []string{StageIngest, StageAnalyze, StageNarrate, StageAssemble}

// Artifact file written by each stage into the run directory
var artifacts = map[string]string{
	StageIngest:   "ingest.json",
	StageAnalyze:  "analysis.json",
	StageNarrate:  "narration.json",
	StageAssemble: "assembly.json",
}

type Discoverer interface {
	Run(ctx context.Context, window time.Duration) ([]types.SourceVideo, string)
	MarkUsed(ctx context.Context, videos []types.SourceVideo)
}

type Acquirer interface {
	Run(ctx context.Context, videos []types.SourceVideo) ([]types.RawFootage, []types.FailedItem)
}

type Transcriber interface {
	Transcript(ctx context.Context, video types.SourceVideo, footage types.RawFootage) ([]types.TranscriptSegment, string, []string)
}

type Selector interface {
	Select(ctx context.Context, segs []types.TranscriptSegment, title string) ([]types.ClipCandidate, string)
}

type Narrator interface {
	Run(ctx context.Context, clips []types.SelectedClip, audioDir string) types.NarrateResult
}

type Assembler interface {
	Run(ctx context.Context, clips []types.SelectedClip, audio types.AudioBlock, runDir string) types.AssembleResult
}

// Orchestrator wires the stage components together
type Orchestrator struct {
	Discovery   Discoverer
	Acquisition Acquirer
	Transcripts Transcriber
	Scorer      Selector
	Narration   Narrator
	Assembly    Assembler
	Sinks       []Sink

	cfg   *config.Config
	log   *logger.Logger
	now   func() time.Time
	newID func() string
}

// New creates a new Orchestrator. Stage components are set on the returned value.
func New(cfg *config.Config, log *logger.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.NewString()[:8] },
	}
}

// Run executes one full pass in a fresh run directory. The returned error
// is set only when the run could not start; stage failures are in the report.
func (o *Orchestrator) Run(ctx context.Context) (*types.PipelineRunReport, error) {
	report := o.newReport()
	report.RunDir = filepath.Join(o.cfg.Run.OutputDir, report.Timestamp.Format("20060102_150405")+"_"+report.RunID)
	if err := os.MkdirAll(report.RunDir, 0755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	o.execute(ctx, report, 0)
	return report, nil
}

// Resume reruns a previous run from stage onwards, loading the artifacts of
// the stages before it from runDir. The resumed run's report is written
// under its own name so the original report is never overwritten.
func (o *Orchestrator) Resume(ctx context.Context, runDir, stage string) (*types.PipelineRunReport, error) {
	start := -1
	for i, s := range stageOrder {
		if s == stage {
			start = i
		}
	}
	if start < 0 {
		return nil, fmt.Errorf("unknown stage %q (want one of %s)", stage, strings.Join(stageOrder, ", "))
	}

	report := o.newReport()
	report.RunDir = runDir
	report.ResumedFrom = stage
	for _, s := range stageOrder[:start] {
		if err := o.load(report, s); err != nil {
			return nil, fmt.Errorf("resume from %s: %w", stage, err)
		}
	}
	o.execute(ctx, report, start)
	return report, nil
}

func (o *Orchestrator) newReport() *types.PipelineRunReport {
	return &types.PipelineRunReport{RunID: o.newID(), Timestamp: o.now().UTC()}
}

func (o *Orchestrator) execute(ctx context.Context, report *types.PipelineRunReport, start int) {
	log := o.log.WithRun(report.RunID)
	log.Infof("🎬 highlight reel run %s starting in %s", report.RunID, report.RunDir)

	for i := start; i < len(stageOrder); i++ {
		stage := stageOrder[i]
		if err := ctx.Err(); err != nil {
			report.Skipped = append(report.Skipped, stageOrder[i:]...)
			log.Warnf("⚠️  run cancelled before %s: %v", stage, err)
			break
		}
		log.Infof("━━━ %s ━━━", strings.ToUpper(stage))
		stageLog := log.Stage(stage)

		switch stage {
		case StageIngest:
			report.Ingest = o.ingest(ctx, stageLog)
			o.save(report.RunDir, stage, report.Ingest)
		case StageAnalyze:
			report.Analyze = o.analyze(ctx, report.Ingest, stageLog)
			o.save(report.RunDir, stage, report.Analyze)
		case StageNarrate:
			res := o.Narration.Run(ctx, report.Analyze.Clips, filepath.Join(report.RunDir, "audio"))
			report.Narrate = &res
			o.save(report.RunDir, stage, report.Narrate)
		case StageAssemble:
			res := o.Assembly.Run(ctx, report.Analyze.Clips, report.Narrate.Audio, report.RunDir)
			report.Assemble = &res
			o.save(report.RunDir, stage, report.Assemble)
		}
	}

	report.OK = report.Assemble != nil && report.Assemble.OK
	if report.OK {
		report.OutputPath = report.Assemble.OutputPath
		if o.Discovery != nil && report.Ingest != nil {
			o.Discovery.MarkUsed(ctx, report.Ingest.Videos)
		}
	}
	o.publish(ctx, report, log)
}

func (o *Orchestrator) publish(ctx context.Context, report *types.PipelineRunReport, log *logger.Logger) {
	path := filepath.Join(report.RunDir, ReportName(report))
	if err := writeJSON(path, report); err != nil {
		log.WithError(err).Error("could not write run report")
	}
	// sinks still get the report after cancellation
	sinkCtx := context.WithoutCancel(ctx)
	for _, s := range o.Sinks {
		if err := s.Publish(sinkCtx, report); err != nil {
			log.WithError(err).Warnf("⚠️  report sink %s failed", s.Name())
		}
	}
	if report.OK {
		log.Infof("✅ run complete: %s", report.OutputPath)
		return
	}
	reason := "cancelled"
	if report.Assemble != nil {
		reason = report.Assemble.Message
	}
	log.Errorf("❌ run failed: %s (report: %s)", reason, path)
}

func (o *Orchestrator) save(runDir, stage string, v any) {
	if err := writeJSON(filepath.Join(runDir, artifacts[stage]), v); err != nil {
		o.log.WithError(err).Warnf("⚠️  could not save %s artifact", stage)
	}
}

func (o *Orchestrator) load(report *types.PipelineRunReport, stage string) error {
	path := filepath.Join(report.RunDir, artifacts[stage])
	var err error
	switch stage {
	case StageIngest:
		report.Ingest = &types.IngestResult{}
		err = readJSON(path, report.Ingest)
	case StageAnalyze:
		report.Analyze = &types.AnalyzeResult{}
		err = readJSON(path, report.Analyze)
	case StageNarrate:
		report.Narrate = &types.NarrateResult{}
		err = readJSON(path, report.Narrate)
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", artifacts[stage], err)
	}
	return nil
}
