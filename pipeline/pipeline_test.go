package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/logger"
	"highlight-reel-pipeline/types"
)

type fakeDiscovery struct {
	videos  []types.SourceVideo
	outcome string
	marked  []types.SourceVideo
}

func (f *fakeDiscovery) Run(ctx context.Context, window time.Duration) ([]types.SourceVideo, string) {
	if f.outcome == "" {
		return f.videos, types.DiscoveryFound
	}
	return f.videos, f.outcome
}

func (f *fakeDiscovery) MarkUsed(ctx context.Context, videos []types.SourceVideo) {
	f.marked = append(f.marked, videos...)
}

// fakeAcquisition fails every video whose ID starts with "broken"
type fakeAcquisition struct{ calls int }

func (f *fakeAcquisition) Run(ctx context.Context, videos []types.SourceVideo) ([]types.RawFootage, []types.FailedItem) {
	f.calls++
	var out []types.RawFootage
	var failed []types.FailedItem
	for _, v := range videos {
		if strings.HasPrefix(v.VideoID, "broken") {
			failed = append(failed, types.FailedItem{ID: v.VideoID, Reason: "placeholder: exit status 1"})
			continue
		}
		out = append(out, types.RawFootage{VideoID: v.VideoID, Path: "/footage/" + v.VideoID + ".mp4", OK: true})
	}
	return out, failed
}

type fakeTranscripts struct{}

func (fakeTranscripts) Transcript(ctx context.Context, v types.SourceVideo, f types.RawFootage) ([]types.TranscriptSegment, string, []string) {
	return []types.TranscriptSegment{{Start: 0, End: 5, Text: "hello"}}, "subtitles", []string{"whisper: exit status 1"}
}

type fakeScorer struct{}

func (fakeScorer) Select(ctx context.Context, segs []types.TranscriptSegment, title string) ([]types.ClipCandidate, string) {
	return []types.ClipCandidate{
		{Start: 0, End: 30, Score: 0.9, Role: types.RoleHook},
		{Start: 40, End: 70, Score: 0.5, Role: types.RoleOutro},
	}, "skipped"
}

type fakeNarration struct{ calls int }

func (f *fakeNarration) Run(ctx context.Context, clips []types.SelectedClip, audioDir string) types.NarrateResult {
	f.calls++
	return types.NarrateResult{
		StageResult: types.StageResult{Stage: StageNarrate, OK: true},
		Audio:       types.AudioBlock{types.SlotOutro: filepath.Join(audioDir, "outro.mp3")},
	}
}

type fakeAssembly struct {
	ok    bool
	clips []types.SelectedClip
	audio types.AudioBlock
}

func (f *fakeAssembly) Run(ctx context.Context, clips []types.SelectedClip, audio types.AudioBlock, runDir string) types.AssembleResult {
	f.clips, f.audio = clips, audio
	res := types.AssembleResult{StageResult: types.StageResult{Stage: StageAssemble, OK: f.ok}}
	if f.ok {
		res.OutputPath = filepath.Join(runDir, "highlight_reel.mp4")
	} else {
		res.Message = "missing required assets: background=bg.png"
		res.MissingAssets = []types.MissingAsset{{Kind: "background", Path: "bg.png"}}
	}
	return res
}

type recordingSink struct {
	reports []*types.PipelineRunReport
	err     error
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Publish(ctx context.Context, r *types.PipelineRunReport) error {
	s.reports = append(s.reports, r)
	return s.err
}

type harness struct {
	o       *Orchestrator
	disc    *fakeDiscovery
	acq     *fakeAcquisition
	narr    *fakeNarration
	asm     *fakeAssembly
	sink    *recordingSink
	reports string
}

func newHarness(t *testing.T, assembleOK bool) *harness {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Run.OutputDir = filepath.Join(dir, "output")
	cfg.Run.ReportDir = filepath.Join(dir, "reports")

	h := &harness{
		disc: &fakeDiscovery{videos: []types.SourceVideo{
			{Platform: "youtube", VideoID: "a", Title: "A"},
			{Platform: "youtube", VideoID: "b", Title: "B"},
			{Platform: "youtube", VideoID: "broken1", Title: "Broken"},
		}},
		acq:     &fakeAcquisition{},
		narr:    &fakeNarration{},
		asm:     &fakeAssembly{ok: assembleOK},
		sink:    &recordingSink{err: errors.New("bucket offline")},
		reports: cfg.Run.ReportDir,
	}
	o := New(cfg, logger.Discard())
	o.Discovery = h.disc
	o.Acquisition = h.acq
	o.Transcripts = fakeTranscripts{}
	o.Scorer = fakeScorer{}
	o.Narration = h.narr
	o.Assembly = h.asm
	o.Sinks = []Sink{&LatestSink{Dir: cfg.Run.ReportDir}, h.sink}
	o.now = func() time.Time { return time.Date(2026, 3, 14, 6, 0, 0, 0, time.UTC) }
	o.newID = func() string { return "run00001" }
	h.o = o
	return h
}

func TestRunSuccess(t *testing.T) {
	h := newHarness(t, true)
	report, err := h.o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK || report.OutputPath == "" {
		t.Fatalf("report = %+v", report)
	}
	if filepath.Base(report.RunDir) != "20260314_060000_run00001" {
		t.Errorf("run dir = %s", report.RunDir)
	}
	for _, name := range []string{"ingest.json", "analysis.json", "narration.json", "assembly.json", ReportFile} {
		if _, err := os.Stat(filepath.Join(report.RunDir, name)); err != nil {
			t.Errorf("artifact %s: %v", name, err)
		}
	}
	var latest types.PipelineRunReport
	if err := readJSON(filepath.Join(h.reports, "latest_run.json"), &latest); err != nil || latest.RunID != "run00001" {
		t.Errorf("latest report = %+v, %v", latest, err)
	}
	if len(h.sink.reports) != 1 {
		t.Error("sink error should not stop publishing")
	}
	if len(h.disc.marked) != 3 {
		t.Errorf("marked = %v", h.disc.marked)
	}
	// round-robin: a#1, b#1, a#2, b#2
	want := []string{"a", "b", "a", "b"}
	for i, c := range h.asm.clips {
		if c.VideoID != want[i] {
			t.Errorf("clip %d from %s, want %s", i, c.VideoID, want[i])
		}
	}
	if h.asm.clips[0].SourcePath != "/footage/a.mp4" {
		t.Errorf("source = %s", h.asm.clips[0].SourcePath)
	}

	var onDisk types.PipelineRunReport
	if err := readJSON(filepath.Join(report.RunDir, ReportFile), &onDisk); err != nil {
		t.Fatal(err)
	}
	if f := onDisk.Ingest.Failed; len(f) != 1 || f[0].ID != "broken1" || f[0].Reason == "" {
		t.Errorf("ingest failures = %+v", f)
	}
	if onDisk.Ingest.Discovery != types.DiscoveryFound {
		t.Errorf("discovery = %s", onDisk.Ingest.Discovery)
	}
	if errs := onDisk.Analyze.Videos[0].TranscriptErrors; len(errs) != 1 || errs[0] != "whisper: exit status 1" {
		t.Errorf("transcript errors = %v", errs)
	}
}

func TestRunNothingNewSkipsFallback(t *testing.T) {
	h := newHarness(t, false)
	h.disc.videos, h.disc.outcome = nil, types.DiscoveryNothingNew

	report, err := h.o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.OK {
		t.Error("run without new videos reported ok")
	}
	if report.Ingest.OK || report.Ingest.FallbackVideos || report.Ingest.Discovery != types.DiscoveryNothingNew {
		t.Errorf("ingest = %+v", report.Ingest)
	}
	if !strings.Contains(report.Ingest.Message, "nothing new") {
		t.Errorf("message = %q", report.Ingest.Message)
	}
	if h.acq.calls != 0 {
		t.Error("acquisition ran with no videos")
	}
}

func TestRunAssembleFailureIsReported(t *testing.T) {
	h := newHarness(t, false)
	report, err := h.o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.OK {
		t.Fatal("ok must follow the assemble stage")
	}
	if !report.Ingest.OK || !report.Analyze.OK || !report.Narrate.OK {
		t.Error("earlier stages should still be recorded as ok")
	}

	var onDisk types.PipelineRunReport
	if err := readJSON(filepath.Join(report.RunDir, ReportFile), &onDisk); err != nil {
		t.Fatal(err)
	}
	if len(onDisk.Assemble.MissingAssets) != 1 || onDisk.Assemble.Message == "" {
		t.Errorf("assemble = %+v", onDisk.Assemble)
	}
	if len(h.disc.marked) != 0 {
		t.Error("videos marked used after a failed run")
	}
}

func TestRunCancelledBetweenStages(t *testing.T) {
	h := newHarness(t, true)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := h.o.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.OK || len(report.Skipped) != 4 {
		t.Errorf("report = %+v", report)
	}
	if h.narr.calls != 0 {
		t.Error("narration ran after cancellation")
	}
	if _, err := os.Stat(filepath.Join(report.RunDir, ReportFile)); err != nil {
		t.Errorf("cancelled run must still write its report: %v", err)
	}
}

func TestResumeFromNarrate(t *testing.T) {
	h := newHarness(t, true)
	first, err := h.o.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	h2 := newHarness(t, true)
	h2.o.newID = func() string { return "run00002" }
	report, err := h2.o.Resume(context.Background(), first.RunDir, StageNarrate)
	if err != nil {
		t.Fatal(err)
	}
	if !report.OK || report.RunID != "run00002" {
		t.Errorf("report = %+v", report)
	}
	if len(h2.asm.clips) != 4 || h2.narr.calls != 1 {
		t.Errorf("clips = %d narrate calls = %d", len(h2.asm.clips), h2.narr.calls)
	}
	if report.Ingest == nil || len(report.Ingest.Videos) != 3 {
		t.Error("ingest artifact not reloaded")
	}

	var original, resumed types.PipelineRunReport
	if err := readJSON(filepath.Join(first.RunDir, ReportFile), &original); err != nil || original.RunID != "run00001" {
		t.Errorf("original report overwritten: %+v, %v", original.RunID, err)
	}
	if err := readJSON(filepath.Join(first.RunDir, "run_report_run00002.json"), &resumed); err != nil {
		t.Fatal(err)
	}
	if resumed.RunID != "run00002" || resumed.ResumedFrom != StageNarrate {
		t.Errorf("resumed report = %s from %s", resumed.RunID, resumed.ResumedFrom)
	}
}

func TestResumeErrors(t *testing.T) {
	h := newHarness(t, true)
	if _, err := h.o.Resume(context.Background(), t.TempDir(), "render"); err == nil {
		t.Error("unknown stage accepted")
	}
	if _, err := h.o.Resume(context.Background(), t.TempDir(), StageAssemble); err == nil {
		t.Error("missing artifacts accepted")
	}
}

func TestInterleaveCapsClips(t *testing.T) {
	var analyses []types.VideoAnalysis
	for _, id := range []string{"a", "b", "c"} {
		analyses = append(analyses, types.VideoAnalysis{VideoID: id, Candidates: make([]types.ClipCandidate, 3)})
	}
	analyses[2].Candidates = analyses[2].Candidates[:1]

	clips := Interleave(analyses, nil, nil, 8)
	want := "abcabab"
	if len(clips) != 7 {
		t.Fatalf("clips = %d, want 7", len(clips))
	}
	for i, c := range clips {
		if c.VideoID != string(want[i]) {
			t.Errorf("clip %d = %s, want %c", i, c.VideoID, want[i])
		}
	}

	if got := Interleave(analyses, nil, nil, 2); len(got) != 2 {
		t.Errorf("cap 2: got %d", len(got))
	}
}
