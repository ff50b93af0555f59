package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/types"
)

func (o *Orchestrator) ingest(ctx context.Context, log *logrus.Entry) *types.IngestResult {
	res := &types.IngestResult{StageResult: types.StageResult{Stage: StageIngest, StartedAt: o.now()}}
	window := time.Duration(o.cfg.Discovery.LookbackHours) * time.Hour

	res.Videos, res.Discovery = o.Discovery.Run(ctx, window)
	res.FallbackVideos = res.Discovery == types.DiscoveryFallback
	if len(res.Videos) > 0 {
		res.Footage, res.Failed = o.Acquisition.Run(ctx, res.Videos)
	}
	res.FinishedAt = o.now()

	placeholders := 0
	for _, f := range res.Footage {
		if f.Placeholder {
			placeholders++
		}
	}
	res.OK = len(res.Footage) > 0
	res.Message = fmt.Sprintf("%d video(s), %d footage file(s) (%d placeholder), %d failed",
		len(res.Videos), len(res.Footage), placeholders, len(res.Failed))
	switch res.Discovery {
	case types.DiscoveryFallback:
		res.Message += ", partner fallback"
	case types.DiscoveryNothingNew:
		res.Message = "nothing new: every discovered video was already used in a reel"
	}
	if res.OK {
		log.Infof("✅ %s", res.Message)
	} else {
		log.Warnf("⚠️  %s", res.Message)
	}
	return res
}

func (o *Orchestrator) analyze(ctx context.Context, ingest *types.IngestResult, log *logrus.Entry) *types.AnalyzeResult {
	res := &types.AnalyzeResult{StageResult: types.StageResult{Stage: StageAnalyze, StartedAt: o.now()}}

	videos := make(map[string]types.SourceVideo, len(ingest.Videos))
	for _, v := range ingest.Videos {
		videos[v.VideoID] = v
	}

	for _, f := range ingest.Footage {
		if !f.OK {
			continue
		}
		v := videos[f.VideoID]
		segs, source, transcriptErrs := o.Transcripts.Transcript(ctx, v, f)
		cands, advisory := o.Scorer.Select(ctx, segs, v.Title)
		res.Videos = append(res.Videos, types.VideoAnalysis{
			VideoID:          f.VideoID,
			TranscriptSource: source,
			SegmentCount:     len(segs),
			Candidates:       cands,
			Advisory:         advisory,
			TranscriptErrors: transcriptErrs,
		})
		log.Infof("%s: %d segment(s) via %s, %d candidate(s), advisory %s", f.VideoID, len(segs), source, len(cands), advisory)
	}

	res.Clips = Interleave(res.Videos, videos, ingest.Footage, o.cfg.Render.MaxClips)
	res.FinishedAt = o.now()
	res.OK = len(res.Clips) > 0
	res.Message = fmt.Sprintf("%d video(s) analyzed, %d clip(s) selected", len(res.Videos), len(res.Clips))
	if res.OK {
		log.Infof("✅ %s", res.Message)
	} else {
		log.Warnf("⚠️  %s", res.Message)
	}
	return res
}

// Interleave builds the reel's clip list round-robin by rank: every video's
// best candidate first, then every second-best, and so on, up to maxClips.
func Interleave(analyses []types.VideoAnalysis, videos map[string]types.SourceVideo, footage []types.RawFootage, maxClips int) []types.SelectedClip {
	paths := make(map[string]string, len(footage))
	for _, f := range footage {
		paths[f.VideoID] = f.Path
	}

	var clips []types.SelectedClip
	for rank := 0; ; rank++ {
		added := false
		for _, a := range analyses {
			if rank >= len(a.Candidates) {
				continue
			}
			if maxClips > 0 && len(clips) == maxClips {
				return clips
			}
			v := videos[a.VideoID]
			clips = append(clips, types.SelectedClip{
				VideoID:     a.VideoID,
				Title:       v.Title,
				ChannelName: v.ChannelName,
				SourcePath:  paths[a.VideoID],
				Candidate:   a.Candidates[rank],
			})
			added = true
		}
		if !added {
			return clips
		}
	}
}
