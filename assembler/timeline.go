package assembler

import (
	"fmt"
	"path/filepath"

	"highlight-reel-pipeline/types"
)

// Timeline entry kinds
const (
	KindNarration = "narration"
	KindClip      = "clip"
	KindCard      = "card"
	KindBrand     = "brand"
)

// Step is one intermediate file to render and the inputs it is made from
type Step struct {
	Entry types.TimelineEntry
	Clip  *types.SelectedClip // KindClip
	Audio string              // KindNarration
	Title string              // KindCard
	Brand string              // KindBrand
}

// Plan lays out the reel in concatenation order:
//
//	[context] clip1 [bridge] card clip2 [synthesis] card ... clipN [outro] [brand]
//
// At most maxClips clips are used and no card follows the last clip.
// Intermediate paths are numbered under workDir so they sort in order.
func Plan(clips []types.SelectedClip, audio types.AudioBlock, brand string, maxClips int, workDir string) []Step {
	if maxClips > 0 && len(clips) > maxClips {
		clips = clips[:maxClips]
	}
	var steps []Step
	add := func(s Step) {
		s.Entry.Path = filepath.Join(workDir, fmt.Sprintf("%02d_%s_%s.mp4", len(steps), s.Entry.Kind, s.Entry.Label))
		steps = append(steps, s)
	}
	narrate := func(slot string) {
		if path, ok := audio[slot]; ok && path != "" {
			add(Step{Entry: types.TimelineEntry{Kind: KindNarration, Label: slot}, Audio: path})
		}
	}

	for i := range clips {
		clip := &clips[i]
		if i == 0 {
			narrate(types.SlotContext)
		}
		add(Step{Entry: types.TimelineEntry{Kind: KindClip, Label: fmt.Sprintf("clip%d", i+1)}, Clip: clip})
		switch i {
		case 0:
			narrate(types.SlotBridge)
		case 1:
			narrate(types.SlotSynthesis)
		}
		if i < len(clips)-1 {
			add(Step{Entry: types.TimelineEntry{Kind: KindCard, Label: fmt.Sprintf("card%d", i+1)}, Title: clips[i+1].Title})
		}
	}
	narrate(types.SlotOutro)
	if brand != "" {
		add(Step{Entry: types.TimelineEntry{Kind: KindBrand, Label: "tag"}, Brand: brand})
	}
	return steps
}

// Entries returns the timeline entries of steps
func Entries(steps []Step) []types.TimelineEntry {
	out := make([]types.TimelineEntry, len(steps))
	for i, s := range steps {
		out[i] = s.Entry
	}
	return out
}
