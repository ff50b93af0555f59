package scorer

import (
	"context"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/llm"
	"highlight-reel-pipeline/types"
)

// Window padding around a scored segment, in seconds
const (
	padBefore = 3.0
	padAfter  = 4.0
)

// Defaults used when the caller passes zero values
const (
	DefaultClipSeconds = 60.0
	DefaultK           = 3
)

// Generator is the text-generation collaborator used for the advisory pass
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) string
}

// Advisory pass outcomes recorded per video
const (
	AdvisorySkipped  = "skipped"
	AdvisoryApplied  = "applied"
	AdvisoryRejected = "rejected"
)

// Scorer ranks transcript segments into non-overlapping clip windows
type Scorer struct {
	ClipSeconds float64
	K           int
	Advisor     Generator // nil disables the advisory pass
	log         *logrus.Entry
}

// New creates a Scorer from analysis settings
func New(cfg config.AnalysisConfig, advisor Generator, log *logrus.Entry) *Scorer {
	s := &Scorer{ClipSeconds: cfg.ClipSeconds, K: cfg.ClipsPerVideo, log: log}
	if cfg.Advisory {
		s.Advisor = advisor
	}
	return s
}

// Select returns at most K candidates for one video and the advisory outcome
func (s *Scorer) Select(ctx context.Context, segs []types.TranscriptSegment, title string) ([]types.ClipCandidate, string) {
	cands := Rank(segs, s.ClipSeconds, s.K)
	if len(cands) == 0 {
		if s.log != nil {
			s.log.Warnf("⚠️  no scorable transcript for %q, using placeholder windows", title)
		}
		return Placeholders(s.K), AdvisorySkipped
	}
	if s.Advisor == nil || len(cands) < 2 {
		return cands, AdvisorySkipped
	}

	raw := s.Advisor.Generate(ctx, advisoryPrompt(cands, title), llm.Options{
		System:      advisorySystem,
		Temperature: 0.2,
		MaxTokens:   200,
		JSON:        true,
	})
	if raw == "" {
		return cands, AdvisorySkipped
	}
	refined, ok := ApplyAdvisory(cands, raw)
	if !ok {
		if s.log != nil {
			s.log.Warnf("⚠️  advisory reorder for %q rejected, keeping heuristic order", title)
		}
		return cands, AdvisoryRejected
	}
	return refined, AdvisoryApplied
}

// Rank scores every non-empty segment, then greedily accepts the best padded
// windows that do not overlap an accepted one, stopping at k.
func Rank(segs []types.TranscriptSegment, clipSeconds float64, k int) []types.ClipCandidate {
	if clipSeconds <= 0 {
		clipSeconds = DefaultClipSeconds
	}
	if k <= 0 {
		k = DefaultK
	}

	pool := make([]types.ClipCandidate, 0, len(segs))
	for _, seg := range segs {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		start, end := window(seg, clipSeconds)
		pool = append(pool, types.ClipCandidate{
			Start:   start,
			End:     end,
			Score:   ScoreText(text),
			Topic:   Topic(text),
			Excerpt: excerpt(text, 240),
		})
	}

	sort.SliceStable(pool, func(i, j int) bool {
		if pool[i].Score != pool[j].Score {
			return pool[i].Score > pool[j].Score
		}
		return pool[i].Start < pool[j].Start
	})

	accepted := make([]types.ClipCandidate, 0, k)
	for _, c := range pool {
		if len(accepted) == k {
			break
		}
		if overlapsAny(c, accepted) {
			continue
		}
		accepted = append(accepted, c)
	}
	AssignRoles(accepted)
	return accepted
}

// window pads a segment to [start-3, end+4], never past start+clipSeconds
func window(seg types.TranscriptSegment, clipSeconds float64) (float64, float64) {
	start := seg.Start - padBefore
	if start < 0 {
		start = 0
	}
	end := seg.End + padAfter
	if limit := seg.Start + clipSeconds; end > limit {
		end = limit
	}
	if end <= start {
		end = start + padAfter
	}
	return start, end
}

func overlapsAny(c types.ClipCandidate, accepted []types.ClipCandidate) bool {
	for _, a := range accepted {
		if c.Start < a.End && a.Start < c.End {
			return true
		}
	}
	return false
}

// AssignRoles labels candidates by position: hook first, outro last, meat between
func AssignRoles(cands []types.ClipCandidate) {
	for i := range cands {
		switch {
		case i == 0:
			cands[i].Role = types.RoleHook
		case i == len(cands)-1:
			cands[i].Role = types.RoleOutro
		default:
			cands[i].Role = types.RoleMeat
		}
	}
}

// placeholderWindows cover 8-110s of the source
var placeholderWindows = []types.ClipCandidate{
	{Start: 8, End: 38, Score: 0.3},
	{Start: 44, End: 74, Score: 0.25},
	{Start: 80, End: 110, Score: 0.2},
}

// Placeholders returns fixed windows for footage with no usable transcript
func Placeholders(k int) []types.ClipCandidate {
	if k <= 0 || k > len(placeholderWindows) {
		k = len(placeholderWindows)
	}
	out := make([]types.ClipCandidate, k)
	for i := range out {
		out[i] = placeholderWindows[i]
		out[i].Topic = "general"
		out[i].Excerpt = "placeholder"
	}
	AssignRoles(out)
	return out
}

// excerpt shortens s to at most n bytes, preferring a word boundary and
// never splitting a rune
func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := strings.LastIndex(s[:n], " ")
	if cut <= 0 {
		cut = n
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
	}
	return s[:cut] + "…"
}
