package types

import "time"

// Narrative roles assigned to accepted clip candidates
const (
	RoleHook  = "hook"
	RoleMeat  = "meat"
	RoleOutro = "outro"
)

// Roles lists every valid narrative role
var Roles = []string{RoleHook, RoleMeat, RoleOutro}

// Narration slots, in the order they are spoken
const (
	SlotContext   = "context"
	SlotBridge    = "bridge"
	SlotSynthesis = "synthesis"
	SlotOutro     = "outro"
)

// Slots lists every narration slot
var Slots = []string{SlotContext, SlotBridge, SlotSynthesis, SlotOutro}

// Discovery outcomes
const (
	DiscoveryFound      = "found"       // new videos were listed
	DiscoveryFallback   = "fallback"    // every source failed or was empty
	DiscoveryNothingNew = "nothing_new" // sources answered but every video was already used
)

// Topics is the fixed topic vocabulary for clip candidates
var Topics = []string{"mining", "energy", "markets", "policy", "technology", "general"}

// SourceVideo is a candidate video found by discovery
type SourceVideo struct {
	Platform    string    `json:"platform"` // youtube | reddit | fallback
	ChannelID   string    `json:"channel_id"`
	ChannelName string    `json:"channel_name"`
	VideoID     string    `json:"video_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// IsFallback reports whether the video was synthesized by discovery
func (v SourceVideo) IsFallback() bool {
	return v.Platform == "fallback"
}

// RawFootage is the local media file for one SourceVideo
type RawFootage struct {
	VideoID     string `json:"video_id"`
	Path        string `json:"path"`
	OK          bool   `json:"ok"`
	Placeholder bool   `json:"placeholder"`
	Reason      string `json:"reason,omitempty"` // why a real video got a placeholder
}

// FailedItem records why one unit of work failed
type FailedItem struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// TranscriptSegment is one timestamped span of speech
type TranscriptSegment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// ClipCandidate is a scored window of a source video
type ClipCandidate struct {
	Start   float64 `json:"start"`
	End     float64 `json:"end"`
	Score   float64 `json:"score"`
	Topic   string  `json:"topic"`
	Excerpt string  `json:"excerpt"`
	Role    string  `json:"role"`
}

// Duration returns the window length in seconds
func (c ClipCandidate) Duration() float64 {
	return c.End - c.Start
}

// SelectedClip ties a candidate to the footage it was cut from
type SelectedClip struct {
	VideoID     string        `json:"video_id"`
	Title       string        `json:"title"`
	ChannelName string        `json:"channel_name"`
	SourcePath  string        `json:"source_path"`
	Candidate   ClipCandidate `json:"candidate"`
}

// NarrationScript maps slot name to spoken text
type NarrationScript map[string]string

// AudioBlock maps slot name to a local audio file
type AudioBlock map[string]string

// TimelineEntry is one intermediate media file in concatenation order
type TimelineEntry struct {
	Kind  string `json:"kind"` // narration | clip | card | brand
	Label string `json:"label"`
	Path  string `json:"path"`
}

// MissingAsset is a required local file that preflight could not find
type MissingAsset struct {
	Kind string `json:"kind"` // background | clip | audio
	Path string `json:"path"`
}

// DroppedStep is a timeline entry left out because its render failed
type DroppedStep struct {
	Kind   string `json:"kind"`
	Label  string `json:"label"`
	Reason string `json:"reason"`
}

// StageResult is the common outcome record of every stage
type StageResult struct {
	Stage      string    `json:"stage"`
	OK         bool      `json:"ok"`
	Message    string    `json:"message"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// IngestResult holds discovery and acquisition output
type IngestResult struct {
	StageResult
	Videos         []SourceVideo `json:"videos"`
	Footage        []RawFootage  `json:"footage"`
	Failed         []FailedItem  `json:"failed"`
	Discovery      string        `json:"discovery"` // found | fallback | nothing_new
	FallbackVideos bool          `json:"fallback_videos"`
}

// VideoAnalysis is the scorer output for one video
type VideoAnalysis struct {
	VideoID          string          `json:"video_id"`
	TranscriptSource string          `json:"transcript_source"` // assemblyai | whisper | subtitles | none
	SegmentCount     int             `json:"segment_count"`
	Candidates       []ClipCandidate `json:"candidates"`
	Advisory         string          `json:"advisory"` // applied | rejected | skipped
	TranscriptErrors []string        `json:"transcript_errors,omitempty"`
}

// AnalyzeResult holds per-video analyses and the reel clip list
type AnalyzeResult struct {
	StageResult
	Videos []VideoAnalysis `json:"videos"`
	Clips  []SelectedClip  `json:"clips"`
}

// NarrateResult holds narration text and audio
type NarrateResult struct {
	StageResult
	Script        NarrationScript `json:"script"`
	Audio         AudioBlock      `json:"audio"`
	FallbackSlots []string        `json:"fallback_slots,omitempty"`
	SilentSlots   []string        `json:"silent_slots,omitempty"`
	TTSFailures   []FailedItem    `json:"tts_failures,omitempty"`
}

// AssembleResult holds the rendered reel or the reason it was rejected
type AssembleResult struct {
	StageResult
	OutputPath        string          `json:"output_path,omitempty"`
	Timeline          []TimelineEntry `json:"timeline,omitempty"`
	MissingAssets     []MissingAsset  `json:"missing_assets,omitempty"`
	Dropped           []DroppedStep   `json:"dropped,omitempty"`
	ValidationFailure string          `json:"validation_failure,omitempty"`
	SizeBytes         int64           `json:"size_bytes,omitempty"`
	DurationSec       float64         `json:"duration_sec,omitempty"`
	Normalized        bool            `json:"normalized"`
	Encoders          []string        `json:"encoders,omitempty"`
}

// PipelineRunReport is the write-once record of one run
type PipelineRunReport struct {
	RunID       string          `json:"run_id"`
	Timestamp   time.Time       `json:"timestamp"`
	RunDir      string          `json:"run_dir"`
	ResumedFrom string          `json:"resumed_from,omitempty"` // first stage rerun by a resume
	Ingest      *IngestResult   `json:"ingest,omitempty"`
	Analyze     *AnalyzeResult  `json:"analyze,omitempty"`
	Narrate     *NarrateResult  `json:"narrate,omitempty"`
	Assemble    *AssembleResult `json:"assemble,omitempty"`
	Skipped     []string        `json:"skipped,omitempty"`
	OutputPath  string          `json:"output_path,omitempty"`
	OK          bool            `json:"ok"`
}
