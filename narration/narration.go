package narration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"highlight-reel-pipeline/config"
	"highlight-reel-pipeline/llm"
	"highlight-reel-pipeline/mediatool"
	"highlight-reel-pipeline/types"
)

const systemPrompt = `You write short spoken narration for a daily news highlight reel.
Plain, confident broadcast English. No emojis, no hashtags, no stage directions.

You MUST respond with ONLY a JSON object with exactly these string keys:
- "context": opens the reel, frames the day in one or two sentences
- "bridge": follows the first clip and leads into the second
- "synthesis": follows the second clip and ties the moments together
- "outro": closes the reel and invites viewers back tomorrow`

// FallbackPhrases are spoken when text generation fails for a slot
var FallbackPhrases = types.NarrationScript{
	types.SlotContext:   "Here are today's most important moments from across the industry.",
	types.SlotBridge:    "That sets the stage. Here is the next key moment.",
	types.SlotSynthesis: "Taken together, these moments point to a shifting landscape.",
	types.SlotOutro:     "That's the highlight reel for today. Come back tomorrow for the next update.",
}

// Generator is the text-generation collaborator
type Generator interface {
	Generate(ctx context.Context, prompt string, opts llm.Options) string
}

// Synthesizer renders one slot to audio and names the engine that did it
type Synthesizer interface {
	Synthesize(ctx context.Context, text, outPath string) (string, error)
}

// Composer writes the narration script and renders each slot to audio
type Composer struct {
	cfg    config.NarrationConfig
	gen    Generator
	tts    Synthesizer
	runner mediatool.Runner
	ffmpeg string
	cmdTTL time.Duration
	llmCfg config.LLMConfig
	log    *logrus.Entry
	now    func() time.Time
}

// New creates a new Composer
func New(cfg *config.Config, gen Generator, tts Synthesizer, runner mediatool.Runner, log *logrus.Entry) *Composer {
	return &Composer{
		cfg:    cfg.Narration,
		gen:    gen,
		tts:    tts,
		runner: runner,
		ffmpeg: cfg.Render.FFmpegPath,
		cmdTTL: cfg.Render.CommandTimeout,
		llmCfg: cfg.LLM,
		log:    log,
		now:    time.Now,
	}
}

// Run composes the script for clips and writes one audio file per slot into audioDir
func (c *Composer) Run(ctx context.Context, clips []types.SelectedClip, audioDir string) types.NarrateResult {
	res := types.NarrateResult{StageResult: types.StageResult{Stage: "narrate", StartedAt: c.now()}}

	brief := c.loadContext()
	res.Script, res.FallbackSlots = c.Compose(ctx, clips, brief)
	if len(res.FallbackSlots) > 0 {
		c.log.Warnf("⚠️  fallback narration for %v", res.FallbackSlots)
	}

	var err error
	res.Audio, res.SilentSlots, res.TTSFailures, err = c.Synthesize(ctx, res.Script, audioDir)
	res.FinishedAt = c.now()
	if err != nil {
		res.Message = err.Error()
		return res
	}
	res.OK = true
	res.Message = fmt.Sprintf("%d slot(s), %d fallback text, %d silent", len(res.Audio), len(res.FallbackSlots), len(res.SilentSlots))
	c.log.Infof("✅ narration ready: %s", res.Message)
	return res
}

// Compose returns a script with every slot filled and within the word budget,
// plus the slots that had to use their fixed fallback phrase.
func (c *Composer) Compose(ctx context.Context, clips []types.SelectedClip, brief string) (types.NarrationScript, []string) {
	generated := map[string]string{}
	if c.gen != nil {
		raw := c.gen.Generate(ctx, buildPrompt(clips, brief, c.cfg.MaxWords), llm.Options{
			System:      systemPrompt,
			Temperature: c.llmCfg.Temperature,
			MaxTokens:   c.llmCfg.MaxTokens,
			JSON:        true,
		})
		if raw != "" {
			if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &generated); err != nil {
				c.log.Warnf("⚠️  unparsable narration response: %v", err)
				generated = map[string]string{}
			}
		}
	}

	script := make(types.NarrationScript, len(types.Slots))
	var fallback []string
	for _, slot := range types.Slots {
		text := strings.TrimSpace(generated[slot])
		if text == "" {
			text = FallbackPhrases[slot]
			fallback = append(fallback, slot)
		}
		script[slot] = Truncate(text, c.cfg.MaxWords)
	}
	return script, fallback
}

// Synthesize renders every slot. A slot whose TTS fails gets silent audio,
// so the returned block always covers the whole script. The TTS failure of
// each silent slot is returned with its reason.
func (c *Composer) Synthesize(ctx context.Context, script types.NarrationScript, audioDir string) (types.AudioBlock, []string, []types.FailedItem, error) {
	if err := os.MkdirAll(audioDir, 0755); err != nil {
		return nil, nil, nil, fmt.Errorf("audio dir: %w", err)
	}
	stamp := c.now().Format("20060102_150405.000")
	audio := make(types.AudioBlock, len(script))
	var silent []string
	var ttsFailures []types.FailedItem
	var errs []error

	for _, slot := range types.Slots {
		text, ok := script[slot]
		if !ok {
			continue
		}
		out := filepath.Join(audioDir, fmt.Sprintf("%s_%s.mp3", slot, stamp))

		reason := "no tts engine configured"
		if c.tts != nil {
			engine, err := c.tts.Synthesize(ctx, text, out)
			if err == nil && mediatool.NonEmpty(out) {
				c.log.Debugf("%s voiced by %s", slot, engine)
				audio[slot] = out
				continue
			}
			if err == nil {
				err = fmt.Errorf("%s produced no audio", engine)
			}
			reason = err.Error()
			c.log.Warnf("⚠️  tts failed for %s, using silence: %v", slot, err)
		}
		ttsFailures = append(ttsFailures, types.FailedItem{ID: slot, Reason: reason})

		path, err := mediatool.SilentAudio(ctx, c.runner, c.ffmpeg, out, c.cfg.SilentSeconds, c.cmdTTL)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", slot, err))
			continue
		}
		audio[slot] = path
		silent = append(silent, slot)
	}
	return audio, silent, ttsFailures, errors.Join(errs...)
}

func (c *Composer) loadContext() string {
	if c.cfg.ContextFile == "" {
		return ""
	}
	data, err := os.ReadFile(c.cfg.ContextFile)
	if err != nil {
		c.log.Debugf("no narration context: %v", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}

func buildPrompt(clips []types.SelectedClip, brief string, maxWords int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write narration for a highlight reel. Each value must be at most %d words.\n\n", maxWords)
	if brief != "" {
		fmt.Fprintf(&b, "Today's brief:\n%s\n\n", brief)
	}
	// only the first two clips frame the bridge and synthesis slots
	for i, clip := range clips {
		if i == 2 {
			break
		}
		fmt.Fprintf(&b, "Clip %d: %q from %s (topic: %s)\nExcerpt: %s\n\n",
			i+1, clip.Title, clip.ChannelName, clip.Candidate.Topic, clip.Candidate.Excerpt)
	}
	b.WriteString(`Respond as {"context":"...","bridge":"...","synthesis":"...","outro":"..."}`)
	return b.String()
}

// Truncate keeps at most maxWords words
func Truncate(text string, maxWords int) string {
	words := strings.Fields(text)
	if maxWords <= 0 || len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ")
}
