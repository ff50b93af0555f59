package assembler

import (
	"context"
	"fmt"
	"strings"

	"highlight-reel-pipeline/mediatool"
)

const loudnormFilter = "loudnorm=I=-16:TP=-1.5:LRA=11"

// audioArgs keeps every intermediate on the same audio layout so the
// concat demuxer can join them.
var audioArgs = []string{"-c:a", "aac", "-b:a", "160k", "-ar", "44100", "-ac", "2"}

func (a *Assembler) fitFilter() string {
	w, h := a.cfg.Width, a.cfg.Height
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=decrease,pad=%d:%d:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=%d", w, h, w, h, a.cfg.FPS)
}

func (a *Assembler) coverFilter() string {
	w, h := a.cfg.Width, a.cfg.Height
	return fmt.Sprintf("scale=%d:%d:force_original_aspect_ratio=increase,crop=%d:%d,setsar=1,fps=%d", w, h, w, h, a.cfg.FPS)
}

// encode runs one ffmpeg invocation under the encoder policy and records
// which encoder produced it.
func (a *Assembler) encode(ctx context.Context, op string, build func(enc mediatool.Encoder) []string) error {
	_, enc, err := a.encoders.Run(ctx, a.runner, op, func(enc mediatool.Encoder) mediatool.Command {
		return mediatool.Command{Name: a.cfg.FFmpegPath, Args: build(enc), Timeout: a.cfg.CommandTimeout}
	})
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.used[enc.Name] = true
	a.mu.Unlock()
	return nil
}

func (a *Assembler) renderStep(ctx context.Context, s Step) error {
	switch s.Entry.Kind {
	case KindClip:
		return a.renderClip(ctx, s)
	case KindCard:
		return a.renderCard(ctx, s)
	case KindNarration:
		return a.renderNarration(ctx, s)
	case KindBrand:
		return a.renderBrand(ctx, s)
	}
	return fmt.Errorf("unknown timeline kind %q", s.Entry.Kind)
}

// renderClip trims the candidate window out of the source footage
func (a *Assembler) renderClip(ctx context.Context, s Step) error {
	c := s.Clip.Candidate
	return a.encode(ctx, "trim "+s.Entry.Label, func(enc mediatool.Encoder) []string {
		args := []string{"-y",
			"-ss", fmt.Sprintf("%.3f", c.Start),
			"-i", s.Clip.SourcePath,
			"-t", fmt.Sprintf("%.3f", c.Duration()),
			"-vf", a.fitFilter(),
		}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, "-movflags", "+faststart", s.Entry.Path)
	})
}

// renderCard draws the next clip's title and the brand caption over the
// background, fading in and out.
func (a *Assembler) renderCard(ctx context.Context, s Step) error {
	d := a.cfg.CardSeconds
	fade := 0.5
	if d < 2*fade {
		fade = d / 2
	}
	font := ""
	if a.cfg.FontFile != "" {
		font = fmt.Sprintf("fontfile='%s':", mediatool.EscapeDrawtext(a.cfg.FontFile))
	}
	filter := strings.Join([]string{
		a.coverFilter(),
		fmt.Sprintf("drawtext=%stext='%s':fontcolor=white:fontsize=%d:x=(w-tw)/2:y=(h/2)-th-12:box=1:boxcolor=black@0.5:boxborderw=12",
			font, mediatool.EscapeDrawtext(s.Title), a.cfg.Height/14),
		fmt.Sprintf("drawtext=%stext='%s':fontcolor=white@0.85:fontsize=%d:x=(w-tw)/2:y=(h/2)+24",
			font, mediatool.EscapeDrawtext(a.cfg.BrandCaption), a.cfg.Height/24),
		fmt.Sprintf("fade=t=in:st=0:d=%.2f", fade),
		fmt.Sprintf("fade=t=out:st=%.2f:d=%.2f", d-fade, fade),
	}, ",")
	secs := fmt.Sprintf("%.2f", d)
	return a.encode(ctx, "card "+s.Entry.Label, func(enc mediatool.Encoder) []string {
		args := []string{"-y",
			"-loop", "1", "-t", secs, "-i", a.cfg.BackgroundImage,
			"-f", "lavfi", "-t", secs, "-i", "anullsrc=r=44100:cl=stereo",
			"-vf", filter,
		}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, "-shortest", s.Entry.Path)
	})
}

// renderNarration loops the background for as long as the audio runs
func (a *Assembler) renderNarration(ctx context.Context, s Step) error {
	return a.encode(ctx, "narration "+s.Entry.Label, func(enc mediatool.Encoder) []string {
		args := []string{"-y",
			"-loop", "1", "-i", a.cfg.BackgroundImage,
			"-i", s.Audio,
			"-vf", a.coverFilter(),
		}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, "-shortest", s.Entry.Path)
	})
}

// renderBrand re-encodes the branding tag to the reel's format
func (a *Assembler) renderBrand(ctx context.Context, s Step) error {
	return a.encode(ctx, "brand tag", func(enc mediatool.Encoder) []string {
		args := []string{"-y", "-i", s.Brand, "-vf", a.fitFilter()}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, s.Entry.Path)
	})
}

func (a *Assembler) concat(ctx context.Context, list, out string) error {
	return a.encode(ctx, "concat", func(enc mediatool.Encoder) []string {
		args := []string{"-y", "-f", "concat", "-safe", "0", "-i", list}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, "-movflags", "+faststart", out)
	})
}

func (a *Assembler) normalize(ctx context.Context, in, out string) error {
	return a.encode(ctx, "loudnorm", func(enc mediatool.Encoder) []string {
		args := []string{"-y", "-i", in, "-af", loudnormFilter}
		args = append(args, enc.Args...)
		args = append(args, audioArgs...)
		return append(args, "-movflags", "+faststart", out)
	})
}
