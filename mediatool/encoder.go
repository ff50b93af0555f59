package mediatool

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Encoder is a video codec choice and its quality arguments
type Encoder struct {
	Name     string
	Hardware bool
	Args     []string
}

var (
	// NVENC is the hardware H.264 encoder
	NVENC = Encoder{
		Name:     "h264_nvenc",
		Hardware: true,
		Args:     []string{"-c:v", "h264_nvenc", "-preset", "p4", "-cq", "23", "-pix_fmt", "yuv420p"},
	}
	// X264 is the software H.264 encoder
	X264 = Encoder{
		Name: "libx264",
		Args: []string{"-c:v", "libx264", "-preset", "veryfast", "-crf", "22", "-pix_fmt", "yuv420p"},
	}
)

// EncoderPolicy decides which encoders an operation tries, in order.
// In mixed mode the hardware encoder runs first and a non-zero exit or
// timeout retries the same operation with the software encoder.
type EncoderPolicy struct {
	Mode     string // mixed | cpu-only | gpu-only
	Hardware Encoder
	Software Encoder
	Log      *logrus.Entry
}

// NewEncoderPolicy builds a policy with the NVENC/x264 pair
func NewEncoderPolicy(mode string, log *logrus.Entry) *EncoderPolicy {
	return &EncoderPolicy{Mode: mode, Hardware: NVENC, Software: X264, Log: log}
}

// Encoders returns the attempt order for the policy's mode
func (p *EncoderPolicy) Encoders() []Encoder {
	switch p.Mode {
	case "cpu-only":
		return []Encoder{p.Software}
	case "gpu-only":
		return []Encoder{p.Hardware}
	default:
		return []Encoder{p.Hardware, p.Software}
	}
}

// Run executes build(enc) for each encoder until one succeeds. It returns the
// successful result and the encoder that produced it.
func (p *EncoderPolicy) Run(ctx context.Context, r Runner, op string, build func(Encoder) Command) (Result, Encoder, error) {
	var (
		res  Result
		last error
	)
	encoders := p.Encoders()
	for i, enc := range encoders {
		if err := ctx.Err(); err != nil {
			return res, enc, err
		}
		res = r.Run(ctx, build(enc))
		if res.OK() {
			return res, enc, nil
		}
		last = res.Error()
		if p.Log != nil && i < len(encoders)-1 {
			p.Log.Warnf("⚠️  %s with %s failed (%v), retrying with %s", op, enc.Name, last, encoders[i+1].Name)
		}
	}
	return res, Encoder{}, fmt.Errorf("%s: all encoders failed: %w", op, last)
}
