package logger

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want logrus.Level
	}{
		{"debug", logrus.DebugLevel},
		{"warn", logrus.WarnLevel},
		{"error", logrus.ErrorLevel},
		{"", logrus.InfoLevel},
		{"verbose", logrus.InfoLevel},
	}
	for _, tt := range tests {
		if got := parseLevel(tt.in); got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestScopedFields(t *testing.T) {
	l := Discard().WithRun("abc12345")
	e := l.Stage("assemble")
	if e.Data["run_id"] != "abc12345" {
		t.Errorf("run_id = %v", e.Data["run_id"])
	}
	if e.Data["stage"] != "assemble" {
		t.Errorf("stage = %v", e.Data["stage"])
	}
	if got := l.WithError(errors.New("boom")).Data["error"]; got != "boom" {
		t.Errorf("error field = %v", got)
	}
	if l.WithError(nil) != l.Entry {
		t.Error("WithError(nil) should return the base entry")
	}
}
