package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestLevelFor(t *testing.T) {
	tests := []struct {
		verbosity int
		want      zapcore.Level
	}{
		{-1, zapcore.WarnLevel},
		{0, zapcore.WarnLevel},
		{1, zapcore.InfoLevel},
		{2, zapcore.DebugLevel},
		{5, zapcore.DebugLevel},
	}
	for _, tt := range tests {
		if got := LevelFor(tt.verbosity); got != tt.want {
			t.Errorf("LevelFor(%d) = %v, want %v", tt.verbosity, got, tt.want)
		}
	}
}

func TestNew(t *testing.T) {
	for _, v := range []int{0, 1, 2} {
		logger, err := New(v)
		if err != nil {
			t.Fatalf("New(%d) error = %v", v, err)
		}
		if !logger.Core().Enabled(LevelFor(v)) {
			t.Errorf("New(%d) logger does not enable %v", v, LevelFor(v))
		}
		if v == 0 && logger.Core().Enabled(zapcore.InfoLevel) {
			t.Error("New(0) logger enables info")
		}
	}
}
