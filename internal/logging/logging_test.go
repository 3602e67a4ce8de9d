package logging

import "testing"

func TestLevelString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "debug"},
		{LevelInfo, "info"},
		{LevelWarn, "warn"},
		{LevelError, "error"},
		{Level(99), "unknown(99)"},
	}

	for _, tt := range tests {
		if got := tt.level.String(); got != tt.want {
			t.Errorf("Level(%d).String() = %q, want %q", tt.level, got, tt.want)
		}
	}
}

func TestLevelOrdering(t *testing.T) {
	t.Parallel()

	if !(LevelDebug < LevelInfo && LevelInfo < LevelWarn && LevelWarn < LevelError) {
		t.Error("levels must order debug < info < warn < error")
	}
}

func TestGetLevelDefaultsToInfo(t *testing.T) {
	// The level latches on first use; this relies on the test binary not
	// running with DEBUG or LOG_LEVEL set.
	if got := GetLevel(); got != LevelInfo && got != LevelDebug {
		t.Errorf("GetLevel() = %v, want info (or debug when the environment forces it)", got)
	}
}

func TestLoggingDoesNotPanic(t *testing.T) {
	Debug("debug %d", 1)
	Info("info %s", "x")
	Warn("warn %v", nil)
	Error("error")
}
