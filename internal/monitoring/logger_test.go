package monitoring

import (
	"fmt"
	"testing"
	"time"

	"github.com/banshee-data/skymatch/internal/timeutil"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	if !called {
		t.Error("Custom logger was not called")
	}

	// nil installs a no-op that must not reach the previous logger.
	called = false
	SetLogger(nil)
	Logf("test")
	if called {
		t.Error("No-op logger should not have triggered callback")
	}
}

func TestLogf_Default(t *testing.T) {
	if Logf == nil {
		t.Error("Logf should not be nil by default")
	}
}

func TestStage(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	origClock := Clock
	defer func() { Clock = origClock }()
	clock := timeutil.NewMockClock(time.Unix(1700000000, 0))
	Clock = clock

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})

	done := Stage("match %s x %s", "sdss", "hsc")
	if len(lines) != 1 || lines[0] != "start: match sdss x hsc" {
		t.Fatalf("unexpected start line: %q", lines)
	}
	clock.Advance(2500 * time.Millisecond)
	done()
	if len(lines) != 2 || lines[1] != "done: match sdss x hsc (2.5s)" {
		t.Fatalf("unexpected done line: %q", lines)
	}
}
