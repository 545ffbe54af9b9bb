// Package monitoring holds the process-wide progress logger.
package monitoring

import (
	"log"
	"time"

	"github.com/banshee-data/skymatch/internal/timeutil"
)

// Logf is the package-level progress logger. It defaults to log.Printf and
// may be replaced by SetLogger; library packages never log directly.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil sets a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Clock times stages. Tests may replace it with a timeutil.MockClock.
var Clock timeutil.Clock = timeutil.RealClock{}

// Stage logs the start of a named pipeline stage and returns a function that
// logs its completion with the elapsed time.
//
//	done := monitoring.Stage("match %s x %s", left, right)
//	defer done()
func Stage(format string, v ...interface{}) func() {
	start := Clock.Now()
	Logf("start: "+format, v...)
	return func() {
		args := append(append([]interface{}{}, v...), Clock.Since(start).Round(time.Millisecond))
		Logf("done: "+format+" (%s)", args...)
	}
}
