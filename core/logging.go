// Package core provides the logging, error, assertion, and clock
// primitives shared across the asset compilation core.
package core

import (
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

var once sync.Once

type logger struct {
	*log.Logger
}

var singleton *logger

func getLogger() *logger {
	if singleton == nil {
		once.Do(
			func() {
				l := log.NewWithOptions(os.Stderr, log.Options{
					ReportCaller:    true,
					ReportTimestamp: true,
					TimeFormat:      time.RFC3339,
					Prefix:          "assetc 🛠 ",
				})
				l.SetLevel(log.InfoLevel)
				singleton = &logger{l}
			})
	}
	return singleton
}

// SetLevel adjusts the process-wide log level. Intended to be called once
// from config loading, before any compile session starts.
func SetLevel(level log.Level) {
	getLogger().SetLevel(level)
}

// WithJob returns a logger scoped to one job/asset, so concurrent compile
// jobs don't interleave indistinguishably in the output.
func WithJob(jobID, asset string) *log.Logger {
	return getLogger().With("job_id", jobID, "asset", asset)
}

func LogDebug(msg string, args ...interface{}) {
	getLogger().Debugf(msg, args...)
}

func LogInfo(msg string, args ...interface{}) {
	getLogger().Infof(msg, args...)
}

func LogWarn(msg string, args ...interface{}) {
	getLogger().Warnf(msg, args...)
}

func LogError(msg string, args ...interface{}) {
	getLogger().Errorf(msg, args...)
}

func LogFatal(msg string, args ...interface{}) {
	getLogger().Fatalf(msg, args...)
}
