// Package status provides status sinks that can be combined behind the
// recorder's single display.
package status

import (
	"log/slog"

	"github.com/gwillem/demorecorder/pkg/recorder"
)

// Multi forwards every call to each of its sinks in order.
type Multi []recorder.StatusSink

func (m Multi) DisplayInputMapping(mapping string) {
	for _, s := range m {
		s.DisplayInputMapping(mapping)
	}
}

func (m Multi) DisplayInformation(text string) {
	for _, s := range m {
		s.DisplayInformation(text)
	}
}

// Log writes status to a structured logger, useful as a session transcript
// next to an interactive display.
type Log struct {
	log *slog.Logger
}

// NewLog creates a Log sink.
func NewLog(log *slog.Logger) *Log {
	if log == nil {
		log = slog.Default()
	}
	return &Log{log: log.With("component", "InformationDisplay")}
}

func (l *Log) DisplayInputMapping(mapping string) {
	l.log.Info("input mapping", "mapping", mapping)
}

func (l *Log) DisplayInformation(text string) {
	l.log.Info(text)
}
