// Package datalogger implements the recording lifecycle of a demonstration
// session on top of a pluggable logging backend.
package datalogger

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/gwillem/demorecorder/pkg/event"
)

// ErrPauseUnsupported is returned by backends that cannot pause.
var ErrPauseUnsupported = errors.New("pausing not supported")

// State is the lifecycle state of the data logger.
type State int

const (
	Initialized State = iota
	Recording
	NotRecording
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Recording:
		return "recording"
	case NotRecording:
		return "not_recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend performs the actual logging work.
type Backend interface {
	// PrepareForLogging initializes whatever the backend needs before the
	// first recording.
	PrepareForLogging() error
	Reset() error
	StartLogging() error
	StopLogging() error
	PauseLogging() error
	// SaveData moves the logged data to permanent storage. It reports false
	// when there was nothing to save.
	SaveData() (bool, error)
	// DiscardData drops the logged data. It reports false when there was
	// nothing to discard.
	DiscardData() (bool, error)
	VisualizeData() (bool, error)
}

// Defaults provides the optional parts of Backend. Embed it in backends that
// cannot pause or visualize.
type Defaults struct{}

// PauseLogging reports that pausing is not supported.
func (Defaults) PauseLogging() error { return ErrPauseUnsupported }

// VisualizeData reports that nothing was visualized.
func (Defaults) VisualizeData() (bool, error) { return false, nil }

// Logger is the data logger state machine. It is not safe for concurrent
// use; the dispatcher is its only caller.
type Logger struct {
	backend Backend
	log     *slog.Logger
	state   State
}

// New creates a data logger in the Initialized state.
func New(backend Backend, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "DataLogger")
	log.Info("data logger initialized")

	return &Logger{
		backend: backend,
		log:     log,
		state:   Initialized,
	}
}

// State returns the current state.
func (l *Logger) State() State {
	return l.state
}

// Prepare runs the backend's preparation hook.
func (l *Logger) Prepare() error {
	if err := l.backend.PrepareForLogging(); err != nil {
		return fmt.Errorf("prepare for logging: %w", err)
	}
	return nil
}

// Reset runs the backend's reset hook. The lifecycle state is kept.
func (l *Logger) Reset() error {
	if err := l.backend.Reset(); err != nil {
		return fmt.Errorf("reset data logger: %w", err)
	}
	return nil
}

// Handle applies a data logging event and returns the resulting state along
// with a line of information for the operator.
func (l *Logger) Handle(ev event.Event) (State, string) {
	l.log.Debug("received event", "event", ev.String(), "state", l.state.String())

	cmd, ok := ev.Command.(event.DataLoggerCommand)
	if !ok {
		l.log.Warn("received unknown command", "event", ev.String())
		return l.state, "unknown command"
	}

	var info string
	switch cmd {
	case event.Start:
		info = l.start()
	case event.Stop:
		info = l.stop()
	case event.Pause:
		info = l.pause()
	case event.Save:
		info = l.save()
	case event.SaveSnapshot:
		info = l.saveSnapshot()
	case event.Discard:
		info = l.discard()
	case event.Visualize:
		info = l.visualize()
	default:
		l.log.Warn("received unknown command", "event", ev.String())
		info = "unknown command"
	}
	return l.state, info
}

func (l *Logger) recording() bool {
	return l.state == Recording
}

// failed logs a backend error and returns the operator-facing text for it.
func (l *Logger) failed(action string, err error) string {
	l.log.Error("backend action failed", "action", action, "error", err)
	return fmt.Sprintf("%s failed: %v", action, err)
}

func (l *Logger) start() string {
	if l.recording() {
		return "already recording"
	}
	if err := l.backend.StartLogging(); err != nil {
		return l.failed("start", err)
	}
	l.state = Recording
	return "recording now"
}

func (l *Logger) stop() string {
	if !l.recording() {
		return "already stopped"
	}
	if err := l.backend.StopLogging(); err != nil {
		return l.failed("stop", err)
	}
	l.state = NotRecording
	return "stopped"
}

func (l *Logger) pause() string {
	if !l.recording() {
		return "not recording, cannot pause"
	}
	if err := l.backend.PauseLogging(); err != nil {
		if errors.Is(err, ErrPauseUnsupported) {
			l.log.Warn("pausing not supported by the backend")
			return "pausing not supported"
		}
		return l.failed("pause", err)
	}
	return "paused"
}

func (l *Logger) save() string {
	if l.recording() {
		if err := l.backend.StopLogging(); err != nil {
			return l.failed("stop", err)
		}
		l.state = NotRecording
		l.visualizeQuietly()
		if _, err := l.backend.SaveData(); err != nil {
			return l.failed("save", err)
		}
		return "stopped and saved"
	}

	l.visualizeQuietly()
	saved, err := l.backend.SaveData()
	if err != nil {
		return l.failed("save", err)
	}
	if saved {
		return "saved"
	}
	return "no data to save"
}

func (l *Logger) saveSnapshot() string {
	if !l.recording() {
		return "not running, snapshot impossible"
	}
	if _, err := l.backend.SaveData(); err != nil {
		return l.failed("snapshot", err)
	}
	return "snapshot saved"
}

func (l *Logger) discard() string {
	if l.recording() {
		if err := l.backend.StopLogging(); err != nil {
			return l.failed("stop", err)
		}
		l.state = NotRecording
		if _, err := l.backend.DiscardData(); err != nil {
			return l.failed("discard", err)
		}
		return "stopped, discarded"
	}

	discarded, err := l.backend.DiscardData()
	if err != nil {
		return l.failed("discard", err)
	}
	if discarded {
		return "discarded"
	}
	return "no data to discard"
}

func (l *Logger) visualize() string {
	ok, err := l.backend.VisualizeData()
	if err != nil {
		l.log.Error("backend action failed", "action", "visualize", "error", err)
	}
	if err != nil || !ok {
		return "problem visualizing"
	}
	return "visualized"
}

// visualizeQuietly previews the data before a save; its outcome does not
// affect the save.
func (l *Logger) visualizeQuietly() {
	if _, err := l.backend.VisualizeData(); err != nil {
		l.log.Warn("visualization before save failed", "error", err)
	}
}
