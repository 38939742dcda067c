package datalogger

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demorecorder/pkg/event"
)

// fakeBackend records every call in order.
type fakeBackend struct {
	calls      []string
	hasData    bool
	visualizes bool
	errs       map[string]error
}

func (f *fakeBackend) call(name string) error {
	f.calls = append(f.calls, name)
	return f.errs[name]
}

func (f *fakeBackend) PrepareForLogging() error { return f.call("prepare") }
func (f *fakeBackend) Reset() error             { return f.call("reset") }
func (f *fakeBackend) StartLogging() error      { return f.call("start") }
func (f *fakeBackend) StopLogging() error       { return f.call("stop") }
func (f *fakeBackend) PauseLogging() error      { return f.call("pause") }

func (f *fakeBackend) SaveData() (bool, error) {
	err := f.call("save")
	return f.hasData && err == nil, err
}

func (f *fakeBackend) DiscardData() (bool, error) {
	err := f.call("discard")
	return f.hasData && err == nil, err
}

func (f *fakeBackend) VisualizeData() (bool, error) {
	err := f.call("visualize")
	return f.visualizes && err == nil, err
}

func (f *fakeBackend) count(name string) int {
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func newTestLogger(b Backend) *Logger {
	return New(b, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func recordingLogger(t *testing.T, b *fakeBackend) *Logger {
	t.Helper()
	l := newTestLogger(b)
	state, _ := l.Handle(event.DataLogging(event.Start))
	require.Equal(t, Recording, state)
	b.calls = nil
	return l
}

func TestNew_StartsInitialized(t *testing.T) {
	l := newTestLogger(&fakeBackend{})
	assert.Equal(t, Initialized, l.State())
}

func TestStart(t *testing.T) {
	b := &fakeBackend{}
	l := newTestLogger(b)

	state, info := l.Handle(event.DataLogging(event.Start))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "recording now", info)
	assert.Equal(t, []string{"start"}, b.calls)

	// Start is idempotent while recording
	state, info = l.Handle(event.DataLogging(event.Start))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "already recording", info)
	assert.Equal(t, 1, b.count("start"))
}

func TestStartIdempotentAfterAnyRecordingCommand(t *testing.T) {
	for _, cmd := range []event.DataLoggerCommand{event.Start, event.Pause, event.SaveSnapshot, event.Visualize} {
		b := &fakeBackend{hasData: true}
		l := recordingLogger(t, b)

		l.Handle(event.DataLogging(cmd))
		state, info := l.Handle(event.DataLogging(event.Start))
		assert.Equal(t, Recording, state, cmd.String())
		assert.Equal(t, "already recording", info, cmd.String())
		assert.Zero(t, b.count("start"), cmd.String())
	}
}

func TestStop(t *testing.T) {
	b := &fakeBackend{}
	l := newTestLogger(b)

	state, info := l.Handle(event.DataLogging(event.Stop))
	assert.Equal(t, Initialized, state)
	assert.Equal(t, "already stopped", info)
	assert.Empty(t, b.calls)

	l = recordingLogger(t, b)
	state, info = l.Handle(event.DataLogging(event.Stop))
	assert.Equal(t, NotRecording, state)
	assert.Equal(t, "stopped", info)
	assert.Equal(t, []string{"stop"}, b.calls)

	state, info = l.Handle(event.DataLogging(event.Stop))
	assert.Equal(t, NotRecording, state)
	assert.Equal(t, "already stopped", info)
	assert.Equal(t, 1, b.count("stop"))
}

func TestPause(t *testing.T) {
	b := &fakeBackend{}
	l := newTestLogger(b)

	state, info := l.Handle(event.DataLogging(event.Pause))
	assert.Equal(t, Initialized, state)
	assert.Equal(t, "not recording, cannot pause", info)
	assert.Empty(t, b.calls)

	l = recordingLogger(t, b)
	state, info = l.Handle(event.DataLogging(event.Pause))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "paused", info)
	assert.Equal(t, []string{"pause"}, b.calls)
}

type noPauseBackend struct {
	Defaults
	fakeBackend
}

func (n *noPauseBackend) PauseLogging() error          { return n.Defaults.PauseLogging() }
func (n *noPauseBackend) VisualizeData() (bool, error) { return n.Defaults.VisualizeData() }

func TestPause_Unsupported(t *testing.T) {
	b := &noPauseBackend{}
	l := newTestLogger(b)
	l.Handle(event.DataLogging(event.Start))

	state, info := l.Handle(event.DataLogging(event.Pause))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "pausing not supported", info)

	_, info = l.Handle(event.DataLogging(event.Visualize))
	assert.Equal(t, "problem visualizing", info)
}

func TestSave_WhileRecording(t *testing.T) {
	b := &fakeBackend{hasData: true}
	l := recordingLogger(t, b)

	state, info := l.Handle(event.DataLogging(event.Save))
	assert.Equal(t, NotRecording, state)
	assert.Equal(t, "stopped and saved", info)
	assert.Equal(t, []string{"stop", "visualize", "save"}, b.calls)
}

func TestSave_WhileRecordingWithoutData(t *testing.T) {
	// The backend's answer does not change the outcome while recording
	b := &fakeBackend{hasData: false}
	l := recordingLogger(t, b)

	state, info := l.Handle(event.DataLogging(event.Save))
	assert.Equal(t, NotRecording, state)
	assert.Equal(t, "stopped and saved", info)
}

func TestSave_WhileStopped(t *testing.T) {
	b := &fakeBackend{hasData: true}
	l := newTestLogger(b)

	state, info := l.Handle(event.DataLogging(event.Save))
	assert.Equal(t, Initialized, state)
	assert.Equal(t, "saved", info)
	assert.Equal(t, []string{"visualize", "save"}, b.calls)

	b.hasData = false
	_, info = l.Handle(event.DataLogging(event.Save))
	assert.Equal(t, "no data to save", info)
}

func TestSaveSnapshot(t *testing.T) {
	b := &fakeBackend{hasData: true}
	l := newTestLogger(b)

	state, info := l.Handle(event.DataLogging(event.SaveSnapshot))
	assert.Equal(t, Initialized, state)
	assert.Equal(t, "not running, snapshot impossible", info)
	assert.Empty(t, b.calls)

	l = recordingLogger(t, b)
	state, info = l.Handle(event.DataLogging(event.SaveSnapshot))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "snapshot saved", info)
	assert.Equal(t, []string{"save"}, b.calls)
}

func TestDiscard(t *testing.T) {
	b := &fakeBackend{hasData: true}
	l := recordingLogger(t, b)

	state, info := l.Handle(event.DataLogging(event.Discard))
	assert.Equal(t, NotRecording, state)
	assert.Equal(t, "stopped, discarded", info)
	assert.Equal(t, []string{"stop", "discard"}, b.calls)

	_, info = l.Handle(event.DataLogging(event.Discard))
	assert.Equal(t, "discarded", info)

	b.hasData = false
	_, info = l.Handle(event.DataLogging(event.Discard))
	assert.Equal(t, "no data to discard", info)
}

func TestVisualize_IndependentOfState(t *testing.T) {
	b := &fakeBackend{visualizes: true}
	l := newTestLogger(b)

	_, info := l.Handle(event.DataLogging(event.Visualize))
	assert.Equal(t, "visualized", info)

	l = recordingLogger(t, b)
	state, info := l.Handle(event.DataLogging(event.Visualize))
	assert.Equal(t, Recording, state)
	assert.Equal(t, "visualized", info)

	b.visualizes = false
	_, info = l.Handle(event.DataLogging(event.Visualize))
	assert.Equal(t, "problem visualizing", info)
}

func TestUnknownCommand(t *testing.T) {
	b := &fakeBackend{}
	l := recordingLogger(t, b)

	for _, ev := range []event.Event{
		event.DataLogging(event.DataLoggerCommand(99)),
		event.RobotControl(event.OpenGripper),
		{Category: event.DataLoggingCategory},
	} {
		state, info := l.Handle(ev)
		assert.Equal(t, Recording, state)
		assert.Equal(t, "unknown command", info)
	}
	assert.Empty(t, b.calls)
}

func TestBackendFailures(t *testing.T) {
	boom := errors.New("disk full")

	t.Run("start keeps state", func(t *testing.T) {
		b := &fakeBackend{errs: map[string]error{"start": boom}}
		l := newTestLogger(b)
		state, info := l.Handle(event.DataLogging(event.Start))
		assert.Equal(t, Initialized, state)
		assert.Equal(t, "start failed: disk full", info)
	})

	t.Run("stop keeps recording", func(t *testing.T) {
		b := &fakeBackend{}
		l := recordingLogger(t, b)
		b.errs = map[string]error{"stop": boom}
		state, info := l.Handle(event.DataLogging(event.Save))
		assert.Equal(t, Recording, state)
		assert.Equal(t, "stop failed: disk full", info)
		assert.Equal(t, []string{"stop"}, b.calls)
	})

	t.Run("save after stop still stops", func(t *testing.T) {
		b := &fakeBackend{}
		l := recordingLogger(t, b)
		b.errs = map[string]error{"save": boom}
		state, info := l.Handle(event.DataLogging(event.Save))
		assert.Equal(t, NotRecording, state)
		assert.Equal(t, "save failed: disk full", info)
	})

	t.Run("visualize failure does not block save", func(t *testing.T) {
		b := &fakeBackend{hasData: true, errs: map[string]error{"visualize": boom}}
		l := newTestLogger(b)
		_, info := l.Handle(event.DataLogging(event.Save))
		assert.Equal(t, "saved", info)
	})

	t.Run("visualize", func(t *testing.T) {
		b := &fakeBackend{visualizes: true, errs: map[string]error{"visualize": boom}}
		l := newTestLogger(b)
		_, info := l.Handle(event.DataLogging(event.Visualize))
		assert.Equal(t, "problem visualizing", info)
	})

	t.Run("discard while stopped", func(t *testing.T) {
		b := &fakeBackend{errs: map[string]error{"discard": boom}}
		l := newTestLogger(b)
		_, info := l.Handle(event.DataLogging(event.Discard))
		assert.Equal(t, "discard failed: disk full", info)
	})
}

func TestPrepareAndReset(t *testing.T) {
	b := &fakeBackend{}
	l := recordingLogger(t, b)

	require.NoError(t, l.Prepare())
	require.NoError(t, l.Reset())
	assert.Equal(t, []string{"prepare", "reset"}, b.calls)
	assert.Equal(t, Recording, l.State())

	b.errs = map[string]error{"reset": errors.New("busy")}
	assert.ErrorContains(t, l.Reset(), "reset data logger: busy")
}
