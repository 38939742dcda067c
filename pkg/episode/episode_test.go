package episode

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demorecorder/pkg/datalogger"
	"github.com/gwillem/demorecorder/pkg/event"
	"github.com/gwillem/demorecorder/pkg/robot"
	"github.com/gwillem/demorecorder/pkg/teleop"
)

func newTestLogger(t *testing.T, preview func(string)) *Logger {
	t.Helper()
	l := New(Options{
		Dir:     filepath.Join(t.TempDir(), "episodes"),
		Hz:      30,
		Preview: preview,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, l.PrepareForLogging())
	return l
}

func sample(t time.Time, pan float64) teleop.State {
	return teleop.State{
		Positions: robot.Positions{robot.ShoulderPan: pan, robot.Gripper: -pan},
		Timestamp: t,
	}
}

func savedFiles(t *testing.T, l *Logger) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(l.dir, "episode_*.json"))
	require.NoError(t, err)
	return matches
}

func TestObserve_OnlyWhileCapturing(t *testing.T) {
	l := newTestLogger(t, nil)
	now := time.Now()

	l.Observe(sample(now, 1))
	assert.Zero(t, l.Frames())

	require.NoError(t, l.StartLogging())
	l.Observe(sample(now, 1))
	l.Observe(teleop.State{Error: assert.AnError})
	l.Observe(sample(now, 2))
	assert.Equal(t, 2, l.Frames())

	require.NoError(t, l.PauseLogging())
	l.Observe(sample(now, 3))
	assert.Equal(t, 2, l.Frames())

	require.NoError(t, l.StopLogging())
	l.Observe(sample(now, 4))
	assert.Equal(t, 2, l.Frames())
}

func TestSaveData(t *testing.T) {
	l := newTestLogger(t, nil)

	saved, err := l.SaveData()
	require.NoError(t, err)
	assert.False(t, saved, "nothing recorded yet")

	require.NoError(t, l.StartLogging())
	start := l.current.StartedAt
	l.Observe(sample(start.Add(100*time.Millisecond), 10))
	l.Observe(teleop.State{
		Positions: robot.Positions{robot.ShoulderPan: 20},
		Bias:      robot.Positions{robot.ShoulderPan: 1},
		Mode:      teleop.GravityCompensation,
		Timestamp: start.Add(200 * time.Millisecond),
	})

	// Snapshot keeps the buffer
	saved, err = l.SaveData()
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Equal(t, 2, l.Frames())

	l.Observe(sample(start.Add(300*time.Millisecond), 30))
	require.NoError(t, l.StopLogging())

	saved, err = l.SaveData()
	require.NoError(t, err)
	assert.True(t, saved)
	assert.Zero(t, l.Frames())

	files := savedFiles(t, l)
	require.Len(t, files, 1, "snapshots and the final save share one file")

	ep, err := Load(files[0])
	require.NoError(t, err)
	assert.Equal(t, 30, ep.Hz)
	assert.Len(t, ep.Frames, 3)
	assert.InDelta(t, 0.2, ep.Frames[1].T, 1e-9)
	assert.Equal(t, "gravity_compensation", ep.Frames[1].Mode)
	assert.Equal(t, 1.0, ep.Bias[robot.ShoulderPan])
	assert.False(t, ep.StoppedAt.IsZero())

	saved, err = l.SaveData()
	require.NoError(t, err)
	assert.False(t, saved, "a completed take is saved only once")
}

func TestDiscardData(t *testing.T) {
	l := newTestLogger(t, nil)

	discarded, err := l.DiscardData()
	require.NoError(t, err)
	assert.False(t, discarded)

	require.NoError(t, l.StartLogging())
	l.Observe(sample(time.Now(), 1))
	require.NoError(t, l.StopLogging())

	discarded, err = l.DiscardData()
	require.NoError(t, err)
	assert.True(t, discarded)
	assert.Empty(t, savedFiles(t, l))

	saved, err := l.SaveData()
	require.NoError(t, err)
	assert.False(t, saved)
}

func TestVisualizeData(t *testing.T) {
	var charts []string
	l := newTestLogger(t, func(chart string) { charts = append(charts, chart) })

	ok, err := l.VisualizeData()
	require.NoError(t, err)
	assert.False(t, ok, "no data to show")

	require.NoError(t, l.StartLogging())
	for i := 0; i < 200; i++ {
		l.Observe(sample(time.Now(), float64(i%100)))
	}
	ok, err = l.VisualizeData()
	require.NoError(t, err)
	assert.True(t, ok)

	// After the final save the saved take is still shown
	require.NoError(t, l.StopLogging())
	_, err = l.SaveData()
	require.NoError(t, err)
	ok, err = l.VisualizeData()
	require.NoError(t, err)
	assert.True(t, ok)

	require.Len(t, charts, 2)
	assert.NotEmpty(t, charts[0])
}

func TestVisualizeData_NoPreview(t *testing.T) {
	l := newTestLogger(t, nil)
	require.NoError(t, l.StartLogging())
	l.Observe(sample(time.Now(), 1))

	ok, err := l.VisualizeData()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReset(t *testing.T) {
	l := newTestLogger(t, nil)
	require.NoError(t, l.StartLogging())
	l.Observe(sample(time.Now(), 1))

	require.NoError(t, l.Reset())
	assert.Zero(t, l.Frames())
	l.Observe(sample(time.Now(), 2))
	assert.Zero(t, l.Frames())
}

func TestWithStateMachine(t *testing.T) {
	l := newTestLogger(t, nil)
	dl := datalogger.New(l, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, info := dl.Handle(event.DataLogging(event.Start))
	assert.Equal(t, "recording now", info)
	l.Observe(sample(time.Now(), 5))

	state, info := dl.Handle(event.DataLogging(event.Save))
	assert.Equal(t, datalogger.NotRecording, state)
	assert.Equal(t, "stopped and saved", info)
	assert.Len(t, savedFiles(t, l), 1)

	_, info = dl.Handle(event.DataLogging(event.Save))
	assert.Equal(t, "no data to save", info)

	_, info = dl.Handle(event.DataLogging(event.Start))
	require.Equal(t, "recording now", info)
	_, info = dl.Handle(event.DataLogging(event.Discard))
	assert.Equal(t, "stopped, discarded", info)
}

func TestPrepareForLogging_CreatesDir(t *testing.T) {
	l := newTestLogger(t, nil)
	info, err := os.Stat(l.dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
