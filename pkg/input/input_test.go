package input

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gwillem/demorecorder/pkg/event"
)

type sliceSink []event.Event

func (s *sliceSink) Push(e event.Event) { *s = append(*s, e) }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultKeymap_CoversAllCommands(t *testing.T) {
	seen := make(map[string]bool)
	for _, ev := range DefaultKeymap() {
		seen[ev.String()] = true
	}

	for _, want := range []string{
		"data_logging/start", "data_logging/stop", "data_logging/pause",
		"data_logging/save", "data_logging/save_snapshot", "data_logging/discard",
		"data_logging/visualize",
		"robot_control/position_control", "robot_control/gravity_compensation",
		"robot_control/open_gripper", "robot_control/close_gripper",
		"robot_control/prepare", "robot_control/reset",
		"terminate",
	} {
		assert.True(t, seen[want], "no key bound to %s", want)
	}
}

func TestParseKeymap(t *testing.T) {
	km, err := ParseKeymap(map[string]string{
		"space": "data_logging/start",
		"o":     "robot_control/open_gripper",
		"esc":   "terminate",
	})
	require.NoError(t, err)
	assert.Equal(t, event.DataLogging(event.Start), km["space"])
	assert.Equal(t, event.RobotControl(event.OpenGripper), km["o"])
	assert.Equal(t, event.Terminate(), km["esc"])
	assert.Equal(t, []string{"esc", "o", "space"}, km.Keys())

	_, err = ParseKeymap(map[string]string{"z": "data_logging/launch"})
	assert.ErrorIs(t, err, event.ErrUnknownCommand)
	assert.ErrorContains(t, err, `key "z"`)
}

func TestMapping(t *testing.T) {
	km := Keymap{"r": event.DataLogging(event.Start), "q": event.Terminate()}
	assert.Equal(t, map[string]string{
		"r": "data_logging/start",
		"q": "terminate",
	}, km.Mapping())
}

func TestKeyboard_HandleKey(t *testing.T) {
	kb := NewKeyboard(DefaultKeymap(), quietLogger())

	// Without a queue nothing can be posted
	_, posted := kb.HandleKey("r")
	assert.False(t, posted)

	var sink sliceSink
	kb.SetEventQueue(&sink)

	ev, posted := kb.HandleKey("r")
	assert.True(t, posted)
	assert.Equal(t, event.DataLogging(event.Start), ev)

	_, posted = kb.HandleKey("F13")
	assert.False(t, posted)

	kb.HandleKey("o")
	kb.HandleKey("q")
	assert.Equal(t, sliceSink{
		event.DataLogging(event.Start),
		event.RobotControl(event.OpenGripper),
		event.Terminate(),
	}, sink)
	assert.Equal(t, DefaultKeymap().Mapping(), kb.InputMapping())
}
