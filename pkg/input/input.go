// Package input maps operator key presses onto session events.
package input

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gwillem/demorecorder/pkg/event"
)

// Keymap maps a key, as reported by the terminal (e.g. "r", "enter",
// "ctrl+c"), to the event it posts.
type Keymap map[string]event.Event

// DefaultKeymap returns the bindings used when the config has none.
func DefaultKeymap() Keymap {
	return Keymap{
		"r":         event.DataLogging(event.Start),
		"s":         event.DataLogging(event.Stop),
		"p":         event.DataLogging(event.Pause),
		"enter":     event.DataLogging(event.Save),
		"n":         event.DataLogging(event.SaveSnapshot),
		"backspace": event.DataLogging(event.Discard),
		"v":         event.DataLogging(event.Visualize),
		"h":         event.RobotControl(event.SwitchPositionControl),
		"g":         event.RobotControl(event.SwitchGravityCompensation),
		"o":         event.RobotControl(event.OpenGripper),
		"c":         event.RobotControl(event.CloseGripper),
		"b":         event.RobotControl(event.Prepare),
		"x":         event.RobotControl(event.Reset),
		"q":         event.Terminate(),
		"ctrl+c":    event.Terminate(),
	}
}

// ParseKeymap builds a keymap from "category/command" strings.
func ParseKeymap(raw map[string]string) (Keymap, error) {
	km := make(Keymap, len(raw))
	for key, binding := range raw {
		ev, err := event.ParseString(binding)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		km[key] = ev
	}
	return km, nil
}

// Mapping returns key → "category/command", the form shown to the operator.
func (k Keymap) Mapping() map[string]string {
	m := make(map[string]string, len(k))
	for key, ev := range k {
		m[key] = ev.String()
	}
	return m
}

// Keys returns the bound keys in sorted order.
func (k Keymap) Keys() []string {
	keys := make([]string, 0, len(k))
	for key := range k {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Keyboard is an input handler fed by key presses from the terminal UI.
type Keyboard struct {
	keys Keymap
	log  *slog.Logger

	mu    sync.Mutex
	queue event.Sink
}

// NewKeyboard creates a keyboard input handler.
func NewKeyboard(keys Keymap, log *slog.Logger) *Keyboard {
	if log == nil {
		log = slog.Default()
	}
	return &Keyboard{
		keys: keys,
		log:  log.With("component", "UserInputHandler"),
	}
}

// SetEventQueue attaches the queue key presses are posted to.
func (k *Keyboard) SetEventQueue(q event.Sink) {
	k.mu.Lock()
	k.queue = q
	k.mu.Unlock()
	k.log.Info("setting event queue")
}

// InputMapping returns the key bindings for display.
func (k *Keyboard) InputMapping() map[string]string {
	return k.keys.Mapping()
}

// HandleKey posts the event bound to key. It reports the event and whether
// one was posted; unbound keys are ignored.
func (k *Keyboard) HandleKey(key string) (event.Event, bool) {
	ev, ok := k.keys[key]
	if !ok {
		return event.Event{}, false
	}

	k.mu.Lock()
	q := k.queue
	k.mu.Unlock()

	if q == nil {
		k.log.Error("event queue is not set", "key", key)
		return ev, false
	}
	q.Push(ev)
	k.log.Info("event posted", "key", key, "event", ev.String())
	return ev, true
}
