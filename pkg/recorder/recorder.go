// Package recorder runs the demonstration recording session: it serializes
// operator commands into one queue and dispatches them to the data logger
// and the robot controller.
package recorder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gwillem/demorecorder/pkg/datalogger"
	"github.com/gwillem/demorecorder/pkg/event"
	"github.com/gwillem/demorecorder/pkg/robotctl"
)

// Status prefixes prepended to the information of each state machine.
const (
	DataLoggerPrefix = "Data Logger: "
	RobotPrefix      = "Robot: "
)

// StatusSink shows information to the operator.
type StatusSink interface {
	// DisplayInputMapping is called once at startup with the JSON encoded
	// input mapping.
	DisplayInputMapping(mapping string)
	// DisplayInformation is called after every dispatched event.
	DisplayInformation(text string)
}

// InputHandler turns operator input into events.
type InputHandler interface {
	// SetEventQueue attaches the queue the handler posts events to.
	SetEventQueue(q event.Sink)
	// InputMapping maps raw input names to command names, for display.
	InputMapping() map[string]string
}

// DataLogger is the data logging state machine driven by the recorder.
type DataLogger interface {
	Handle(ev event.Event) (datalogger.State, string)
	Prepare() error
	Reset() error
}

// RobotController is the robot state machine driven by the recorder.
type RobotController interface {
	Handle(ctx context.Context, ev event.Event) (robotctl.State, string)
}

// Options holds the collaborators of a Recorder.
type Options struct {
	Input      InputHandler
	Robot      RobotController
	DataLogger DataLogger
	Display    StatusSink
	Logger     *slog.Logger
}

// Recorder is the single consumer of the event queue. It is the only
// goroutine that advances either state machine.
type Recorder struct {
	queue   *event.Queue
	input   InputHandler
	robot   RobotController
	data    DataLogger
	display StatusSink
	log     *slog.Logger
}

// New wires the collaborators around a fresh queue and shows the input
// mapping.
func New(opts Options) (*Recorder, error) {
	if opts.Robot == nil || opts.DataLogger == nil || opts.Display == nil {
		return nil, errors.New("recorder: robot, data logger and display are required")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "DemoRecorder")

	r := &Recorder{
		queue:   event.NewQueue(),
		input:   opts.Input,
		robot:   opts.Robot,
		data:    opts.DataLogger,
		display: opts.Display,
		log:     log,
	}

	mapping := map[string]string{}
	if r.input != nil {
		r.input.SetEventQueue(r.queue)
		mapping = r.input.InputMapping()
	}
	data, err := json.Marshal(mapping)
	if err != nil {
		return nil, fmt.Errorf("encode input mapping: %w", err)
	}
	r.display.DisplayInputMapping(string(data))

	log.Info("demo recorder initialized")
	return r, nil
}

// Queue returns the event queue so additional producers can post to it.
func (r *Recorder) Queue() *event.Queue {
	return r.queue
}

// Post enqueues an event.
func (r *Recorder) Post(ev event.Event) {
	r.queue.Push(ev)
}

// Run processes events in queue order until a terminate event is taken.
// Cancelling ctx also ends the loop, but only between two events.
func (r *Recorder) Run(ctx context.Context) error {
	if err := r.data.Prepare(); err != nil {
		r.log.Error("data logger preparation failed", "error", err)
	}
	defer func() {
		if err := r.data.Reset(); err != nil {
			r.log.Error("data logger reset failed", "error", err)
		}
	}()

	r.log.Info("system ready to start recording")

	for {
		ev, err := r.queue.Pop(ctx)
		if err != nil {
			r.log.Info("recording session cancelled", "reason", err)
			return err
		}

		if ev.Category == event.TerminateCategory {
			r.log.Info("recording session terminated", "pending", r.queue.Len())
			return nil
		}
		r.dispatch(ctx, ev)
	}
}

func (r *Recorder) dispatch(ctx context.Context, ev event.Event) {
	var prefix string
	var handle func() string

	switch ev.Category {
	case event.DataLoggingCategory:
		prefix = DataLoggerPrefix
		handle = func() string {
			_, info := r.data.Handle(ev)
			return info
		}
	case event.RobotControlCategory:
		prefix = RobotPrefix
		handle = func() string {
			_, info := r.robot.Handle(ctx, ev)
			return info
		}
	default:
		r.log.Error("event category not recognized", "category", ev.Category.String())
		return
	}

	r.display.DisplayInformation(prefix + r.safely(ev, handle))
}

// safely runs a handler and converts a panic into information text so a
// misbehaving backend cannot end the session.
func (r *Recorder) safely(ev event.Event, handle func() string) (info string) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("handler panicked", "event", ev.String(), "panic", p)
			info = fmt.Sprintf("internal error: %v", p)
		}
	}()
	return handle()
}
