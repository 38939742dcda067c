// Package robotctl maps robot control commands onto a robot backend.
package robotctl

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gwillem/demorecorder/pkg/event"
)

// State is the availability of the robot.
type State int

const (
	Initialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Initialized:
		return "initialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Backend actuates a specific robot.
type Backend interface {
	SwitchToPositionControl(ctx context.Context) error
	SwitchToGravityCompensation(ctx context.Context) error
	OpenGripper(ctx context.Context) error
	CloseGripper(ctx context.Context) error
	// PrepareForDataRecording records sensor biases and offsets.
	PrepareForDataRecording(ctx context.Context) error
	// ResetRobot clears cached information such as biases and offsets.
	ResetRobot(ctx context.Context) error
}

type action struct {
	name string
	run  func(Backend, context.Context) error
	info string
}

var actions = map[event.RobotCommand]action{
	event.SwitchGravityCompensation: {"gravity compensation", Backend.SwitchToGravityCompensation, "switched to Gravity Compensation"},
	event.SwitchPositionControl:     {"position control", Backend.SwitchToPositionControl, "switched to Position Control"},
	event.OpenGripper:               {"open gripper", Backend.OpenGripper, "opening gripper"},
	event.CloseGripper:              {"close gripper", Backend.CloseGripper, "closing gripper"},
	event.Reset:                     {"reset", Backend.ResetRobot, "reset completed"},
	event.Prepare:                   {"prepare", Backend.PrepareForDataRecording, "prepared for data recording"},
}

// Controller is the robot control state machine. Commands are executed
// regardless of the current state. It is not safe for concurrent use.
type Controller struct {
	backend Backend
	log     *slog.Logger
	state   State
}

// New creates a controller. The robot is considered ready once its backend
// exists.
func New(backend Backend, log *slog.Logger) *Controller {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "RobotController")
	log.Info("robot controller initialized")

	return &Controller{
		backend: backend,
		log:     log,
		state:   Ready,
	}
}

// State returns the current state.
func (c *Controller) State() State {
	return c.state
}

// Handle runs the backend action for a robot control event and returns the
// state with a line of information for the operator.
func (c *Controller) Handle(ctx context.Context, ev event.Event) (State, string) {
	cmd, ok := ev.Command.(event.RobotCommand)
	a, known := actions[cmd]
	if !ok || !known {
		c.log.Warn("received unknown command", "event", ev.String())
		return c.state, "unknown command"
	}

	c.log.Debug("running action", "action", a.name)
	if err := a.run(c.backend, ctx); err != nil {
		c.log.Error("backend action failed", "action", a.name, "error", err)
		return c.state, fmt.Sprintf("%s failed: %v", a.name, err)
	}
	return c.state, a.info
}
