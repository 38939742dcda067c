// Package event defines the commands an operator can issue during a
// recording session and the queue that carries them to the dispatcher.
package event

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownCategory is returned when a category name cannot be parsed.
	ErrUnknownCategory = errors.New("unknown event category")
	// ErrUnknownCommand is returned when a command name does not exist in its category.
	ErrUnknownCommand = errors.New("unknown command")
)

// Category routes an event to one of the state machines.
type Category int

const (
	DataLoggingCategory Category = iota
	RobotControlCategory
	TerminateCategory
)

func (c Category) String() string {
	switch c {
	case DataLoggingCategory:
		return "data_logging"
	case RobotControlCategory:
		return "robot_control"
	case TerminateCategory:
		return "terminate"
	default:
		return fmt.Sprintf("category(%d)", int(c))
	}
}

// ParseCategory converts a category name to its Category.
func ParseCategory(name string) (Category, error) {
	for _, c := range []Category{DataLoggingCategory, RobotControlCategory, TerminateCategory} {
		if c.String() == name {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
}

// Command is a command code scoped to a category.
type Command interface {
	Category() Category
	String() string
}

// DataLoggerCommand is a command for the data logger.
type DataLoggerCommand int

const (
	Start DataLoggerCommand = iota
	Stop
	Pause
	Save
	SaveSnapshot
	Discard
	Visualize
)

var dataLoggerNames = map[DataLoggerCommand]string{
	Start:        "start",
	Stop:         "stop",
	Pause:        "pause",
	Save:         "save",
	SaveSnapshot: "save_snapshot",
	Discard:      "discard",
	Visualize:    "visualize",
}

func (DataLoggerCommand) Category() Category { return DataLoggingCategory }

func (c DataLoggerCommand) String() string {
	if name, ok := dataLoggerNames[c]; ok {
		return name
	}
	return fmt.Sprintf("data_logger_command(%d)", int(c))
}

// RobotCommand is a command for the robot controller.
type RobotCommand int

const (
	SwitchPositionControl RobotCommand = iota
	SwitchGravityCompensation
	Reset
	Prepare
	OpenGripper
	CloseGripper
)

var robotNames = map[RobotCommand]string{
	SwitchPositionControl:     "position_control",
	SwitchGravityCompensation: "gravity_compensation",
	Reset:                     "reset",
	Prepare:                   "prepare",
	OpenGripper:               "open_gripper",
	CloseGripper:              "close_gripper",
}

func (RobotCommand) Category() Category { return RobotControlCategory }

func (c RobotCommand) String() string {
	if name, ok := robotNames[c]; ok {
		return name
	}
	return fmt.Sprintf("robot_command(%d)", int(c))
}

// Event is one operator intent travelling through the queue.
// Command is nil only for terminate events, or when a producer sends an
// incomplete event that the receiving state machine will reject.
type Event struct {
	Category Category
	Command  Command
	Note     string
}

// DataLogging returns a data logging event.
func DataLogging(cmd DataLoggerCommand) Event {
	return Event{Category: DataLoggingCategory, Command: cmd}
}

// RobotControl returns a robot control event.
func RobotControl(cmd RobotCommand) Event {
	return Event{Category: RobotControlCategory, Command: cmd}
}

// Terminate returns the event that ends the dispatch loop.
func Terminate() Event {
	return Event{Category: TerminateCategory}
}

// WithNote returns a copy of e carrying note.
func (e Event) WithNote(note string) Event {
	e.Note = note
	return e
}

func (e Event) String() string {
	if e.Command == nil {
		return e.Category.String()
	}
	return e.Category.String() + "/" + e.Command.String()
}

// Parse builds an event from a category and command name, e.g.
// ("data_logging", "start"). The command is ignored for terminate.
func Parse(category, command string) (Event, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return Event{}, err
	}

	switch c {
	case TerminateCategory:
		return Terminate(), nil
	case DataLoggingCategory:
		for cmd, name := range dataLoggerNames {
			if name == command {
				return DataLogging(cmd), nil
			}
		}
	case RobotControlCategory:
		for cmd, name := range robotNames {
			if name == command {
				return RobotControl(cmd), nil
			}
		}
	}
	return Event{}, fmt.Errorf("%w: %s/%s", ErrUnknownCommand, category, command)
}

// ParseString parses the "category/command" form produced by Event.String.
func ParseString(s string) (Event, error) {
	category, command, _ := strings.Cut(s, "/")
	return Parse(category, command)
}
