package robotctl

import (
	"context"
	"log/slog"
)

// LogBackend is a robot backend without actuators. It logs every request,
// which is enough for robots whose motion is driven elsewhere and for dry
// runs of a session.
type LogBackend struct {
	Name string
	Log  *slog.Logger
}

// NewLogBackend creates a LogBackend for the named robot.
func NewLogBackend(name string, log *slog.Logger) *LogBackend {
	if log == nil {
		log = slog.Default()
	}
	return &LogBackend{Name: name, Log: log.With("robot", name)}
}

func (b *LogBackend) SwitchToPositionControl(context.Context) error {
	b.Log.Info("switched to position control")
	return nil
}

func (b *LogBackend) SwitchToGravityCompensation(context.Context) error {
	b.Log.Info("switched to gravity compensation")
	return nil
}

func (b *LogBackend) OpenGripper(context.Context) error {
	b.Log.Info("opened gripper")
	return nil
}

func (b *LogBackend) CloseGripper(context.Context) error {
	b.Log.Info("closed gripper")
	return nil
}

func (b *LogBackend) PrepareForDataRecording(context.Context) error {
	b.Log.Info("prepared for data recording")
	return nil
}

func (b *LogBackend) ResetRobot(context.Context) error {
	b.Log.Info("reset robot")
	return nil
}
