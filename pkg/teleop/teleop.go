// Package teleop provides teleoperation control for robot arms and acts as
// the robot backend of a recording session.
package teleop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gwillem/demorecorder/pkg/robot"
)

// Mode is the control mode of the follower arm.
type Mode int

const (
	// PositionControl makes the follower track the leader.
	PositionControl Mode = iota
	// GravityCompensation releases the follower so it can be guided by hand.
	GravityCompensation
)

func (m Mode) String() string {
	if m == GravityCompensation {
		return "gravity_compensation"
	}
	return "position_control"
}

// Arm is the subset of an arm the controller drives. *robot.Arm and
// *robot.SimArm implement it.
type Arm interface {
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	ReadPositions(ctx context.Context) (robot.Positions, error)
	WritePositions(ctx context.Context, positions robot.Positions) error
	Close() error
}

// State is one sample of the teleoperation loop.
type State struct {
	// Positions are the joint positions of the demonstration: the leader in
	// position control, the follower in gravity compensation.
	Positions robot.Positions
	// Bias holds the positions captured by PrepareForDataRecording.
	Bias      robot.Positions
	Mode      Mode
	Timestamp time.Time
	Error     error
}

// Config holds configuration for the controller.
type Config struct {
	Hz            int
	Mirror        bool    // Invert positions for shoulder_pan (servo 1) and wrist_roll (servo 5)
	GripperOpen   float64 // Normalized gripper target for OpenGripper
	GripperClosed float64 // Normalized gripper target for CloseGripper
}

// Controller manages the teleoperation control loop.
type Controller struct {
	leader   Arm
	follower Arm
	cfg      Config
	log      *slog.Logger

	mu        sync.RWMutex
	running   bool
	mode      Mode
	loopDone  chan struct{}
	gripper   *float64 // pinned gripper target, nil while following the leader
	bias      robot.Positions
	observers []func(State)

	stateCh  chan State
	requests chan request
}

// New creates a controller for a leader/follower pair.
func New(leader, follower Arm, cfg Config, log *slog.Logger) *Controller {
	if cfg.Hz <= 0 {
		cfg.Hz = 60
	}
	if log == nil {
		log = slog.Default()
	}

	return &Controller{
		leader:   leader,
		follower: follower,
		cfg:      cfg,
		log:      log.With("component", "Teleop"),
		stateCh:  make(chan State, 1),
		requests: make(chan request),
	}
}

// Open connects to both hardware arms described by cfg.
func Open(arms robot.Config, cfg Config, log *slog.Logger) (*Controller, error) {
	leader, err := robot.NewArm(arms.Leader)
	if err != nil {
		return nil, fmt.Errorf("create leader arm: %w", err)
	}

	follower, err := robot.NewArm(arms.Follower)
	if err != nil {
		leader.Close()
		return nil, fmt.Errorf("create follower arm: %w", err)
	}

	c := New(leader, follower, cfg, log)
	c.log.Info("arms connected", "leader", leader.Port(), "follower", follower.Port())
	return c, nil
}

// Close stops the loop and releases both arms.
func (c *Controller) Close() error {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	return errors.Join(c.leader.Close(), c.follower.Close())
}

// States returns a channel that always holds the most recent state.
func (c *Controller) States() <-chan State {
	return c.stateCh
}

// AddObserver registers fn to be called with every state, from the control
// loop goroutine. fn must not block.
func (c *Controller) AddObserver(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// Mode returns the current control mode.
func (c *Controller) Mode() Mode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.mode
}

// Start runs the control loop until ctx is done.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("already running")
	}
	c.running = true
	c.loopDone = make(chan struct{})
	loopDone := c.loopDone
	mode := c.mode
	c.mu.Unlock()
	defer close(loopDone)

	// Initialize arms
	if err := c.leader.Disable(ctx); err != nil {
		c.log.Warn("failed to disable leader", "error", err)
	} else {
		c.log.Info("leader arm: torque disabled (passive mode)")
	}

	if mode == GravityCompensation {
		if err := c.follower.Disable(ctx); err != nil {
			c.log.Warn("failed to disable follower", "error", err)
		}
	} else if err := c.follower.Enable(ctx); err != nil {
		c.log.Warn("failed to enable follower", "error", err)
	} else {
		c.log.Info("follower arm: torque enabled")
	}

	c.log.Info("teleoperation started", "hz", c.cfg.Hz)

	ticker := time.NewTicker(time.Second / time.Duration(c.cfg.Hz))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.shutdown()
			return ctx.Err()
		case req := <-c.requests:
			req.done <- req.fn(ctx)
		case <-ticker.C:
			c.step(ctx)
		}
	}
}

func (c *Controller) step(ctx context.Context) {
	c.mu.RLock()
	mode := c.mode
	gripper := c.gripper
	bias := c.bias
	c.mu.RUnlock()

	if mode == GravityCompensation {
		// The follower is guided by hand; it is the demonstration
		positions, err := c.follower.ReadPositions(ctx)
		if err != nil {
			c.log.Error("read follower", "error", err)
			c.publish(State{Error: err, Mode: mode, Timestamp: time.Now()})
			return
		}
		c.publish(State{Positions: positions, Bias: bias, Mode: mode, Timestamp: time.Now()})
		return
	}

	positions, err := c.leader.ReadPositions(ctx)
	if err != nil {
		c.log.Error("read leader", "error", err)
		c.publish(State{Error: err, Mode: mode, Timestamp: time.Now()})
		return
	}

	targets := c.followerTargets(positions, gripper)
	if err := c.follower.WritePositions(ctx, targets); err != nil {
		c.log.Error("write follower", "error", err)
	}

	c.publish(State{Positions: positions, Bias: bias, Mode: mode, Timestamp: time.Now()})
}

// followerTargets applies mirroring and the gripper pin to leader positions.
func (c *Controller) followerTargets(leader robot.Positions, gripper *float64) robot.Positions {
	targets := make(robot.Positions, len(leader))
	for name, pos := range leader {
		if c.cfg.Mirror && name.Mirrored() {
			pos = -pos
		}
		targets[name] = pos
	}
	if gripper != nil {
		targets[robot.Gripper] = *gripper
	}
	return targets
}

func (c *Controller) publish(s State) {
	c.mu.RLock()
	observers := c.observers
	c.mu.RUnlock()
	for _, fn := range observers {
		fn(s)
	}

	select {
	case c.stateCh <- s:
	default:
		// Drop old state if channel full, replace with new
		select {
		case <-c.stateCh:
		default:
		}
		c.stateCh <- s
	}
}

func (c *Controller) shutdown() {
	c.mu.Lock()
	c.running = false
	c.mu.Unlock()

	ctx := context.Background()
	if err := c.follower.Disable(ctx); err != nil {
		c.log.Warn("failed to disable follower", "error", err)
	} else {
		c.log.Info("follower arm: torque disabled")
	}
	c.log.Info("teleoperation stopped")
}
