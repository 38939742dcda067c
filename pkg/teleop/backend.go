package teleop

import (
	"context"
	"fmt"
)

// The methods below make the controller a robotctl.Backend. They are called
// from the dispatcher goroutine; anything touching the servo bus is handed
// to the control loop so the bus only ever has one user.

type request struct {
	fn   func(ctx context.Context) error
	done chan error
}

// do runs fn on the control loop goroutine, or directly when the loop is not
// running.
func (c *Controller) do(ctx context.Context, fn func(ctx context.Context) error) error {
	c.mu.RLock()
	running, loopDone := c.running, c.loopDone
	c.mu.RUnlock()

	if !running {
		return fn(ctx)
	}

	req := request{fn: fn, done: make(chan error, 1)}
	select {
	case c.requests <- req:
	case <-loopDone:
		return fn(ctx)
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SwitchToPositionControl re-enables follower torque so it tracks the leader.
func (c *Controller) SwitchToPositionControl(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		if err := c.follower.Enable(ctx); err != nil {
			return fmt.Errorf("switch to position control: %w", err)
		}
		c.setMode(PositionControl)
		return nil
	})
}

// SwitchToGravityCompensation releases the follower so the operator can
// guide it directly. Leader motion is ignored until position control resumes.
func (c *Controller) SwitchToGravityCompensation(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		if err := c.follower.Disable(ctx); err != nil {
			return fmt.Errorf("switch to gravity compensation: %w", err)
		}
		c.setMode(GravityCompensation)
		return nil
	})
}

// OpenGripper pins the follower gripper open from the next control step on.
func (c *Controller) OpenGripper(context.Context) error {
	c.pinGripper(c.cfg.GripperOpen)
	return nil
}

// CloseGripper pins the follower gripper closed from the next control step on.
func (c *Controller) CloseGripper(context.Context) error {
	c.pinGripper(c.cfg.GripperClosed)
	return nil
}

// PrepareForDataRecording captures the current follower positions as the
// bias reported with every following state.
func (c *Controller) PrepareForDataRecording(ctx context.Context) error {
	return c.do(ctx, func(ctx context.Context) error {
		positions, err := c.follower.ReadPositions(ctx)
		if err != nil {
			return fmt.Errorf("capture bias: %w", err)
		}

		c.mu.Lock()
		c.bias = positions
		c.mu.Unlock()
		c.log.Info("captured bias", "positions", positions)
		return nil
	})
}

// ResetRobot clears the bias and releases the gripper pin.
func (c *Controller) ResetRobot(context.Context) error {
	c.mu.Lock()
	c.bias = nil
	c.gripper = nil
	c.mu.Unlock()
	c.log.Info("cleared bias and gripper pin")
	return nil
}

func (c *Controller) setMode(m Mode) {
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
	c.log.Info("control mode changed", "mode", m.String())
}

func (c *Controller) pinGripper(target float64) {
	c.mu.Lock()
	c.gripper = &target
	c.mu.Unlock()
	c.log.Info("gripper pinned", "target", target)
}
