// Package robot provides abstractions for controlling robot arms.
package robot

// MotorName identifies a motor in the arm.
type MotorName string

// Motor names for the SO-101 arm.
const (
	ShoulderPan  MotorName = "shoulder_pan"
	ShoulderLift MotorName = "shoulder_lift"
	ElbowFlex    MotorName = "elbow_flex"
	WristFlex    MotorName = "wrist_flex"
	WristRoll    MotorName = "wrist_roll"
	Gripper      MotorName = "gripper"
)

// AllMotors returns all motor names in order (matching servo IDs 1-6).
func AllMotors() []MotorName {
	return []MotorName{
		ShoulderPan,
		ShoulderLift,
		ElbowFlex,
		WristFlex,
		WristRoll,
		Gripper,
	}
}

// Mirrored reports whether the motor's direction is inverted when a
// follower mirrors its leader.
func (m MotorName) Mirrored() bool {
	return m == ShoulderPan || m == WristRoll
}

// Positions holds normalized joint positions in the range [-100, 100].
type Positions map[MotorName]float64

// Clone returns a copy of p.
func (p Positions) Clone() Positions {
	if p == nil {
		return nil
	}
	c := make(Positions, len(p))
	for name, pos := range p {
		c[name] = pos
	}
	return c
}

// Sub returns p minus offset, joint by joint. Joints missing from offset
// are copied unchanged.
func (p Positions) Sub(offset Positions) Positions {
	c := p.Clone()
	for name, off := range offset {
		if _, ok := c[name]; ok {
			c[name] -= off
		}
	}
	return c
}
