// Package demorecorder records robot demonstrations with SO-101 arms.
//
// An operator drives a follower arm through a leader arm (or guides the
// follower by hand in gravity compensation) while key presses and HTTP
// requests start, stop, save and discard recordings. Every command goes
// through one event queue and is dispatched to either the data logger or
// the robot controller, each a small state machine over a pluggable
// backend.
//
// # Installation
//
//	go install github.com/gwillem/demorecorder/cmd/demorecorder@latest
//
// # Usage
//
// First, run setup to detect and calibrate your robot arms:
//
//	demorecorder setup
//
// Then record:
//
//	demorecorder record
//
// Without arms, try the simulated backend:
//
//	demorecorder setup --sim
//	demorecorder record --backend sim --web :8080
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/demorecorder: CLI with setup and record commands
//   - pkg/event: Events and the queue they travel through
//   - pkg/recorder: The dispatcher owning the queue
//   - pkg/datalogger: Recording lifecycle state machine
//   - pkg/robotctl: Robot command state machine
//   - pkg/episode: Data logging backend writing JSON episodes
//   - pkg/teleop: Teleoperation controller, the robot backend
//   - pkg/robot: Arm control, calibration, and configuration
//   - pkg/input: Keyboard bindings
//   - pkg/status: Status sinks
//   - pkg/web: HTTP event triggers and websocket status stream
//   - pkg/config: Session configuration
//   - pkg/logging: Structured logger construction
package demorecorder
