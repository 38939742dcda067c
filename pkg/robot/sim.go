package robot

import (
	"context"
	"math"
	"sync"
	"time"
)

// SimArm is an in-memory arm for dry runs without hardware. With torque off
// it sweeps every joint along a slow sine wave, as if moved by hand; with
// torque on it holds the last written targets.
type SimArm struct {
	start time.Time
	phase float64

	mu      sync.Mutex
	torque  bool
	targets Positions
}

// NewSimArm creates a simulated arm. Phase offsets the sine sweep so two
// simulated arms do not move identically.
func NewSimArm(phase float64) *SimArm {
	return &SimArm{start: time.Now(), phase: phase}
}

func (s *SimArm) Enable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torque = true
	return nil
}

func (s *SimArm) Disable(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.torque = false
	return nil
}

// TorqueEnabled reports whether the arm holds its targets.
func (s *SimArm) TorqueEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.torque
}

func (s *SimArm) ReadPositions(context.Context) (Positions, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.torque && s.targets != nil {
		return s.targets.Clone(), nil
	}

	t := time.Since(s.start).Seconds()
	positions := make(Positions, len(AllMotors()))
	for i, name := range AllMotors() {
		// Each joint gets its own frequency so the traces are distinguishable
		freq := 0.1 + 0.05*float64(i)
		positions[name] = 80 * math.Sin(2*math.Pi*freq*t+s.phase)
	}
	return positions, nil
}

func (s *SimArm) WritePositions(_ context.Context, positions Positions) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.torque {
		return nil
	}
	if s.targets == nil {
		s.targets = make(Positions, len(positions))
	}
	for name, pos := range positions {
		s.targets[name] = max(-100, min(100, pos))
	}
	return nil
}

// Targets returns a copy of the last written targets.
func (s *SimArm) Targets() Positions {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targets.Clone()
}

func (s *SimArm) Close() error {
	return nil
}
