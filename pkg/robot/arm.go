package robot

import (
	"context"
	"fmt"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
)

// Arm is an SO-101 arm on a feetech servo bus.
type Arm struct {
	port        string
	bus         *feetech.Bus
	group       *feetech.ServoGroup
	calibration Calibration
}

// NewArm opens the arm's serial bus. The arm must be calibrated.
func NewArm(cfg ArmConfig) (*Arm, error) {
	if !cfg.IsCalibrated() {
		return nil, fmt.Errorf("arm on %s is not calibrated", cfg.Port)
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus %s: %w", cfg.Port, err)
	}

	return &Arm{
		port:        cfg.Port,
		bus:         bus,
		group:       feetech.NewServoGroupByIDs(bus, cfg.Calibration.MotorIDs()...),
		calibration: cfg.Calibration,
	}, nil
}

// Port returns the serial port of the arm.
func (a *Arm) Port() string {
	return a.port
}

// Close closes the arm's bus connection.
func (a *Arm) Close() error {
	if err := a.bus.Close(); err != nil {
		return fmt.Errorf("close bus %s: %w", a.port, err)
	}
	return nil
}

// Enable turns torque on, holding the arm in position control.
func (a *Arm) Enable(ctx context.Context) error {
	if err := a.group.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	return nil
}

// Disable turns torque off so the arm can be moved by hand.
func (a *Arm) Disable(ctx context.Context) error {
	if err := a.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	return nil
}

// ReadPositions reads the normalized position of every calibrated motor.
func (a *Arm) ReadPositions(ctx context.Context) (Positions, error) {
	raw, err := a.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	positions := make(Positions, len(raw))
	for id, r := range raw {
		name, cal, ok := a.calibration.ByID(id)
		if !ok {
			continue
		}
		positions[name] = cal.Normalize(r)
	}
	return positions, nil
}

// WritePositions sends normalized targets; motors without calibration are
// skipped.
func (a *Arm) WritePositions(ctx context.Context, positions Positions) error {
	raw := make(feetech.PositionMap, len(positions))
	for name, norm := range positions {
		cal, ok := a.calibration[name]
		if !ok {
			continue
		}
		raw[cal.ID] = cal.Denormalize(norm)
	}

	if err := a.group.SetPositions(ctx, raw); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}
