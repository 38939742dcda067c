package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/demorecorder/pkg/config"
	"github.com/gwillem/demorecorder/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	roleLeader   = "leader"
	roleFollower = "follower"
	roleSkip     = "skip"

	// a calibrated joint should travel at least this many raw steps
	minGoodRange = 500
)

var errAborted = errors.New("setup aborted")

type SetupCommand struct {
	Sim bool `long:"sim" description:"Write a configuration for simulated arms instead of scanning"`
}

func (c *SetupCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	fmt.Println(headerStyle.Render("Demo Recorder Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	if c.Sim {
		cfg.Backend = config.BackendSim
		return finishSetup(cfg, configPath())
	}

	arms, err := identifyArms()
	if err != nil {
		return err
	}

	for _, step := range []struct {
		arm  *robot.ArmConfig
		role string
	}{
		{&arms.Leader, roleLeader},
		{&arms.Follower, roleFollower},
	} {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Calibrating %s arm ━━━", step.role)))
		fmt.Println()
		if err := calibrateArm(step.arm); err != nil {
			return fmt.Errorf("calibrate %s: %w", step.role, err)
		}
		// Saved after each arm so a finished leader survives an aborted follower
		if err := arms.SaveTo(cfg.ArmConfig); err != nil {
			return err
		}
	}

	cfg.Backend = config.BackendSO101
	return finishSetup(cfg, configPath())
}

// finishSetup writes the session configuration to path. An existing file
// is kept, except that its backend is switched to the one just set up.
func finishSetup(cfg config.Config, path string) error {
	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))

	existing, err := config.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := cfg.SaveTo(path); err != nil {
			return err
		}
		fmt.Printf("Session configuration written to %s\n", path)
	case err != nil:
		return err
	case existing.Backend != cfg.Backend:
		existing.Backend = cfg.Backend
		if err := existing.SaveTo(path); err != nil {
			return err
		}
		fmt.Printf("Backend in %s set to %s\n", path, existing.Backend)
	default:
		fmt.Printf("Keeping existing %s (backend: %s)\n", path, existing.Backend)
	}
	if cfg.Backend == config.BackendSO101 {
		fmt.Printf("Arm calibration saved to %s\n", cfg.ArmConfig)
	}

	fmt.Println()
	fmt.Println("Start recording with: " + headerStyle.Render("demorecorder record"))
	return nil
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

// identifyArms finds the SO-101 arms on the serial ports and asks the
// operator which is which.
func identifyArms() (*robot.Config, error) {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	found := findArms()
	if len(found) == 0 {
		return nil, errors.New("no SO-101 arms found; make sure they are connected and powered on")
	}
	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(found))

	arms := &robot.Config{}
	for i, arm := range found {
		if arms.Leader.Port != "" && arms.Follower.Port != "" {
			for _, rest := range found[i:] {
				rest.bus.Close()
			}
			break
		}

		role, err := identifyArm(arm, arms.Leader.Port == "", arms.Follower.Port == "")
		if err != nil {
			return nil, err
		}
		switch role {
		case roleLeader:
			arms.Leader.Port = arm.port
		case roleFollower:
			arms.Follower.Port = arm.port
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	var missing []string
	if arms.Leader.Port == "" {
		missing = append(missing, roleLeader)
	}
	if arms.Follower.Port == "" {
		missing = append(missing, roleFollower)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%s arm not identified; both are required for recording", strings.Join(missing, " and "))
	}

	fmt.Println(successStyle.Render("Arms identified:"))
	fmt.Printf("  Leader:   %s\n", arms.Leader.Port)
	fmt.Printf("  Follower: %s\n", arms.Follower.Port)
	return arms, nil
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, servos, err := connectToArm(port)
		if err != nil {
			continue
		}
		fmt.Printf("  Found SO-101 arm on %s\n", port)
		arms = append(arms, armInfo{port: port, servos: servos, bus: bus})
	}
	return arms
}

func isSOArm(servos []feetech.FoundServo) bool {
	if len(servos) != 6 {
		return false
	}
	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}
	for i := 1; i <= 6; i++ {
		if !ids[i] {
			return false
		}
	}
	return true
}

func connectToArm(port string) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	// SO-101 arms use servo IDs 1-6
	servos, err := bus.Scan(ctx, 1, 6)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}
	if !isSOArm(servos) {
		bus.Close()
		return nil, nil, fmt.Errorf("not an SO-101 arm (expected 6 servos with IDs 1-6)")
	}
	return bus, servos, nil
}

// identifyArm wiggles the shoulder of arm and asks which role it has.
func identifyArm(arm armInfo, needLeader, needFollower bool) (string, error) {
	defer arm.bus.Close()
	ctx := context.Background()

	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}
	if servo == nil {
		return roleSkip, nil
	}

	if err := wiggle(ctx, servo); err != nil {
		fmt.Printf("  Could not wiggle %s: %v\n", arm.port, err)
	} else {
		fmt.Printf("\n  Wiggled arm on %s\n", arm.port)
	}

	var options []huh.Option[string]
	if needLeader {
		options = append(options, huh.NewOption("Leader (the one you move by hand)", roleLeader))
	}
	if needFollower {
		options = append(options, huh.NewOption("Follower (the one that follows)", roleFollower))
	}
	options = append(options, huh.NewOption("Skip this arm", roleSkip))

	var role string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(options...).
				Value(&role),
		),
	)
	if err := form.Run(); err != nil {
		return "", errAborted
	}
	return role, nil
}

// wiggle moves servo gently back and forth and releases it.
func wiggle(ctx context.Context, servo *feetech.Servo) error {
	const (
		amount = 30
		moveMs = 500
	)

	origin, err := servo.Position(ctx)
	if err != nil {
		return fmt.Errorf("read position: %w", err)
	}
	if err := servo.Enable(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	defer servo.Disable(ctx)

	for _, target := range []int{origin + amount, origin - amount, origin} {
		servo.SetPositionWithTime(ctx, target, moveMs)
		time.Sleep(time.Duration(moveMs+100) * time.Millisecond)
	}
	return nil
}

// calibrateArm records the range of motion of every joint while the
// operator moves the arm by hand.
func calibrateArm(arm *robot.ArmConfig) error {
	fmt.Printf("Calibrating arm on %s\n\n", arm.Port)

	bus, servos, err := connectToArm(arm.Port)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer bus.Close()

	ctx := context.Background()
	byID := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servo := feetech.NewServo(bus, s.ID, s.Model)
		// Released so the operator can move the arm freely
		servo.Disable(ctx)
		byID[s.ID] = servo
	}

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println()

	motors := robot.AllMotors()
	m := newCalibrationModel(motors, byID)
	for i, name := range motors {
		pos, err := byID[i+1].Position(ctx)
		if err != nil {
			return fmt.Errorf("read %s: %w", name, err)
		}
		m.track(name, pos)
	}

	final, err := tea.NewProgram(m).Run()
	if err != nil {
		return fmt.Errorf("run calibration: %w", err)
	}
	cm := final.(calibrationModel)
	if cm.aborted {
		return errAborted
	}

	cal := make(robot.Calibration, len(motors))
	for i, name := range motors {
		cal[name] = robot.MotorCalibration{
			ID:       i + 1,
			RangeMin: cm.minPositions[name],
			RangeMax: cm.maxPositions[name],
		}
	}
	if err := cal.Validate(); err != nil {
		return err
	}

	arm.Calibration = cal
	fmt.Println()
	fmt.Println(successStyle.Render("Arm calibrated."))
	return nil
}

type calibrationModel struct {
	motors       []robot.MotorName
	servos       map[int]*feetech.Servo
	curPositions map[robot.MotorName]int
	minPositions map[robot.MotorName]int
	maxPositions map[robot.MotorName]int
	done         bool
	aborted      bool
}

type tickMsg time.Time

func newCalibrationModel(motors []robot.MotorName, servos map[int]*feetech.Servo) calibrationModel {
	return calibrationModel{
		motors:       motors,
		servos:       servos,
		curPositions: make(map[robot.MotorName]int),
		minPositions: make(map[robot.MotorName]int),
		maxPositions: make(map[robot.MotorName]int),
	}
}

// track records a raw position reading of motor.
func (m calibrationModel) track(motor robot.MotorName, pos int) {
	m.curPositions[motor] = pos
	if lo, ok := m.minPositions[motor]; !ok || pos < lo {
		m.minPositions[motor] = pos
	}
	if hi, ok := m.maxPositions[motor]; !ok || pos > hi {
		m.maxPositions[motor] = pos
	}
}

func tick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return tick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			m.done = true
			return m, tea.Quit
		case "q", "ctrl+c":
			m.aborted = true
			return m, tea.Quit
		}

	case tickMsg:
		ctx := context.Background()
		for i, name := range m.motors {
			pos, err := m.servos[i+1].Position(ctx)
			if err != nil {
				continue
			}
			m.track(name, pos)
		}
		return m, tick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.done || m.aborted {
		return ""
	}

	var (
		tableHeaderStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
		tableMotorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
		tableCellStyle      = lipgloss.NewStyle().Padding(0, 1)
		tableCurrentStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
		tableRangeGoodStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
		tableRangeLowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	)

	rows := make([][]string, 0, len(m.motors))
	ranges := make([]int, 0, len(m.motors))
	for _, name := range m.motors {
		span := m.maxPositions[name] - m.minPositions[name]
		ranges = append(ranges, span)
		rows = append(rows, []string{
			string(name),
			fmt.Sprint(m.curPositions[name]),
			fmt.Sprint(m.minPositions[name]),
			fmt.Sprint(m.maxPositions[name]),
			fmt.Sprint(span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > minGoodRange {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	return t.Render() + "\n\n" + dimStyle.Render("Press Enter when done, q to abort")
}
