package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/demorecorder/pkg/config"
	"github.com/gwillem/demorecorder/pkg/datalogger"
	"github.com/gwillem/demorecorder/pkg/episode"
	"github.com/gwillem/demorecorder/pkg/input"
	"github.com/gwillem/demorecorder/pkg/logging"
	"github.com/gwillem/demorecorder/pkg/recorder"
	"github.com/gwillem/demorecorder/pkg/robot"
	"github.com/gwillem/demorecorder/pkg/robotctl"
	"github.com/gwillem/demorecorder/pkg/status"
	"github.com/gwillem/demorecorder/pkg/teleop"
	"github.com/gwillem/demorecorder/pkg/web"
)

type RecordCommand struct {
	Backend string `long:"backend" choice:"so101" choice:"sim" choice:"log" description:"Robot backend (overrides the config)"`
	Hz      int    `long:"hz" description:"Control loop frequency (overrides the config)"`
	Mirror  bool   `long:"mirror" description:"Mirror mode: invert shoulder_pan and wrist_roll positions"`
	DataDir string `long:"data-dir" description:"Directory episodes are saved to (overrides the config)"`
	Web     string `long:"web" description:"Serve event triggers and status on this address"`
}

// apply merges command line overrides into cfg.
func (c *RecordCommand) apply(cfg *config.Config) error {
	if c.Backend != "" {
		cfg.Backend = c.Backend
	}
	if c.Hz > 0 {
		cfg.Hz = c.Hz
	}
	if c.Mirror {
		cfg.Mirror = true
	}
	if c.DataDir != "" {
		cfg.DataDir = c.DataDir
	}
	if c.Web != "" {
		cfg.Web.Enabled = true
		cfg.Web.Addr = c.Web
	}
	return cfg.Validate()
}

func (c *RecordCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := c.apply(&cfg); err != nil {
		return err
	}

	// The terminal belongs to the UI; logs go to a file
	logFile, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer logFile.Close()

	logOpts := cfg.Logging()
	logOpts.Output = logFile
	log, err := logging.New(logOpts)
	if err != nil {
		return err
	}

	keymap, err := cfg.Keymap()
	if err != nil {
		return err
	}

	ctrl, backend, err := openRobot(cfg, log)
	if err != nil {
		return err
	}
	if ctrl != nil {
		defer ctrl.Close()
	}

	sink := newTUISink(log)
	episodes := episode.New(episode.Options{
		Dir:     cfg.DataDir,
		Hz:      cfg.Hz,
		Preview: sink.Preview,
		Logger:  log,
	})
	if ctrl != nil {
		ctrl.AddObserver(episodes.Observe)
	}

	display := status.Multi{sink, status.NewLog(log)}
	var server *web.Server
	if cfg.Web.Enabled {
		server = web.NewServer(log)
		display = append(display, server)
	}

	keyboard := input.NewKeyboard(keymap, log)
	rec, err := recorder.New(recorder.Options{
		Input:      keyboard,
		Robot:      robotctl.New(backend, log),
		DataLogger: datalogger.New(episodes, log),
		Display:    display,
		Logger:     log,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	if ctrl != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := ctrl.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("control loop stopped", "error", err)
				sink.DisplayInformation("control loop stopped: " + err.Error())
			}
		}()
	}
	if server != nil {
		server.SetEventQueue(rec.Queue())
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := server.ListenAndServe(ctx, cfg.Web.Addr); err != nil {
				log.Error("web server stopped", "error", err)
				sink.DisplayInformation("web server stopped: " + err.Error())
			}
		}()
	}

	var states <-chan teleop.State
	if ctrl != nil {
		states = ctrl.States()
	}
	model := newRecordModel(keyboard, rec.Post, sink, states, cfg.Backend, cfg.Hz)
	p := tea.NewProgram(model, tea.WithAltScreen())

	runErr := make(chan error, 1)
	go func() {
		err := rec.Run(ctx)
		runErr <- err
		p.Send(doneMsg{err: err})
	}()

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("run terminal UI: %w", err)
	}

	// The UI may also end on its own; make sure the dispatcher follows
	cancel()
	err = <-runErr
	wg.Wait()

	if m, ok := final.(recordModel); ok && m.err != nil {
		err = m.err
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("recording session: %w", err)
	}
	fmt.Printf("Episodes are in %s, log in %s\n", cfg.DataDir, cfg.Log.File)
	return nil
}

// openRobot builds the robot backend named by the config. The controller
// is nil for the log backend, which drives no arms.
func openRobot(cfg config.Config, log *slog.Logger) (*teleop.Controller, robotctl.Backend, error) {
	switch cfg.Backend {
	case config.BackendSO101:
		arms, err := robot.LoadConfig(cfg.ArmConfig)
		if err != nil {
			return nil, nil, fmt.Errorf("%w (run 'demorecorder setup' first)", err)
		}
		if err := arms.Validate(); err != nil {
			return nil, nil, fmt.Errorf("%w (run 'demorecorder setup' first)", err)
		}
		ctrl, err := teleop.Open(*arms, cfg.Teleop(), log)
		if err != nil {
			return nil, nil, err
		}
		return ctrl, ctrl, nil

	case config.BackendSim:
		ctrl := teleop.New(robot.NewSimArm(0), robot.NewSimArm(0.5), cfg.Teleop(), log)
		return ctrl, ctrl, nil

	default:
		return nil, robotctl.NewLogBackend("log", log), nil
	}
}
