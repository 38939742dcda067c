// Package episode is a data logging backend that records teleoperation
// samples into episodes and stores each episode as a JSON file.
package episode

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gwillem/demorecorder/pkg/datalogger"
	"github.com/gwillem/demorecorder/pkg/robot"
	"github.com/gwillem/demorecorder/pkg/teleop"
)

var _ datalogger.Backend = (*Logger)(nil)

// Frame is one recorded sample.
type Frame struct {
	T         float64         `json:"t"` // seconds since the episode started
	Mode      string          `json:"mode"`
	Positions robot.Positions `json:"positions"`
}

// Episode is one recorded demonstration.
type Episode struct {
	ID        string          `json:"id"`
	StartedAt time.Time       `json:"started_at"`
	StoppedAt time.Time       `json:"stopped_at,omitzero"`
	Hz        int             `json:"hz"`
	Bias      robot.Positions `json:"bias,omitempty"`
	Frames    []Frame         `json:"frames"`
}

// Filename returns the file name the episode is stored under.
func (e *Episode) Filename() string {
	return fmt.Sprintf("episode_%s_%s.json", e.StartedAt.Format("20060102-150405"), e.ID[:8])
}

// Options configures a Logger.
type Options struct {
	Dir string
	Hz  int
	// Preview receives the rendered chart of an episode on VisualizeData.
	Preview func(chart string)
	Logger  *slog.Logger
}

// Logger buffers samples of the current take. Observe is called from the
// teleop loop while the other methods are called from the dispatcher.
type Logger struct {
	dir     string
	hz      int
	preview func(string)
	log     *slog.Logger
	now     func() time.Time

	mu        sync.Mutex
	capturing bool
	paused    bool
	current   *Episode
	last      *Episode // most recently saved, complete episode
}

// New creates an episode logger writing to opts.Dir.
func New(opts Options) *Logger {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Logger{
		dir:     opts.Dir,
		hz:      opts.Hz,
		preview: opts.Preview,
		log:     log.With("component", "EpisodeLogger"),
		now:     time.Now,
	}
}

// Observe records a teleop sample if a take is being captured.
func (l *Logger) Observe(s teleop.State) {
	if s.Error != nil || s.Positions == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.capturing || l.paused || l.current == nil {
		return
	}
	if s.Bias != nil {
		l.current.Bias = s.Bias
	}
	l.current.Frames = append(l.current.Frames, Frame{
		T:         s.Timestamp.Sub(l.current.StartedAt).Seconds(),
		Mode:      s.Mode.String(),
		Positions: s.Positions,
	})
}

// Frames returns the number of frames in the current take.
func (l *Logger) Frames() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.current == nil {
		return 0
	}
	return len(l.current.Frames)
}

func (l *Logger) PrepareForLogging() error {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	l.log.Info("ready to log", "dir", l.dir)
	return nil
}

func (l *Logger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.capturing = false
	l.paused = false
	l.current = nil
	l.last = nil
	return nil
}

// StartLogging begins a new take. Unsaved data of a previous take is dropped.
func (l *Logger) StartLogging() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.current != nil && len(l.current.Frames) > 0 {
		l.log.Warn("dropping unsaved take", "id", l.current.ID, "frames", len(l.current.Frames))
	}
	l.current = &Episode{
		ID:        uuid.New().String(),
		StartedAt: l.now(),
		Hz:        l.hz,
	}
	l.capturing = true
	l.paused = false
	l.log.Info("take started", "id", l.current.ID)
	return nil
}

func (l *Logger) StopLogging() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.capturing = false
	if l.current != nil {
		l.current.StoppedAt = l.now()
		l.log.Info("take stopped", "id", l.current.ID, "frames", len(l.current.Frames))
	}
	return nil
}

// PauseLogging suspends capture until the take ends.
func (l *Logger) PauseLogging() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
	return nil
}

// SaveData writes the current take to disk. While capturing it writes a
// snapshot and keeps the buffer; otherwise the take is complete and the
// buffer is released.
func (l *Logger) SaveData() (bool, error) {
	l.mu.Lock()
	ep := l.current
	if ep == nil || len(ep.Frames) == 0 {
		l.mu.Unlock()
		return false, nil
	}
	snapshot := *ep
	snapshot.Frames = append([]Frame(nil), ep.Frames...)
	capturing := l.capturing
	l.mu.Unlock()

	path, err := l.write(&snapshot)
	if err != nil {
		return false, err
	}
	l.log.Info("episode saved", "path", path, "frames", len(snapshot.Frames), "snapshot", capturing)

	if !capturing {
		l.mu.Lock()
		if l.current == ep {
			l.current = nil
		}
		l.last = &snapshot
		l.mu.Unlock()
	}
	return true, nil
}

func (l *Logger) DiscardData() (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hadData := l.current != nil && len(l.current.Frames) > 0
	if l.current != nil {
		l.log.Info("take discarded", "id", l.current.ID, "frames", len(l.current.Frames))
	}
	l.current = nil
	return hadData, nil
}

// VisualizeData renders the current take, or the last saved one, and hands
// the chart to the preview callback.
func (l *Logger) VisualizeData() (bool, error) {
	if l.preview == nil {
		l.log.Info("visualization is not configured")
		return false, nil
	}

	l.mu.Lock()
	ep := l.current
	if ep == nil || len(ep.Frames) == 0 {
		ep = l.last
	}
	var frames []Frame
	if ep != nil {
		frames = append(frames, ep.Frames...)
	}
	l.mu.Unlock()

	if len(frames) == 0 {
		return false, nil
	}
	l.preview(Plot(frames, PlotWidth, PlotHeight))
	return true, nil
}

// write stores ep atomically in the data directory. Snapshots of a take
// share the file of the final save.
func (l *Logger) write(ep *Episode) (string, error) {
	data, err := json.MarshalIndent(ep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode episode: %w", err)
	}

	path := filepath.Join(l.dir, ep.Filename())
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write episode: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write episode: %w", err)
	}
	return path, nil
}

// Load reads an episode file.
func Load(path string) (*Episode, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read episode: %w", err)
	}
	var ep Episode
	if err := json.Unmarshal(data, &ep); err != nil {
		return nil, fmt.Errorf("parse episode %s: %w", path, err)
	}
	return &ep, nil
}
