package episode

import (
	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"
	"github.com/charmbracelet/lipgloss"

	"github.com/gwillem/demorecorder/pkg/robot"
)

// Default size of an episode preview, in terminal cells.
const (
	PlotWidth  = 72
	PlotHeight = 14
)

// MotorColors holds a distinct color for each motor
var MotorColors = map[robot.MotorName]string{
	robot.ShoulderPan:  "196", // red
	robot.ShoulderLift: "208", // orange
	robot.ElbowFlex:    "226", // yellow
	robot.WristFlex:    "46",  // green
	robot.WristRoll:    "51",  // cyan
	robot.Gripper:      "201", // magenta
}

// NewChart returns a streaming line chart with one styled data set per motor.
func NewChart(width, height int) streamlinechart.Model {
	chart := streamlinechart.New(width, height,
		streamlinechart.WithYRange(-100, 100),
	)
	for _, name := range robot.AllMotors() {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(MotorColors[name]))
		chart.SetDataSetStyles(string(name), runes.ThinLineStyle, style)
	}
	return chart
}

// Plot renders frames as a chart. Long episodes are downsampled so the whole
// take fits the width.
func Plot(frames []Frame, width, height int) string {
	chart := NewChart(width, height)

	step := 1
	if len(frames) > width {
		step = (len(frames) + width - 1) / width
	}
	for i := 0; i < len(frames); i += step {
		for name, pos := range frames[i].Positions {
			chart.PushDataSet(string(name), pos)
		}
	}
	chart.DrawAll()
	return chart.View()
}
