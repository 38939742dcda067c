package status

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type memSink struct {
	mapping string
	lines   []string
}

func (m *memSink) DisplayInputMapping(mapping string) { m.mapping = mapping }
func (m *memSink) DisplayInformation(text string)     { m.lines = append(m.lines, text) }

func TestMulti(t *testing.T) {
	a, b := &memSink{}, &memSink{}
	m := Multi{a, b}

	m.DisplayInputMapping(`{"s":"data_logging/start"}`)
	m.DisplayInformation("Robot: opening gripper")

	for _, s := range []*memSink{a, b} {
		assert.Equal(t, `{"s":"data_logging/start"}`, s.mapping)
		assert.Equal(t, []string{"Robot: opening gripper"}, s.lines)
	}
}

func TestLog(t *testing.T) {
	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, nil)))

	l.DisplayInformation("Data Logger: recording now")
	assert.Contains(t, buf.String(), `msg="Data Logger: recording now"`)
	assert.Contains(t, buf.String(), "component=InformationDisplay")
}
