package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		category, command string
		want              Event
	}{
		{"data_logging", "start", DataLogging(Start)},
		{"data_logging", "save_snapshot", DataLogging(SaveSnapshot)},
		{"robot_control", "gravity_compensation", RobotControl(SwitchGravityCompensation)},
		{"robot_control", "close_gripper", RobotControl(CloseGripper)},
		{"terminate", "", Terminate()},
		{"terminate", "anything", Terminate()},
	}

	for _, tt := range tests {
		got, err := Parse(tt.category, tt.command)
		require.NoError(t, err, "%s/%s", tt.category, tt.command)
		assert.Equal(t, tt.want, got)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse("telemetry", "start")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	_, err = Parse("data_logging", "open_gripper")
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = Parse("robot_control", "")
	assert.ErrorIs(t, err, ErrUnknownCommand)
}

func TestParseString_RoundTrip(t *testing.T) {
	for _, e := range []Event{DataLogging(Discard), RobotControl(Prepare), Terminate()} {
		got, err := ParseString(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, got)
	}
}

func TestCommandCategory(t *testing.T) {
	assert.Equal(t, DataLoggingCategory, Visualize.Category())
	assert.Equal(t, RobotControlCategory, OpenGripper.Category())
	assert.Equal(t, "robot_command(42)", RobotCommand(42).String())
	assert.Equal(t, "category(9)", Category(9).String())
}

func TestWithNote(t *testing.T) {
	e := DataLogging(Start)
	noted := e.WithNote("take 3")

	assert.Equal(t, "take 3", noted.Note)
	assert.Empty(t, e.Note)
}

func TestQueue_FIFO(t *testing.T) {
	q := NewQueue()
	q.Push(DataLogging(Start))
	q.Push(RobotControl(OpenGripper))
	q.Push(Terminate())
	assert.Equal(t, 3, q.Len())

	ctx := context.Background()
	for _, want := range []Event{DataLogging(Start), RobotControl(OpenGripper), Terminate()} {
		got, err := q.Pop(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 0, q.Len())
}

func TestQueue_PopWaitsForPush(t *testing.T) {
	q := NewQueue()
	got := make(chan Event, 1)

	go func() {
		e, err := q.Pop(context.Background())
		if err == nil {
			got <- e
		}
	}()

	select {
	case <-got:
		t.Fatal("Pop returned before anything was pushed")
	case <-time.After(50 * time.Millisecond):
	}

	q.Push(DataLogging(Stop))

	select {
	case e := <-got:
		assert.Equal(t, DataLogging(Stop), e)
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake up after Push")
	}
}

func TestQueue_PopCanceled(t *testing.T) {
	q := NewQueue()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Pop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue()
	const producers, perProducer = 8, 200

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(DataLogging(Start).WithNote(fmt.Sprintf("%d:%d", p, i)))
			}
		}(p)
	}
	wg.Wait()

	require.Equal(t, producers*perProducer, q.Len())

	// Each producer's events must come out in the order it pushed them.
	next := make(map[int]int)
	ctx := context.Background()
	for i := 0; i < producers*perProducer; i++ {
		e, err := q.Pop(ctx)
		require.NoError(t, err)

		var p, seq int
		_, err = fmt.Sscanf(e.Note, "%d:%d", &p, &seq)
		require.NoError(t, err)
		require.Equal(t, next[p], seq, "producer %d out of order", p)
		next[p]++
	}
	for p := 0; p < producers; p++ {
		assert.Equal(t, perProducer, next[p])
	}
}
