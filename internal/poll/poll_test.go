package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryTicksUntilStopped(t *testing.T) {
	var n atomic.Int32
	task := Every(context.Background(), 5*time.Millisecond, func(context.Context) { n.Add(1) })

	require.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, time.Millisecond)
	task.Stop()
	after := n.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, n.Load())

	task.Stop()
	var nilTask *Task
	nilTask.Stop()
}

func TestEveryStopsWithParentContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	task := Every(ctx, time.Hour, func(context.Context) {})
	cancel()
	select {
	case <-task.Done():
	case <-time.After(time.Second):
		t.Fatal("loop did not exit after parent cancel")
	}
}
