package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_RunsHooksInOrder(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(time.Second, logger)

	var mu sync.Mutex
	var order []string
	add := func(name string, ord int) {
		m.Register(name, ord, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}
	add("store", OrderCloseStore)
	add("server", OrderStopServer)
	add("events", OrderFlushEvents)

	m.Trigger("测试")
	require.NoError(t, m.Wait())

	assert.Equal(t, []string{"server", "events", "store"}, order)
}

func TestManager_CancelsContext(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(time.Second, logger)

	assert.NoError(t, m.Context().Err())

	m.Trigger("测试")
	<-m.Done()

	assert.ErrorIs(t, m.Context().Err(), context.Canceled)
}

func TestManager_TriggerOnce(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(time.Second, logger)

	calls := 0
	m.Register("server", OrderStopServer, func(context.Context) error {
		calls++
		return nil
	})

	for i := 0; i < 3; i++ {
		m.Trigger("重复触发")
	}
	require.NoError(t, m.Wait())

	assert.Equal(t, 1, calls)
}

func TestManager_CollectsErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(time.Second, logger)

	boom := errors.New("boom")
	ran := false
	m.Register("events", OrderFlushEvents, func(context.Context) error { return boom })
	m.Register("store", OrderCloseStore, func(context.Context) error {
		ran = true
		return nil
	})

	m.Trigger("测试")
	err := m.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "events")
	assert.True(t, ran, "前一个处理失败不影响后续处理")
}

func TestManager_Timeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	m := NewManager(20*time.Millisecond, logger)

	m.Register("server", OrderStopServer, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	skipped := true
	m.Register("store", OrderCloseStore, func(context.Context) error {
		skipped = false
		return nil
	})

	m.Trigger("测试")
	err := m.Wait()

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "停机超时")
	assert.True(t, skipped)
}
