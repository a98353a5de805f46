package dispatcher

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) { l.add("DEBUG", msg, keysAndValues) }
func (l *testLogger) Info(msg string, keysAndValues ...any) { l.add("INFO", msg, keysAndValues) }
func (l *testLogger) Error(msg string, keysAndValues ...any) { l.add("ERROR", msg, keysAndValues) }

func (l *testLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("%s: %s %v", level, msg, kv))
}

func (l *testLogger) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func (l *testLogger) hasLevel(level string) bool {
	for _, msg := range l.snapshot() {
		if strings.HasPrefix(msg, level+":") {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	t.Helper()
	logger := &testLogger{}
	d, err := New(logger)
	require.NoError(t, err)
	return d, logger
}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register(":FRAME:", func(e Event) (any, error) {
		got = e
		return "result", nil
	})

	result, err := d.Dispatch(Event{Command: ":FRAME:", Args: []string{"0.5"}})

	require.NoError(t, err)
	assert.Equal(t, "result", result)
	assert.Equal(t, []string{"0.5"}, got.Args)
}

func TestDispatcher_SyncHandlerError(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":HIT:", func(e Event) (any, error) {
		return nil, errors.New("bad hit")
	})

	_, err := d.Dispatch(Event{Command: ":HIT:"})
	assert.EqualError(t, err, "bad hit")
}

func TestDispatcher_UnknownCommand(t *testing.T) {
	d, _ := newTestDispatcher(t)

	_, err := d.Dispatch(Event{Command: ":UNKNOWN:"})
	assert.EqualError(t, err, "unknown command: :UNKNOWN:")
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)

	d.Register(":LOG:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return nil, nil
	}, Buffered(100))

	for i := 0; i < 3; i++ {
		result, err := d.Dispatch(Event{Command: ":LOG:"})
		require.NoError(t, err)
		assert.Equal(t, "queued", result)
	}

	wg.Wait()
	assert.Equal(t, int32(3), processed.Load())
}

func TestDispatcher_BufferedErrorIsLogged(t *testing.T) {
	d, logger := newTestDispatcher(t)

	done := make(chan struct{})
	d.Register(":LOG:", func(e Event) (any, error) {
		defer close(done)
		return nil, errors.New("write failed")
	}, Buffered(1))

	_, err := d.Dispatch(Event{Command: ":LOG:"})
	require.NoError(t, err)

	<-done
	assert.Eventually(t, func() bool { return logger.hasLevel("ERROR") }, time.Second, 5*time.Millisecond)
}

func TestDispatcher_BufferedDropsWhenFull(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	defer close(block)
	d.Register(":FULL:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(2))

	d.Dispatch(Event{Command: ":FULL:"}) // being processed, or queued
	d.Dispatch(Event{Command: ":FULL:"}) // queued
	d.Dispatch(Event{Command: ":FULL:"}) // queued or dropped

	_, err := d.Dispatch(Event{Command: ":FULL:"})
	assert.EqualError(t, err, "queue full: :FULL:")
}

func TestDispatcher_BufferedBlocking(t *testing.T) {
	d, _ := newTestDispatcher(t)

	block := make(chan struct{})
	d.Register(":BLOCKING:", func(e Event) (any, error) {
		<-block
		return nil, nil
	}, Buffered(1), Blocking())

	d.Dispatch(Event{Command: ":BLOCKING:"})
	d.Dispatch(Event{Command: ":BLOCKING:"})

	done := make(chan struct{})
	go func() {
		d.Dispatch(Event{Command: ":BLOCKING:"})
		close(done)
	}()

	select {
	case <-done:
		t.Error("dispatch should have blocked")
	case <-time.After(50 * time.Millisecond):
	}

	close(block)
	<-done
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":LOGGED:", func(e Event) (any, error) {
		return "ok", nil
	}, Logged())

	_, err := d.Dispatch(Event{Command: ":LOGGED:", Args: []string{"a", "b"}})
	require.NoError(t, err)

	msgs := logger.snapshot()
	require.Len(t, msgs, 2)
	assert.Contains(t, msgs[0], "handling event")
	assert.Contains(t, msgs[1], "event complete")
}

func TestDispatcher_LoggedHandlerError(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register(":ERROR:", func(e Event) (any, error) {
		return nil, errors.New("test error")
	}, Logged())

	d.Dispatch(Event{Command: ":ERROR:"})

	assert.True(t, logger.hasLevel("ERROR"))
}

func TestDispatcher_Guarded(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":PANIC:", func(e Event) (any, error) {
		panic("boom")
	}, Guarded())

	var (
		result any
		err    error
	)
	assert.NotPanics(t, func() {
		result, err = d.Dispatch(Event{Command: ":PANIC:"})
	})
	assert.Nil(t, result)
	assert.EqualError(t, err, ":PANIC:: handler panic: boom")
}

func TestDispatcher_Exclusive(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var mu sync.Mutex
	var inside, maxInside atomic.Int32
	h := func(e Event) (any, error) {
		n := inside.Add(1)
		for {
			m := maxInside.Load()
			if n <= m || maxInside.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inside.Add(-1)
		return nil, nil
	}
	d.Register(":FRAME:", h, Exclusive(&mu))
	d.Register(":HIT:", h, Exclusive(&mu))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		cmd := ":FRAME:"
		if i%2 == 1 {
			cmd = ":HIT:"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Dispatch(Event{Command: cmd})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxInside.Load())
}

func TestDispatcher_HasHandlerAndCommands(t *testing.T) {
	d, _ := newTestDispatcher(t)

	d.Register(":VERSION:", func(e Event) (any, error) { return nil, nil })
	d.Register(":FRAME:", func(e Event) (any, error) { return nil, nil })

	assert.True(t, d.HasHandler(":FRAME:"))
	assert.False(t, d.HasHandler(":NOT_EXISTS:"))
	assert.Equal(t, []string{":FRAME:", ":VERSION:"}, d.Commands())
}

func TestDispatcher_CombinedOptions(t *testing.T) {
	d, logger := newTestDispatcher(t)

	var processed atomic.Int32
	var wg sync.WaitGroup
	wg.Add(1)

	d.Register(":COMBINED:", func(e Event) (any, error) {
		processed.Add(1)
		wg.Done()
		return "done", nil
	}, Buffered(100), Logged())

	result, err := d.Dispatch(Event{Command: ":COMBINED:"})
	require.NoError(t, err)
	assert.Equal(t, "queued", result)

	wg.Wait()
	assert.Equal(t, int32(1), processed.Load())
	assert.GreaterOrEqual(t, len(logger.snapshot()), 2)
}
