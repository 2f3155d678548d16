package backtrace_test

import (
	"os"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sharnoff/backtrace"
)

//go:noinline
func panicked() {
	panic("boom")
}

func TestRecoverReportsPanic(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	w := backtrace.NewWatcher(backtrace.NewRenderer(zap.New(core), nil))

	var order []string
	w.OnFatal("first", func() { order = append(order, "first") })
	w.OnFatal("second", func() { order = append(order, "second") })

	func() {
		defer func() {
			// Recover re-panics; absorb it here and check the value survived.
			require.Equal(t, "boom", recover())
		}()

		defer w.Recover()
		panicked()
	}()

	msgs := messages(logs)
	require.Greater(t, len(msgs), 2)
	require.True(t, strings.HasPrefix(msgs[0], "Caught panic, suspect faulting address 0x"))
	require.Equal(t, "Backtrace:", msgs[1])

	// The panicking frame shows up in the rendered trace.
	require.Contains(t, strings.Join(msgs, "\n"), "panicked")

	// Fatal actions ran most recently registered first.
	require.Equal(t, []string{"second", "first"}, order)
}

func TestRecoverWithoutPanic(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.ErrorLevel)
	w := backtrace.NewWatcher(backtrace.NewRenderer(zap.New(core), nil))

	ran := false
	w.OnFatal("never", func() { ran = true })

	func() {
		defer w.Recover()
	}()

	require.Zero(t, logs.Len())
	require.False(t, ran)
}

func TestWatcherInstallTwice(t *testing.T) {
	t.Parallel()

	w := backtrace.NewWatcher(nil)

	require.NoError(t, w.Install(syscall.SIGUSR2))
	require.Error(t, w.Install(syscall.SIGUSR2))

	w.Stop()
	w.Stop() // idempotent

	// Stop makes room for a fresh Install.
	require.NoError(t, w.Install(syscall.SIGUSR2))
	w.Stop()
}

func TestWatcherSignalReport(t *testing.T) {
	// Not parallel: delivers a real signal to the process.
	core, logs := observer.New(zapcore.ErrorLevel)
	w := backtrace.NewWatcher(backtrace.NewRenderer(zap.New(core), nil))

	tasks := backtrace.NewTaskSet()
	tasks.Enter("ingest")
	tasks.Enter("ingest")
	tasks.Enter("compact")
	w.TrackTasks(tasks)

	var mu sync.Mutex
	var order []string
	record := func(name string) func() {
		return func() {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}
	w.OnFatal("a", record("a"))
	w.OnFatal("b", record("b"))

	require.NoError(t, w.Install(syscall.SIGUSR1))
	defer w.Stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGUSR1))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 2
	}, 2*time.Second, 5*time.Millisecond)

	msgs := messages(logs)
	require.Equal(t, "Caught user defined signal 1, suspect faulting address 0x0", msgs[0])
	require.Contains(t, msgs, "Active task: compact (x1)")
	require.Contains(t, msgs, "Active task: ingest (x2)")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"b", "a"}, order)
}
