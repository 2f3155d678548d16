package backtrace

import (
	"os"
	ossignal "os/signal" // rename so we can have variables named 'signal'
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"golang.org/x/exp/slices"
)

// Watcher connects the capture/render pipeline to the process's fatal paths:
// OS signals via [Watcher.Install], and panics via a deferred
// [Watcher.Recover].
//
// On a fault the Watcher logs what was caught, renders the backtrace when one
// is recoverable, dumps the tracked task inventory (if any), and runs
// registered fatal actions in reverse registration order.
type Watcher struct {
	mu sync.Mutex

	renderer *Renderer
	actions  []fatalAction
	tasks    *TaskSet

	ch        chan os.Signal
	stop      chan struct{}
	installed atomic.Bool
}

type fatalAction struct {
	name string
	fn   func()
}

// NewWatcher creates a Watcher reporting through r. A nil r selects
// NewRenderer(nil, nil).
func NewWatcher(r *Renderer) *Watcher {
	if r == nil {
		r = NewRenderer(nil, nil)
	}
	return &Watcher{renderer: r}
}

// OnFatal registers a named action to run when a fault is observed. Actions
// run sequentially, most recently registered first, after the fault and
// backtrace have been logged.
//
// Actions must not themselves panic; they run on fatal paths where raising
// further errors is unsafe.
func (w *Watcher) OnFatal(name string, fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.actions = append(w.actions, fatalAction{name: name, fn: fn})
}

// TrackTasks registers a [TaskSet] whose snapshot is included in every fault
// report. A nil ts disables tracking.
func (w *Watcher) TrackTasks(ts *TaskSet) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.tasks = ts
}

// Install begins watching for the given OS signals. Each delivery produces a
// fault report; the signals remain caught until [Watcher.Stop].
//
// Install returns an error if the Watcher is already installed.
func (w *Watcher) Install(signals ...os.Signal) error {
	if !w.installed.CompareAndSwap(false, true) {
		return errors.New("fault watcher already installed")
	}

	w.mu.Lock()
	w.ch = make(chan os.Signal, 1)
	w.stop = make(chan struct{})
	ch, stop := w.ch, w.stop
	w.mu.Unlock()

	ossignal.Notify(ch, signals...)

	go func() {
		for {
			select {
			case <-stop:
				return
			case sig, ok := <-ch:
				if !ok {
					return
				}
				w.handleSignal(sig)
			}
		}
	}()

	return nil
}

// Stop undoes [Watcher.Install]: signal delivery reverts to its default
// behavior and the watching goroutine exits. Stop is idempotent, and the
// Watcher may be installed again afterwards.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stop == nil || isClosed(w.stop) {
		return
	}

	ossignal.Stop(w.ch)
	close(w.stop)
	w.installed.Store(false)
}

// Recover reports a fault for an unwinding panic. It is meant to be deferred
// near the top of a goroutine:
//
//	defer watcher.Recover()
//
// On a panic it captures the panicking stack, logs the fault and backtrace,
// runs fatal actions, and then re-panics so that crash semantics are
// preserved. If no panic is unwinding, Recover does nothing.
func (w *Watcher) Recover() {
	v := recover()
	if v == nil {
		return
	}

	// A deferred function runs on the panicking goroutine's stack, so the
	// walk still sees the frames below the panic site.
	ctx := CaptureContext(1) // skip Recover itself

	var t Trace
	t.CaptureFrom(ctx)

	var addr uintptr
	if t.depth > 0 {
		addr = t.pcs[0]
	}
	w.renderer.LogFault("panic", addr)
	w.renderer.LogTrace(&t)

	w.dumpTasks()
	w.runActions()

	panic(v)
}

func (w *Watcher) handleSignal(sig os.Signal) {
	// os/signal does not surface a faulting address; report it unknown.
	w.renderer.LogFault(sig.String(), 0)

	w.dumpTasks()
	w.runActions()
}

func (w *Watcher) dumpTasks() {
	w.mu.Lock()
	ts := w.tasks
	w.mu.Unlock()

	if ts != nil {
		w.renderer.LogTasks(ts.Snapshot())
	}
}

func (w *Watcher) runActions() {
	w.mu.Lock()
	actions := slices.Clone(w.actions)
	w.mu.Unlock()

	// Run without holding the lock; actions may call back into the Watcher.
	for i := len(actions) - 1; i >= 0; i -= 1 {
		actions[i].fn()
	}
}
