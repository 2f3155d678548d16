package backtrace

import (
	"fmt"

	"go.uber.org/zap"
)

// maxSymbolLen bounds the rendered length of a resolved symbol name. Longer
// names are truncated; truncation is not an error.
const maxSymbolLen = 1024

// loggerName tags all output from this package in the logging sink.
const loggerName = "backtrace"

// Renderer converts captured traces into log lines. It bundles the two
// injected collaborators: the logging sink and the symbol resolver.
//
// Rendering reads the Trace but never mutates it, and never returns an error:
// per-frame resolution failure degrades to printing the raw address.
type Renderer struct {
	log       *zap.Logger
	symbolize SymbolizeFunc
}

// NewRenderer returns a Renderer writing to logger with symbols resolved by
// symbolize. A nil logger selects the global zap logger; a nil symbolize
// selects [RuntimeSymbolize].
func NewRenderer(logger *zap.Logger, symbolize SymbolizeFunc) *Renderer {
	if logger == nil {
		logger = zap.L()
	}
	if symbolize == nil {
		symbolize = RuntimeSymbolize
	}
	return &Renderer{
		log:       logger.Named(loggerName),
		symbolize: symbolize,
	}
}

// LogTrace emits a "Backtrace:" header followed by one line per captured
// frame, in capture order (innermost first), indices starting at 0. Frames
// the resolver cannot name are printed as raw addresses.
//
// An empty trace emits the header line only.
func (r *Renderer) LogTrace(t *Trace) {
	r.log.Error("Backtrace:")

	for i, pc := range t.pcs[:t.depth] {
		if name, ok := r.symbolize(pc); ok {
			if len(name) > maxSymbolLen {
				name = name[:maxSymbolLen]
			}
			r.log.Error(fmt.Sprintf("#%d: %s", i, name))
		} else {
			r.log.Error(fmt.Sprintf("#%d: %#x", i, pc))
		}
	}
}

// LogFault emits a single line reporting which fatal condition was observed
// and the faulting address. It is independent of any captured trace; a fault
// handler uses it to annotate why a trace follows.
func (r *Renderer) LogFault(signame string, addr uintptr) {
	r.log.Error(fmt.Sprintf("Caught %s, suspect faulting address %#x", signame, addr))
}

// LogTasks emits one line per in-flight task, for fault reports. See
// [TaskSet] and [Watcher.TrackTasks].
func (r *Renderer) LogTasks(infos []TaskInfo) {
	for _, info := range infos {
		r.log.Error(fmt.Sprintf("Active task: %s (x%d)", info.Name, info.Count))
	}
}

// Log captures the stack of its caller and renders it to logger in one shot,
// with symbols resolved by [RuntimeSymbolize].
func Log(logger *zap.Logger) {
	var t Trace
	t.capture(1) // skip Log itself
	NewRenderer(logger, nil).LogTrace(&t)
}
