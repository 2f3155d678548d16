package backtrace

import (
	"runtime"
	"strconv"
)

// MaxDepth is the maximum number of frames a [Trace] can hold. Deeper stacks
// are silently capped.
const MaxDepth = 64

// Trace is a bounded snapshot of a single goroutine's call stack: raw program
// counters, innermost frame first.
//
// The zero value is an empty trace, which is valid and renderable. A Trace is
// owned by the caller that constructs it and must not be shared across
// goroutines without external synchronization. Capturing never allocates; the
// frame buffer is embedded in the struct.
type Trace struct {
	pcs   [MaxDepth]uintptr
	depth int
}

// Context is a previously captured snapshot of a goroutine's execution state,
// for use with [Trace.CaptureFrom].
//
// Its intended producer is a deferred function observing an unwinding panic
// (see [Watcher.Recover]), where the stack walk still sees the frames below
// the panic site.
type Context struct {
	pcs   [MaxDepth]uintptr
	depth int
}

// CaptureContext records the current execution state. The walk starts at
// CaptureContext's caller; skip drops that many additional frames.
func CaptureContext(skip int) *Context {
	c := new(Context)
	// 2 skips runtime.Callers and CaptureContext itself.
	c.depth = runtime.Callers(2+skip, c.pcs[:])
	return c
}

func (t *Trace) capture(skip int) {
	t.depth = runtime.Callers(2+skip, t.pcs[:])
}

// Capture records the stack of the calling goroutine, starting at Capture's
// caller. Stacks deeper than [MaxDepth] are capped.
//
// Each call overwrites the previous contents. If the walk cannot proceed the
// trace is left empty, which is still renderable.
func (t *Trace) Capture() {
	t.capture(1) // skip Capture itself
}

// CaptureFrom records the stack held in a previously captured execution
// context rather than the live call stack.
//
// ctx must be non-nil and produced by [CaptureContext]; it is not validated.
func (t *Trace) CaptureFrom(ctx *Context) {
	t.pcs = ctx.pcs
	t.depth = ctx.depth
}

// Depth returns the number of captured frames.
func (t *Trace) Depth() int {
	return t.depth
}

// ProgramCounters returns the captured frames, innermost first. The returned
// slice aliases the Trace's buffer and is only valid until the next capture.
func (t *Trace) ProgramCounters() []uintptr {
	return t.pcs[:t.depth]
}

// String formats the trace with function names and file:line positions,
// resolved from the runtime symbol table. For the logging path, see
// [Renderer.LogTrace].
func (t *Trace) String() string {
	if t.depth == 0 {
		return "<empty stack>\n"
	}

	var buf []byte

	frames := runtime.CallersFrames(t.pcs[:t.depth])
	for {
		frame, more := frames.Next()

		var function, functionTail, file, fileLineSep, line string

		if frame.Function == "" {
			function = "<unknown function>"
		} else {
			function = frame.Function
			functionTail = "(...)"
		}

		if frame.File == "" {
			file = "<unknown file>"
		} else {
			file = frame.File
			if frame.Line != 0 {
				fileLineSep = ":"
				line = strconv.Itoa(frame.Line)
			}
		}

		buf = append(buf, function...)
		buf = append(buf, functionTail...)
		buf = append(buf, "\n\t"...)
		buf = append(buf, file...)
		buf = append(buf, fileLineSep...)
		buf = append(buf, line...)
		buf = append(buf, byte('\n'))

		if !more {
			break
		}
	}

	return string(buf)
}
