/*
Package backtrace captures snapshots of the current call stack and renders
them as symbol-resolved log lines, to produce debuggable evidence at the
moment of a crash or at any explicitly chosen diagnostic point.

Broadly, there are three pieces:

- Capture: [Trace], [Trace.Capture], [Trace.CaptureFrom], and [Context]
- Rendering: [Renderer], [Renderer.LogTrace], [Renderer.LogFault], and [Log]
- Fault integration: [Watcher] and [TaskSet]

# Capture and rendering

Capture and rendering are deliberately separate steps, so that a stack can be
captured cheaply at a point of interest and the cost of symbol resolution and
logging paid only if it later turns out to be warranted:

	var t backtrace.Trace
	t.Capture() // trace is captured as of here.
	...
	r := backtrace.NewRenderer(logger, nil)
	r.LogTrace(&t) // output the captured trace to the log.

A [Trace] holds at most [MaxDepth] frames in a fixed buffer and does not
allocate during capture. The logging sink is a zap logger; symbol resolution
is an injected [SymbolizeFunc], defaulting to the process's own runtime symbol
table. Frames the resolver cannot name are printed as raw addresses.

For the one-shot version of the above, see [Log].

# Fault integration

[Watcher] connects the pipeline to the process's fatal paths: OS signals via
[Watcher.Install], and panics via a deferred [Watcher.Recover], which logs
the fault and the panicking goroutine's backtrace before re-panicking. A
[TaskSet] registered with [Watcher.TrackTasks] records named in-flight
operations, so that fault reports also show what the process was doing.
*/
package backtrace
