package backtrace

import "runtime"

// SymbolizeFunc resolves a single program counter to a human-readable symbol
// name. ok is false when the address is not covered by the symbol source, in
// which case the renderer falls back to printing the raw address.
//
// Implementations may be called from fault-handling paths and should avoid
// locking and unbounded allocation.
type SymbolizeFunc func(pc uintptr) (name string, ok bool)

// RuntimeSymbolize resolves pc against the process's own runtime symbol
// table. It is the resolver used when none is injected.
func RuntimeSymbolize(pc uintptr) (string, bool) {
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return "", false
	}
	return fn.Name(), true
}
