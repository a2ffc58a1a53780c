package ejectart

import (
	"fmt"
	"sync"
)

// DebugLog prints a line when Debug is enabled. Gated at runtime on the
// Debug var rather than a build tag, so callers never need a special
// build invocation to exercise it.
func DebugLog(format string, args ...interface{}) {
	if !Debug {
		return
	}
	fmt.Printf("[DEBUG] "+format+"\n", args...)
}

var debugOnce sync.Map // map[string]*sync.Once

// DebugLogOnce prints a line keyed by format string at most once per
// process, for hot-loop diagnostics that would otherwise flood stdout.
func DebugLogOnce(key, format string, args ...interface{}) {
	if !Debug {
		return
	}
	onceVal, _ := debugOnce.LoadOrStore(key, &sync.Once{})
	onceVal.(*sync.Once).Do(func() {
		fmt.Printf("[DEBUG] "+format+"\n", args...)
	})
}
