package errors

import (
	"fmt"
	"os"
	"runtime/debug"
	"sync"
)

// PanicHandler is a function that handles recovered panics.
type PanicHandler func(recovered interface{}, stack []byte)

var (
	defaultPanicHandler     PanicHandler
	defaultPanicHandlerOnce sync.Once
)

// SetDefaultPanicHandler sets the default panic handler for all recovery operations.
func SetDefaultPanicHandler(handler PanicHandler) {
	defaultPanicHandlerOnce.Do(func() {
		defaultPanicHandler = handler
	})
}

// GetDefaultPanicHandler returns the default panic handler.
func GetDefaultPanicHandler() PanicHandler {
	if defaultPanicHandler != nil {
		return defaultPanicHandler
	}
	return func(recovered interface{}, stack []byte) {
		fmt.Fprintf(os.Stderr, "PANIC recovered: %v\nStack trace:\n%s\n", recovered, stack)
	}
}

// RecoverAndLog recovers from panics and logs them.
// Should be used with defer at the beginning of goroutines.
func RecoverAndLog(context string) {
	if r := recover(); r != nil {
		stack := debug.Stack()
		RecordPanic(context)
		handler := GetDefaultPanicHandler()
		if context != "" {
			handler(fmt.Sprintf("%s: %v", context, r), stack)
		} else {
			handler(r, stack)
		}
	}
}

// RecoverToError recovers from panics and converts them to errors.
// Returns nil if no panic occurred.
func RecoverToError(context string) error {
	if r := recover(); r != nil {
		stack := debug.Stack()
		RecordPanic(context)
		GetDefaultPanicHandler()(r, stack)

		msg := fmt.Sprintf("panic: %v", r)
		if context != "" {
			msg = fmt.Sprintf("panic in %s: %v", context, r)
		}
		return NewInternalError("", 0, msg)
	}
	return nil
}

// SafeGo runs a function in a goroutine with panic recovery.
// Panics are logged but do not crash the program.
func SafeGo(context string, fn func()) {
	go func() {
		defer RecoverAndLog(context)
		fn()
	}()
}
