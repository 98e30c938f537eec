package logger

import (
	"github.com/go-stack/stack"
)

// NewCallStack returns the stack of the caller, without runtime frames.
func NewCallStack() stack.CallStack {
	return stack.Trace().TrimBelow(stack.Caller(1)).TrimRuntime()
}
