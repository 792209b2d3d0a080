package writable

// Executor runs sink operations. Execute usually hands task to another
// goroutine. A non-nil error means task will never run, and the sink
// operation it carried fails with that error.
//
// *workerpool.Pool satisfies Executor.
type Executor interface {
	Execute(task func()) error
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(task func()) error

// Execute calls f(task).
func (f ExecutorFunc) Execute(task func()) error {
	return f(task)
}

// GoExecutor runs every task on a new goroutine.
var GoExecutor Executor = ExecutorFunc(func(task func()) error {
	go task()
	return nil
})

// InlineExecutor runs every task on the calling goroutine. Sink operations
// then complete before the call that triggered them returns.
var InlineExecutor Executor = ExecutorFunc(func(task func()) error {
	task()
	return nil
})
