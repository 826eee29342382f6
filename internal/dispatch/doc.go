// Package dispatch provides the background-execution primitive every
// long-running worker in Fieldline Core is built on.
//
// A task runs a target on its own goroutine, guarantees a single cleanup
// step on every exit path, and captures the first error (including
// recovered panics) for inspection after Join(). Errors never escape the
// task goroutine and never crash the process.
//
//	RunOnce        one-shot execution (the controller message loop)
//	RunAtInterval  spaced repetition measured from run start (pollers,
//	               the heartbeat publisher)
//	Supervisor     joins a task, inspects its captured error, and restarts
//	               it within a configured budget
//
// Termination is cooperative: Terminate() cancels the context handed to the
// target, so any cancellation-aware wait unblocks within milliseconds.
package dispatch
