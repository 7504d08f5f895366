// Package trace records what the executor loop does.
//
// # Usage
//
//	ember run blinky --trace=- --trace-level=claim
//
// # Tracers
//
//   - Nop: zero-overhead tracer when disabled
//   - StreamTracer: immediate write to output (file/stderr)
//   - RingTracer: circular buffer, dumped after an invariant panic
//   - MultiTracer: combines multiple tracers
//
// # Levels and scopes
//
// ScopeRuntime events mark executor runs and CLI commands. ScopeLoop events
// mark park and unpark. ScopeClaim spans wrap one run queue claim with its
// batch size. ScopeTask spans wrap single polls and are only kept at
// LevelDebug. The wake path never emits: wakes run on arbitrary goroutines
// and must not touch a lock.
//
//	ctx = trace.WithTracer(ctx, tracer)
//	span := trace.Begin(trace.FromContext(ctx), trace.ScopeRuntime, "bench", 0)
//	defer span.End("")
package trace
