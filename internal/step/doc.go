// Package step runs units of virtual-user behavior as named, timed and
// independently failable steps.
//
// Every call to [Run] or [Engine.Step]:
//
//  1. samples the engine's pacing sampler once and waits that long,
//  2. times the behavior inside a "step <name>" span,
//  3. emits exactly one [metrics.Event] tagged [metrics.RequestTypeStep],
//  4. returns an [Outcome] instead of propagating the behavior's error or panic.
//
// A failing step never stops the caller: a task made of steps A and B runs B
// even when A fails, and both outcomes are observable on the event bus.
// Nothing is retried.
//
// If the context ends during the think-time wait the behavior is not invoked,
// no event is emitted, and the outcome is marked Skipped.
package step
