// Package metrics carries step outcome events from user instances to their consumers.
//
// Every step executed by a virtual user produces exactly one [Event]. Events are
// published to an [Emitter]; the usual emitter is a [Bus] that fans each event out
// to its listeners in subscription order:
//
//	bus := metrics.NewBus()
//	collector := metrics.NewCollector()
//	recorder := metrics.NewRecorder()
//	bus.Subscribe(collector)
//	bus.Subscribe(recorder)
//
//	bus.Emit(metrics.Event{RequestType: "Step", Name: "login", ResponseTime: 12.5})
//
// # Listeners
//
//   - [Collector] aggregates latency percentiles and failure counts overall and per
//     step name using an HDR histogram.
//   - [Recorder] keeps the raw event stream in emission order. It backs the
//     try-script report and most tests.
//
// # Thread Safety
//
// Bus, Collector and Recorder are safe for concurrent use. Many user instances emit
// onto one bus at the same time; no event is dropped and each listener observes the
// events of a single emitting goroutine in the order they were emitted.
package metrics
