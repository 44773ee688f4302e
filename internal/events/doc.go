// Package events turns task lifecycle changes into TaskEvents and fans them
// out to sinks.
//
// The primary components are:
// - TaskEvent: one lifecycle change of one task, with a full task snapshot
// - EventHandler / EventEmitter: the sink and publisher interfaces
// - InMemoryEventEmitter: dispatches to registered handlers in order
// - AsyncEmitter: decouples the queue from sink I/O; only progress and
//   submitted events are dropped under load
// - TaskObserver: plugs an emitter into the task queue as an observer
package events
