// Package app contains the application core: the dispatcher that turns
// records into wire messages, the completion tracker that carries
// in-flight sends across invocations, and the pump loop that drives
// both.
//
// The dispatcher is invoked repeatedly and never overlaps itself. Each
// invocation reconciles completions left over from earlier invocations
// before it accepts new records, so a record whose messages were handed
// to the transport long ago is completed even when new work keeps
// arriving. All per-record state lives in the tracker; the transport
// below is free to resolve completions asynchronously.
package app
