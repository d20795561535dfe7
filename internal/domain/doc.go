// Package domain contains the core entities and value objects for lineship.
//
// This package represents the innermost layer of the Clean Architecture. It
// has no dependencies on infrastructure concerns (sockets, file system,
// logging) and contains only pure business logic.
//
// # Entities
//
//   - [Record]: One unit of input data plus attributes, submitted for dispatch
//   - [Result]: The terminal verdict for a record, with its cause and counts
//   - [Stats]: Cumulative dispatch counters persisted between runs
//
// # Design Principles
//
// Domain entities are:
//   - Immutable after construction (where practical)
//   - Free of infrastructure dependencies
//   - Focused on business rules and invariants
//   - Testable without mocks or external systems
package domain
