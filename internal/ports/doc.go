// Package ports defines the interfaces (ports) that connect the application
// layer to infrastructure adapters.
//
// In Clean Architecture / Hexagonal Architecture, ports are the boundaries
// between the application core and the outside world. They define what the
// application needs from external systems without specifying how those needs
// are fulfilled.
//
// # Port Interfaces
//
//   - [Transport]: Delivers messages to the remote peer (stream or datagram)
//   - [Completion]: Resolution handle for one asynchronous message send
//   - [DelimiterResolver]: Produces the concrete delimiter for one record
//   - [RecordSource]: Feeds records into the dispatcher (files, spool, ...)
//   - [StatsRepository]: Persists and loads cumulative dispatch counters
//   - [Dialer]: Socket dialing abstraction for dependency injection
//   - [Logger]: Structured logging abstraction
//
// # Usage
//
// The application layer (internal/app) depends only on these interfaces.
// Infrastructure adapters (internal/adapters) implement them with concrete
// implementations (TCP/UDP sockets, file system, zerolog, etc.).
//
// This separation enables:
//   - Testing application logic with fake implementations
//   - Swapping infrastructure without changing business logic
//   - Clear boundaries and dependency direction
package ports
