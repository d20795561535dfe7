// Package lineship provides an embeddable delimiter-aware network
// record dispatcher.
//
// Lineship takes records (a byte payload plus optional string
// attributes), splits each payload into messages on a configurable
// delimiter, and forwards every message to a single remote listener
// over TCP or UDP. Each submitted record receives exactly one terminal
// outcome, Success or Failure, once all of its messages are confirmed
// sent.
//
// # Basic Usage
//
// To embed lineship in your application:
//
//	cfg := lineship.Config{
//	    Protocol:  "tcp",
//	    Host:      "collector.internal",
//	    Port:      6514,
//	    Delimiter: "\n",
//	}
//
//	l, err := lineship.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	ctx := context.Background()
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = l.Submit(lineship.NewRecord("r1", []byte("line one\nline two"), nil))
//	result := <-l.Outcomes()
//	fmt.Println(result.Record, result.Outcome)
//
//	if err := l.Stop(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Configuration
//
// Create a [Config] with at minimum Host and Port. All other fields
// have sensible defaults set via [Config.SetDefaults]. The delimiter
// may embed ${attr} references resolved per record against its
// attributes, and the two-character escape \n is collapsed to a
// newline.
//
// # Event Handling
//
// To receive notifications about lineship operations, implement
// [EventHandler] and pass it via [WithEventHandler]:
//
//	handler := &myEventHandler{}
//	l, err := lineship.New(cfg, lineship.WithEventHandler(handler))
//
// Events are called synchronously from the dispatch goroutine.
// Implementations should return quickly to avoid blocking dispatch.
//
// # Dependency Injection
//
// For testing, you can inject custom implementations of external
// dependencies:
//
//	l, err := lineship.New(cfg,
//	    lineship.WithDialer(recordingDialer),
//	    lineship.WithLogger(customLogger),
//	)
//
// # Lifecycle States
//
// A Lineship instance can be in one of five states: [StateStopped],
// [StateStarting], [StateRunning], [StateDraining], or [StateCrashed].
// Use [Lineship.Status] to query the current state.
//
// # Spool Feed and Plugins
//
// Records can also be fed from a watched spool directory, and plugins
// extend the instance with optional functionality:
//
//	import "github.com/bft-labs/lineship/plugins/configwatcher"
//	import "github.com/bft-labs/lineship/plugins/spoolcleanup"
//
//	l, err := lineship.New(cfg,
//	    lineship.WithSpool(lineship.SpoolConfig{Dir: "/var/spool/lineship"}),
//	    configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()),
//	    spoolcleanup.WithSpoolCleanup(spoolcleanup.DefaultConfig()),
//	)
//
// # Version
//
// Current version: 1.0.0
// Minimum compatible version: 1.0.0
//
// Use [ModuleVersions] to get versions of all sub-modules.
package lineship
