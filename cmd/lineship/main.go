package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/lineship/internal/cliconfig"
	"github.com/bft-labs/lineship/pkg/delim"
	"github.com/bft-labs/lineship/pkg/lineship"
	"github.com/bft-labs/lineship/pkg/listen"
	"github.com/bft-labs/lineship/pkg/log"
	"github.com/bft-labs/lineship/plugins/configwatcher"
	"github.com/bft-labs/lineship/plugins/spoolcleanup"
)

const helpDescription = `
Split byte records on a delimiter and ship each message to a remote
TCP or UDP listener, one terminal Success/Failure outcome per record.

Highlights:
  - Reads one record from stdin, or feeds records from a watched spool
    directory.
  - Delimiter supports ${attr} interpolation per record and the \n escape.
  - Configure via file (~/.lineship/config.toml), LINESHIP_* environment
    variables, or flags; flags win.
  - Built-in capture listener for testing: lineship listen.
`

var exampleUsage = strings.TrimSpace(`
  echo "one
two" | lineship --host 10.0.0.5 --port 6514
  lineship --host 10.0.0.5 --port 6514 --spool /var/spool/lineship
  lineship listen --protocol udp --port 6514
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var attrs []string

	zl := cliconfig.Logger()

	root := &cobra.Command{
		Use:     "lineship",
		Short:   "Ship delimiter-split records to a remote TCP or UDP listener",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Load config file first (default $HOME/.lineship/config.toml),
			// then env, then flag overrides.
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			} else {
				cfgFile = ""
			}

			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			staticAttrs, err := parseAttrs(attrs)
			if err != nil {
				return err
			}

			if cfg.Verbose {
				zl = zl.Level(zerolog.DebugLevel)
			} else {
				zl = zl.Level(zerolog.InfoLevel)
			}
			zl.Info().
				Str("protocol", cfg.Protocol).
				Str("host", cfg.Host).
				Int("port", cfg.Port).
				Str("delimiter", cfg.Delimiter).
				Str("charset", cfg.Charset).
				Str("spool", cfg.SpoolDir).
				Msg("configuration")

			return runSend(zl, cfg, cfgFile, staticAttrs)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.lineship/config.toml)")
	root.Flags().StringVar(&cfg.Protocol, "protocol", cfg.Protocol, "transport protocol: tcp or udp")
	root.Flags().StringVar(&cfg.Host, "host", cfg.Host, "remote listener host")
	root.Flags().IntVar(&cfg.Port, "port", cfg.Port, "remote listener port")
	root.Flags().StringVar(&cfg.Delimiter, "delimiter", cfg.Delimiter, `message delimiter; supports ${attr} interpolation and the \n escape`)
	root.Flags().StringVar(&cfg.Charset, "charset", cfg.Charset, "IANA charset used to encode the delimiter")
	root.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "connection establishment timeout")
	root.Flags().DurationVar(&cfg.ShutdownQuietPeriod, "shutdown-quiet-period", cfg.ShutdownQuietPeriod, "drain period before teardown force-closes the socket")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "hard bound on teardown")
	root.Flags().DurationVar(&cfg.Poll, "poll", cfg.Poll, "idle poll interval between dispatch invocations")
	root.Flags().IntVar(&cfg.QueueSize, "queue-size", cfg.QueueSize, "submission queue capacity")
	root.Flags().IntVar(&cfg.MaxPerDispatch, "max-per-dispatch", cfg.MaxPerDispatch, "max new records accepted per dispatch invocation")
	root.Flags().IntVar(&cfg.WriteQueueSize, "write-queue-size", cfg.WriteQueueSize, "stream writer queue capacity")
	if err := root.Flags().MarkHidden("write-queue-size"); err != nil {
		zl.Info().Err(err).Msg("failed to hide write-queue-size flag")
	}
	root.Flags().StringVar(&cfg.StateDir, "state-dir", cfg.StateDir, "directory for status.json counters (empty disables)")
	root.Flags().StringVar(&cfg.SpoolDir, "spool", cfg.SpoolDir, "watched spool directory to feed records from")
	root.Flags().StringArrayVar(&attrs, "attr", nil, "record attribute key=value (repeatable)")
	root.Flags().BoolVar(&cfg.Once, "once", cfg.Once, "settle all accepted work and exit")
	root.Flags().BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "enable debug logging")

	root.AddCommand(listenCommand(zl))

	if err := root.Execute(); err != nil {
		zl.Error().Err(err).Msg("lineship")
		os.Exit(1)
	}
}

// runSend builds the lineship instance and feeds it either one stdin
// record or the spool directory, then waits for a signal or completion.
func runSend(zl zerolog.Logger, cfg cliconfig.Config, cfgFile string, attrs map[string]string) error {
	spoolMode := cfg.SpoolDir != ""

	libCfg := lineship.Config{
		Protocol:            cfg.Protocol,
		Host:                cfg.Host,
		Port:                cfg.Port,
		Delimiter:           cfg.Delimiter,
		Charset:             cfg.Charset,
		ConnectTimeout:      cfg.ConnectTimeout,
		ShutdownQuietPeriod: cfg.ShutdownQuietPeriod,
		ShutdownTimeout:     cfg.ShutdownTimeout,
		Poll:                cfg.Poll,
		QueueSize:           cfg.QueueSize,
		MaxPerDispatch:      cfg.MaxPerDispatch,
		WriteQueueSize:      cfg.WriteQueueSize,
		StateDir:            cfg.StateDir,
		ConfigPath:          cfgFile,
		// One stdin record is always a run-to-completion job.
		Once: cfg.Once || !spoolMode,
	}

	opts := []lineship.Option{
		lineship.WithLogger(log.NewZerologAdapterWithLogger(zl)),
	}
	if cfgFile != "" {
		opts = append(opts, configwatcher.WithConfigWatcher(configwatcher.DefaultConfig()))
	}
	if spoolMode {
		opts = append(opts,
			lineship.WithSpool(lineship.SpoolConfig{Dir: cfg.SpoolDir}),
			spoolcleanup.WithDefaultSpoolCleanup(),
		)
	}

	l, err := lineship.New(libCfg, opts...)
	if err != nil {
		return fmt.Errorf("create lineship: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := l.Start(ctx); err != nil {
		return fmt.Errorf("start lineship: %w", err)
	}

	// Count failures while draining outcomes; the channel closes when
	// the instance stops.
	failedCh := make(chan int, 1)
	go func() {
		failed := 0
		for r := range l.Outcomes() {
			if r.Failed() {
				failed++
			}
		}
		failedCh <- failed
	}()

	if !spoolMode {
		payload, err := io.ReadAll(os.Stdin)
		if err != nil {
			_ = l.Stop()
			return fmt.Errorf("read stdin: %w", err)
		}
		rec := lineship.NewRecord("stdin", payload, attrs)
		if err := l.Submit(rec); err != nil {
			_ = l.Stop()
			return fmt.Errorf("submit: %w", err)
		}
	}

	// Detect completion (once mode or crash) by polling status.
	doneCh := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				status := l.Status()
				if status == lineship.StateStopped || status == lineship.StateCrashed {
					close(doneCh)
					return
				}
			}
		}
	}()

	select {
	case <-sigCh:
		zl.Info().Msg("received signal, stopping...")
	case <-doneCh:
		if l.Status() == lineship.StateCrashed {
			zl.Error().Msg("lineship crashed")
		}
	}

	if err := l.Stop(); err != nil && !errors.Is(err, lineship.ErrNotRunning) {
		return fmt.Errorf("stop lineship: %w", err)
	}

	failed := <-failedCh
	if failed > 0 {
		return fmt.Errorf("%d record(s) failed", failed)
	}
	return nil
}

// listenCommand builds the capture listener subcommand. It receives
// delimited TCP streams or UDP datagrams and prints one line per
// message, which makes it the counterpart of the root send command in
// smoke tests.
func listenCommand(zl zerolog.Logger) *cobra.Command {
	var (
		protocol  string
		addr      string
		port      int
		delimiter string
		charset   string
	)

	cmd := &cobra.Command{
		Use:     "listen",
		Short:   "Receive delimited messages and print them to stdout",
		Example: "  lineship listen --port 6514\n  lineship listen --protocol udp --port 6514",
		RunE: func(cmd *cobra.Command, args []string) error {
			cs, err := delim.LookupCharset(charset)
			if err != nil {
				return err
			}
			framing, err := delim.NewResolver(delimiter, cs).Resolve(nil)
			if err != nil {
				return err
			}

			ln, err := listen.New(listen.Config{
				Protocol:  protocol,
				Addr:      fmt.Sprintf("%s:%d", addr, port),
				Delimiter: framing,
			})
			if err != nil {
				return err
			}
			defer ln.Close()

			zl.Info().
				Str("protocol", protocol).
				Str("addr", ln.Addr().String()).
				Msg("listening")

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			for {
				select {
				case <-sigCh:
					zl.Info().Msg("received signal, stopping...")
					return nil
				case msg, ok := <-ln.Messages():
					if !ok {
						return nil
					}
					fmt.Fprintf(os.Stdout, "%s\n", msg.Data)
				}
			}
		},
	}

	cmd.Flags().StringVar(&protocol, "protocol", "tcp", "transport protocol: tcp or udp")
	cmd.Flags().StringVar(&addr, "bind", "0.0.0.0", "address to bind")
	cmd.Flags().IntVar(&port, "port", cliconfig.DefaultPort, "port to listen on")
	cmd.Flags().StringVar(&delimiter, "delimiter", cliconfig.DefaultDelimiter, "message delimiter for stream splitting")
	cmd.Flags().StringVar(&charset, "charset", cliconfig.DefaultCharset, "IANA charset used to encode the delimiter")

	return cmd
}

// parseAttrs turns repeated key=value flags into an attribute map.
func parseAttrs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	attrs := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --attr %q, want key=value", p)
		}
		attrs[k] = v
	}
	return attrs, nil
}
