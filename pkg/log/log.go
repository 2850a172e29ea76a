// Package log wraps zerolog with the conventions hostd's core uses
// everywhere: a global structured logger, component-scoped children, and a
// background drain worker that mirrors records into the per-state
// artifacts described in spec.md's "Persisted state layout" (§6):
// trident-<state>-<YYYYMMDDTHHMMSSZ>.log.
//
// The core is single-threaded and synchronous (§5); logging is the one
// place that intentionally isn't. Callers write through the package-level
// helpers or a component logger, which enqueue onto a single-producer
// channel; one worker goroutine drains it and fans each record out to the
// console and, when a state artifact is open, to that file. Shutdown
// closes the channel and joins the worker so no record is lost mid-state.
package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is a logging verbosity, kept as hostd's own type so config
// packages don't need to import zerolog directly.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

func (l Level) zerolog() zerolog.Level {
	switch l {
	case DebugLevel:
		return zerolog.DebugLevel
	case WarnLevel:
		return zerolog.WarnLevel
	case ErrorLevel:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Config holds logger construction options.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// StateLogDir, when non-empty, is the datastore directory under which
	// per-state log artifacts are created as states are entered via
	// BeginState. Empty disables file artifacts (e.g. in tests).
	StateLogDir string

	// QueueSize bounds the background drain channel. Zero uses a default.
	// A full queue blocks the caller rather than drop records.
	QueueSize int
}

// record is a single enqueued, already-rendered log line.
type record struct {
	line []byte
}

// fanoutWriter is handed to zerolog as its output; each Write enqueues a
// copy of the buffer instead of writing synchronously.
type fanoutWriter struct {
	queue chan<- record
}

func (w *fanoutWriter) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	w.queue <- record{line: line}
	return len(p), nil
}

var (
	// Logger is the global logger instance. Set by Init.
	Logger zerolog.Logger

	mu          sync.Mutex
	queue       chan record
	done        chan struct{}
	stateDir    string
	stateFile   *os.File
	consoleDest io.Writer
)

const defaultQueueSize = 1024

// Init configures the global logger and starts its background drain
// worker. Callers must call Shutdown before process exit to flush pending
// records and close any open state artifact.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	consoleDest = cfg.Output
	if consoleDest == nil {
		consoleDest = os.Stderr
	}
	stateDir = cfg.StateLogDir

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	queue = make(chan record, size)
	done = make(chan struct{})

	writer := &fanoutWriter{queue: queue}
	var base zerolog.Logger
	if cfg.JSONOutput {
		base = zerolog.New(writer).With().Timestamp().Logger()
	} else {
		base = zerolog.New(zerolog.ConsoleWriter{
			Out:        writer,
			TimeFormat: time.RFC3339,
			NoColor:    true,
		}).With().Timestamp().Logger()
	}
	zerolog.SetGlobalLevel(cfg.Level.zerolog())
	Logger = base

	go drain(queue, done)
}

// drain is the single consumer of the log queue: it runs until the queue
// channel is closed, fanning each record out to the console and, if open,
// the current state artifact.
func drain(q <-chan record, done chan<- struct{}) {
	defer close(done)
	for r := range q {
		mu.Lock()
		dest := consoleDest
		sf := stateFile
		mu.Unlock()

		if dest != nil {
			_, _ = dest.Write(r.line)
		}
		if sf != nil {
			_, _ = sf.Write(r.line)
		}
	}
}

// Shutdown drops the producer end of the queue and blocks until the
// worker has drained everything already enqueued, then closes any open
// state artifact.
func Shutdown() {
	mu.Lock()
	q := queue
	d := done
	sf := stateFile
	stateFile = nil
	queue = nil
	done = nil
	mu.Unlock()

	if q == nil {
		return
	}
	close(q)
	if d != nil {
		<-d
	}
	if sf != nil {
		_ = sf.Close()
	}
}

// BeginState opens a new per-state log artifact under the configured
// StateLogDir, closing any previously open one. The name follows the
// trident-<state>-<YYYYMMDDTHHMMSSZ>.log convention; now is supplied by the
// caller rather than read here, since state transitions already stamp
// their own clock reading and this package must stay deterministic.
func BeginState(state string, now time.Time) error {
	mu.Lock()
	defer mu.Unlock()

	if stateDir == "" {
		return nil
	}
	if stateFile != nil {
		_ = stateFile.Close()
		stateFile = nil
	}

	name := fmt.Sprintf("trident-%s-%s.log", state, now.UTC().Format("20060102T150405Z"))
	f, err := os.OpenFile(filepath.Join(stateDir, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	stateFile = f
	return nil
}

// WithComponent creates a child logger tagged with the subsystem or
// package emitting the record, e.g. "engine", "storagegraph", "image".
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithState tags a child logger with the servicing state being executed,
// matching the state name used for the per-state log artifact.
func WithState(state string) zerolog.Logger {
	return Logger.With().Str("state", state).Logger()
}

// WithOperationID tags a child logger with the servicing operation's
// identifier, so every record for one install/update/rollback can be
// picked out of the shared artifact.
func WithOperationID(operationID string) zerolog.Logger {
	return Logger.With().Str("operation_id", operationID).Logger()
}

func Info(msg string) { Logger.Info().Msg(msg) }

func Debug(msg string) { Logger.Debug().Msg(msg) }

func Warn(msg string) { Logger.Warn().Msg(msg) }

func Error(msg string) { Logger.Error().Msg(msg) }

func Errorf(format string, err error) { Logger.Error().Err(err).Msg(format) }

func Fatal(msg string) { Logger.Fatal().Msg(msg) }
