package mi

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/irdbg/irdbg/internal/rsp"
	"github.com/irdbg/irdbg/internal/wire"
)

// Handler answers one parsed MI command, writing any result record
// through reply; command-level failures are reported as ^error records
// by the handler itself.
type Handler func(e *Engine, cmd *wire.MiCommand, reply func(string))

// Engine reads MI command lines off a LineIO, dispatches each to the
// handler registered for its command family, and runs a background
// watcher that turns asynchronous target stops into *stopped records.
// Grounded on the reference interpreter's main command loop, which
// paired a synchronous command reader with a background thread polling
// the remote connection for stop events between commands.
type Engine struct {
	io    *LineIO
	state *State
	log   *slog.Logger

	handlers map[string]Handler

	watcherStop chan struct{}
	watcherDone chan struct{}
}

// NewEngine wires lio and state together. log may be nil.
func NewEngine(lio *LineIO, state *State, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{io: lio, state: state, log: log, handlers: make(map[string]Handler)}
	registerBreakCommands(e)
	registerDataCommands(e)
	registerExecCommands(e)
	registerStackCommands(e)
	registerTargetCommands(e)
	registerThreadCommands(e)
	registerVarCommands(e)
	return e
}

// Register installs fn as the handler for the exact command name
// (e.g. "break-insert").
func (e *Engine) Register(name string, fn Handler) {
	e.handlers[name] = fn
}

// State returns the engine's shared command state.
func (e *Engine) State() *State { return e.state }

// Log returns the engine's logger.
func (e *Engine) Log() *slog.Logger { return e.log }

// Emit writes one already-formatted record line.
func (e *Engine) Emit(record string) {
	if err := e.io.WriteLine(record); err != nil {
		e.log.Debug("mi write failed", "err", err)
	}
}

// Run reads command lines until EOF or the line reader errors, writing
// an initial prompt and one after every command line. It does not start
// or stop the stop-watcher goroutine; AttachTarget starts it and
// StopWatcher stops it.
func (e *Engine) Run() error {
	e.Emit(Prompt())
	for {
		line, err := e.io.ReadLine()
		if line == "" && err != nil {
			return err
		}
		if strings.TrimSpace(line) != "" {
			e.dispatchLine(line)
		}
		e.Emit(Prompt())
		if err != nil {
			return err
		}
	}
}

// Dispatch parses and runs a single MI command line, writing its reply
// through the same path Run uses for a line read off the wire, but
// without a following prompt. Used by -ex command processing at startup.
func (e *Engine) Dispatch(line string) {
	e.dispatchLine(line)
}

func (e *Engine) dispatchLine(line string) {
	cmd := wire.ParseMICommand(line)
	if cmd == nil {
		e.log.Debug("unparsable mi line", "line", line)
		return
	}
	h, ok := e.handlers[cmd.Name]
	if !ok {
		e.Emit(ErrorResult(cmd.Token, UndefinedCommandError(cmd)))
		return
	}
	h(e, cmd, e.Emit)
}

// AttachTarget dials addr, installs the client on State, and starts the
// background stop watcher. Any previously running watcher is stopped
// first.
func (e *Engine) AttachTarget(addr string) error {
	e.StopWatcher()
	c, err := rsp.Dial(addr, e.log)
	if err != nil {
		return err
	}
	e.state.Attach(c)
	e.startWatcher()
	return nil
}

// startWatcher begins polling the target for asynchronous stop packets
// between MI commands, emitting one *stopped record per stop packet; no
// breakpoint notify records are emitted here.
func (e *Engine) startWatcher() {
	e.watcherStop = make(chan struct{})
	e.watcherDone = make(chan struct{})
	go func() {
		defer close(e.watcherDone)
		for {
			select {
			case <-e.watcherStop:
				return
			default:
			}
			c := e.state.Client
			if c == nil {
				return
			}
			sr, ok, err := c.PollStop(50 * time.Millisecond)
			if err != nil {
				return
			}
			if !ok {
				continue
			}
			e.emitStopped(sr)
		}
	}()
}

// StopWatcher halts the background watcher goroutine, if running, and
// waits for it to exit.
func (e *Engine) StopWatcher() {
	if e.watcherStop == nil {
		return
	}
	close(e.watcherStop)
	<-e.watcherDone
	e.watcherStop = nil
	e.watcherDone = nil
}

// emitStopped reports a target stop as a *stopped record. A user
// interrupt is reported the way the reference interpreter's
// gdbMsgFormatStoppedByInterrupt does, with an explicit signal name
// instead of a reason; every other stop (breakpoint hit, single step)
// uses gdbMsgFormatStopped's "end-stepping-range" reason. Both include
// the full current frame and the core the reference interpreter always
// reports as "0".
func (e *Engine) emitStopped(sr rsp.StopReply) {
	var fields []Field
	if sr.Reason == rsp.SignalInt {
		fields = []Field{
			F("signal-name", "SIGINT"),
			F("signal-meaning", "Interrupt"),
		}
	} else {
		fields = []Field{
			F("reason", "end-stepping-range"),
		}
	}
	fields = append(fields, Field{Key: "frame", Value: frameTuple(0, sr.PC)})
	fields = append(fields,
		F("thread-id", fmt.Sprintf("%d", e.state.SelectedThread())),
		F("stopped-threads", "all"),
		F("core", "0"),
	)
	e.Emit(FormatRecord(nil, ExecAsync, "stopped", fields))
}
