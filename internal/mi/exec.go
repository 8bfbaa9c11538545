package mi

import (
	"github.com/irdbg/irdbg/internal/wire"
)

// registerExecCommands installs exec-continue, exec-step, exec-next,
// exec-run, and exec-interrupt. Grounded on the reference interpreter's
// exec command handler: exec-next and exec-step both arm a single cycle
// (this bridge's target has no notion of stepping over a call), every
// resume command replies ^running followed immediately by a
// *running,thread-id="1" record, and exec-run additionally announces the
// inferior's thread group and thread before resuming, the way gdb
// expects of a fresh "run". The eventual stop is reported later by the
// engine's background watcher as a *stopped record, never as part of the
// resume command's own reply.
func registerExecCommands(e *Engine) {
	e.Register("exec-continue", cmdExecContinue)
	e.Register("exec-step", cmdExecStep)
	e.Register("exec-next", cmdExecStep)
	e.Register("exec-run", cmdExecRun)
	e.Register("exec-interrupt", cmdExecInterrupt)
}

func cmdExecContinue(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if err := e.State().Client.SendContinue(nil); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(RunningResult(cmd.Token))
	emitRunning(e)
}

func cmdExecStep(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if err := e.State().Client.SendStep(nil); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(RunningResult(cmd.Token))
	emitRunning(e)
}

// cmdExecRun handles a fresh "run": gdb expects the thread group and its
// one thread to be announced before the inferior starts moving, then
// behaves exactly like exec-continue.
func cmdExecRun(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	e.Emit(FormatRecord(nil, NotifyAsync, "thread-group-started", []Field{F("id", "i1"), F("pid", "1")}))
	e.Emit(FormatRecord(nil, NotifyAsync, "thread-created", []Field{F("id", "1"), F("group-id", "i1")}))
	if err := e.State().Client.SendContinue(nil); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(RunningResult(cmd.Token))
	emitRunning(e)
}

func cmdExecInterrupt(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if err := e.State().Client.SendInterrupt(); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(DoneResult(cmd.Token))
}

// emitRunning writes the *running record every resume command sends
// right after its ^running reply.
func emitRunning(e *Engine) {
	e.Emit(FormatRecord(nil, ExecAsync, "running", []Field{F("thread-id", "1")}))
}
