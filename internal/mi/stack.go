package mi

import (
	"github.com/irdbg/irdbg/internal/wire"
)

// registerStackCommands installs stack-info-depth, stack-list-frames,
// and stack-list-variables. Grounded on the reference interpreter's
// stack command handler; this bridge's simulated target has no call
// stack, so every command reports the single synthetic frame at the
// current PC, the depth always 1.
func registerStackCommands(e *Engine) {
	e.Register("stack-info-depth", cmdStackInfoDepth)
	e.Register("stack-list-frames", cmdStackListFrames)
	e.Register("stack-list-variables", cmdStackListVariables)
}

func cmdStackInfoDepth(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	reply(DoneResult(cmd.Token, F("depth", "1")))
}

func cmdStackListFrames(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	pc, err := e.State().Client.ReadRegister(0)
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	frame := "frame=" + frameTuple(0, leUint64(pc))
	reply(DoneResult(cmd.Token, Field{Key: "stack", Value: List([]string{frame})}))
}

// cmdStackListVariables reports every register in scope, the way the
// reference interpreter's stack-list-variables handler does, each at a
// literal value of 0 since this bridge never walks actual frame memory
// to recover a live value here.
func cmdStackListVariables(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	names, err := ensureRegisterNames(e.State())
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	vars := make([]string, len(names))
	for i, n := range names {
		vars[i] = Tuple([]Field{
			F("name", n),
			F("value", "0"),
		})
	}
	reply(DoneResult(cmd.Token, Field{Key: "variables", Value: List(vars)}))
}
