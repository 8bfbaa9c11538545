package mi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/irdbg/irdbg/internal/target"
	"github.com/irdbg/irdbg/internal/wire"
)

// mainEntryCodeline is the fixed source-line number "break-insert -f main"
// resolves to: the reference interpreter's LLVM_IR_SRC_CODELINE_OFFSET,
// the line a program's entry function always starts on in the synthetic
// IR this bridge's target stands in for.
const mainEntryCodeline = 6

// registerBreakCommands installs break-insert and break-delete.
// Grounded on the reference interpreter's break command handler, which
// resolved a break-insert location to a codeline (never a raw address)
// and reported the gdb-visible breakpoint number back via both the
// =breakpoint-created notification and the ^done reply.
func registerBreakCommands(e *Engine) {
	e.Register("break-insert", cmdBreakInsert)
	e.Register("break-delete", cmdBreakDelete)
}

func cmdBreakInsert(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	codeline, err := breakInsertCodeline(cmd.Args)
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	addr := uint64(codeline) * 8
	kind := int(target.BreakpointSoftware)
	if hasFlag(cmd.Args, "-h") {
		kind = int(target.BreakpointHardware)
	}
	if err := e.State().Client.BreakInsert(kind, addr, 4); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	bp := e.State().AddBreakpoint(addr, codeline, kind, 4)
	bkpt := Tuple([]Field{
		F("number", strconv.Itoa(bp.Number)),
		F("type", "breakpoint"),
		F("disp", "keep"),
		F("enabled", "y"),
		F("addr", "0x"+strconv.FormatUint(addr, 16)),
		F("func", demoFuncName),
		F("file", demoProgramFile),
		F("fullname", demoProgramFile),
		F("line", strconv.Itoa(codeline)),
		{Key: "thread-groups", Value: List([]string{Str("i1")})},
		F("times", "0"),
	})
	e.Emit(FormatRecord(nil, NotifyAsync, "breakpoint-created", []Field{{Key: "bkpt", Value: bkpt}}))
	reply(DoneResult(cmd.Token, Field{Key: "bkpt", Value: bkpt}))
}

// breakInsertCodeline resolves a break-insert location argument to a
// source codeline: "-f main" (with or without a leading "-t") always
// resolves to mainEntryCodeline, and "-f file:line" parses the trailing
// line number directly, exactly as the reference interpreter did.
func breakInsertCodeline(args []string) (int, error) {
	loc := lastPositional(args)
	if loc == "main" {
		return mainEntryCodeline, nil
	}
	if idx := strings.LastIndex(loc, ":"); idx >= 0 {
		n, err := strconv.Atoi(loc[idx+1:])
		if err != nil {
			return 0, err
		}
		return n, nil
	}
	return 0, fmt.Errorf("break-insert requires a \"-f main\" or \"-f FILE:LINE\" location")
}

func cmdBreakDelete(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	numArg := lastPositional(cmd.Args)
	n, err := strconv.Atoi(numArg)
	if err != nil {
		reply(ErrorResult(cmd.Token, "break-delete requires a breakpoint number"))
		return
	}
	bp, ok := e.State().RemoveBreakpoint(n)
	if !ok {
		reply(ErrorResult(cmd.Token, "no such breakpoint"))
		return
	}
	if err := e.State().Client.BreakDelete(bp.Kind, bp.Addr, bp.Length); err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	e.Emit(FormatRecord(nil, NotifyAsync, "breakpoint-deleted", []Field{{Key: "id", Value: strconv.Itoa(n)}}))
	reply(DoneResult(cmd.Token))
}

// lastPositional returns the final non-flag argument, the convention MI
// clients use for a trailing "LOCATION" or "NUMBER" parameter after any
// leading "-f"/"-h"-style flags.
func lastPositional(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if !strings.HasPrefix(args[i], "-") {
			return args[i]
		}
	}
	return ""
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}
