package mi

import (
	"strconv"

	"github.com/irdbg/irdbg/internal/wire"
)

// registerThreadCommands installs thread-info, thread-list-ids, and
// thread-select. Grounded on the reference interpreter's thread command
// handler; this bridge's target always exposes exactly one thread, id 1,
// per the RSP stub's fixed "QC01"/"m01" replies.
func registerThreadCommands(e *Engine) {
	e.Register("thread-info", cmdThreadInfo)
	e.Register("thread-list-ids", cmdThreadListIDs)
	e.Register("thread-select", cmdThreadSelect)
}

func cmdThreadInfo(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	id := e.State().SelectedThread()
	entry := Tuple([]Field{
		F("id", strconv.Itoa(id)),
		F("target-id", "Thread 1"),
		F("state", "stopped"),
	})
	reply(DoneResult(cmd.Token,
		Field{Key: "threads", Value: List([]string{entry})},
		F("current-thread-id", strconv.Itoa(id)),
	))
}

func cmdThreadListIDs(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	reply(DoneResult(cmd.Token,
		Field{Key: "thread-ids", Value: Tuple([]Field{F("thread-id", "1")})},
		F("number-of-threads", "1"),
	))
}

func cmdThreadSelect(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if len(cmd.Args) == 0 {
		reply(ErrorResult(cmd.Token, "thread-select requires a thread id"))
		return
	}
	id, err := strconv.Atoi(cmd.Args[0])
	if err != nil {
		reply(ErrorResult(cmd.Token, "invalid thread id"))
		return
	}
	if id != 1 {
		reply(ErrorResult(cmd.Token, "unknown thread id"))
		return
	}
	e.State().SelectThread(id)
	reply(DoneResult(cmd.Token, F("new-thread-id", strconv.Itoa(id))))
}
