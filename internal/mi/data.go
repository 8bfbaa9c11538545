package mi

import (
	"encoding/binary"
	"fmt"
	"strconv"

	"github.com/irdbg/irdbg/internal/rsp"
	"github.com/irdbg/irdbg/internal/wire"
)

// registerDataCommands installs data-list-register-names,
// data-list-register-values, and data-evaluate-expression. Grounded on
// the reference interpreter's data command handler, which resolved a
// register's display name lazily from the remote's qRegisterInfo replies
// rather than hardcoding a register layout.
func registerDataCommands(e *Engine) {
	e.Register("data-list-register-names", cmdDataListRegisterNames)
	e.Register("data-list-register-values", cmdDataListRegisterValues)
	e.Register("data-evaluate-expression", cmdDataEvaluateExpression)
}

// ensureRegisterNames populates State's register name cache by querying
// qRegisterInfo until the target reports rsp.ErrNoMoreRegisters.
func ensureRegisterNames(s *State) ([]string, error) {
	if names := s.RegisterNames(); names != nil {
		return names, nil
	}
	var names []string
	for i := 0; ; i++ {
		info, err := s.Client.QRegisterInfo(i)
		if err != nil {
			if err == rsp.ErrNoMoreRegisters {
				break
			}
			return nil, err
		}
		name := info["name"]
		if name == "" {
			name = fmt.Sprintf("r%d", i)
		}
		names = append(names, name)
	}
	s.CacheRegisterNames(names)
	return names, nil
}

// cmdDataListRegisterNames always answers with an empty list, matching
// the reference interpreter's data-list-register-names handler: this
// bridge's register names are surfaced through data-evaluate-expression
// and var-create, not this command.
func cmdDataListRegisterNames(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	reply(DoneResult(cmd.Token, Field{Key: "register-names", Value: List(nil)}))
}

func cmdDataListRegisterValues(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	names, err := ensureRegisterNames(e.State())
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	values := make([]string, 0, len(names))
	for i := range names {
		data, rerr := e.State().Client.ReadRegister(i)
		if rerr != nil {
			reply(ErrorResult(cmd.Token, rerr.Error()))
			return
		}
		values = append(values, Tuple([]Field{
			F("number", strconv.Itoa(i)),
			F("value", "0x"+formatLE(data)),
		}))
	}
	reply(DoneResult(cmd.Token, Field{Key: "register-values", Value: List(values)}))
}

// cmdDataEvaluateExpression supports only two expression forms:
// "sizeof(void*)" (answered as 8) and a bare register name.
func cmdDataEvaluateExpression(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if len(cmd.Args) == 0 {
		reply(ErrorResult(cmd.Token, "data-evaluate-expression requires an expression"))
		return
	}
	expr := trimQuotes(cmd.Args[0])
	if expr == "sizeof(void*)" || expr == "sizeof (void*)" {
		reply(DoneResult(cmd.Token, F("value", "8")))
		return
	}
	names, err := ensureRegisterNames(e.State())
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	for i, n := range names {
		if n == expr {
			data, rerr := e.State().Client.ReadRegister(i)
			if rerr != nil {
				reply(ErrorResult(cmd.Token, rerr.Error()))
				return
			}
			reply(DoneResult(cmd.Token, F("value", "0x"+formatLE(data))))
			return
		}
	}
	reply(ErrorResult(cmd.Token, fmt.Sprintf("No symbol %q in current context.", expr)))
}

func formatLE(data []byte) string {
	return strconv.FormatUint(leUint64(data), 16)
}

// leUint64 decodes data as a little-endian uint64, zero-padding a short
// read the way a narrower-than-64-bit register's raw bytes need to be.
func leUint64(data []byte) uint64 {
	buf := make([]byte, 8)
	copy(buf, data)
	return binary.LittleEndian.Uint64(buf)
}
