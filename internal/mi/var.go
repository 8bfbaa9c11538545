package mi

import (
	"fmt"

	"github.com/irdbg/irdbg/internal/wire"
)

// registerVarCommands installs var-create, var-delete, and var-update.
// Grounded on the reference interpreter's var command handler, trimmed
// to scalar register expressions the same way data-evaluate-expression
// is; a varobj here is just a named, cached register read.
func registerVarCommands(e *Engine) {
	e.Register("var-create", cmdVarCreate)
	e.Register("var-delete", cmdVarDelete)
	e.Register("var-update", cmdVarUpdate)
}

func cmdVarCreate(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if len(cmd.Args) < 3 {
		reply(ErrorResult(cmd.Token, "var-create requires NAME FRAME EXPRESSION"))
		return
	}
	name, expr := cmd.Args[0], trimQuotes(cmd.Args[2])
	names, err := ensureRegisterNames(e.State())
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	regNo := -1
	for i, n := range names {
		if n == expr {
			regNo = i
			break
		}
	}
	if regNo == -1 {
		reply(ErrorResult(cmd.Token, fmt.Sprintf("No symbol %q in current context.", expr)))
		return
	}
	if name == "-" {
		name = fmt.Sprintf("var%d", regNo)
	}
	data, err := e.State().Client.ReadRegister(regNo)
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	dtype, err := registerDtypeName(e.State(), regNo)
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	value := "0x" + formatLE(data)
	e.State().PutVarObj(&VarObj{Name: name, Expr: expr, RegisterNo: regNo, LastValue: value})
	reply(DoneResult(cmd.Token,
		F("name", name),
		F("value", value),
		F("numchild", "0"),
		F("type", dtype),
		F("thread-id", "1"),
		F("has_more", "0"),
	))
}

func cmdVarDelete(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if len(cmd.Args) == 0 {
		reply(ErrorResult(cmd.Token, "var-delete requires NAME"))
		return
	}
	if !e.State().DeleteVarObj(trimQuotes(cmd.Args[0])) {
		reply(ErrorResult(cmd.Token, "unknown variable object"))
		return
	}
	reply(DoneResult(cmd.Token, F("ndeleted", "1")))
}

func cmdVarUpdate(e *Engine, cmd *wire.MiCommand, reply func(string)) {
	if !e.State().Connected() {
		reply(ErrorResult(cmd.Token, "not connected to a target"))
		return
	}
	if len(cmd.Args) == 0 || cmd.Args[0] == "*" {
		reply(updateAllVarObjs(e, cmd))
		return
	}
	v, ok := e.State().VarObjByName(trimQuotes(cmd.Args[0]))
	if !ok {
		reply(ErrorResult(cmd.Token, "unknown variable object"))
		return
	}
	changed, err := refreshVarObj(e, v)
	if err != nil {
		reply(ErrorResult(cmd.Token, err.Error()))
		return
	}
	reply(DoneResult(cmd.Token, Field{Key: "changelist", Value: List(changed)}))
}

func updateAllVarObjs(e *Engine, cmd *wire.MiCommand) string {
	var all []string
	for _, v := range e.State().varobjsSnapshot() {
		changed, err := refreshVarObj(e, v)
		if err != nil {
			return ErrorResult(cmd.Token, err.Error())
		}
		all = append(all, changed...)
	}
	return DoneResult(cmd.Token, Field{Key: "changelist", Value: List(all)})
}

func refreshVarObj(e *Engine, v *VarObj) ([]string, error) {
	data, err := e.State().Client.ReadRegister(v.RegisterNo)
	if err != nil {
		return nil, err
	}
	value := "0x" + formatLE(data)
	if value == v.LastValue {
		return nil, nil
	}
	v.LastValue = value
	e.State().PutVarObj(v)
	entry := Tuple([]Field{
		F("name", v.Name),
		F("value", value),
		F("in_scope", "true"),
		F("type_changed", "false"),
	})
	return []string{entry}, nil
}

// trimQuotes strips one layer of surrounding double quotes, the way
// ParseMICommand leaves a quoted argument (e.g. `"x"`), before comparing
// it against an unquoted name.
func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// registerDtypeName derives a register's displayed dtype the way the
// reference interpreter's LlvmRegister.dtypeName does: an integer type
// named for its bit width, e.g. "i32".
func registerDtypeName(s *State, regNo int) (string, error) {
	info, err := s.Client.QRegisterInfo(regNo)
	if err != nil {
		return "", err
	}
	return "i" + info["bitsize"], nil
}
