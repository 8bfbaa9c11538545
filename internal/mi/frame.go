package mi

import (
	"fmt"
	"strconv"
)

// demoFuncName and demoProgramFile stand in for the symbol and source
// information a real debug-info reader would supply. This bridge's
// target is a flat linear instruction program with no function table or
// source tree of its own, so every frame and breakpoint reports the same
// synthetic location, mirroring the reference interpreter's single
// fixed "main" function for a program with no other symbols.
const (
	demoFuncName    = "main"
	demoProgramFile = "program.ll"
)

// codelineForPC recovers the source-line number a PC corresponds to,
// inverting the codeline*8 addressing break-insert and the instruction
// table both use.
func codelineForPC(pc uint64) int {
	return int(pc / 8)
}

// frameTuple renders the {level=...,addr=...,func=...,file=...,
// fullname=...,line=...,arch=...} frame value the reference
// interpreter's gdbMsgFormatFrame defines, shared by stack-list-frames
// and every *stopped record.
func frameTuple(level int, pc uint64) string {
	return Tuple([]Field{
		F("level", strconv.Itoa(level)),
		F("addr", fmt.Sprintf("0x%016x", pc)),
		F("func", demoFuncName),
		F("file", demoProgramFile),
		F("fullname", demoProgramFile),
		F("line", strconv.Itoa(codelineForPC(pc))),
		F("arch", "i386:x86-64"),
	})
}
