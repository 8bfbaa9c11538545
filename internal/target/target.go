// Package target defines the capability interface the RSP server stub
// drives to advance a simulated program one instruction per cycle, and a
// small demo adapter (LinearProgram) that implements it for a synthetic
// instruction stream that falls through by default and branches only
// where an instruction names an explicit successor. A real IR interpreter is an external
// collaborator of this bridge and is not implemented here; LinearProgram
// exists only so the protocol core has something concrete to test and
// demo against.
package target

import "fmt"

// HaltReason mirrors the GDB target signal numbers this bridge ever emits.
type HaltReason int

const (
	HaltTrap HaltReason = 5 // breakpoint hit
	HaltInt  HaltReason = 2 // user interrupt (vCtrlC)
	HaltKill HaltReason = 9 // target raised
)

// StepOutcome is the three-way result of advancing one simulated
// instruction, per spec §4.2's runCurrentInstr() contract.
type StepOutcome int

const (
	// Retired means the instruction executed and the next one is not at a
	// breakpoint address.
	Retired StepOutcome = iota
	// BreakpointHit means the successor instruction's address is in the
	// breakpoint table; the PC is already positioned at it.
	BreakpointHit
	// CycleBudgetExhausted means the cycle budget was zero on entry; no
	// instruction was executed.
	CycleBudgetExhausted
)

// RegisterInfo is the register-info descriptor from the data model: one
// entry per register in index order, index 0 always the synthetic PC.
type RegisterInfo struct {
	Name     string
	BitSize  int
	Offset   int // byte offset within the concatenated register dump
	Encoding string // always "uint"
	Format   string // always "hex"
	Set      string // human-readable register set name
	Generic  string // "pc" for index 0, register name otherwise
}

// ErrRegisterOutOfRange is returned by ReadRegister for an index beyond the
// register table.
var ErrRegisterOutOfRange = fmt.Errorf("target: register index out of range")

// ErrNoBreakpoint is returned by RemoveBreakpoint when addr was never added.
var ErrNoBreakpoint = fmt.Errorf("target: no breakpoint at address")

// BreakpointKind mirrors GdbBreakPointType.
type BreakpointKind int

const (
	BreakpointSoftware BreakpointKind = iota
	BreakpointHardware
	BreakpointWriteWatch
	BreakpointReadWatch
	BreakpointAccessWatch
)

// Target is the capability set the RSP server stub drives. Every method
// returns a reply value rather than throwing; a conforming implementation
// that cannot serve a given operation returns the documented "unsupported"
// zero value (an empty byte slice, or a descriptive error the server turns
// into an empty RSP reply), never panics.
type Target interface {
	// HaltReason reports why execution is currently stopped.
	HaltReason() HaltReason

	// ReadAllRegisters returns the concatenated little-endian bytes of
	// every register in index order: PC first (8 bytes), then each IR
	// register packed to ceil(bitwidth/8) bytes.
	ReadAllRegisters() []byte

	// ReadRegister returns the little-endian bytes of register i.
	ReadRegister(i int) ([]byte, error)

	// WriteAllRegisters and WriteRegister are optional; a Target that does
	// not support register writes returns ErrUnsupported.
	WriteAllRegisters(data []byte) error
	WriteRegister(i int, data []byte) error

	// ReadMemory and WriteMemory are optional in the same sense.
	ReadMemory(addr uint64, length int) ([]byte, error)
	WriteMemory(addr uint64, data []byte) error

	// Step arms a one-instruction cycle budget. addr is advisory.
	Step(addr *uint64)
	// Continue arms an unbounded cycle budget. addr is advisory.
	Continue(addr *uint64)

	// RunCurrentInstr advances exactly one simulated cycle. See the type's
	// doc comment on StepOutcome for the three-way contract. When the
	// outcome is BreakpointHit, breakAddr is the address the PC now sits
	// at.
	RunCurrentInstr() (outcome StepOutcome, breakAddr uint64, err error)

	// AddBreakpoint and RemoveBreakpoint manage the breakpoint table that
	// RunCurrentInstr consults. kind and length are accepted for protocol
	// completeness; a conforming core honors hardware and software alike
	// and may ignore length.
	AddBreakpoint(kind BreakpointKind, addr uint64, length int) error
	RemoveBreakpoint(kind BreakpointKind, addr uint64, length int) error

	// QHostInfo, QMemoryRegionInfo, and QRegisterInfo answer the
	// corresponding RSP descriptor queries.
	QHostInfo() string
	QMemoryRegionInfo(addr uint64) string
	QRegisterInfo(i int) (RegisterInfo, error)

	// NumRegisters reports the size of the register table (including the
	// PC at index 0), for iteration by the MI front-end.
	NumRegisters() int
}

// ErrUnsupported is returned by the optional Target methods when a
// conforming core declines to implement them; the server stub turns this
// into RSP's empty "unsupported" reply rather than an error reply.
var ErrUnsupported = fmt.Errorf("target: operation not supported")
