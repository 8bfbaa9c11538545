package target

import "testing"

func threeInstrProgram(t *testing.T) *LinearProgram {
	t.Helper()
	p, err := NewLinearProgram([]Instruction{
		{Name: "add", BitWidth: 32},
		{Name: "add", BitWidth: 32},
		{Name: "ret", BitWidth: 0},
	}, 6)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNewLinearProgramDisambiguatesRegisterNames(t *testing.T) {
	p := threeInstrProgram(t)
	if got := p.NumRegisters(); got != 3 { // pc, add, add_1
		t.Fatalf("NumRegisters() = %d, want 3", got)
	}
	r1, err := p.QRegisterInfo(1)
	if err != nil {
		t.Fatal(err)
	}
	if r1.Name != "add" {
		t.Fatalf("register 1 name = %q, want %q", r1.Name, "add")
	}
	r2, err := p.QRegisterInfo(2)
	if err != nil {
		t.Fatal(err)
	}
	if r2.Name != "add_1" {
		t.Fatalf("register 2 name = %q, want %q", r2.Name, "add_1")
	}
}

func TestLinearProgramPCIsCodelineTimesEight(t *testing.T) {
	p := threeInstrProgram(t)
	if got := p.PC(); got != 48 { // codeline 6 * 8
		t.Fatalf("PC() = %d, want 48", got)
	}
}

func TestLinearProgramStepAdvancesOneInstruction(t *testing.T) {
	p := threeInstrProgram(t)
	p.Step(nil)
	outcome, _, err := p.RunCurrentInstr()
	if err != nil {
		t.Fatal(err)
	}
	if outcome != Retired {
		t.Fatalf("outcome = %v, want Retired", outcome)
	}
	if got := p.PC(); got != 56 { // codeline 7 * 8
		t.Fatalf("PC() after one step = %d, want 56", got)
	}

	outcome, _, err = p.RunCurrentInstr()
	if err != nil {
		t.Fatal(err)
	}
	if outcome != CycleBudgetExhausted {
		t.Fatalf("second call outcome = %v, want CycleBudgetExhausted", outcome)
	}
	if got := p.PC(); got != 56 {
		t.Fatalf("PC() should not move on budget exhaustion, got %d", got)
	}
}

func TestLinearProgramBreakpointStopsAtSuccessor(t *testing.T) {
	p := threeInstrProgram(t)
	if err := p.AddBreakpoint(BreakpointSoftware, 56, 0); err != nil { // codeline 7
		t.Fatal(err)
	}
	p.Continue(nil)
	outcome, addr, err := p.RunCurrentInstr()
	if err != nil {
		t.Fatal(err)
	}
	if outcome != BreakpointHit || addr != 56 {
		t.Fatalf("outcome=%v addr=%d, want BreakpointHit at 56", outcome, addr)
	}
}

func TestLinearProgramBreakpointAtEntryStopsBeforeExecuting(t *testing.T) {
	p := threeInstrProgram(t)
	if err := p.AddBreakpoint(BreakpointSoftware, 48, 0); err != nil { // entry codeline 6
		t.Fatal(err)
	}
	p.Continue(nil)
	outcome, addr, err := p.RunCurrentInstr()
	if err != nil {
		t.Fatal(err)
	}
	if outcome != BreakpointHit || addr != 48 {
		t.Fatalf("outcome=%v addr=%d, want BreakpointHit at entry 48", outcome, addr)
	}
	r1, _ := p.ReadRegister(1)
	for _, b := range r1 {
		if b != 0 {
			t.Fatalf("entry instruction must not have executed, register bytes = %v", r1)
		}
	}
}

func TestLinearProgramRemoveBreakpointUnknownErrors(t *testing.T) {
	p := threeInstrProgram(t)
	if err := p.RemoveBreakpoint(BreakpointSoftware, 999, 0); err != ErrNoBreakpoint {
		t.Fatalf("err = %v, want ErrNoBreakpoint", err)
	}
}

func TestLinearProgramRunsOffEndRetiresForever(t *testing.T) {
	p := threeInstrProgram(t)
	p.Continue(nil)
	for i := 0; i < 3; i++ {
		outcome, _, err := p.RunCurrentInstr()
		if err != nil {
			t.Fatal(err)
		}
		if outcome != Retired {
			t.Fatalf("call %d: outcome = %v, want Retired", i, outcome)
		}
	}
}

func TestLinearProgramReadAllRegistersLength(t *testing.T) {
	p := threeInstrProgram(t)
	// pc (8 bytes) + add (4 bytes) + add_1 (4 bytes) = 16
	if got := len(p.ReadAllRegisters()); got != 16 {
		t.Fatalf("ReadAllRegisters() length = %d, want 16", got)
	}
}

func TestLinearProgramReadWriteMemoryRoundTrip(t *testing.T) {
	p := threeInstrProgram(t)
	if err := p.WriteMemory(100, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	got, err := p.ReadMemory(100, 3)
	if err != nil {
		t.Fatal(err)
	}
	if got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Fatalf("ReadMemory = %v", got)
	}
}

func TestLinearProgramWriteRegisterUnsupported(t *testing.T) {
	p := threeInstrProgram(t)
	if err := p.WriteRegister(1, []byte{1, 2, 3, 4}); err != ErrUnsupported {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}

func TestLinearProgramBranchInstructionUsesExplicitNext(t *testing.T) {
	p, err := NewLinearProgram([]Instruction{
		{Name: "cmp", BitWidth: 1, Next: 2}, // jumps over the next instruction
		{Name: "dead", BitWidth: 32},
		{Name: "ret", BitWidth: 0},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	p.Step(nil)
	if _, _, err := p.RunCurrentInstr(); err != nil {
		t.Fatal(err)
	}
	if got := p.PC(); got != 24 { // codeline 1+2=3, 3*8=24
		t.Fatalf("PC() = %d, want 24 (jumped to instruction index 2)", got)
	}
}
