package mi

import (
	"sync"

	"github.com/irdbg/irdbg/internal/rsp"
)

// VarObj is one entry in the var-create/var-delete/var-update registry.
// Grounded on the reference interpreter's variable-object table, trimmed
// to the single scalar-expression case this bridge's target supports.
type VarObj struct {
	Name       string
	Expr       string
	RegisterNo int
	LastValue  string
}

// Breakpoint records what break-insert reported back to the caller so
// break-delete can refer to it by MI number.
type Breakpoint struct {
	Number   int
	Addr     uint64
	Codeline int
	Kind     int
	Length   int
}

// State holds everything an MI command handler needs beyond the single
// command line it was given: the live connection to the target stub,
// the breakpoint and varobj tables, and bookkeeping for MI numbering.
// Grounded on the reference interpreter's GdbInterpretState, which
// played the same role of threading connection and table state through
// every command handler without making each one a method on a bigger
// god object.
type State struct {
	mu sync.Mutex

	Client *rsp.Client

	breakpoints  map[int]*Breakpoint
	nextBreakNum int

	varobjs map[string]*VarObj

	registerNames []string // index -> name, populated lazily from qRegisterInfo

	selectedThread int
	stackDepth     int
}

// NewState returns an empty State not yet attached to a target.
func NewState() *State {
	return &State{
		breakpoints:    make(map[int]*Breakpoint),
		nextBreakNum:   0,
		varobjs:        make(map[string]*VarObj),
		selectedThread: 1,
	}
}

// Attach installs c as the live connection, replacing any prior one.
func (s *State) Attach(c *rsp.Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Client = c
	s.registerNames = nil
}

// Connected reports whether a target connection is installed.
func (s *State) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Client != nil
}

// AddBreakpoint records bp and assigns it the next MI breakpoint number,
// starting from 0 the way the reference interpreter's breakpointIdCntr
// does.
func (s *State) AddBreakpoint(addr uint64, codeline, kind, length int) *Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp := &Breakpoint{Number: s.nextBreakNum, Addr: addr, Codeline: codeline, Kind: kind, Length: length}
	s.breakpoints[bp.Number] = bp
	s.nextBreakNum++
	return bp
}

// RemoveBreakpoint deletes the breakpoint numbered n, returning it if it
// existed.
func (s *State) RemoveBreakpoint(n int) (*Breakpoint, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bp, ok := s.breakpoints[n]
	if ok {
		delete(s.breakpoints, n)
	}
	return bp, ok
}

// Breakpoints returns a stable-ordered snapshot, lowest number first.
func (s *State) Breakpoints() []*Breakpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Breakpoint, 0, len(s.breakpoints))
	for _, bp := range s.breakpoints {
		out = append(out, bp)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1].Number > out[j].Number; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}

// PutVarObj stores v, replacing any existing entry under the same name.
func (s *State) PutVarObj(v *VarObj) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.varobjs[v.Name] = v
}

// VarObjByName returns the var-object registered under name, if any.
func (s *State) VarObjByName(name string) (*VarObj, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.varobjs[name]
	return v, ok
}

// varobjsSnapshot returns every registered var-object, for var-update "*".
func (s *State) varobjsSnapshot() []*VarObj {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*VarObj, 0, len(s.varobjs))
	for _, v := range s.varobjs {
		out = append(out, v)
	}
	return out
}

// DeleteVarObj removes the var-object registered under name.
func (s *State) DeleteVarObj(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.varobjs[name]; !ok {
		return false
	}
	delete(s.varobjs, name)
	return true
}

// CacheRegisterNames installs the register name table built from
// qRegisterInfo, indexed by register number.
func (s *State) CacheRegisterNames(names []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registerNames = names
}

// RegisterNames returns the cached register name table, or nil if it has
// not been populated yet.
func (s *State) RegisterNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.registerNames
}

// SelectedThread returns the thread id most recently selected by
// thread-select (1 until changed, this bridge's target being
// single-threaded).
func (s *State) SelectedThread() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selectedThread
}

// SelectThread sets the selected thread id.
func (s *State) SelectThread(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selectedThread = id
}
