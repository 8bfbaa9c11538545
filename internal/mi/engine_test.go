package mi

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/irdbg/irdbg/internal/rsp"
	"github.com/irdbg/irdbg/internal/target"
)

// startTestServer runs an rsp.Server over a real TCP listener, since
// AttachTarget dials by address rather than accepting an existing
// net.Conn.
func startTestServer(t *testing.T) string {
	t.Helper()
	prog, err := target.NewLinearProgram([]target.Instruction{
		{Name: "add", BitWidth: 32},
		{Name: "add", BitWidth: 32},
		{Name: "ret", BitWidth: 0},
	}, 1)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := rsp.NewServer(prog, nil)
	stopCh := make(chan struct{})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go srv.HandleConn(conn, stopCh)
		}
	}()
	t.Cleanup(func() {
		close(stopCh)
		ln.Close()
	})
	return ln.Addr().String()
}

func newTestEngine() (*Engine, *bytes.Buffer) {
	var out bytes.Buffer
	lio := NewLineIO(strings.NewReader(""), &out, nil)
	e := NewEngine(lio, NewState(), nil)
	return e, &out
}

func awaitSubstring(t *testing.T, out *bytes.Buffer, want string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), want) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %q in output; got %q", want, out.String())
}

func TestEngineTargetSelectConnects(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	if !strings.Contains(out.String(), "1^connected") {
		t.Fatalf("out = %q, want 1^connected", out.String())
	}
}

func TestEngineBreakInsertAndDataListRegisterNames(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	e.dispatchLine("2-break-insert -f main")
	if !strings.Contains(out.String(), "2^done") || !strings.Contains(out.String(), `bkpt={number="0"`) {
		t.Fatalf("out = %q, want 2^done with bkpt=", out.String())
	}
	if !strings.Contains(out.String(), `=breakpoint-created,bkpt=`) {
		t.Fatalf("out = %q, want =breakpoint-created notification", out.String())
	}

	e.dispatchLine("3-data-list-register-names")
	if !strings.Contains(out.String(), `3^done,register-names=[]`) {
		t.Fatalf("out = %q, want empty register-names list", out.String())
	}
}

func TestEngineExecContinueHitsBreakpointAndStops(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	e.dispatchLine("2-break-insert -f test.ll:2") // second instruction: codeline 2 * 8 = addr 0x10
	e.dispatchLine("3-exec-continue")
	if !strings.Contains(out.String(), "3^running") {
		t.Fatalf("out = %q, want 3^running", out.String())
	}
	awaitSubstring(t, out, "*running,thread-id=\"1\"", 2*time.Second)
	awaitSubstring(t, out, "*stopped", 2*time.Second)
}

func TestEngineVarCreateForRegister(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	e.dispatchLine(`2-var-create - * pc`)
	if !strings.Contains(out.String(), "2^done") || !strings.Contains(out.String(), `name="var0"`) {
		t.Fatalf("out = %q, want var-create done with name=var0", out.String())
	}
}

func TestEngineThreadInfoAndStackListFrames(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	e.dispatchLine("2-thread-info")
	if !strings.Contains(out.String(), `target-id="Thread 1"`) {
		t.Fatalf("out = %q, want thread-info result", out.String())
	}
	e.dispatchLine("3-stack-list-frames")
	if !strings.Contains(out.String(), `func="main"`) {
		t.Fatalf("out = %q, want stack-list-frames result", out.String())
	}
}

func TestEngineBreakDeleteUnknownErrors(t *testing.T) {
	addr := startTestServer(t)
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-target-select remote " + addr)
	e.dispatchLine("2-break-delete 99")
	if !strings.Contains(out.String(), "2^error") {
		t.Fatalf("out = %q, want 2^error", out.String())
	}
}

func TestEngineUndefinedCommandReportsError(t *testing.T) {
	e, out := newTestEngine()
	t.Cleanup(e.StopWatcher)

	e.dispatchLine("1-no-such-command")
	if !strings.Contains(out.String(), "1^error") {
		t.Fatalf("out = %q, want 1^error for undefined command", out.String())
	}
}
