package mi

import "testing"

func TestFormatRecordWithToken(t *testing.T) {
	tok := 3
	got := FormatRecord(&tok, SyncResult, "done", []Field{F("value", "5")})
	want := "3^done,value=\"5\"" + NL
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestFormatRecordWithoutToken(t *testing.T) {
	got := FormatRecord(nil, ExecAsync, "stopped", nil)
	want := "*stopped" + NL
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestDoneResultErrorResult(t *testing.T) {
	tok := 1
	if got, want := DoneResult(&tok), "1^done"+NL; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if got, want := ErrorResult(&tok, "bad"), `1^error,msg="bad"`+NL; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestTupleAndList(t *testing.T) {
	tup := Tuple([]Field{F("a", "1"), F("b", "2")})
	if want := `{a="1",b="2"}`; tup != want {
		t.Fatalf("got %q, want %q", tup, want)
	}
	lst := List([]string{"x", "y"})
	if want := "[x,y]"; lst != want {
		t.Fatalf("got %q, want %q", lst, want)
	}
}

func TestPrompt(t *testing.T) {
	if got, want := Prompt(), "(gdb) "+NL; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestStreamRecord(t *testing.T) {
	got := StreamRecord('~', "warning: stale")
	want := `~"warning: stale"` + NL
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}
