package mi

import (
	"bytes"
	"strings"
	"testing"
)

func TestLineIOReadLineStripsTerminator(t *testing.T) {
	r := strings.NewReader("break-insert 0x10\r\n")
	lio := NewLineIO(r, &bytes.Buffer{}, nil)
	line, err := lio.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if line != "break-insert 0x10" {
		t.Fatalf("line = %q", line)
	}
}

func TestLineIOWriteLineMirrorsToTee(t *testing.T) {
	var out, tee bytes.Buffer
	lio := NewLineIO(strings.NewReader(""), &out, &tee)
	if err := lio.WriteLine("(gdb) " + NL); err != nil {
		t.Fatal(err)
	}
	if out.String() != "(gdb) "+NL {
		t.Fatalf("out = %q", out.String())
	}
	if tee.String() != "(gdb) "+NL {
		t.Fatalf("tee = %q", tee.String())
	}
}

func TestLineIOReadLineEOFWithTrailingData(t *testing.T) {
	r := strings.NewReader("no-newline-at-eof")
	lio := NewLineIO(r, &bytes.Buffer{}, nil)
	line, err := lio.ReadLine()
	if line != "no-newline-at-eof" {
		t.Fatalf("line = %q", line)
	}
	if err == nil {
		t.Fatal("expected EOF error alongside the final partial line")
	}
}
