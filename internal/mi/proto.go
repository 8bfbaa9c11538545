// Package mi implements the gdb/MI front-end: it reads MI command lines,
// drives an rsp.Client against the target stub, and writes back MI result
// and async records. Where the original this bridge replaces built every
// reply by string-formatting ad hoc, replies here are built by a few
// shared helpers (FormatRecord, with DoneResult, RunningResult,
// ConnectedResult and ErrorResult on top of it): sync result records are
// distinguished by their result class, async records by their prefix.
package mi

import (
	"strconv"
	"strings"

	"github.com/irdbg/irdbg/internal/wire"
)

// NL is gdb/MI's line terminator.
const NL = "\r\n"

// RecordPrefix distinguishes the three record shapes gdb/MI emits.
type RecordPrefix byte

const (
	// SyncResult answers a specific command: "token^class,..."
	SyncResult RecordPrefix = '^'
	// ExecAsync reports a change in execution state: "*class,..."
	ExecAsync RecordPrefix = '*'
	// NotifyAsync reports other asynchronous changes: "=class,..."
	NotifyAsync RecordPrefix = '='
)

// ResultClass is the fixed vocabulary a sync result record's class comes
// from.
type ResultClass string

const (
	ClassDone      ResultClass = "done"
	ClassRunning   ResultClass = "running"
	ClassError     ResultClass = "error"
	ClassConnected ResultClass = "connected"
)

// Field is one key=value pair of a record, Value already rendered as an
// MI value (a quoted string, a {tuple}, or a [list]).
type Field struct {
	Key   string
	Value string
}

// F is shorthand for building a Field with a plain string value.
func F(key, value string) Field { return Field{Key: key, Value: Str(value)} }

// Str renders s as an MI quoted string value.
func Str(s string) string { return wire.EscapeMIString(s, true) }

// Tuple renders fields as an MI {k=v,...} value.
func Tuple(fields []Field) string {
	var b strings.Builder
	b.WriteByte('{')
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	b.WriteByte('}')
	return b.String()
}

// List renders items as an MI [v,...] value.
func List(items []string) string {
	return "[" + strings.Join(items, ",") + "]"
}

// FormatRecord renders one full record line, including its trailing NL.
// token is nil for async records and for sync records with no leading
// command token.
func FormatRecord(token *int, prefix RecordPrefix, class string, fields []Field) string {
	var b strings.Builder
	if token != nil {
		b.WriteString(strconv.Itoa(*token))
	}
	b.WriteByte(byte(prefix))
	b.WriteString(class)
	for _, f := range fields {
		b.WriteByte(',')
		b.WriteString(f.Key)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	b.WriteString(NL)
	return b.String()
}

// DoneResult builds a "token^done[,fields]" record.
func DoneResult(token *int, fields ...Field) string {
	return FormatRecord(token, SyncResult, string(ClassDone), fields)
}

// RunningResult builds a "token^running" record.
func RunningResult(token *int) string {
	return FormatRecord(token, SyncResult, string(ClassRunning), nil)
}

// ConnectedResult builds a "token^connected" record.
func ConnectedResult(token *int) string {
	return FormatRecord(token, SyncResult, string(ClassConnected), nil)
}

// ErrorResult builds a "token^error,msg=\"...\"" record.
func ErrorResult(token *int, msg string) string {
	return FormatRecord(token, SyncResult, string(ClassError), []Field{{"msg", Str(msg)}})
}

// Prompt is gdb/MI's "(gdb) " line, which Engine.Run emits once at start
// and once after each command line it handles.
func Prompt() string { return "(gdb) " + NL }

// StreamRecord renders a console ('~'), target ('@'), or log ('&') stream
// record: free-form text a front-end displays verbatim rather than a
// structured result.
func StreamRecord(kind byte, msg string) string {
	return string(kind) + Str(msg) + NL
}

// UndefinedCommandError formats the message gdb/MI uses for an unknown or
// malformed command: the reconstructed original command line, not just
// its name, mirroring the reference interpreter's "^error,msg=<escaped
// cmdStr>" fallback.
func UndefinedCommandError(cmd *wire.MiCommand) string {
	return cmd.String()
}
