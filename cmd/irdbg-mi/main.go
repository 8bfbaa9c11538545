// Command irdbg-mi is the gdb/MI front-end: it speaks MI on stdio (and
// any channels opened by -ex "new-ui mi PATH" or --tty), dials an
// irdbg-server (or any RSP-speaking stub) via "target-select remote
// HOST:PORT", and drives it through the internal/mi command engine.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"

	"github.com/irdbg/irdbg/internal/mi"
)

// protocolVersion is this bridge's own MI/RSP subset version, reported by
// "show version" and --version, parsed with semver rather than compared
// as a bare string.
const protocolVersion = "0.1.0"

type stringList []string

func (s *stringList) String() string { return fmt.Sprint([]string(*s)) }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	var interpreters, exCmds stringList
	flag.Var(&interpreters, "interpreter", "interpreter mode: mi, mi2, or console (repeatable)")
	flag.Var(&exCmds, "ex", "command to run before reading stdin (repeatable)")
	nx := flag.Bool("nx", false, "do not read any init file (no-op: this bridge has none)")
	quiet := flag.Bool("q", false, "suppress the startup banner")
	tty := flag.String("tty", "", "path of an additional terminal channel")
	watch := flag.String("watch", "", "path to fsnotify-watch for out-of-band modification warnings")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	v, err := semver.NewVersion(protocolVersion)
	if err != nil {
		fmt.Fprintln(os.Stderr, "irdbg-mi: invalid built-in version:", err)
		os.Exit(1)
	}
	if *showVersion {
		fmt.Printf("irdbg-mi %s\n", v.String())
		return
	}

	for _, it := range interpreters {
		switch it {
		case "mi", "mi2", "console":
		default:
			fmt.Fprintf(os.Stderr, "irdbg-mi: unknown --interpreter %q\n", it)
			os.Exit(1)
		}
	}
	_ = nx // documented no-op: no init file support exists to skip

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	state := mi.NewState()
	lio := mi.NewLineIO(os.Stdin, os.Stdout, nil)
	engine := mi.NewEngine(lio, state, log)
	defer engine.StopWatcher()

	if *tty != "" {
		f, err := os.OpenFile(*tty, os.O_RDWR, 0)
		if err != nil {
			fmt.Fprintln(os.Stderr, "irdbg-mi: open tty:", err)
			os.Exit(1)
		}
		defer f.Close()
		restore, err := rawTerminal(f)
		if err != nil {
			log.Warn("tty raw mode", "err", err)
		} else {
			defer restore()
		}
		ttyIO := mi.NewLineIO(f, f, nil)
		ttyEngine := mi.NewEngine(ttyIO, state, log)
		defer ttyEngine.StopWatcher()
		go ttyEngine.Run()
	}

	if *watch != "" {
		watchPath(engine, *watch, log)
	}

	if !*quiet {
		engine.Emit(mi.StreamRecord('~', fmt.Sprintf("irdbg-mi %s", v.String())))
	}

	for _, cmd := range exCmds {
		runExCommand(engine, cmd, v)
	}

	if err := engine.Run(); err != nil {
		log.Debug("mi engine exited", "err", err)
	}
}

// runExCommand implements the two -ex forms spec.md §6 singles out
// ("show version" and "new-ui mi PATH") and otherwise feeds the line to
// the ordinary command dispatcher, exactly as if it had arrived on
// stdin.
func runExCommand(e *mi.Engine, cmd string, v *semver.Version) {
	switch {
	case cmd == "show version":
		e.Emit(mi.StreamRecord('~', fmt.Sprintf("irdbg-mi %s", v.String())))
	case strings.HasPrefix(cmd, "new-ui mi "):
		path := strings.TrimPrefix(cmd, "new-ui mi ")
		go openExtraChannel(e.State(), e.Log(), path)
	default:
		e.Dispatch(cmd)
	}
}

// openExtraChannel opens path as a named pipe/file and runs a second MI
// engine sharing state with the primary one, per spec.md's "new-ui mi
// PATH" CLI surface (§6): every opened channel gets its own reader,
// writer, and prompt stream, observing the same command/state semantics
// as the primary stdio channel.
func openExtraChannel(state *mi.State, log *slog.Logger, path string) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		log.Error("open new-ui channel", "path", path, "err", err)
		return
	}
	defer f.Close()
	lio := mi.NewLineIO(f, f, nil)
	engine := mi.NewEngine(lio, state, log)
	defer engine.StopWatcher()
	if err := engine.Run(); err != nil {
		log.Debug("new-ui channel closed", "path", path, "err", err)
	}
}

// watchPath starts an fsnotify watch on path, emitting a console stream
// warning as soon as a write or create event for the file arrives,
// mirroring real gdb's "source file is more recent than executable"
// warning.
func watchPath(e *mi.Engine, path string, log *slog.Logger) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify unavailable", "err", err)
		return
	}
	if err := w.Add(path); err != nil {
		log.Warn("fsnotify watch", "path", path, "err", err)
		w.Close()
		return
	}
	go func() {
		defer w.Close()
		for ev := range w.Events {
			if ev.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				e.Emit(mi.StreamRecord('~', fmt.Sprintf("warning: %s modified since session start", ev.Name)))
			}
		}
	}()
}
