// Command irdbg-server is the target-side RSP stub: it serves the demo
// LinearProgram over a TCP listener so a real gdb, lldb, or this
// bridge's own irdbg-mi front-end can "target remote host:port" into it.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/irdbg/irdbg/internal/rsp"
	"github.com/irdbg/irdbg/internal/target"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:1234", "address to listen on")
	program := flag.String("program", "add,32;add,32;ret,0", "semicolon-separated name,bitwidth instruction list")
	codelineOffset := flag.Int("codeline-offset", 1, "codeline of the first instruction")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	instrs, err := parseProgram(*program)
	if err != nil {
		log.Error("parse program", "err", err)
		os.Exit(1)
	}
	prog, err := target.NewLinearProgram(instrs, *codelineOffset)
	if err != nil {
		log.Error("build program", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Error("listen", "addr", *addr, "err", err)
		os.Exit(1)
	}
	defer ln.Close()
	log.Info("listening", "addr", ln.Addr().String())

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	stopCh := make(chan struct{})
	go func() {
		<-ctx.Done()
		close(stopCh)
	}()

	srv := rsp.NewServer(prog, log)
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return
			default:
			}
			log.Error("accept", "err", err)
			return
		}
		log.Info("accepted connection", "remote", conn.RemoteAddr().String())
		srv.HandleConn(conn, stopCh)
	}
}

func parseProgram(s string) ([]target.Instruction, error) {
	var out []target.Instruction
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ",", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("bad instruction %q: want name,bitwidth", entry)
		}
		width, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, fmt.Errorf("bad instruction %q: %w", entry, err)
		}
		out = append(out, target.Instruction{Name: strings.TrimSpace(parts[0]), BitWidth: width})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty program")
	}
	return out, nil
}
