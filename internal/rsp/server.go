// Package rsp implements the target-side GDB Remote Serial Protocol stub
// (Server) and the front-end-side RSP client (Client). Both ride a plain
// byte stream, normally TCP, so that a real gdb or lldb (for the server)
// or this bridge's own MI front-end (for the client) can dial in.
package rsp

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/irdbg/irdbg/internal/target"
	"github.com/irdbg/irdbg/internal/wire"
)

// ServerSupportedFeatures is what this stub claims in reply to qSupported.
const ServerSupportedFeatures = "qXfer:features:read-;multiprocess+;swbreak+;hwbreak+;vContSupported+;QStartNoAckMode+"

// Server drives a single Target over one RSP connection. It is not safe
// for concurrent use by more than one connection; HandleConn is meant to
// be called once per accepted net.Conn.
type Server struct {
	tgt target.Target
	log *slog.Logger

	mu                 sync.Mutex
	noAck              bool
	executionStopped   bool
	useThreadStops     bool
	interruptRequested bool
	lastHaltReason     target.HaltReason
}

// NewServer returns a Server driving tgt. log may be nil, in which case a
// discarding logger is used.
func NewServer(tgt target.Target, log *slog.Logger) *Server {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Server{tgt: tgt, log: log, executionStopped: true, useThreadStops: true, lastHaltReason: target.HaltTrap}
}

// HandleConn services one connection until it closes or stopCh fires. It
// interleaves reading inbound packets with advancing the target one
// simulated instruction at a time whenever execution is not stopped,
// mirroring the cooperative short-timeout poll loop this bridge was
// ported from: every iteration gives inbound packets a chance to arrive
// before the target takes its next step.
func (s *Server) HandleConn(conn net.Conn, stopCh <-chan struct{}) {
	defer conn.Close()
	r := bufio.NewReader(conn)
	pending := make([]byte, 0, 256)

	readTick := func() ([]byte, error) {
		conn.SetReadDeadline(time.Now().Add(2 * time.Millisecond))
		chunk := make([]byte, 4096)
		n, err := r.Read(chunk)
		if n > 0 {
			return chunk[:n], nil
		}
		return nil, err
	}

	for {
		select {
		case <-stopCh:
			return
		default:
		}

		chunk, err := readTick()
		pending = append(pending, chunk...)
		if err != nil && !isTimeout(err) {
			s.log.Debug("rsp connection closed", "err", err)
			return
		}

		for len(pending) > 0 {
			res, perr := wire.ParseFrame(pending)
			if perr != nil {
				if !errors.Is(perr, wire.ErrTruncated) {
					s.log.Error("rsp protocol error, dropping connection", "err", perr)
					return
				}
				break
			}
			pending = pending[res.Consumed:]
			switch res.Kind {
			case wire.RecvPayload:
				if !s.noAck {
					conn.Write([]byte{'+'})
				}
				reply, noReply, detach := s.dispatch(string(res.Payload))
				if !noReply {
					if _, werr := conn.Write(wire.EncodeFrame([]byte(reply))); werr != nil {
						return
					}
				}
				if detach {
					return
				}
			case wire.RecvAck, wire.RecvNone:
				// Acks from a peer that mirrors our ack requirement, or
				// consumed leading noise; nothing to reply to.
			}
		}

		s.mu.Lock()
		stopped := s.executionStopped
		interrupted := s.interruptRequested
		s.interruptRequested = false
		s.mu.Unlock()

		if interrupted {
			s.mu.Lock()
			s.executionStopped = true
			s.mu.Unlock()
			conn.Write(wire.EncodeFrame([]byte(s.stopReplyPacket(target.HaltInt))))
			continue
		}

		if stopped {
			continue
		}

		outcome, _, rerr := s.tgt.RunCurrentInstr()
		if rerr != nil {
			s.mu.Lock()
			s.executionStopped = true
			s.mu.Unlock()
			// A target fault still leaves the session attached for
			// inspection, so it gets an ordinary stop reply rather
			// than RSP's "process terminated" packet.
			conn.Write(wire.EncodeFrame([]byte(s.stopReplyPacket(target.HaltKill))))
			continue
		}
		if outcome == target.BreakpointHit || outcome == target.CycleBudgetExhausted {
			s.mu.Lock()
			s.executionStopped = true
			s.mu.Unlock()
			conn.Write(wire.EncodeFrame([]byte(s.stopReplyPacket(target.HaltTrap))))
		}
	}
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}

// stopReplyPacket formats the stop-reply packet for reason. The run loop
// passes the reason explicitly rather than reading it back off the
// target, since a vCtrlC interrupt is a server-level RSP event the
// target itself never observes.
func (s *Server) stopReplyPacket(reason target.HaltReason) string {
	s.lastHaltReason = reason
	if !s.useThreadStops {
		return fmt.Sprintf("S%02x", int(reason))
	}
	pc, err := s.tgt.ReadRegister(0)
	if err != nil {
		return fmt.Sprintf("T%02xthread:01;", int(reason))
	}
	return fmt.Sprintf("T%02xthread:01;pc:%s;", int(reason), hex.EncodeToString(pc))
}

// dispatch handles one decoded packet payload and returns the reply to
// frame back. noReply is true for the resume packets (c/s/vCont
// variants), which real RSP never acknowledges synchronously: the only
// reply they ever produce is the later, asynchronous stop-reply packet
// the run loop sends once the target actually halts. detach reports
// whether the connection should close after sending the reply.
func (s *Server) dispatch(payload string) (reply string, noReply bool, detach bool) {
	switch {
	case payload == "":
		return "", false, false
	case payload == "?":
		return s.stopReplyPacket(s.lastHaltReason), false, false
	case payload == "g":
		return hex.EncodeToString(s.tgt.ReadAllRegisters()), false, false
	case strings.HasPrefix(payload, "G"):
		data, err := hex.DecodeString(payload[1:])
		if err != nil {
			return "E01", false, false
		}
		if err := s.tgt.WriteAllRegisters(data); err != nil {
			return "", false, false
		}
		return "OK", false, false
	case strings.HasPrefix(payload, "p"):
		i, err := strconv.ParseInt(payload[1:], 16, 64)
		if err != nil {
			return "E01", false, false
		}
		data, rerr := s.tgt.ReadRegister(int(i))
		if rerr != nil {
			return "E01", false, false
		}
		return hex.EncodeToString(data), false, false
	case strings.HasPrefix(payload, "P"):
		return s.handleWriteRegister(payload[1:]), false, false
	case strings.HasPrefix(payload, "m"):
		return s.handleReadMemory(payload[1:]), false, false
	case strings.HasPrefix(payload, "M"):
		return s.handleWriteMemory(payload[1:]), false, false
	case payload == "s" || (strings.HasPrefix(payload, "s") && isHexAddr(payload[1:])):
		s.armStep(payload[1:])
		return "", true, false
	case payload == "c" || (strings.HasPrefix(payload, "c") && isHexAddr(payload[1:])):
		s.armContinue(payload[1:])
		return "", true, false
	case payload == "vCtrlC":
		s.mu.Lock()
		s.interruptRequested = true
		s.mu.Unlock()
		return "OK", false, false
	case strings.HasPrefix(payload, "qSupported"):
		return s.handleQSupported(payload), false, false
	case payload == "QStartNoAckMode":
		s.noAck = true
		return "OK", false, false
	case payload == "qTStatus":
		return "T0;tnotrun:0", false, false
	case payload == "qfThreadInfo":
		return "m01", false, false
	case payload == "qsThreadInfo":
		return "l", false, false
	case payload == "qTfV" || payload == "qTsV":
		return "l", false, false
	case payload == "qC":
		return "QC01", false, false
	case strings.HasPrefix(payload, "H"):
		return "OK", false, false
	case strings.HasPrefix(payload, "Z"):
		return s.handleAddBreakpoint(payload[1:]), false, false
	case strings.HasPrefix(payload, "z"):
		return s.handleRemoveBreakpoint(payload[1:]), false, false
	case payload == "qHostInfo":
		return s.tgt.QHostInfo(), false, false
	case payload == "qProcessInfo":
		return "pid:1;", false, false
	case strings.HasPrefix(payload, "qRegisterInfo"):
		return s.handleQRegisterInfo(payload[len("qRegisterInfo"):]), false, false
	case strings.HasPrefix(payload, "qMemoryRegionInfo:"):
		addr, err := strconv.ParseUint(payload[len("qMemoryRegionInfo:"):], 16, 64)
		if err != nil {
			return "", false, false
		}
		return s.tgt.QMemoryRegionInfo(addr), false, false
	case payload == "vMustReplyEmpty":
		return "", false, false
	case payload == "qOffsets":
		return "Text=0;Data=0;Bss=0", false, false
	case payload == "qAttached":
		return "1", false, false
	case payload == "vCont?":
		return "vCont;c;s", false, false
	case strings.HasPrefix(payload, "vCont;c"):
		s.armContinue("")
		return "", true, false
	case strings.HasPrefix(payload, "vCont;s"):
		s.armStep("")
		return "", true, false
	case payload == "D":
		return "OK", false, true
	case payload == "k":
		return "", true, true
	default:
		return "", false, false
	}
}

func isHexAddr(s string) bool {
	if s == "" {
		return true
	}
	_, err := strconv.ParseUint(s, 16, 64)
	return err == nil
}

func (s *Server) armStep(addrHex string) {
	addr := parseOptionalAddr(addrHex)
	s.tgt.Step(addr)
	s.mu.Lock()
	s.executionStopped = false
	s.mu.Unlock()
}

func (s *Server) armContinue(addrHex string) {
	addr := parseOptionalAddr(addrHex)
	s.tgt.Continue(addr)
	s.mu.Lock()
	s.executionStopped = false
	s.mu.Unlock()
}

func parseOptionalAddr(s string) *uint64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return nil
	}
	return &v
}

func (s *Server) handleWriteRegister(body string) string {
	parts := strings.SplitN(body, "=", 2)
	if len(parts) != 2 {
		return "E01"
	}
	i, err := strconv.ParseInt(parts[0], 16, 64)
	if err != nil {
		return "E01"
	}
	data, err := hex.DecodeString(parts[1])
	if err != nil {
		return "E01"
	}
	if err := s.tgt.WriteRegister(int(i), data); err != nil {
		return ""
	}
	return "OK"
}

func (s *Server) handleReadMemory(body string) string {
	parts := strings.SplitN(body, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}
	addr, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return "E01"
	}
	length, err := strconv.ParseInt(parts[1], 16, 64)
	if err != nil {
		return "E01"
	}
	data, rerr := s.tgt.ReadMemory(addr, int(length))
	if rerr != nil {
		if errors.Is(rerr, target.ErrUnsupported) {
			return ""
		}
		return "E01"
	}
	return hex.EncodeToString(data)
}

// handleWriteMemory parses "addr,length:hexdata". The reference server
// this bridge was ported from compared the declared length field against
// the Python int it had just decoded the hex payload into (always equal
// to itself), rather than against the number of decoded bytes — so a
// client declaring a length that didn't match the data it actually sent
// was never caught. Here the check is against len(data), the decoded
// byte slice, so a mismatched declaration is rejected before it reaches
// the target.
func (s *Server) handleWriteMemory(body string) string {
	head, hexData, ok := strings.Cut(body, ":")
	if !ok {
		return "E01"
	}
	parts := strings.SplitN(head, ",", 2)
	if len(parts) != 2 {
		return "E01"
	}
	addr, err := strconv.ParseUint(parts[0], 16, 64)
	if err != nil {
		return "E01"
	}
	declared, err := strconv.ParseInt(parts[1], 16, 64)
	if err != nil {
		return "E01"
	}
	data, err := hex.DecodeString(hexData)
	if err != nil {
		return "E01"
	}
	if int64(len(data)) != declared {
		return "E01"
	}
	if err := s.tgt.WriteMemory(addr, data); err != nil {
		if errors.Is(err, target.ErrUnsupported) {
			return ""
		}
		return "E01"
	}
	return "OK"
}

// handleQSupported negotiates feature flags using wire.ParseFeatureList,
// so the duplicate-branch '+'/'-' confusion the client side of this
// bridge was ported from does not recur here either; the parsed request
// is otherwise informational since this stub's own feature set never
// changes.
func (s *Server) handleQSupported(payload string) string {
	if idx := strings.IndexByte(payload, ':'); idx >= 0 {
		_ = wire.ParseFeatureList(payload[idx+1:])
	}
	return ServerSupportedFeatures
}

func (s *Server) handleAddBreakpoint(body string) string {
	kind, addr, length, ok := parseBreakpointTriplet(body)
	if !ok {
		return "E01"
	}
	if err := s.tgt.AddBreakpoint(kind, addr, length); err != nil {
		return ""
	}
	return "OK"
}

func (s *Server) handleRemoveBreakpoint(body string) string {
	kind, addr, length, ok := parseBreakpointTriplet(body)
	if !ok {
		return "E01"
	}
	if err := s.tgt.RemoveBreakpoint(kind, addr, length); err != nil {
		return "E01"
	}
	return "OK"
}

func parseBreakpointTriplet(body string) (kind target.BreakpointKind, addr uint64, length int, ok bool) {
	parts := strings.SplitN(body, ",", 3)
	if len(parts) != 3 {
		return 0, 0, 0, false
	}
	k, err := strconv.ParseInt(parts[0], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	a, err := strconv.ParseUint(parts[1], 16, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	l, err := strconv.ParseInt(parts[2], 16, 32)
	if err != nil {
		return 0, 0, 0, false
	}
	return target.BreakpointKind(k), a, int(l), true
}

func (s *Server) handleQRegisterInfo(hexIdx string) string {
	i, err := strconv.ParseInt(hexIdx, 16, 64)
	if err != nil {
		return "E01"
	}
	info, rerr := s.tgt.QRegisterInfo(int(i))
	if rerr != nil {
		return "E45" // conventional "no more registers" sentinel
	}
	var b strings.Builder
	fmt.Fprintf(&b, "name:%s;bitsize:%d;offset:%d;encoding:%s;format:%s;set:%s;",
		info.Name, info.BitSize, info.Offset, info.Encoding, info.Format, info.Set)
	if info.Generic != "" {
		fmt.Fprintf(&b, "generic:%s;", info.Generic)
	}
	return b.String()
}
