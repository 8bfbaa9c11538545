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

	"github.com/irdbg/irdbg/internal/wire"
)

// ErrNotConnected is returned by Client operations attempted before Dial.
var ErrNotConnected = errors.New("rsp: not connected")

// StopReply is a parsed "T..."/"S..."/"W..."/"X..." asynchronous or
// synchronous stop packet.
type StopReply struct {
	Reason HaltSignal
	PC     uint64
	HavePC bool
}

// HaltSignal mirrors the signal number carried by a stop-reply packet.
type HaltSignal int

const (
	SignalInt  HaltSignal = 2
	SignalTrap HaltSignal = 5
	SignalKill HaltSignal = 9
)

// Client is a front-end-side RSP client: it dials a target stub, performs
// the standard feature-negotiation handshake, and exposes the small set
// of operations the MI front-end needs (continue, step, interrupt,
// breakpoints, register and memory access), with a one-slot pushback
// buffer so a caller waiting on a synchronous reply can put back an
// unsolicited stop packet that arrived ahead of it.
// Client is driven by a single goroutine: the mutex below only guards the
// pushback slot against the narrow window where PollStop reads a frame
// that turns out not to be a stop packet and must hand it back to the
// next request() call; it is not a general concurrency guarantee for
// overlapping request()/PollStop() calls from separate goroutines.
type Client struct {
	conn  net.Conn
	r     *bufio.Reader
	log   *slog.Logger
	noAck bool

	stubSupported map[string]wire.Feature

	mu       sync.Mutex
	pushback *wire.ParseResult
	pending  []byte
}

// StubSupported reports the flag the remote stub advertised for name in
// its qSupported reply during the handshake, and whether name was
// mentioned at all.
func (c *Client) StubSupported(name string) (wire.Feature, bool) {
	f, ok := c.stubSupported[name]
	return f, ok
}

// NewClient wraps an already-dialed conn. log may be nil.
func NewClient(conn net.Conn, log *slog.Logger) *Client {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{conn: conn, r: bufio.NewReader(conn), log: log}
}

// Dial connects to addr and performs the handshake: qSupported feature
// negotiation, a vMustReplyEmpty liveness probe, then QStartNoAckMode.
func Dial(addr string, log *slog.Logger) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("rsp: dial %s: %w", addr, err)
	}
	c := NewClient(conn, log)
	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) handshake() error {
	reply, err := c.request("qSupported:multiprocess+;swbreak+;hwbreak+")
	if err != nil {
		return fmt.Errorf("rsp: qSupported: %w", err)
	}
	// Parsed with wire.ParseFeatureList rather than the original's
	// duplicate '+'/'-' branch, so a server advertising a feature as
	// unsupported is never mistaken for one it supports.
	c.stubSupported = wire.ParseFeatureList(reply)
	c.log.Debug("negotiated features", "features", c.stubSupported)

	if _, err := c.request("vMustReplyEmpty"); err != nil {
		return fmt.Errorf("rsp: vMustReplyEmpty: %w", err)
	}

	reply, err = c.request("QStartNoAckMode")
	if err != nil {
		return fmt.Errorf("rsp: QStartNoAckMode: %w", err)
	}
	if reply == "OK" {
		c.noAck = true
	}
	return nil
}

func (c *Client) send(payload string) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	_, err := c.conn.Write(wire.EncodeFrame([]byte(payload)))
	return err
}

// recvFrame returns the next ack/payload unit off the wire, consulting
// the pushback slot first.
func (c *Client) recvFrame() (wire.ParseResult, error) {
	c.mu.Lock()
	if c.pushback != nil {
		res := *c.pushback
		c.pushback = nil
		c.mu.Unlock()
		return res, nil
	}
	c.mu.Unlock()

	for {
		res, err := wire.ParseFrame(c.pending)
		if err == nil {
			c.pending = c.pending[res.Consumed:]
			if res.Kind == wire.RecvNone {
				continue
			}
			return res, nil
		}
		if !errors.Is(err, wire.ErrTruncated) {
			return wire.ParseResult{}, err
		}
		chunk := make([]byte, 4096)
		n, rerr := c.r.Read(chunk)
		if n > 0 {
			c.pending = append(c.pending, chunk[:n]...)
		}
		if rerr != nil {
			return wire.ParseResult{}, rerr
		}
	}
}

// pushbackFrame puts res back for the next recvFrame call, used when an
// unsolicited async stop packet is read while waiting on a synchronous
// reply.
func (c *Client) pushbackFrame(res wire.ParseResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pushback = &res
}

// request sends payload and returns the next payload-bearing reply,
// discarding a leading ack byte if the server still sends one.
func (c *Client) request(payload string) (string, error) {
	if err := c.send(payload); err != nil {
		return "", err
	}
	for {
		res, err := c.recvFrame()
		if err != nil {
			return "", err
		}
		if res.Kind == wire.RecvAck {
			continue
		}
		return string(res.Payload), nil
	}
}

// PollStop reads one pending stop packet without blocking the caller on a
// synchronous request, for use by a goroutine translating target async
// events into MI's *stopped/*running records. It returns ok=false if no
// frame is immediately available; callers typically call this off a
// dedicated reader goroutine with its own deadline rather than busy-polling.
func (c *Client) PollStop(timeout time.Duration) (StopReply, bool, error) {
	c.conn.SetReadDeadline(time.Now().Add(timeout))
	defer c.conn.SetReadDeadline(time.Time{})
	res, err := c.recvFrame()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return StopReply{}, false, nil
		}
		return StopReply{}, false, err
	}
	if res.Kind != wire.RecvPayload {
		return StopReply{}, false, nil
	}
	sr, ok := parseStopReply(string(res.Payload))
	if !ok {
		// Not a stop packet; an MI caller waiting synchronously on this
		// reply needs it back.
		c.pushbackFrame(res)
		return StopReply{}, false, nil
	}
	return sr, true, nil
}

func parseStopReply(payload string) (StopReply, bool) {
	if len(payload) < 3 {
		return StopReply{}, false
	}
	switch payload[0] {
	case 'S':
		sig, err := strconv.ParseInt(payload[1:3], 16, 32)
		if err != nil {
			return StopReply{}, false
		}
		return StopReply{Reason: HaltSignal(sig)}, true
	case 'T':
		sig, err := strconv.ParseInt(payload[1:3], 16, 32)
		if err != nil {
			return StopReply{}, false
		}
		sr := StopReply{Reason: HaltSignal(sig)}
		for _, kv := range strings.Split(strings.TrimRight(payload[3:], ";"), ";") {
			name, val, ok := strings.Cut(kv, ":")
			if !ok {
				continue
			}
			if name == "pc" {
				sr.PC = littleEndianHexToUint64(val)
				sr.HavePC = true
			}
		}
		return sr, true
	case 'W', 'X':
		return StopReply{Reason: SignalKill}, true
	default:
		return StopReply{}, false
	}
}

func littleEndianHexToUint64(h string) uint64 {
	b, err := hex.DecodeString(h)
	if err != nil {
		return 0
	}
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// SendContinue arms an unbounded run. addr, if non-nil, resumes at a
// specific address instead of the current PC.
func (c *Client) SendContinue(addr *uint64) error {
	return c.send(fmt.Sprintf("c%s", optionalHex(addr)))
}

// SendStep arms a single instruction step.
func (c *Client) SendStep(addr *uint64) error {
	return c.send(fmt.Sprintf("s%s", optionalHex(addr)))
}

func optionalHex(addr *uint64) string {
	if addr == nil {
		return ""
	}
	return strconv.FormatUint(*addr, 16)
}

// SendInterrupt requests the target stop, per vCtrlC.
func (c *Client) SendInterrupt() error {
	reply, err := c.request("vCtrlC")
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("rsp: vCtrlC: unexpected reply %q", reply)
	}
	return nil
}

// BreakInsert adds a breakpoint of kind at addr.
func (c *Client) BreakInsert(kind int, addr uint64, length int) error {
	reply, err := c.request(fmt.Sprintf("Z%x,%x,%x", kind, addr, length))
	if err != nil {
		return err
	}
	if reply == "" {
		return fmt.Errorf("rsp: breakpoint insert unsupported")
	}
	if reply != "OK" {
		return fmt.Errorf("rsp: breakpoint insert: %s", reply)
	}
	return nil
}

// BreakDelete removes a breakpoint of kind at addr.
func (c *Client) BreakDelete(kind int, addr uint64, length int) error {
	reply, err := c.request(fmt.Sprintf("z%x,%x,%x", kind, addr, length))
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("rsp: breakpoint delete: %s", reply)
	}
	return nil
}

// ReadRegister reads register i as a little-endian byte slice.
func (c *Client) ReadRegister(i int) ([]byte, error) {
	reply, err := c.request(fmt.Sprintf("p%x", i))
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(reply, "E") {
		return nil, fmt.Errorf("rsp: read register %d: %s", i, reply)
	}
	return hex.DecodeString(reply)
}

// ReadAllRegisters reads the concatenated register dump.
func (c *Client) ReadAllRegisters() ([]byte, error) {
	reply, err := c.request("g")
	if err != nil {
		return nil, err
	}
	return hex.DecodeString(reply)
}

// ReadMemory reads length bytes starting at addr.
func (c *Client) ReadMemory(addr uint64, length int) ([]byte, error) {
	reply, err := c.request(fmt.Sprintf("m%x,%x", addr, length))
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(reply, "E") {
		return nil, fmt.Errorf("rsp: read memory: %s", reply)
	}
	return hex.DecodeString(reply)
}

// WriteMemory writes data starting at addr.
func (c *Client) WriteMemory(addr uint64, data []byte) error {
	reply, err := c.request(fmt.Sprintf("M%x,%x:%s", addr, len(data), hex.EncodeToString(data)))
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("rsp: write memory: %s", reply)
	}
	return nil
}

// ErrNoMoreRegisters is returned by QRegisterInfo once i runs past the end
// of the target's register table (RSP's conventional "E45" sentinel).
var ErrNoMoreRegisters = errors.New("rsp: no more registers")

// QRegisterInfo returns register i's descriptor fields as a semicolon-key
// map, e.g. {"name": "pc", "bitsize": "64", ...}.
func (c *Client) QRegisterInfo(i int) (map[string]string, error) {
	reply, err := c.request(fmt.Sprintf("qRegisterInfo%x", i))
	if err != nil {
		return nil, err
	}
	if reply == "E45" {
		return nil, ErrNoMoreRegisters
	}
	if strings.HasPrefix(reply, "E") {
		return nil, fmt.Errorf("rsp: qRegisterInfo%x: %s", i, reply)
	}
	out := make(map[string]string)
	for _, kv := range strings.Split(strings.TrimRight(reply, ";"), ";") {
		if kv == "" {
			continue
		}
		k, v, ok := strings.Cut(kv, ":")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

var _ io.Closer = (*Client)(nil)
