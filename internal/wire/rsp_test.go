package wire

import (
	"bytes"
	"errors"
	"testing"
)

func TestEncodeFrameRoundTrip(t *testing.T) {
	cases := [][]byte{
		[]byte(""),
		[]byte("OK"),
		[]byte("qSupported:multiprocess+;swbreak+;hwbreak+"),
		[]byte{0x00, 0x01, 0xff},
	}
	for _, payload := range cases {
		frame := EncodeFrame(payload)
		res, err := ParseFrame(frame)
		if err != nil {
			t.Fatalf("ParseFrame(%q): %v", frame, err)
		}
		if res.Kind != RecvPayload {
			t.Fatalf("ParseFrame(%q): kind = %v, want RecvPayload", frame, res.Kind)
		}
		if res.Consumed != len(frame) {
			t.Fatalf("ParseFrame(%q): consumed = %d, want %d", frame, res.Consumed, len(frame))
		}
		if !bytes.Equal(res.Payload, payload) {
			t.Fatalf("ParseFrame(%q): payload = %q, want %q", frame, res.Payload, payload)
		}
	}
}

func TestChecksumMatchesEmittedDigits(t *testing.T) {
	payload := []byte("QStartNoAckMode")
	frame := EncodeFrame(payload)
	// frame = $ + payload + # + 2 hex digits
	hex := frame[len(frame)-2:]
	want := Checksum(payload)
	got, err := decodeHexByte(hex)
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("emitted checksum %02x, want %02x", got, want)
	}
}

func TestParseFrameBadChecksum(t *testing.T) {
	_, err := ParseFrame([]byte("$OK#00"))
	if !errors.Is(err, ErrBadChecksum) {
		t.Fatalf("err = %v, want ErrBadChecksum", err)
	}
}

func TestParseFrameTruncated(t *testing.T) {
	for _, partial := range []string{"", "$", "$OK", "$OK#", "$OK#9"} {
		_, err := ParseFrame([]byte(partial))
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("ParseFrame(%q) err = %v, want ErrTruncated", partial, err)
		}
	}
}

func TestParseFrameAck(t *testing.T) {
	res, err := ParseFrame([]byte("+$OK#9a"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != RecvAck || !res.Positive || res.Consumed != 1 {
		t.Fatalf("res = %+v, want single positive ack", res)
	}
}

func TestParseFrameNack(t *testing.T) {
	res, err := ParseFrame([]byte("-"))
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != RecvAck || res.Positive {
		t.Fatalf("res = %+v, want negative ack", res)
	}
}

func TestEscapeUnescapeRoundTrip(t *testing.T) {
	payload := []byte("a#b$c}d*e")
	escaped := Escape(payload)
	for _, b := range escaped {
		if b == '#' || b == '$' || b == '*' {
			t.Fatalf("escaped payload %q still has a reserved byte unescaped", escaped)
		}
	}
	got := Unescape(escaped)
	if !bytes.Equal(got, payload) {
		t.Fatalf("Unescape(Escape(%q)) = %q", payload, got)
	}
}

func TestEscapeNoReservedBytesIsNoop(t *testing.T) {
	payload := []byte("deadbeef")
	if got := Escape(payload); !bytes.Equal(got, payload) {
		t.Fatalf("Escape(%q) = %q, want unchanged", payload, got)
	}
}

func TestParseFrameSkipsLeadingNoise(t *testing.T) {
	buf := []byte("garbage$OK#9a")
	res, err := ParseFrame(buf)
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != RecvNone || res.Consumed != len("garbage") {
		t.Fatalf("res = %+v, want RecvNone consuming leading noise", res)
	}
	res, err = ParseFrame(buf[res.Consumed:])
	if err != nil {
		t.Fatal(err)
	}
	if res.Kind != RecvPayload || string(res.Payload) != "OK" {
		t.Fatalf("res = %+v, want payload OK", res)
	}
}

func TestParseFeatureListDistinguishesMarkers(t *testing.T) {
	got := ParseFeatureList("multiprocess+;swbreak-;qXfer:features:read=xml")
	want := map[string]Feature{
		"multiprocess":        {Flag: FeatureSupported},
		"swbreak":             {Flag: FeatureUnsupported},
		"qXfer:features:read": {Flag: FeatureValued, Value: "xml"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for k, v := range want {
		if got[k] != v {
			t.Fatalf("feature %q = %+v, want %+v", k, got[k], v)
		}
	}
}

func TestParseFeatureListEmpty(t *testing.T) {
	if got := ParseFeatureList(""); len(got) != 0 {
		t.Fatalf("got %v, want empty", got)
	}
}
