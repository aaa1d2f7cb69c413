package sntpd

import (
	"testing"
	"time"
)

func TestTimeToTimestamp_UnixEpoch(t *testing.T) {
	ts := timeToTimestamp(time.Unix(0, 0).UTC())
	expected := Timestamp(uint64(ntpEpochOffset) << 32)
	if ts != expected {
		t.Fatalf("unexpected timestamp: got=%d want=%d", ts, expected)
	}
}

func TestFormatTimestamp_KnownValues(t *testing.T) {
	if got := FormatTimestamp(1.0); got != Timestamp(1)<<32 {
		t.Fatalf("1.0s: got=%d want=%d", got, Timestamp(1)<<32)
	}
	if got := FormatTimestamp(1.5); got != Timestamp(0x0000000180000000) {
		t.Fatalf("1.5s: got=%d want=%d", got, Timestamp(0x0000000180000000))
	}
	if got := FormatTimestamp(0); got != 0 {
		t.Fatalf("0s: got=%d want=0", got)
	}
}

func TestFormatTimestamp_RoundTrip(t *testing.T) {
	// Exact binary fractions survive encode/decode with no error at all;
	// anything else must come back within one fraction unit (2^-32 s).
	for _, sec := range []float64{0, 0.25, 1.0, 1.5, 65536.75, 123456.5} {
		got := FormatTimestamp(sec).Seconds()
		if got != sec {
			t.Fatalf("round trip %v: got=%v", sec, got)
		}
	}
	for _, sec := range []float64{0.1, 3.14159, 12345.6789} {
		got := FormatTimestamp(sec).Seconds()
		diff := sec - got
		if diff < 0 {
			diff = -diff
		}
		if diff > 1.0/(1<<32) {
			t.Fatalf("round trip %v: got=%v diff=%v", sec, got, diff)
		}
	}
}

func TestPacket_MarshalParse_RoundTrip(t *testing.T) {
	p := Packet{
		LI:      0,
		VN:      4,
		Mode:    ModeClient,
		Stratum: 0,
		Poll:    6,
		Prec:    -20,

		RootDelay:      0x01020304,
		RootDispersion: 0x05060708,
		RefID:          refIDFromASCII4("TEST"),
		Reference:      Timestamp(0x1111111122222222),
		Originate:      Timestamp(0x3333333344444444),
		Receive:        Timestamp(0x5555555566666666),
		Transmit:       Timestamp(0x7777777788888888),
	}

	b := p.Marshal()
	if len(b) != PacketSize {
		t.Fatalf("unexpected marshal size: got=%d want=%d", len(b), PacketSize)
	}

	p2, status := ParseRequest(b)
	if status != RequestOK {
		t.Fatalf("unexpected status: got=%v want=%v", status, RequestOK)
	}
	if p2 != p {
		t.Fatalf("packet mismatch after roundtrip:\n got=%+v\nwant=%+v", p2, p)
	}
}

func TestParseRequest_Short_Malformed(t *testing.T) {
	for _, n := range []int{0, 1, 3, 47} {
		_, status := ParseRequest(make([]byte, n))
		if status != RequestMalformed {
			t.Fatalf("len=%d: got=%v want=%v", n, status, RequestMalformed)
		}
	}
}

func TestParseRequest_WrongMode_NoReply(t *testing.T) {
	for _, mode := range []uint8{0, 1, 2, 4, 5, 6, 7} {
		b := make([]byte, PacketSize)
		b[0] = (3 << 3) | mode
		p, status := ParseRequest(b)
		if status != RequestNoReply {
			t.Fatalf("mode=%d: got=%v want=%v", mode, status, RequestNoReply)
		}
		if p.Mode != mode {
			t.Fatalf("mode=%d: parsed mode=%d", mode, p.Mode)
		}
	}
}

func TestBuildResponse_EchoAndSkew(t *testing.T) {
	reqTx := timeToTimestamp(time.Date(2023, 1, 2, 3, 4, 5, 6_000_000, time.UTC))
	req := Packet{VN: 3, Mode: ModeClient, Poll: 6, Transmit: reqTx}

	receivedAt := time.Date(2023, 1, 2, 3, 4, 5, 7_000_000, time.UTC)
	now := time.Date(2023, 1, 2, 3, 4, 5, 8_000_000, time.UTC)
	skew := 5 * time.Second

	resp := BuildResponse(req, responseConfig{}, receivedAt, now, skew)

	if resp.Mode != ModeServer {
		t.Fatalf("unexpected mode: got=%d want=%d", resp.Mode, ModeServer)
	}
	if resp.VN != VersionNTP {
		t.Fatalf("unexpected version: got=%d want=%d", resp.VN, VersionNTP)
	}
	if resp.Originate != reqTx {
		t.Fatalf("unexpected originate: got=%d want=%d", resp.Originate, reqTx)
	}
	if resp.Receive != timeToTimestamp(receivedAt.Add(skew)) {
		t.Fatalf("unexpected receive timestamp")
	}
	if resp.Transmit != timeToTimestamp(now.Add(skew)) {
		t.Fatalf("unexpected transmit timestamp")
	}
	if resp.Transmit < resp.Receive {
		t.Fatalf("transmit before receive: tx=%d rx=%d", resp.Transmit, resp.Receive)
	}
	// Not an authoritative source: everything else stays zero.
	if resp.Stratum != 0 || resp.Prec != 0 || resp.RootDelay != 0 || resp.RootDispersion != 0 || resp.RefID != 0 || resp.Reference != 0 {
		t.Fatalf("expected zeroed clock-source fields, got=%+v", resp)
	}
}

func TestBuildResponse_NegativeSkew(t *testing.T) {
	receivedAt := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := BuildResponse(Packet{Mode: ModeClient}, responseConfig{}, receivedAt, receivedAt, -3*time.Second)
	if resp.Receive != timeToTimestamp(receivedAt.Add(-3*time.Second)) {
		t.Fatalf("unexpected receive timestamp with negative skew")
	}
}

func TestBuildResponse_ReferenceTime(t *testing.T) {
	ref := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	resp := BuildResponse(Packet{Mode: ModeClient}, responseConfig{
		Stratum:       2,
		RefID:         refIDFromASCII4("LOCL"),
		ReferenceTime: ref,
	}, ref, ref, 0)
	if resp.Reference != timeToTimestamp(ref) {
		t.Fatalf("unexpected reference timestamp")
	}
	if resp.Stratum != 2 {
		t.Fatalf("unexpected stratum: got=%d want=2", resp.Stratum)
	}
}
