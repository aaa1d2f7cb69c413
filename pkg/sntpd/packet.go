package sntpd

import (
	"encoding/binary"
	"math"
	"time"
)

const (
	PacketSize = 48

	ModeClient = 3
	ModeServer = 4

	// VersionNTP is the protocol version stamped on every reply.
	VersionNTP = 4
)

// ntpEpochOffset is the number of seconds between the NTP epoch
// (1900-01-01) and the Unix epoch (1970-01-01).
const ntpEpochOffset = 2208988800

// Timestamp is the 64-bit NTP timestamp (32-bit seconds since 1900,
// 32-bit fraction).
type Timestamp uint64

func timeToTimestamp(t time.Time) Timestamp {
	t = t.UTC()
	seconds := uint64(int64(ntpEpochOffset) + t.Unix())
	fraction := uint64(t.Nanosecond()) * (1 << 32) / 1_000_000_000
	return Timestamp((seconds << 32) | (fraction & 0xffffffff))
}

// FormatTimestamp converts seconds since the NTP epoch into wire format,
// truncating toward negative infinity.
func FormatTimestamp(seconds float64) Timestamp {
	return Timestamp(uint64(math.Floor(seconds * (1 << 32))))
}

// Seconds returns the timestamp as seconds since the NTP epoch.
func (ts Timestamp) Seconds() float64 {
	return float64(ts) / (1 << 32)
}

// RequestStatus is the verdict on an inbound datagram.
type RequestStatus uint8

const (
	// RequestOK is a well-formed client-mode request; it gets a reply.
	RequestOK RequestStatus = iota
	// RequestMalformed is a datagram shorter than PacketSize.
	RequestMalformed
	// RequestNoReply is a full-size packet whose mode is not client.
	// SNTP has no error reply, so it is dropped without an answer.
	RequestNoReply
)

func (s RequestStatus) String() string {
	switch s {
	case RequestOK:
		return "ok"
	case RequestMalformed:
		return "malformed"
	case RequestNoReply:
		return "no_reply"
	default:
		return "unknown"
	}
}

// Packet is the base NTPv4 (RFC 5905) header.
// Extension fields are intentionally not parsed.
type Packet struct {
	LI      uint8
	VN      uint8
	Mode    uint8
	Stratum uint8
	Poll    int8
	Prec    int8

	RootDelay      uint32
	RootDispersion uint32
	RefID          uint32

	Reference Timestamp
	Originate Timestamp
	Receive   Timestamp
	Transmit  Timestamp
}

// ParseRequest decodes an inbound datagram and classifies it. The packet
// value is only meaningful when the status is not RequestMalformed. Clients
// place their send-time clock reading in the transmit field (bytes 40-47);
// replies echo it back as the originate timestamp.
func ParseRequest(b []byte) (Packet, RequestStatus) {
	if len(b) < PacketSize {
		return Packet{}, RequestMalformed
	}
	first := b[0]
	p := Packet{
		LI:      (first >> 6) & 0x3,
		VN:      (first >> 3) & 0x7,
		Mode:    first & 0x7,
		Stratum: b[1],
		Poll:    int8(b[2]),
		Prec:    int8(b[3]),

		RootDelay:      binary.BigEndian.Uint32(b[4:8]),
		RootDispersion: binary.BigEndian.Uint32(b[8:12]),
		RefID:          binary.BigEndian.Uint32(b[12:16]),
		Reference:      Timestamp(binary.BigEndian.Uint64(b[16:24])),
		Originate:      Timestamp(binary.BigEndian.Uint64(b[24:32])),
		Receive:        Timestamp(binary.BigEndian.Uint64(b[32:40])),
		Transmit:       Timestamp(binary.BigEndian.Uint64(b[40:48])),
	}
	if p.Mode != ModeClient {
		return p, RequestNoReply
	}
	return p, RequestOK
}

func (p Packet) Marshal() []byte {
	b := make([]byte, PacketSize)
	b[0] = ((p.LI & 0x3) << 6) | ((p.VN & 0x7) << 3) | (p.Mode & 0x7)
	b[1] = p.Stratum
	b[2] = byte(p.Poll)
	b[3] = byte(p.Prec)
	binary.BigEndian.PutUint32(b[4:8], p.RootDelay)
	binary.BigEndian.PutUint32(b[8:12], p.RootDispersion)
	binary.BigEndian.PutUint32(b[12:16], p.RefID)
	binary.BigEndian.PutUint64(b[16:24], uint64(p.Reference))
	binary.BigEndian.PutUint64(b[24:32], uint64(p.Originate))
	binary.BigEndian.PutUint64(b[32:40], uint64(p.Receive))
	binary.BigEndian.PutUint64(b[40:48], uint64(p.Transmit))
	return b
}

func refIDFromASCII4(s string) uint32 {
	var buf [4]byte
	copy(buf[:], []byte(s))
	return binary.BigEndian.Uint32(buf[:])
}

// BuildResponse assembles the reply for a valid client request. The skew is
// added to both the receive and transmit timestamps, which is what lets the
// server present a clock that runs ahead of (or behind) the wall clock.
func BuildResponse(req Packet, cfg responseConfig, receivedAt, transmittedAt time.Time, skew time.Duration) Packet {
	resp := Packet{
		LI:      cfg.LeapIndicator,
		VN:      VersionNTP,
		Mode:    ModeServer,
		Stratum: cfg.Stratum,
		Prec:    cfg.Precision,

		RootDelay:      cfg.RootDelay,
		RootDispersion: cfg.RootDispersion,
		RefID:          cfg.RefID,

		Originate: req.Transmit,
		Receive:   timeToTimestamp(receivedAt.Add(skew)),
		Transmit:  timeToTimestamp(transmittedAt.Add(skew)),
	}
	if !cfg.ReferenceTime.IsZero() {
		resp.Reference = timeToTimestamp(cfg.ReferenceTime)
	}
	return resp
}

type responseConfig struct {
	LeapIndicator  uint8
	Stratum        uint8
	Precision      int8
	RootDelay      uint32
	RootDispersion uint32
	RefID          uint32
	ReferenceTime  time.Time
}
