// Package mux classifies raw datagrams arriving on a shared UDP/ICE
// 5-tuple per RFC 7983, so a single socket can carry STUN, DTLS, and
// (S)RTP/(S)RTCP without a demultiplexing handshake of its own.
package mux

// MatchFunc reports whether buf belongs to a particular protocol lane.
type MatchFunc func(buf []byte) bool

// MatchRange builds a MatchFunc from an inclusive range of first-byte
// values, the discriminator RFC 7983 relies on.
func MatchRange(lower, upper byte) MatchFunc {
	return func(buf []byte) bool {
		if len(buf) < 1 {
			return false
		}
		b := buf[0]
		return b >= lower && b <= upper
	}
}

// RFC 7983 byte-range classification:
//
//	+----------------+
//	|        [0..3] -+--> STUN
//	|      [16..19] -+--> ZRTP
//	|      [20..63] -+--> DTLS
//	|      [64..79] -+--> TURN Channel
//	|    [128..191] -+--> RTP/RTCP
//	+----------------+
var (
	MatchSTUN = MatchRange(0, 3)
	MatchZRTP = MatchRange(16, 19)
	MatchDTLS = MatchRange(20, 63)
	MatchTURN = MatchRange(64, 79)
	MatchSRTP = MatchRange(128, 191)
)

// The ContentType* constants are the record content types the datagram adapter
// accepts; a DTLS record additionally carries this type as its first
// byte and a version in bytes 2-3.
const (
	ContentTypeChangeCipherSpec uint8 = 20
	ContentTypeAlert            uint8 = 21
	ContentTypeHandshake        uint8 = 22
	ContentTypeApplicationData  uint8 = 23
)

// FlightEndingHandshakeTypes are the handshake message types whose transmission
// ends the current flight and forces an immediate flush rather than
// coalescing with a following record.
var FlightEndingHandshakeTypes = map[uint8]bool{
	1:  true, // client_hello
	3:  true, // hello_verify_request
	14: true, // server_hello_done
	20: true, // finished
	0:  true, // hello_request (DTLS renegotiation hint, rare)
}

// LooksLikeDTLSRecord checks the dispatch predicate from the packet
// transformer: first byte one of the four DTLS content types, bytes 2..3
// a version this stack understands (DTLS 1.0 or 1.2), and the declared
// length fits what's actually present. The 13-byte fixed record header is
// ContentType(1) | ProtocolVersion(2) | Epoch(2) | SequenceNumber(6) | Length(2).
func LooksLikeDTLSRecord(buf []byte) bool {
	const recordHeaderLength = 13
	if len(buf) < recordHeaderLength {
		return false
	}
	switch buf[0] {
	case ContentTypeChangeCipherSpec, ContentTypeAlert, ContentTypeHandshake, ContentTypeApplicationData:
	default:
		return false
	}
	// DTLS versions are encoded as the 1's complement of the nominal
	// version: {254,255} is DTLS 1.0, {254,253} is DTLS 1.2.
	if buf[1] != 0xfe || (buf[2] != 0xff && buf[2] != 0xfd) {
		return false
	}
	declared := int(buf[11])<<8 | int(buf[12])
	return recordHeaderLength+declared <= len(buf)
}
