package dtls

import "encoding/binary"

// DTLS 1.2 protocol version bytes (RFC 6347 §4.1), sent inverted per the
// spec's (0xfe, 0xff)=1.0 / (0xfe, 0xfd)=1.2 convention.
var (
	versionDTLS10 = [2]byte{0xfe, 0xff}
	versionDTLS12 = [2]byte{0xfe, 0xfd}
)

// recordHeaderLen is the fixed 13-byte DTLS record header: type(1) +
// version(2) + epoch(2) + sequence_number(6) + length(2).
const recordHeaderLen = 13

// handshakeHeaderLen is the fixed handshake message header embedded in a
// handshake-content record: msg_type(1) + length(3) + message_seq(2) +
// fragment_offset(3) + fragment_length(3).
const handshakeHeaderLen = 12

// buildRecord frames body as one unfragmented DTLS record.
func buildRecord(rt recordType, version [2]byte, epoch uint16, seq uint64, body []byte) []byte {
	out := make([]byte, recordHeaderLen+len(body))
	out[0] = byte(rt)
	out[1], out[2] = version[0], version[1]
	binary.BigEndian.PutUint16(out[3:5], epoch)
	putUint48(out[5:11], seq)
	binary.BigEndian.PutUint16(out[11:13], uint16(len(body)))
	copy(out[13:], body)
	return out
}

// buildHandshakeBody frames msg as an unfragmented handshake message:
// fragment_offset is always 0 and fragment_length equals the full length,
// matching the single-UDP-datagram messages this adapter exchanges.
func buildHandshakeBody(ht handshakeType, msgSeq uint16, msg []byte) []byte {
	out := make([]byte, handshakeHeaderLen+len(msg))
	out[0] = byte(ht)
	putUint24(out[1:4], uint32(len(msg)))
	binary.BigEndian.PutUint16(out[4:6], msgSeq)
	putUint24(out[6:9], 0)
	putUint24(out[9:12], uint32(len(msg)))
	copy(out[12:], msg)
	return out
}

// parseRecord splits a wire record into its header fields and body,
// without validating the version bytes (the mux already did that).
func parseRecord(raw []byte) (rt recordType, epoch uint16, seq uint64, body []byte, ok bool) {
	if len(raw) < recordHeaderLen {
		return 0, 0, 0, nil, false
	}
	rt = recordType(raw[0])
	epoch = binary.BigEndian.Uint16(raw[3:5])
	seq = getUint48(raw[5:11])
	length := binary.BigEndian.Uint16(raw[11:13])
	if int(length) > len(raw)-recordHeaderLen {
		return 0, 0, 0, nil, false
	}
	return rt, epoch, seq, raw[13 : 13+int(length)], true
}

// parseHandshakeBody splits a handshake-content record body into its
// sub-type and unfragmented message payload.
func parseHandshakeBody(body []byte) (ht handshakeType, msg []byte, ok bool) {
	if len(body) < handshakeHeaderLen {
		return 0, nil, false
	}
	ht = handshakeType(body[0])
	length := getUint24(body[1:4])
	if int(length) > len(body)-handshakeHeaderLen {
		return 0, nil, false
	}
	return ht, body[handshakeHeaderLen : handshakeHeaderLen+int(length)], true
}

func putUint24(b []byte, v uint32) {
	b[0] = byte(v >> 16)
	b[1] = byte(v >> 8)
	b[2] = byte(v)
}

func getUint24(b []byte) uint32 {
	return uint32(b[0])<<16 | uint32(b[1])<<8 | uint32(b[2])
}

func putUint48(b []byte, v uint64) {
	b[0] = byte(v >> 40)
	b[1] = byte(v >> 32)
	b[2] = byte(v >> 24)
	b[3] = byte(v >> 16)
	b[4] = byte(v >> 8)
	b[5] = byte(v)
}

func getUint48(b []byte) uint64 {
	return uint64(b[0])<<40 | uint64(b[1])<<32 | uint64(b[2])<<24 |
		uint64(b[3])<<16 | uint64(b[4])<<8 | uint64(b[5])
}
