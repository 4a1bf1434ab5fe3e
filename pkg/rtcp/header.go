// Package rtcp implements a bit-exact encoder/decoder for RFC 3550 compound
// RTCP packets, RFC 4585 payload- and transport-specific feedback, and the
// draft-alvestrand REMB bandwidth-estimate extension.
package rtcp

import "encoding/binary"

// PacketType identifies the kind of RTCP packet carried after the header.
type PacketType uint8

// RTCP packet types registered with IANA.
const (
	TypeSenderReport              PacketType = 200 // RFC 3550, 6.4.1
	TypeReceiverReport            PacketType = 201 // RFC 3550, 6.4.2
	TypeSourceDescription         PacketType = 202 // RFC 3550, 6.5
	TypeGoodbye                   PacketType = 203 // RFC 3550, 6.6
	TypeApplicationDefined        PacketType = 204 // RFC 3550, 6.7
	TypeTransportSpecificFeedback PacketType = 205 // RFC 4585, 6.2
	TypePayloadSpecificFeedback   PacketType = 206 // RFC 4585, 6.3
)

func (p PacketType) String() string {
	switch p {
	case TypeSenderReport:
		return "SR"
	case TypeReceiverReport:
		return "RR"
	case TypeSourceDescription:
		return "SDES"
	case TypeGoodbye:
		return "BYE"
	case TypeApplicationDefined:
		return "APP"
	case TypeTransportSpecificFeedback:
		return "RTPFB"
	case TypePayloadSpecificFeedback:
		return "PSFB"
	default:
		return "unknown"
	}
}

// RTPFB and PSFB sub-format (the header's Count field doubles as FMT).
const (
	FormatTLN  = 1  // Transport Layer Nack, RFC 4585 6.2.1
	FormatPLI  = 1  // Picture Loss Indication, RFC 4585 6.3.1
	FormatSLI  = 2  // Slice Loss Indication, RFC 4585 6.3.2
	FormatFIR  = 4  // Full Intra Request, RFC 5104 4.3.1
	FormatREMB = 15 // REMB, draft-alvestrand-rmcat-remb
)

const (
	headerLength = 4
	versionShift = 6
	versionMask  = 0x3
	paddingShift = 5
	paddingMask  = 0x1
	countShift   = 0
	countMask    = 0x1f
	rtpVersion   = 2
	ssrcLength   = 4
)

// Header is the common 4-byte header shared by every RTCP packet.
type Header struct {
	Padding bool
	Count   uint8
	Type    PacketType
	// Length is in 32-bit words minus one, including header and padding.
	Length uint16
}

// Marshal encodes the Header in binary.
func (h Header) Marshal() ([]byte, error) {
	/*
	 *  0                   1                   2                   3
	 *  0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1 2 3 4 5 6 7 8 9 0 1
	 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	 * |V=2|P|    RC   |      PT       |             length            |
	 * +-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+-+
	 */
	if h.Count > countMask {
		return nil, errInvalidHeader
	}

	raw := make([]byte, headerLength)
	raw[0] = rtpVersion << versionShift
	if h.Padding {
		raw[0] |= 1 << paddingShift
	}
	raw[0] |= h.Count << countShift
	raw[1] = uint8(h.Type)
	binary.BigEndian.PutUint16(raw[2:], h.Length)
	return raw, nil
}

// Unmarshal decodes the Header from binary.
func (h *Header) Unmarshal(raw []byte) error {
	if len(raw) < headerLength {
		return errPacketTooShort
	}

	version := raw[0] >> versionShift & versionMask
	if version != rtpVersion {
		return errBadVersion
	}

	h.Padding = (raw[0] >> paddingShift & paddingMask) > 0
	h.Count = raw[0] >> countShift & countMask
	h.Type = PacketType(raw[1])
	h.Length = binary.BigEndian.Uint16(raw[2:])
	return nil
}
