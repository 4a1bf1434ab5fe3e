package srtp

import "encoding/binary"

// rtpFixedHeaderLen is the minimum RTP header before CSRC identifiers:
// V/P/X/CC(1) + M/PT(1) + sequence(2) + timestamp(4) + SSRC(4).
const rtpFixedHeaderLen = 12

// rtpHeaderLen returns the length of raw's RTP header, accounting for the
// CSRC list but not header extensions (this stack does not rewrite RTP
// header extensions, matching the spec's scope).
func rtpHeaderLen(raw []byte) (int, bool) {
	if len(raw) < rtpFixedHeaderLen {
		return 0, false
	}
	csrcCount := int(raw[0] & 0x0f)
	headerLen := rtpFixedHeaderLen + 4*csrcCount
	if len(raw) < headerLen {
		return 0, false
	}
	return headerLen, true
}

// EncryptRTPPacket encrypts a full wire-format RTP packet in place of its
// payload, using the SSRC and sequence number carried in the packet's own
// header. Returns header||ciphertext||tag.
func EncryptRTPPacket(ctx *Context, raw []byte) ([]byte, error) {
	headerLen, ok := rtpHeaderLen(raw)
	if !ok {
		return nil, errPacketTooShort
	}
	ssrc := binary.BigEndian.Uint32(raw[8:12])
	seq := binary.BigEndian.Uint16(raw[2:4])
	return ctx.EncryptRTP(ssrc, seq, raw[:headerLen], raw[headerLen:])
}

// DecryptRTPPacket authenticates and decrypts a full wire-format SRTP
// packet (header||ciphertext||tag), returning header||plaintext.
func DecryptRTPPacket(ctx *Context, raw []byte) ([]byte, error) {
	headerLen, ok := rtpHeaderLen(raw)
	if !ok {
		return nil, errPacketTooShort
	}
	ssrc := binary.BigEndian.Uint32(raw[8:12])
	seq := binary.BigEndian.Uint16(raw[2:4])
	plain, err := ctx.DecryptRTP(ssrc, seq, raw[:headerLen], raw[headerLen:])
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, headerLen+len(plain))
	out = append(out, raw[:headerLen]...)
	out = append(out, plain...)
	return out, nil
}

// rtcpSenderSSRC extracts the sender SSRC at bytes 4..8 of the first
// record in a compound RTCP packet, the SSRC the SRTCP auth/cipher scope
// is keyed by.
func rtcpSenderSSRC(raw []byte) (uint32, bool) {
	if len(raw) < 8 {
		return 0, false
	}
	return binary.BigEndian.Uint32(raw[4:8]), true
}

// EncryptRTCPPacket encrypts and authenticates a full compound RTCP
// packet, appending the SRTCP trailer and tag.
func EncryptRTCPPacket(ctx *Context, raw []byte) ([]byte, error) {
	ssrc, ok := rtcpSenderSSRC(raw)
	if !ok {
		return nil, errPacketTooShort
	}
	return ctx.EncryptRTCP(ssrc, raw)
}

// DecryptRTCPPacket authenticates and decrypts a full SRTCP packet,
// stripping the trailer and tag.
func DecryptRTCPPacket(ctx *Context, raw []byte) ([]byte, error) {
	ssrc, ok := rtcpSenderSSRC(raw)
	if !ok {
		return nil, errPacketTooShort
	}
	return ctx.DecryptRTCP(ssrc, raw)
}
