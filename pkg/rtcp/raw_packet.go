package rtcp

import "encoding/binary"

// RawPacket is an opaque pass-through for any RTCP record whose type or
// sub-format the codec does not specifically parse. It preserves the
// exact bytes so the termination engine can forward it unmodified.
type RawPacket struct {
	Raw []byte
}

// Header decodes and returns the Header of the raw bytes.
func (r RawPacket) Header() Header {
	var h Header
	_ = h.Unmarshal(r.Raw)
	return h
}

// DestinationSSRC returns the SSRC(s) immediately following the header,
// if the record is at least long enough to contain one. This is a best
// effort; opaque records are forwarded rather than routed on this value.
func (r RawPacket) DestinationSSRC() []uint32 {
	if len(r.Raw) < headerLength+ssrcLength {
		return nil
	}
	return []uint32{binary.BigEndian.Uint32(r.Raw[headerLength:])}
}

// Marshal returns the stored raw bytes unchanged.
func (r RawPacket) Marshal() ([]byte, error) {
	return append([]byte(nil), r.Raw...), nil
}

// Unmarshal stores the raw bytes, validating only the common header.
func (r *RawPacket) Unmarshal(raw []byte) error {
	var h Header
	if err := h.Unmarshal(raw); err != nil {
		return err
	}
	r.Raw = append([]byte(nil), raw...)
	return nil
}
