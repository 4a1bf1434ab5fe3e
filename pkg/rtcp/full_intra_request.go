package rtcp

import "encoding/binary"

// FIREntry identifies one media source in a Full Intra Request and its
// sequence number, incremented each time a new FIR command is issued for
// that source (RFC 5104 4.3.1.1).
type FIREntry struct {
	SSRC           uint32
	SequenceNumber uint8
}

const firEntryLength = 8

// FullIntraRequest (FIR) commands one or more media sources to send a new
// decoder refresh point.
type FullIntraRequest struct {
	SenderSSRC uint32
	MediaSSRC  uint32
	FIR        []FIREntry

	header Header
}

// Header returns the decoded Header.
func (f *FullIntraRequest) Header() Header { return f.header }

// DestinationSSRC implements Packet.
func (f *FullIntraRequest) DestinationSSRC() []uint32 {
	out := make([]uint32, len(f.FIR))
	for i, e := range f.FIR {
		out[i] = e.SSRC
	}
	return out
}

func (f FullIntraRequest) len() int {
	return headerLength + ssrcLength*2 + len(f.FIR)*firEntryLength
}

// Marshal encodes the FullIntraRequest, header included, in binary.
func (f FullIntraRequest) Marshal() ([]byte, error) {
	raw := make([]byte, f.len())
	body := raw[headerLength:]
	binary.BigEndian.PutUint32(body, f.SenderSSRC)
	binary.BigEndian.PutUint32(body[4:], f.MediaSSRC)

	offset := 8
	for _, e := range f.FIR {
		binary.BigEndian.PutUint32(body[offset:], e.SSRC)
		body[offset+4] = e.SequenceNumber
		offset += firEntryLength
	}

	h := Header{Count: FormatFIR, Type: TypePayloadSpecificFeedback, Length: uint16(len(raw)/4 - 1)}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the FullIntraRequest, header included, from binary.
func (f *FullIntraRequest) Unmarshal(raw []byte) error {
	if len(raw) < headerLength+ssrcLength*2 {
		return errPacketTooShort
	}
	if err := f.header.Unmarshal(raw); err != nil {
		return err
	}
	if f.header.Type != TypePayloadSpecificFeedback || f.header.Count != FormatFIR {
		return errWrongType
	}

	body := raw[headerLength:]
	f.SenderSSRC = binary.BigEndian.Uint32(body)
	f.MediaSSRC = binary.BigEndian.Uint32(body[4:])

	f.FIR = nil
	for offset := 8; offset+firEntryLength <= len(body); offset += firEntryLength {
		f.FIR = append(f.FIR, FIREntry{
			SSRC:           binary.BigEndian.Uint32(body[offset:]),
			SequenceNumber: body[offset+4],
		})
	}
	return nil
}
