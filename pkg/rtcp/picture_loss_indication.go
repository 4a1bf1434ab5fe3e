package rtcp

import "encoding/binary"

// PictureLossIndication (PLI) informs the encoder that an undefined amount
// of coded video data belonging to one or more pictures was lost.
type PictureLossIndication struct {
	SenderSSRC uint32
	MediaSSRC  uint32

	header Header
}

const pliLength = headerLength + ssrcLength*2

// Header returns the decoded Header.
func (p *PictureLossIndication) Header() Header { return p.header }

// DestinationSSRC implements Packet.
func (p *PictureLossIndication) DestinationSSRC() []uint32 { return []uint32{p.MediaSSRC} }

// Marshal encodes the PictureLossIndication, header included, in binary.
func (p PictureLossIndication) Marshal() ([]byte, error) {
	raw := make([]byte, pliLength)
	body := raw[headerLength:]
	binary.BigEndian.PutUint32(body, p.SenderSSRC)
	binary.BigEndian.PutUint32(body[4:], p.MediaSSRC)

	h := Header{Count: FormatPLI, Type: TypePayloadSpecificFeedback, Length: uint16(pliLength/4 - 1)}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the PictureLossIndication, header included, from binary.
func (p *PictureLossIndication) Unmarshal(raw []byte) error {
	if len(raw) < pliLength {
		return errPacketTooShort
	}
	if err := p.header.Unmarshal(raw); err != nil {
		return err
	}
	if p.header.Type != TypePayloadSpecificFeedback || p.header.Count != FormatPLI {
		return errWrongType
	}

	body := raw[headerLength:]
	p.SenderSSRC = binary.BigEndian.Uint32(body)
	p.MediaSSRC = binary.BigEndian.Uint32(body[4:])
	return nil
}
