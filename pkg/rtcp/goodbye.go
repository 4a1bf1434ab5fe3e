package rtcp

import "encoding/binary"

// Goodbye (BYE) packet indicates that one or more sources are no longer
// active.
type Goodbye struct {
	Sources []uint32
	Reason  []byte

	header Header
}

// Header returns the decoded Header.
func (g *Goodbye) Header() Header { return g.header }

// DestinationSSRC implements Packet.
func (g *Goodbye) DestinationSSRC() []uint32 { return g.Sources }

func (g Goodbye) len() int {
	n := headerLength + len(g.Sources)*ssrcLength
	if len(g.Reason) > 0 {
		n += 1 + len(g.Reason)
	}
	return (n + 3) &^ 3
}

// Marshal encodes the Goodbye, header included, in binary.
func (g Goodbye) Marshal() ([]byte, error) {
	if len(g.Sources) > 31 {
		return nil, errTooManyReports
	}
	if len(g.Reason) > 0xff {
		return nil, errReasonTooLong
	}

	raw := make([]byte, g.len())
	body := raw[headerLength:]
	offset := 0
	for _, ssrc := range g.Sources {
		binary.BigEndian.PutUint32(body[offset:], ssrc)
		offset += ssrcLength
	}
	if len(g.Reason) > 0 {
		body[offset] = byte(len(g.Reason))
		copy(body[offset+1:], g.Reason)
	}

	h := Header{
		Count:  uint8(len(g.Sources)),
		Type:   TypeGoodbye,
		Length: uint16(len(raw)/4 - 1),
	}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the Goodbye, header included, from binary.
func (g *Goodbye) Unmarshal(raw []byte) error {
	if err := g.header.Unmarshal(raw); err != nil {
		return err
	}
	if g.header.Type != TypeGoodbye {
		return errWrongType
	}

	body := raw[headerLength:]
	g.Sources = nil
	offset := 0
	for i := 0; i < int(g.header.Count); i++ {
		if offset+ssrcLength > len(body) {
			return errPacketTooShort
		}
		g.Sources = append(g.Sources, binary.BigEndian.Uint32(body[offset:]))
		offset += ssrcLength
	}

	g.Reason = nil
	if offset < len(body) {
		reasonLen := int(body[offset])
		if offset+1+reasonLen > len(body) {
			return errPacketTooShort
		}
		g.Reason = make([]byte, reasonLen)
		copy(g.Reason, body[offset+1:offset+1+reasonLen])
	}
	return nil
}
