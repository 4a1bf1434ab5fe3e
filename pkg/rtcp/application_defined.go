package rtcp

import "encoding/binary"

// ApplicationDefined (APP) carries an opaque, application-specific payload
// identified by a 4-byte ASCII name. The termination engine never
// synthesizes APP packets; it only forwards ones it sees inbound.
type ApplicationDefined struct {
	SubType uint8
	SSRC    uint32
	Name    [4]byte
	Data    []byte

	header Header
}

// Header returns the decoded Header.
func (a *ApplicationDefined) Header() Header { return a.header }

// DestinationSSRC implements Packet.
func (a *ApplicationDefined) DestinationSSRC() []uint32 { return []uint32{a.SSRC} }

func (a ApplicationDefined) len() int {
	return (headerLength + ssrcLength + 4 + len(a.Data) + 3) &^ 3
}

// Marshal encodes the ApplicationDefined, header included, in binary.
func (a ApplicationDefined) Marshal() ([]byte, error) {
	raw := make([]byte, a.len())
	body := raw[headerLength:]
	binary.BigEndian.PutUint32(body, a.SSRC)
	copy(body[4:8], a.Name[:])
	copy(body[8:], a.Data)

	h := Header{
		Count:  a.SubType & countMask,
		Type:   TypeApplicationDefined,
		Length: uint16(len(raw)/4 - 1),
	}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the ApplicationDefined, header included, from binary.
func (a *ApplicationDefined) Unmarshal(raw []byte) error {
	if err := a.header.Unmarshal(raw); err != nil {
		return err
	}
	if a.header.Type != TypeApplicationDefined {
		return errWrongType
	}
	if len(raw) < headerLength+ssrcLength+4 {
		return errPacketTooShort
	}

	a.SubType = a.header.Count
	body := raw[headerLength:]
	a.SSRC = binary.BigEndian.Uint32(body)
	copy(a.Name[:], body[4:8])
	a.Data = append([]byte(nil), body[8:]...)
	return nil
}
