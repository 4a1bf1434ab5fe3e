package rtcp

import "encoding/binary"

const receptionReportLength = 24

// ReceptionReport is one report block as carried in an SR or RR packet.
//
// CumulativeLost is clamped to >= 0 on emission and FractionLost is
// clamped to [0, 255]; see the termination engine's report builder.
type ReceptionReport struct {
	SSRC               uint32
	FractionLost       uint8
	TotalLost          uint32 // 24-bit signed value, sign-extended into 32 bits
	LastSequenceNumber uint32
	Jitter             uint32
	LastSenderReport   uint32
	Delay              uint32 // DLSR, units of 1/65536 second
}

// Marshal encodes the ReceptionReport in binary.
func (r ReceptionReport) Marshal() ([]byte, error) {
	if r.TotalLost > (1<<24)-1 {
		return nil, errInvalidTotalLost
	}

	raw := make([]byte, receptionReportLength)
	binary.BigEndian.PutUint32(raw, r.SSRC)
	raw[4] = r.FractionLost
	raw[5] = byte(r.TotalLost >> 16)
	raw[6] = byte(r.TotalLost >> 8)
	raw[7] = byte(r.TotalLost)
	binary.BigEndian.PutUint32(raw[8:], r.LastSequenceNumber)
	binary.BigEndian.PutUint32(raw[12:], r.Jitter)
	binary.BigEndian.PutUint32(raw[16:], r.LastSenderReport)
	binary.BigEndian.PutUint32(raw[20:], r.Delay)
	return raw, nil
}

// Unmarshal decodes the ReceptionReport from binary.
func (r *ReceptionReport) Unmarshal(raw []byte) error {
	if len(raw) < receptionReportLength {
		return errPacketTooShort
	}

	r.SSRC = binary.BigEndian.Uint32(raw)
	r.FractionLost = raw[4]
	r.TotalLost = uint32(raw[5])<<16 | uint32(raw[6])<<8 | uint32(raw[7])
	if raw[5]&0x80 != 0 {
		r.TotalLost |= 0xff000000
	}
	r.LastSequenceNumber = binary.BigEndian.Uint32(raw[8:])
	r.Jitter = binary.BigEndian.Uint32(raw[12:])
	r.LastSenderReport = binary.BigEndian.Uint32(raw[16:])
	r.Delay = binary.BigEndian.Uint32(raw[20:])
	return nil
}
