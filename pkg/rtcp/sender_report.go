package rtcp

import "encoding/binary"

const srBodyLength = 24 // ssrc + ntp + rtp-ts + packet-count + octet-count

// SenderReport (SR) carries transmission and reception statistics from a
// participant that is active as a sender.
type SenderReport struct {
	SSRC        uint32
	NTPTime     uint64
	RTPTime     uint32
	PacketCount uint32
	OctetCount  uint32
	Reports     []ReceptionReport

	header Header
}

// Header returns the Header decoded for (or computed from) this packet.
func (r *SenderReport) Header() Header { return r.header }

// DestinationSSRC implements Packet.
func (r *SenderReport) DestinationSSRC() []uint32 { return []uint32{r.SSRC} }

func (r *SenderReport) len() int {
	return headerLength + srBodyLength + len(r.Reports)*receptionReportLength
}

// Marshal encodes the SenderReport, header included, in binary.
func (r SenderReport) Marshal() ([]byte, error) {
	if len(r.Reports) > 31 {
		return nil, errTooManyReports
	}

	raw := make([]byte, r.len())
	body := raw[headerLength:]

	binary.BigEndian.PutUint32(body, r.SSRC)
	binary.BigEndian.PutUint64(body[4:], r.NTPTime)
	binary.BigEndian.PutUint32(body[12:], r.RTPTime)
	binary.BigEndian.PutUint32(body[16:], r.PacketCount)
	binary.BigEndian.PutUint32(body[20:], r.OctetCount)

	offset := srBodyLength
	for _, rp := range r.Reports {
		rpRaw, err := rp.Marshal()
		if err != nil {
			return nil, err
		}
		copy(body[offset:], rpRaw)
		offset += receptionReportLength
	}

	h := Header{
		Count:  uint8(len(r.Reports)),
		Type:   TypeSenderReport,
		Length: uint16(r.len()/4 - 1),
	}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the SenderReport, header included, from binary.
func (r *SenderReport) Unmarshal(raw []byte) error {
	if len(raw) < headerLength+srBodyLength {
		return errPacketTooShort
	}

	if err := r.header.Unmarshal(raw); err != nil {
		return err
	}
	if r.header.Type != TypeSenderReport {
		return errWrongType
	}

	body := raw[headerLength:]
	r.SSRC = binary.BigEndian.Uint32(body)
	r.NTPTime = binary.BigEndian.Uint64(body[4:])
	r.RTPTime = binary.BigEndian.Uint32(body[12:])
	r.PacketCount = binary.BigEndian.Uint32(body[16:])
	r.OctetCount = binary.BigEndian.Uint32(body[20:])

	r.Reports = nil
	offset := srBodyLength
	for i := 0; i < int(r.header.Count); i++ {
		if offset+receptionReportLength > len(body) {
			return errPacketTooShort
		}
		var rp ReceptionReport
		if err := rp.Unmarshal(body[offset:]); err != nil {
			return err
		}
		r.Reports = append(r.Reports, rp)
		offset += receptionReportLength
	}
	return nil
}
