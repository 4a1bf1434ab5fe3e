package rtcp

import "encoding/binary"

// ReceiverReport (RR) carries reception statistics for participants that
// are not, themselves, sending RTP.
type ReceiverReport struct {
	SSRC    uint32
	Reports []ReceptionReport

	header Header
}

// Header returns the decoded Header.
func (r *ReceiverReport) Header() Header { return r.header }

// DestinationSSRC implements Packet.
func (r *ReceiverReport) DestinationSSRC() []uint32 { return []uint32{r.SSRC} }

func (r *ReceiverReport) len() int {
	return headerLength + ssrcLength + len(r.Reports)*receptionReportLength
}

// Marshal encodes the ReceiverReport, header included, in binary.
func (r ReceiverReport) Marshal() ([]byte, error) {
	if len(r.Reports) > 31 {
		return nil, errTooManyReports
	}

	raw := make([]byte, r.len())
	body := raw[headerLength:]
	binary.BigEndian.PutUint32(body, r.SSRC)

	offset := ssrcLength
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
		Type:   TypeReceiverReport,
		Length: uint16(r.len()/4 - 1),
	}
	hRaw, err := h.Marshal()
	if err != nil {
		return nil, err
	}
	copy(raw, hRaw)
	return raw, nil
}

// Unmarshal decodes the ReceiverReport, header included, from binary.
func (r *ReceiverReport) Unmarshal(raw []byte) error {
	if len(raw) < headerLength+ssrcLength {
		return errPacketTooShort
	}
	if err := r.header.Unmarshal(raw); err != nil {
		return err
	}
	if r.header.Type != TypeReceiverReport {
		return errWrongType
	}

	body := raw[headerLength:]
	r.SSRC = binary.BigEndian.Uint32(body)

	r.Reports = nil
	offset := ssrcLength
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
