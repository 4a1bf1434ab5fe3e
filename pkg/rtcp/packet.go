package rtcp

// Packet is a single RTCP record: a 4-byte header followed by a
// type-specific body, as carried inside a compound packet.
type Packet interface {
	Header() Header
	// DestinationSSRC returns the SSRCs this packet concerns, used by
	// downstream routing (e.g. the feedback cache and clock estimator).
	DestinationSSRC() []uint32

	Marshal() ([]byte, error)
	Unmarshal(raw []byte) error
}

// Unmarshal is a factory that decodes a single RTCP record (header + body,
// already isolated from any surrounding compound packet) into the
// concrete Packet implementation for its type.
func Unmarshal(raw []byte) (Packet, error) {
	var h Header
	if err := h.Unmarshal(raw); err != nil {
		return nil, err
	}

	wantLen := int(h.Length+1) * 4
	if wantLen != len(raw) {
		return nil, errPacketLengthMismatch
	}

	var p Packet
	switch h.Type {
	case TypeSenderReport:
		p = new(SenderReport)
	case TypeReceiverReport:
		p = new(ReceiverReport)
	case TypeSourceDescription:
		p = new(SourceDescription)
	case TypeGoodbye:
		p = new(Goodbye)
	case TypeApplicationDefined:
		p = new(ApplicationDefined)
	case TypeTransportSpecificFeedback:
		switch h.Count {
		case FormatTLN:
			p = new(TransportLayerNack)
		default:
			p = new(RawPacket)
		}
	case TypePayloadSpecificFeedback:
		switch h.Count {
		case FormatPLI:
			p = new(PictureLossIndication)
		case FormatFIR:
			p = new(FullIntraRequest)
		case FormatREMB:
			if looksLikeREMB(raw) {
				p = new(ReceiverEstimatedMaxBitrate)
			} else {
				p = new(RawPacket)
			}
		default:
			p = new(RawPacket)
		}
	default:
		p = new(RawPacket)
	}

	if err := p.Unmarshal(raw); err != nil {
		return nil, err
	}
	return p, nil
}

// looksLikeREMB checks for the 4-byte "REMB" unique identifier that
// distinguishes a PSFB/15 REMB packet from any other application-specific
// payload-feedback message sharing the same format number.
func looksLikeREMB(raw []byte) bool {
	const identOffset = headerLength + 8
	return len(raw) >= identOffset+4 &&
		raw[identOffset] == 'R' && raw[identOffset+1] == 'E' &&
		raw[identOffset+2] == 'M' && raw[identOffset+3] == 'B'
}
