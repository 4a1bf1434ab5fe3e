package rtcp

// Reader walks the records of one compound RTCP datagram, handing back
// each record's raw bytes (header included) without decoding its body —
// decoding is left to Unmarshal so a caller can skip records it doesn't
// care about.
type Reader struct {
	buf []byte
}

// NewReader wraps buf, a single UDP datagram's worth of concatenated
// RTCP records.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// ReadPacket returns the raw bytes of the next record, or nil, nil at
// end of input.
func (r *Reader) ReadPacket() ([]byte, error) {
	if len(r.buf) == 0 {
		return nil, nil
	}
	if len(r.buf) < headerLength {
		return nil, errPacketTooShort
	}

	// Only the length field is read here; version and type are left for
	// Unmarshal so a malformed record can be skipped by its length.
	packetLen := (int(r.buf[2])<<8 | int(r.buf[3]) + 1) * 4
	if packetLen > len(r.buf) {
		return nil, errPacketTooShort
	}

	raw := r.buf[:packetLen]
	r.buf = r.buf[packetLen:]
	return raw, nil
}

// ParseCompound decodes every record in a compound RTCP datagram. A
// malformed record, once its own length has been determined, is skipped
// (not fatal to the rest of the compound) and reported via the returned
// count of dropped records; a record whose length can't be determined
// stops parsing (the remaining bytes can't be reliably resynchronized).
func ParseCompound(buf []byte) (packets []Packet, dropped int, err error) {
	r := NewReader(buf)
	for {
		raw, rerr := r.ReadPacket()
		if rerr != nil {
			return packets, dropped, rerr
		}
		if raw == nil {
			return packets, dropped, nil
		}

		p, perr := Unmarshal(raw)
		if perr != nil {
			dropped++
			continue
		}
		packets = append(packets, p)
	}
}

// Marshal serializes a compound packet by concatenating each record's
// own Marshal output, in order.
func Marshal(packets []Packet) ([]byte, error) {
	var out []byte
	for _, p := range packets {
		raw, err := p.Marshal()
		if err != nil {
			return nil, err
		}
		out = append(out, raw...)
	}
	return out, nil
}
