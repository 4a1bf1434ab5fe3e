package rtcp

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Padding: true, Count: 5, Type: TypeReceiverReport, Length: 7}
	raw, err := h.Marshal()
	require.NoError(t, err)

	var got Header
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, h, got)
}

func TestSenderReportRoundTrip(t *testing.T) {
	sr := SenderReport{
		SSRC:        0x11223344,
		NTPTime:     0x1122334455667788,
		RTPTime:     987654321,
		PacketCount: 42,
		OctetCount:  9001,
		Reports: []ReceptionReport{
			{SSRC: 1, FractionLost: 10, TotalLost: 3, LastSequenceNumber: 100, Jitter: 5, LastSenderReport: 6, Delay: 7},
		},
	}

	raw, err := sr.Marshal()
	require.NoError(t, err)

	var got SenderReport
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, sr.SSRC, got.SSRC)
	require.Equal(t, sr.NTPTime, got.NTPTime)
	require.Equal(t, sr.Reports, got.Reports)
	require.Equal(t, TypeSenderReport, got.Header().Type)
}

func TestReceiverReportChunking(t *testing.T) {
	// 33 report blocks must be chunked across two RR packets with at most
	// 31 blocks each, matching the termination engine's packing rule.
	reports := make([]ReceptionReport, 33)
	for i := range reports {
		reports[i] = ReceptionReport{SSRC: uint32(i + 1)}
	}

	first := ReceiverReport{SSRC: 0xC0FFEE, Reports: reports[:31]}
	second := ReceiverReport{SSRC: 0xC0FFEE, Reports: reports[31:]}

	for _, rr := range []ReceiverReport{first, second} {
		raw, err := rr.Marshal()
		require.NoError(t, err)
		var got ReceiverReport
		require.NoError(t, got.Unmarshal(raw))
		require.Equal(t, rr.Reports, got.Reports)
	}
	require.Len(t, first.Reports, 31)
	require.Len(t, second.Reports, 2)
}

func TestSourceDescriptionRoundTrip(t *testing.T) {
	sdes := SourceDescription{
		Chunks: []SourceDescriptionChunk{
			{Source: 1, Items: []SourceDescriptionItem{{Type: SDESCNAME, Text: []byte("bridge-1")}}},
			{Source: 2, Items: []SourceDescriptionItem{
				{Type: SDESCNAME, Text: []byte("bridge-2")},
				{Type: SDESTool, Text: []byte("relay")},
			}},
		},
	}

	raw, err := sdes.Marshal()
	require.NoError(t, err)
	require.Zero(t, len(raw)%4)

	var got SourceDescription
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, sdes.Chunks, got.Chunks)

	cname, ok := got.Chunks[0].CNAME()
	require.True(t, ok)
	require.Equal(t, []byte("bridge-1"), cname)
}

func TestGoodbyeRoundTrip(t *testing.T) {
	bye := Goodbye{Sources: []uint32{1, 2, 3}, Reason: []byte("camera off")}
	raw, err := bye.Marshal()
	require.NoError(t, err)
	require.Zero(t, len(raw)%4)

	var got Goodbye
	require.NoError(t, got.Unmarshal(raw))
	require.Equal(t, bye.Sources, got.Sources)
	require.Equal(t, bye.Reason, got.Reason)
}

func TestPictureLossIndicationRoundTrip(t *testing.T) {
	pli := PictureLossIndication{SenderSSRC: 1, MediaSSRC: 2}
	raw, err := pli.Marshal()
	require.NoError(t, err)

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	got, ok := p.(*PictureLossIndication)
	require.True(t, ok)
	require.Equal(t, pli.MediaSSRC, got.MediaSSRC)
}

func TestFullIntraRequestRoundTrip(t *testing.T) {
	fir := FullIntraRequest{SenderSSRC: 1, MediaSSRC: 2, FIR: []FIREntry{{SSRC: 2, SequenceNumber: 3}}}
	raw, err := fir.Marshal()
	require.NoError(t, err)

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	got, ok := p.(*FullIntraRequest)
	require.True(t, ok)
	require.Equal(t, fir.FIR, got.FIR)
}

func TestTransportLayerNackRoundTrip(t *testing.T) {
	nack := TransportLayerNack{
		SenderSSRC: 1,
		MediaSSRC:  2,
		Nacks:      []NackPair{{PacketID: 100, LostPackets: 0b101}},
	}
	raw, err := nack.Marshal()
	require.NoError(t, err)

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	got, ok := p.(*TransportLayerNack)
	require.True(t, ok)
	require.Equal(t, []uint16{100, 101, 103}, got.Nacks[0].PacketList())
}

func TestREMBRoundTrip(t *testing.T) {
	var remb ReceiverEstimatedMaxBitrate
	remb.SenderSSRC = 0xAABBCCDD
	remb.SSRCs = []uint32{1, 2, 3}
	remb.SetBitrate(1_500_000)

	raw, err := remb.Marshal()
	require.NoError(t, err)

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	got, ok := p.(*ReceiverEstimatedMaxBitrate)
	require.True(t, ok)
	require.Equal(t, remb.SSRCs, got.SSRCs)
	require.LessOrEqual(t, got.Bitrate(), uint64(1_500_000))
	// within one step of precision of the target
	require.Greater(t, got.Bitrate(), uint64(1_500_000)-(1<<got.Exp))
}

func TestApplicationDefinedRoundTrip(t *testing.T) {
	app := ApplicationDefined{SubType: 3, SSRC: 7, Name: [4]byte{'T', 'E', 'S', 'T'}, Data: []byte("hello")}
	raw, err := app.Marshal()
	require.NoError(t, err)

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	got, ok := p.(*ApplicationDefined)
	require.True(t, ok)
	// Data is zero-padded to the 4-byte boundary on the wire.
	require.Equal(t, append([]byte("hello"), 0, 0, 0), got.Data)
	require.Equal(t, app.SubType, got.SubType)
}

func TestUnknownFormatPreservedAsRawPacket(t *testing.T) {
	nack := TransportLayerNack{SenderSSRC: 1, MediaSSRC: 2}
	raw, err := nack.Marshal()
	require.NoError(t, err)
	// Corrupt the FMT field to an unrecognised RTPFB sub-format.
	raw[0] = raw[0]&0xe0 | 17

	p, err := Unmarshal(raw)
	require.NoError(t, err)
	rp, ok := p.(*RawPacket)
	require.True(t, ok)
	require.Equal(t, raw, rp.Raw)
}

func TestParseCompoundSkipsMalformedRecord(t *testing.T) {
	rr := ReceiverReport{SSRC: 1}
	rrRaw, err := rr.Marshal()
	require.NoError(t, err)

	bye := Goodbye{Sources: []uint32{2}}
	byeRaw, err := bye.Marshal()
	require.NoError(t, err)

	bad := append([]byte(nil), rrRaw...)
	bad[0] = 0xff // version field now invalid

	compound := append(append([]byte(nil), bad...), byeRaw...)
	packets, dropped, err := ParseCompound(compound)
	require.NoError(t, err)
	require.Equal(t, 1, dropped)
	require.Len(t, packets, 1)
	require.Equal(t, TypeGoodbye, packets[0].Header().Type)
}

func TestParseCompoundIdempotent(t *testing.T) {
	rr := ReceiverReport{SSRC: 1, Reports: []ReceptionReport{{SSRC: 2}}}
	raw, err := rr.Marshal()
	require.NoError(t, err)

	p1, d1, err := ParseCompound(raw)
	require.NoError(t, err)
	p2, d2, err := ParseCompound(raw)
	require.NoError(t, err)
	require.Equal(t, d1, d2)
	require.Equal(t, p1, p2)
}
