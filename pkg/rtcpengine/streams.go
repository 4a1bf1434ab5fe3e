package rtcpengine

import (
	"sync"
	"sync/atomic"

	"github.com/jitsi/libjitsi-sub007/pkg/rtcp"
)

// ReceiveStream accumulates the per-SSRC statistics the report-block
// formula in spec §4.8 needs: sequence-number extension and cycle
// counting, loss bookkeeping between ticks, jitter, and the most recent
// SR this side received from that SSRC (needed for LSR/DLSR).
type ReceiveStream struct {
	mu sync.Mutex

	ssrc          uint32
	initialized   bool
	baseSeq       uint32
	maxSeq        uint16
	cycles        uint32
	received      uint64
	prevLost      int64
	prevMaxSeq    uint32
	jitter        uint32
	lastTransitMs int64

	lastSRNTP       uint64
	lastSRReceiptMs int64
	haveSR          bool
}

// NewReceiveStream creates stats tracking for ssrc.
func NewReceiveStream(ssrc uint32) *ReceiveStream { return &ReceiveStream{ssrc: ssrc} }

// OnPacket folds one inbound RTP packet's sequence number and arrival
// time into the running statistics (RFC 3550 A.1/A.8 shape).
func (s *ReceiveStream) OnPacket(seq uint16, rtpTimestamp uint32, arrivalMs int64, clockRate uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	const maxDropout = 3000 // RFC 3550 A.1's bound on an acceptable forward jump

	if !s.initialized {
		s.initialized = true
		s.baseSeq = uint32(seq)
		s.maxSeq = seq
	} else if udelta := seq - s.maxSeq; udelta < maxDropout {
		if seq < s.maxSeq {
			s.cycles += 1 << 16
		}
		s.maxSeq = seq
	}
	// else: large jump relative to maxSeq — misordered or duplicate packet
	// from an earlier cycle; leave maxSeq/cycles alone.
	s.received++

	if clockRate > 0 {
		transitMs := arrivalMs - int64(rtpTimestamp)*1000/int64(clockRate)
		if s.lastTransitMs != 0 {
			d := transitMs - s.lastTransitMs
			if d < 0 {
				d = -d
			}
			s.jitter += uint32((d - int64(s.jitter)) / 16) //nolint:gosec // RFC 3550 A.8 running estimator
		}
		s.lastTransitMs = transitMs
	}
}

// OnSenderReport records the NTP timestamp of an SR received from this
// SSRC, for LSR/DLSR on the next outbound RR.
func (s *ReceiveStream) OnSenderReport(ntpTime uint64, receiptMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSRNTP = ntpTime
	s.lastSRReceiptMs = receiptMs
	s.haveSR = true
}

// BuildReportBlock computes a ReceptionReport per spec §4.8's formula at
// time nowMs, and advances the prevLost/prevMaxSeq bookkeeping the next
// call's fractionLost needs.
func (s *ReceiveStream) BuildReportBlock(nowMs int64) rtcp.ReceptionReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	extendedMaxSeq := s.cycles + uint32(s.maxSeq)
	expected := int64(extendedMaxSeq) - int64(s.baseSeq) + 1
	lost := expected - int64(s.received)
	if lost < 0 {
		lost = 0
	}

	var fraction uint8
	seqDelta := int64(extendedMaxSeq) - int64(s.prevMaxSeq)
	if seqDelta > 0 {
		f := roundDiv((lost-s.prevLost)*256, seqDelta)
		fraction = clampFraction(f)
	}

	var lsr, dlsr uint32
	if s.haveSR {
		lsr = uint32(s.lastSRNTP >> 16)
		elapsedMs := nowMs - s.lastSRReceiptMs
		if elapsedMs < 0 {
			elapsedMs = 0
		}
		dlsr = uint32(roundDiv(elapsedMs*65536, 1000))
	}

	s.prevLost = lost
	s.prevMaxSeq = extendedMaxSeq

	return rtcp.ReceptionReport{
		SSRC:               s.ssrc,
		FractionLost:       fraction,
		TotalLost:          uint32(lost),
		LastSequenceNumber: extendedMaxSeq,
		Jitter:             s.jitter,
		LastSenderReport:   lsr,
		Delay:              dlsr,
	}
}

func clampFraction(f int64) uint8 {
	if f < 0 {
		return 0
	}
	if f > 255 {
		return 255
	}
	return uint8(f)
}

// SendStream accumulates the packet/octet counters an outbound SR needs,
// maintained from the outbound RTP path (spec §4.8 step 3).
type SendStream struct {
	ssrc        uint32
	packetCount atomic.Uint32
	octetCount  atomic.Uint32
}

// NewSendStream creates counters for a locally-sent ssrc.
func NewSendStream(ssrc uint32) *SendStream { return &SendStream{ssrc: ssrc} }

// OnPacketSent records one outbound RTP packet's size.
func (s *SendStream) OnPacketSent(payloadLen int) {
	s.packetCount.Add(1)
	s.octetCount.Add(uint32(payloadLen))
}

// Snapshot returns the current packet/octet counts.
func (s *SendStream) Snapshot() (packets, octets uint32) {
	return s.packetCount.Load(), s.octetCount.Load()
}
