package rtcpengine

import "sync"

// ntpEpochOffsetSeconds is 70 years of seconds, the gap between the NTP
// epoch (1900-01-01) and the Unix epoch (1970-01-01), used by both
// conversions below.
const ntpEpochOffsetSeconds = 2208988800

// ntpBaseRolloverSeconds is the NTP era-1 rollover point (2036-02-07),
// 2^32 seconds after the NTP epoch.
const ntpBaseRolloverSeconds = 1 << 32

// ntpToSystemMs converts a 64-bit NTP timestamp (32-bit seconds, 32-bit
// fraction) to Unix-epoch milliseconds, applying RFC 2030's base-epoch
// rule: if the MSB of the seconds field is zero, the timestamp is in
// "era 1" (base 2036-02-07) rather than era 0 (base 1900-01-01).
func ntpToSystemMs(ntp uint64) int64 {
	seconds := uint32(ntp >> 32)
	fraction := uint32(ntp & 0xffffffff)

	var baseOffsetSeconds int64
	if seconds&0x80000000 != 0 {
		baseOffsetSeconds = -ntpEpochOffsetSeconds // era 0: subtract to reach Unix epoch
	} else {
		baseOffsetSeconds = ntpBaseRolloverSeconds - ntpEpochOffsetSeconds // era 1
	}

	ms := (int64(seconds) + baseOffsetSeconds) * 1000
	ms += int64(fraction) * 1000 / (1 << 32)
	return ms
}

// RemoteClock is the per-SSRC NTP↔RTP mapping C7 maintains (spec §3,
// §4.7): one per SSRC, replaced (not merged) on every new SR.
type RemoteClock struct {
	SSRC             uint32
	RemoteSystemTimeMs int64
	RTPTimestamp     uint32
	LocalReceiptMs   int64
	FrequencyHz      int32 // -1 if not yet known
}

// Timestamp is the paired (systemTimeMs, rtpTimestamp) value Estimate
// returns.
type Timestamp struct {
	SystemTimeMs int64
	RTPTimestamp uint32
}

// Estimator tracks one RemoteClock per SSRC (C7).
type Estimator struct {
	mu     sync.RWMutex
	clocks map[uint32]*RemoteClock
}

// NewEstimator creates an empty Estimator.
func NewEstimator() *Estimator {
	return &Estimator{clocks: make(map[uint32]*RemoteClock)}
}

// Observe records a new Sender Report's NTP/RTP timestamp pair for ssrc,
// arriving at localReceiptMs. The clock-rate estimate carries forward
// from any previous observation for this SSRC (spec §4.7): frequencyHz is
// computed from the unsigned RTP-timestamp delta over the system-time
// delta when a previous clock exists, else recorded unknown (-1).
func (e *Estimator) Observe(ssrc uint32, ntpTime uint64, rtpTimestamp uint32, localReceiptMs int64) {
	systemTimeMs := ntpToSystemMs(ntpTime)

	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.clocks[ssrc]
	next := &RemoteClock{
		SSRC:               ssrc,
		RemoteSystemTimeMs: systemTimeMs,
		RTPTimestamp:       rtpTimestamp,
		LocalReceiptMs:     localReceiptMs,
		FrequencyHz:        -1,
	}
	if prev != nil {
		timeDeltaMs := systemTimeMs - prev.RemoteSystemTimeMs
		if timeDeltaMs != 0 {
			rtpDelta := int64(int32(rtpTimestamp - prev.RTPTimestamp)) // unsigned wraparound difference
			if rtpDelta < 0 {
				rtpDelta = -rtpDelta
			}
			// Hz (samples/sec), not samples/ms: scale the ms-denominated
			// delta up by 1000 so Estimate's (freq/1000)*elapsedMs inverse
			// recovers the original sample count.
			next.FrequencyHz = int32(roundDiv(rtpDelta*1000, abs64(timeDeltaMs)))
		}
	}
	e.clocks[ssrc] = next
}

// ObserveLocal feeds the outbound RTP hot path's own (system time, RTP
// timestamp) pairs into the same mapping Observe maintains for inbound
// SRs, letting the periodic report builder later recover an NTP/RTP pair
// for a locally-sent SSRC via Estimate without a second bookkeeping path.
func (e *Estimator) ObserveLocal(ssrc uint32, systemTimeMs int64, rtpTimestamp uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := e.clocks[ssrc]
	next := &RemoteClock{
		SSRC:               ssrc,
		RemoteSystemTimeMs: systemTimeMs,
		RTPTimestamp:       rtpTimestamp,
		LocalReceiptMs:     systemTimeMs,
		FrequencyHz:        -1,
	}
	if prev != nil {
		timeDeltaMs := systemTimeMs - prev.RemoteSystemTimeMs
		if timeDeltaMs != 0 {
			rtpDelta := int64(int32(rtpTimestamp - prev.RTPTimestamp))
			if rtpDelta < 0 {
				rtpDelta = -rtpDelta
			}
			next.FrequencyHz = int32(roundDiv(rtpDelta*1000, abs64(timeDeltaMs)))
		} else {
			next.FrequencyHz = prev.FrequencyHz
		}
	}
	e.clocks[ssrc] = next
}

// systemMsToNTP converts Unix-epoch milliseconds to a 64-bit NTP
// timestamp, always in era 0 (base 1900) since it is only ever used for
// "now" on a clock already well past 1970.
func systemMsToNTP(ms int64) uint64 {
	seconds := ms/1000 + ntpEpochOffsetSeconds
	fraction := (uint64(ms%1000) << 32) / 1000
	return uint64(seconds)<<32 | fraction
}

// Estimate projects the clock for ssrc forward to nowMs, returning false
// if no clock (or no known frequency) exists yet for ssrc.
func (e *Estimator) Estimate(ssrc uint32, nowMs int64) (Timestamp, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	c, ok := e.clocks[ssrc]
	if !ok || c.FrequencyHz < 0 {
		return Timestamp{}, false
	}

	elapsedMs := nowMs - c.LocalReceiptMs
	return Timestamp{
		SystemTimeMs: c.RemoteSystemTimeMs + elapsedMs,
		RTPTimestamp: c.RTPTimestamp + uint32(elapsedMs*int64(c.FrequencyHz)/1000),
	}, true
}

func roundDiv(a, b int64) int64 {
	if b == 0 {
		return 0
	}
	if (a < 0) != (b < 0) {
		return -((-a + b/2) / b)
	}
	return (a + b/2) / b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
