package rtcpengine

import (
	"sort"

	"github.com/jitsi/libjitsi-sub007/pkg/rtcp"
)

// Strategy names a termination-strategy variant (spec §4.8 "Mode
// variants"). All variants share the same inbound-gateway and
// periodic-builder pipeline; a Strategy only changes what the builder
// decides to emit.
type Strategy int

// Strategy variants.
const (
	StrategyBasic Strategy = iota
	StrategyPassthrough
	StrategySilentBridge
	StrategyMaxThroughput
	StrategyMinThroughput
	StrategyHighestQuality
)

// REMB sentinel values used by the throughput-testing strategies.
const (
	maxThroughputMantissa = 262143
	maxThroughputExp      = 63
	minThroughputMantissa = 10
	minThroughputExp      = 1
)

// forwardsInbound reports whether inbound RR/SR/SDES/PSFB-REMB should be
// forwarded unmodified instead of harvested-and-dropped.
func (s Strategy) forwardsInbound() bool { return s == StrategyPassthrough }

// synthesizesOutbound reports whether the periodic builder should run at
// all for this strategy.
func (s Strategy) synthesizesOutbound() bool {
	return s != StrategyPassthrough && s != StrategySilentBridge
}

// shapeREMB lets Max/MinThroughput force sentinel bitrate values onto an
// otherwise-normal REMB the builder constructed; other strategies pass it
// through unchanged.
func (s Strategy) shapeREMB(r *rtcp.ReceiverEstimatedMaxBitrate) {
	switch s {
	case StrategyMaxThroughput:
		r.Mantissa, r.Exp = maxThroughputMantissa, maxThroughputExp
	case StrategyMinThroughput:
		r.Mantissa, r.Exp = minThroughputMantissa, minThroughputExp
	}
}

// destinationScore is one candidate's aggregated quality score for the
// HighestQuality strategy: mantissa·2^exp · (100−fractionLost)/100.
type destinationScore struct {
	ssrc  uint32
	score float64
}

// pickHighestQualityDestination aggregates the feedback cache across
// every known sender SSRC keyed by destination (the REMB's SSRC list),
// scores each, and returns the SSRC at the given percentile (spec
// §4.8's HighestQuality variant). ok is false if no candidate exists.
func pickHighestQualityDestination(snapshot map[uint32]FeedbackCacheEntry, percentile int) (uint32, bool) {
	scored := make(map[uint32]float64)
	for _, entry := range snapshot {
		if entry.REMB == nil {
			continue
		}
		bitrate := float64(entry.REMB.Bitrate())
		var fractionLost float64
		for _, rr := range entry.Reports {
			fractionLost = float64(rr.FractionLost) / 255 * 100
			break
		}
		for _, dest := range entry.REMB.SSRCs {
			s := bitrate * (100 - fractionLost) / 100
			if existing, ok := scored[dest]; !ok || s > existing {
				scored[dest] = s
			}
		}
	}
	if len(scored) == 0 {
		return 0, false
	}

	list := make([]destinationScore, 0, len(scored))
	for ssrc, score := range scored {
		list = append(list, destinationScore{ssrc: ssrc, score: score})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].score < list[j].score })

	if percentile < 0 {
		percentile = 0
	}
	if percentile > 100 {
		percentile = 100
	}
	idx := percentile * (len(list) - 1) / 100
	return list[idx].ssrc, true
}
