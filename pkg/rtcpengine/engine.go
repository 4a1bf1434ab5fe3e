package rtcpengine

import (
	"sync"

	"github.com/pion/logging"

	"github.com/jitsi/libjitsi-sub007/internal/logx"
	"github.com/jitsi/libjitsi-sub007/pkg/rtcp"
)

// Config parameterizes an Engine per spec §6's external interface: the
// reporter interval lives on the caller's Reporter instead (C9 is a
// separate concern), while the strategy, local identity, MTU, percentile
// and staleness window belong to the engine itself.
type Config struct {
	Strategy   Strategy
	LocalSSRC  uint32
	LocalCNAME []byte
	// LocalSDESExtras carries the optional NAME/EMAIL/PHONE/LOC/TOOL/NOTE
	// items attached to the local CNAME chunk every third periodic report
	// (spec §4.8 step 5). CNAME itself is unaffected by this throttle.
	LocalSDESExtras []rtcp.SourceDescriptionItem
	MTU             int
	Percentile      int
	// ExpireMs bounds how long a receive-stream may go unobserved before
	// BuildReports garbage-collects it. Zero disables GC.
	ExpireMs int64
	Logger   logging.LeveledLogger
}

// Engine wires together the feedback cache (C6), remote-clock estimator
// (C7), CNAME registry, and per-SSRC stream statistics behind the
// inbound gateway and periodic report builder described in spec §4.8.
type Engine struct {
	cfg Config
	log logging.LeveledLogger

	cache  *FeedbackCache
	clocks *Estimator
	cnames *CNAMERegistry

	mu             sync.Mutex
	receiveStreams map[uint32]*ReceiveStream
	sendStreams    map[uint32]*SendStream
	lastSeenMs     map[uint32]int64
	sdesCounter    int

	bwMu          sync.Mutex
	bandwidthBps  uint64
	haveBandwidth bool
}

// New creates an Engine. A nil Logger falls back to a no-op logger.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = logx.New(nil, "rtcpengine")
	}
	return &Engine{
		cfg:            cfg,
		log:            log,
		cache:          NewFeedbackCache(),
		clocks:         NewEstimator(),
		cnames:         NewCNAMERegistry(),
		receiveStreams: make(map[uint32]*ReceiveStream),
		sendStreams:    make(map[uint32]*SendStream),
		lastSeenMs:     make(map[uint32]int64),
	}
}

// ReceiveStreamFor returns (creating if necessary) the statistics tracker
// for an inbound SSRC, and records nowMs as its last-seen time for GC.
func (e *Engine) ReceiveStreamFor(ssrc uint32, nowMs int64) *ReceiveStream {
	e.mu.Lock()
	defer e.mu.Unlock()

	rs, ok := e.receiveStreams[ssrc]
	if !ok {
		rs = NewReceiveStream(ssrc)
		e.receiveStreams[ssrc] = rs
	}
	e.lastSeenMs[ssrc] = nowMs
	return rs
}

// SendStreamFor returns (creating if necessary) the counters for a
// locally-sent SSRC.
func (e *Engine) SendStreamFor(ssrc uint32) *SendStream {
	e.mu.Lock()
	defer e.mu.Unlock()

	ss, ok := e.sendStreams[ssrc]
	if !ok {
		ss = NewSendStream(ssrc)
		e.sendStreams[ssrc] = ss
	}
	return ss
}

// SetBandwidthEstimate records the latest bandwidth estimate (bits per
// second) the builder folds into its REMB, per spec §4.8 step 4.
func (e *Engine) SetBandwidthEstimate(bps uint64) {
	e.bwMu.Lock()
	defer e.bwMu.Unlock()
	e.bandwidthBps = bps
	e.haveBandwidth = true
}

func (e *Engine) bandwidthEstimate() (uint64, bool) {
	e.bwMu.Lock()
	defer e.bwMu.Unlock()
	return e.bandwidthBps, e.haveBandwidth
}

// GarbageCollect drops receive-stream state not seen since nowMs-ExpireMs,
// and expires stale feedback-cache entries the same way (spec §4.8 step
// 1). A zero ExpireMs disables collection.
func (e *Engine) GarbageCollect(nowMs int64) {
	if e.cfg.ExpireMs <= 0 {
		return
	}
	e.cache.Expire(nowMs, e.cfg.ExpireMs)

	e.mu.Lock()
	defer e.mu.Unlock()
	for ssrc, last := range e.lastSeenMs {
		if last < nowMs-e.cfg.ExpireMs {
			delete(e.lastSeenMs, ssrc)
			delete(e.receiveStreams, ssrc)
		}
	}
}

// ReverseTransform applies the inbound gateway (spec §4.8's table) to one
// compound RTCP datagram: harvesting RR/SR/SDES/PSFB-REMB into C6/C7/the
// CNAME registry and dropping RR/SDES/REMB, forwarding each SR with its
// report blocks cleared (dropped under SilentBridge), and forwarding
// PLI/FIR/NACK/BYE/APP and anything else unmodified. Passthrough strategy
// forwards the compound byte-for-byte without harvesting anything. The
// returned compound is nil when no record is left to forward; the int is
// the count of malformed records skipped.
func (e *Engine) ReverseTransform(compound []byte, nowMs int64) ([]byte, int, error) {
	if e.cfg.Strategy.forwardsInbound() {
		return compound, 0, nil
	}

	packets, dropped, err := rtcp.ParseCompound(compound)
	if err != nil {
		return nil, dropped, err
	}

	forward := make([]rtcp.Packet, 0, len(packets))
	for _, p := range packets {
		switch pkt := p.(type) {
		case *rtcp.ReceiverReport:
			e.cache.Update(pkt.SSRC, pkt.Reports, nil, nowMs)

		case *rtcp.SenderReport:
			e.cache.Update(pkt.SSRC, pkt.Reports, nil, nowMs)
			e.clocks.Observe(pkt.SSRC, pkt.NTPTime, pkt.RTPTime, nowMs)
			if rs, ok := e.lookupReceiveStream(pkt.SSRC); ok {
				rs.OnSenderReport(pkt.NTPTime, nowMs)
			}
			if e.cfg.Strategy != StrategySilentBridge {
				zeroed := *pkt
				zeroed.Reports = nil
				forward = append(forward, &zeroed)
			}

		case *rtcp.SourceDescription:
			for _, chunk := range pkt.Chunks {
				if cname, ok := chunk.CNAME(); ok {
					e.cnames.Set(chunk.Source, cname)
				}
			}

		case *rtcp.ReceiverEstimatedMaxBitrate:
			e.cache.Update(pkt.SenderSSRC, nil, pkt, nowMs)

		default:
			// PLI, FIR, NACK, BYE, APP, and anything the codec couldn't
			// specifically parse: forward unmodified.
			forward = append(forward, p)
		}
	}

	if len(forward) == 0 {
		return nil, dropped, nil
	}
	out, merr := rtcp.Marshal(forward)
	if merr != nil {
		return nil, dropped, merr
	}
	return out, dropped, nil
}

func (e *Engine) lookupReceiveStream(ssrc uint32) (*ReceiveStream, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rs, ok := e.receiveStreams[ssrc]
	return rs, ok
}
