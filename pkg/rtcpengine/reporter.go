package rtcpengine

import (
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/jitsi/libjitsi-sub007/internal/logx"
)

// Injector delivers a synthesized RTCP compound packet through the RTP
// transport, tagged as not being application data (spec §4.9's
// "is-data=false" flag).
type Injector interface {
	InjectRTCP(packet []byte, isData bool) error
}

// Reporter is the single-shot "maybe-report" timer (C9): invoked from the
// outbound RTP hot path on every packet, it is a no-op until nowMs
// reaches nextFireMs, at which point it fires C8's periodic builder once
// and reschedules.
type Reporter struct {
	engine     *Engine
	injector   Injector
	intervalMs int64
	log        logging.LeveledLogger

	nextFireMs atomic.Int64
}

// NewReporter creates a Reporter that fires engine's builder into
// injector every intervalMs, starting immediately (the first Maybe call
// after construction always fires).
func NewReporter(engine *Engine, injector Injector, intervalMs int64, log logging.LeveledLogger) *Reporter {
	if intervalMs <= 0 {
		intervalMs = 500
	}
	if log == nil {
		log = logx.New(nil, "rtcpengine")
	}
	return &Reporter{engine: engine, injector: injector, intervalMs: intervalMs, log: log}
}

// Maybe is the hot-path entry point: cheap (one atomic load) when it is
// not yet time to report, so it can be called on every outbound RTP
// packet without meaningfully adding latency.
func (r *Reporter) Maybe(nowMs int64) {
	next := r.nextFireMs.Load()
	if nowMs < next {
		return
	}
	if !r.nextFireMs.CompareAndSwap(next, nowMs+r.intervalMs) {
		return // another caller already won the race to fire this tick
	}

	packets, err := r.engine.BuildReports(nowMs)
	if err != nil {
		r.log.Warnf("rtcp report build failed: %v", err)
		return
	}
	for _, p := range packets {
		if err := r.injector.InjectRTCP(p, false); err != nil {
			r.log.Debugf("rtcp report inject failed: %v", err)
		}
	}
}
