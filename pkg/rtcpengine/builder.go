package rtcpengine

import "github.com/jitsi/libjitsi-sub007/pkg/rtcp"

const maxReportBlocksPerPacket = 31
const maxSDESChunksPerPacket = 31

// BuildReports runs the periodic report builder (spec §4.8), returning
// zero or more MTU-bounded compound RTCP datagrams ready to inject. A
// Passthrough or SilentBridge strategy synthesizes nothing.
func (e *Engine) BuildReports(nowMs int64) ([][]byte, error) {
	if !e.cfg.Strategy.synthesizesOutbound() {
		return nil, nil
	}

	e.GarbageCollect(nowMs)

	if e.cfg.Strategy == StrategyHighestQuality {
		return e.buildHighestQualityReport(nowMs)
	}

	reports := e.buildReportPackets(nowMs)
	remb := e.buildREMB(nowMs)
	sdesExtras := e.nextSDESIncludesExtras()
	cnameItems := e.sdesCNAMEItems(sdesExtras)

	return e.compound(reports, remb, cnameItems)
}

// reportBlockPacket is either an SR or an RR, tagged with the local SSRC
// it reports from so the compounding pass can attach a matching SDES
// chunk.
type reportBlockPacket struct {
	ssrc   uint32
	packet rtcp.Packet
}

// buildReportPackets implements steps 2-3: one RR per chunk of up to 31
// observed receive-streams' report blocks, folded into an SR instead of a
// bare RR for the engine's own local SSRC (the only SSRC this bridge both
// sends and reports from), per step 6's "prefer to move RR blocks into an
// SR" rule.
func (e *Engine) buildReportPackets(nowMs int64) []reportBlockPacket {
	e.mu.Lock()
	ssrcs := make([]uint32, 0, len(e.receiveStreams))
	for ssrc := range e.receiveStreams {
		ssrcs = append(ssrcs, ssrc)
	}
	streams := make(map[uint32]*ReceiveStream, len(e.receiveStreams))
	for k, v := range e.receiveStreams {
		streams[k] = v
	}
	e.mu.Unlock()

	blocks := make([]rtcp.ReceptionReport, 0, len(ssrcs))
	for _, ssrc := range ssrcs {
		blocks = append(blocks, streams[ssrc].BuildReportBlock(nowMs))
	}

	var out []reportBlockPacket
	first := true
	for len(blocks) > 0 {
		n := len(blocks)
		if n > maxReportBlocksPerPacket {
			n = maxReportBlocksPerPacket
		}
		chunk := blocks[:n]
		blocks = blocks[n:]

		if first {
			first = false
			if sr, ok := e.buildLocalSR(nowMs, chunk); ok {
				out = append(out, reportBlockPacket{ssrc: e.cfg.LocalSSRC, packet: sr})
				continue
			}
		}
		out = append(out, reportBlockPacket{
			ssrc:   e.cfg.LocalSSRC,
			packet: &rtcp.ReceiverReport{SSRC: e.cfg.LocalSSRC, Reports: chunk},
		})
	}

	if len(out) == 0 {
		if sr, ok := e.buildLocalSR(nowMs, nil); ok {
			out = append(out, reportBlockPacket{ssrc: e.cfg.LocalSSRC, packet: sr})
		} else {
			// RFC 3550 requires every compound to open with an SR or RR;
			// with nothing yet observed and no clock mapping for an SR,
			// emit an empty RR so that invariant still holds.
			out = append(out, reportBlockPacket{
				ssrc:   e.cfg.LocalSSRC,
				packet: &rtcp.ReceiverReport{SSRC: e.cfg.LocalSSRC},
			})
		}
	}
	return out
}

// buildLocalSR builds an SR for the engine's own SSRC carrying blocks,
// using the outbound-path clock mapping registered via ObserveLocal. ok
// is false if no send-stream (or no clock estimate) exists yet, in which
// case the caller falls back to a bare RR.
func (e *Engine) buildLocalSR(nowMs int64, blocks []rtcp.ReceptionReport) (*rtcp.SenderReport, bool) {
	e.mu.Lock()
	ss, ok := e.sendStreams[e.cfg.LocalSSRC]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}

	est, ok := e.clocks.Estimate(e.cfg.LocalSSRC, nowMs)
	if !ok {
		return nil, false
	}

	packets, octets := ss.Snapshot()
	return &rtcp.SenderReport{
		SSRC:        e.cfg.LocalSSRC,
		NTPTime:     systemMsToNTP(est.SystemTimeMs),
		RTPTime:     est.RTPTimestamp,
		PacketCount: packets,
		OctetCount:  octets,
		Reports:     blocks,
	}, true
}

// buildREMB implements step 4: one REMB per call from the latest
// bandwidth estimate, addressed to every currently-observed receive
// stream; nil if no estimate is available yet.
func (e *Engine) buildREMB(nowMs int64) *rtcp.ReceiverEstimatedMaxBitrate {
	_ = nowMs
	bps, ok := e.bandwidthEstimate()
	if !ok {
		return nil
	}

	e.mu.Lock()
	dests := make([]uint32, 0, len(e.receiveStreams))
	for ssrc := range e.receiveStreams {
		dests = append(dests, ssrc)
	}
	e.mu.Unlock()

	r := &rtcp.ReceiverEstimatedMaxBitrate{SenderSSRC: e.cfg.LocalSSRC, SSRCs: dests}
	r.SetBitrate(bps)
	e.cfg.Strategy.shapeREMB(r)
	return r
}

// nextSDESIncludesExtras implements the throttle in step 5: NAME/EMAIL/
// PHONE/LOC/TOOL/NOTE are only attached every third invocation.
func (e *Engine) nextSDESIncludesExtras() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	include := e.sdesCounter%3 == 0
	e.sdesCounter++
	return include
}

// sdesCNAMEItems returns one chunk per SSRC known to the CNAME registry,
// always including the engine's own CNAME, with extras attached per
// includeExtras.
func (e *Engine) sdesCNAMEItems(includeExtras bool) []rtcp.SourceDescriptionChunk {
	chunks := []rtcp.SourceDescriptionChunk{
		e.buildSDESChunk(e.cfg.LocalSSRC, e.cfg.LocalCNAME, includeExtras),
	}
	for _, ssrc := range e.cnames.SSRCs() {
		if ssrc == e.cfg.LocalSSRC {
			continue
		}
		cname, ok := e.cnames.Get(ssrc)
		if !ok {
			continue
		}
		chunks = append(chunks, e.buildSDESChunk(ssrc, cname, includeExtras))
	}
	return chunks
}

func (e *Engine) buildSDESChunk(ssrc uint32, cname []byte, includeExtras bool) rtcp.SourceDescriptionChunk {
	items := []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: cname}}
	if includeExtras && ssrc == e.cfg.LocalSSRC {
		items = append(items, e.cfg.LocalSDESExtras...)
	}
	return rtcp.SourceDescriptionChunk{Source: ssrc, Items: items}
}

// chunkSDES splits chunks into packets of at most 31 chunks each.
func chunkSDES(chunks []rtcp.SourceDescriptionChunk) []*rtcp.SourceDescription {
	var out []*rtcp.SourceDescription
	for len(chunks) > 0 {
		n := len(chunks)
		if n > maxSDESChunksPerPacket {
			n = maxSDESChunksPerPacket
		}
		out = append(out, &rtcp.SourceDescription{Chunks: append([]rtcp.SourceDescriptionChunk(nil), chunks[:n]...)})
		chunks = chunks[n:]
	}
	return out
}

// compound implements step 6: for each report (SR preferred over RR,
// which buildReportPackets already arranges), emit a compound containing
// that report, the REMB (once, across the whole call), and the SDES chunk
// for the report's own SSRC if known (its CNAME, plus any throttled
// extras sdesCNAMEItems attached); then greedily
// merge adjacent compounds whose combined size fits the MTU, concatenating
// their SDES chunks.
func (e *Engine) compound(reports []reportBlockPacket, remb *rtcp.ReceiverEstimatedMaxBitrate, cnameItems []rtcp.SourceDescriptionChunk) ([][]byte, error) {
	cnameBySSRC := make(map[uint32]rtcp.SourceDescriptionChunk, len(cnameItems))
	for _, c := range cnameItems {
		if len(c.Items) > 0 {
			cnameBySSRC[c.Source] = c
		}
	}

	type built struct {
		packets []rtcp.Packet
		sdes    []rtcp.SourceDescriptionChunk
	}
	var groups []built
	rembUsed := false

	if len(reports) == 0 {
		groups = append(groups, built{sdes: cnameItems})
	}
	for _, r := range reports {
		g := built{packets: []rtcp.Packet{r.packet}}
		if chunk, ok := cnameBySSRC[r.ssrc]; ok {
			g.sdes = []rtcp.SourceDescriptionChunk{chunk}
		}
		if !rembUsed && remb != nil {
			g.packets = append(g.packets, remb)
			rembUsed = true
		}
		groups = append(groups, g)
	}
	// Any SDES chunk not already attached to a report (e.g. a remote
	// SSRC with no corresponding local report-block in this tick) rides
	// along on the first compound.
	attached := make(map[uint32]bool, len(groups))
	for _, g := range groups {
		for _, c := range g.sdes {
			attached[c.Source] = true
		}
	}
	if len(groups) > 0 {
		for _, c := range cnameItems {
			if !attached[c.Source] {
				groups[0].sdes = append(groups[0].sdes, c)
			}
		}
	}

	// Greedy merge pass.
	merged := groups[:0:0]
	for _, g := range groups {
		if len(merged) == 0 {
			merged = append(merged, g)
			continue
		}
		last := merged[len(merged)-1]
		candidate := built{
			packets: append(append([]rtcp.Packet(nil), last.packets...), g.packets...),
			sdes:    append(append([]rtcp.SourceDescriptionChunk(nil), last.sdes...), g.sdes...),
		}
		raw, err := marshalCompound(candidate.packets, candidate.sdes)
		if err == nil && len(raw) <= e.mtu() {
			merged[len(merged)-1] = candidate
			continue
		}
		merged = append(merged, g)
	}

	out := make([][]byte, 0, len(merged))
	for _, g := range merged {
		raw, err := marshalCompound(g.packets, g.sdes)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 {
			out = append(out, raw)
		}
	}
	return out, nil
}

func marshalCompound(packets []rtcp.Packet, sdesChunks []rtcp.SourceDescriptionChunk) ([]byte, error) {
	all := append([]rtcp.Packet(nil), packets...)
	for _, sdes := range chunkSDES(sdesChunks) {
		all = append(all, sdes)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return rtcp.Marshal(all)
}

func (e *Engine) mtu() int {
	if e.cfg.MTU <= 0 {
		return 1280
	}
	return e.cfg.MTU
}

// buildHighestQualityReport implements the HighestQuality variant: score
// every destination across all cached feedback, pick the configured
// percentile, and build a single RR+REMB compound for it.
func (e *Engine) buildHighestQualityReport(nowMs int64) ([][]byte, error) {
	snapshot := e.cache.Snapshot()
	ssrc, ok := pickHighestQualityDestination(snapshot, e.cfg.Percentile)
	if !ok {
		return nil, nil
	}

	entry := snapshot[ssrc]
	rr := &rtcp.ReceiverReport{SSRC: e.cfg.LocalSSRC, Reports: entry.Reports}

	var remb *rtcp.ReceiverEstimatedMaxBitrate
	if bps, ok := e.bandwidthEstimate(); ok {
		remb = &rtcp.ReceiverEstimatedMaxBitrate{SenderSSRC: e.cfg.LocalSSRC, SSRCs: []uint32{ssrc}}
		remb.SetBitrate(bps)
	}

	packets := []rtcp.Packet{rr}
	if remb != nil {
		packets = append(packets, remb)
	}
	var sdes []rtcp.SourceDescriptionChunk
	if cname, ok := e.cnames.Get(e.cfg.LocalSSRC); ok {
		sdes = []rtcp.SourceDescriptionChunk{{Source: e.cfg.LocalSSRC, Items: []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: cname}}}}
	} else if len(e.cfg.LocalCNAME) > 0 {
		sdes = []rtcp.SourceDescriptionChunk{{Source: e.cfg.LocalSSRC, Items: []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: e.cfg.LocalCNAME}}}}
	}

	raw, err := marshalCompound(packets, sdes)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	_ = nowMs
	return [][]byte{raw}, nil
}
