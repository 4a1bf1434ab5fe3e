package rtcpengine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jitsi/libjitsi-sub007/pkg/rtcp"
)

func TestFeedbackCacheUpdateMergesMissingSide(t *testing.T) {
	c := NewFeedbackCache()
	reports := []rtcp.ReceptionReport{{SSRC: 1}}
	c.Update(42, reports, nil, 100)

	remb := &rtcp.ReceiverEstimatedMaxBitrate{SenderSSRC: 42}
	c.Update(42, nil, remb, 200)

	entry, ok := c.Get(42)
	require.True(t, ok)
	require.Equal(t, reports, entry.Reports)
	require.Same(t, remb, entry.REMB)
	require.EqualValues(t, 200, entry.LastUpdateMs)
}

func TestFeedbackCacheUpdateNoopOnEmpty(t *testing.T) {
	c := NewFeedbackCache()
	c.Update(0, nil, nil, 0)
	c.Update(7, nil, nil, 0)
	require.Equal(t, 0, c.Len())
}

func TestEstimatorRoundTripsFrequency(t *testing.T) {
	e := NewEstimator()
	e.Observe(1, systemMsToNTP(1_000_000), 8000, 1_000_000)
	e.Observe(1, systemMsToNTP(1_000_500), 12000, 1_000_500)

	ts, ok := e.Estimate(1, 1_001_000)
	require.True(t, ok)
	// 8kHz clock, 500ms elapsed since the second observation => +4000 samples.
	require.InDelta(t, 16000, ts.RTPTimestamp, 1)
	require.Equal(t, int64(1_001_000), ts.SystemTimeMs)
}

func TestEstimatorUnknownFrequencyReturnsFalse(t *testing.T) {
	e := NewEstimator()
	e.Observe(9, systemMsToNTP(1000), 100, 1000)
	_, ok := e.Estimate(9, 2000)
	require.False(t, ok)
}

func TestReceiveStreamReportBlockFormula(t *testing.T) {
	rs := NewReceiveStream(55)
	for _, seq := range []uint16{100, 101, 102, 104} {
		rs.OnPacket(seq, 0, 0, 0)
	}
	block := rs.BuildReportBlock(0)
	require.EqualValues(t, 55, block.SSRC)
	require.EqualValues(t, 1, block.TotalLost) // seq 103 missing
	require.EqualValues(t, 104, block.LastSequenceNumber)
}

func TestCNAMERegistrySetGet(t *testing.T) {
	r := NewCNAMERegistry()
	r.Set(1, []byte("alice@example"))
	name, ok := r.Get(1)
	require.True(t, ok)
	require.Equal(t, "alice@example", string(name))
	require.Len(t, r.SSRCs(), 1)
}

func TestEngineInboundGatewayHarvestsAndDrops(t *testing.T) {
	e := New(Config{Strategy: StrategyBasic, LocalSSRC: 999, LocalCNAME: []byte("bridge")})

	rr := rtcp.ReceiverReport{SSRC: 1, Reports: []rtcp.ReceptionReport{{SSRC: 2}}}
	sdes := rtcp.SourceDescription{Chunks: []rtcp.SourceDescriptionChunk{
		{Source: 1, Items: []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: []byte("cname-1")}}},
	}}
	pli := rtcp.PictureLossIndication{SenderSSRC: 999, MediaSSRC: 1}

	compound, err := rtcp.Marshal([]rtcp.Packet{&rr, &sdes, &pli})
	require.NoError(t, err)

	out, dropped, err := e.ReverseTransform(compound, 0)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)

	packets, _, err := rtcp.ParseCompound(out)
	require.NoError(t, err)
	require.Len(t, packets, 1)
	_, isPLI := packets[0].(*rtcp.PictureLossIndication)
	require.True(t, isPLI)

	entry, ok := e.cache.Get(1)
	require.True(t, ok)
	require.Len(t, entry.Reports, 1)

	cname, ok := e.cnames.Get(1)
	require.True(t, ok)
	require.Equal(t, "cname-1", string(cname))
}

func TestEnginePassthroughForwardsUnmodified(t *testing.T) {
	e := New(Config{Strategy: StrategyPassthrough, LocalSSRC: 999})
	rr := rtcp.ReceiverReport{SSRC: 1}
	compound, err := rtcp.Marshal([]rtcp.Packet{&rr})
	require.NoError(t, err)

	out, dropped, err := e.ReverseTransform(compound, 0)
	require.NoError(t, err)
	require.Equal(t, 0, dropped)
	require.Equal(t, compound, out)
}

func TestEngineBuildReportsSilentBridgeEmitsNothing(t *testing.T) {
	e := New(Config{Strategy: StrategySilentBridge, LocalSSRC: 999})
	out, err := e.BuildReports(0)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestEngineBuildReportsIncludesReportAndCNAME(t *testing.T) {
	e := New(Config{Strategy: StrategyBasic, LocalSSRC: 999, LocalCNAME: []byte("bridge-cname"), MTU: 1280})

	rs := e.ReceiveStreamFor(1, 0)
	rs.OnPacket(1, 0, 0, 0)
	rs.OnPacket(2, 0, 0, 0)

	out, err := e.BuildReports(0)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	packets, _, err := rtcp.ParseCompound(out[0])
	require.NoError(t, err)

	var sawReport, sawCNAME bool
	for _, p := range packets {
		switch pk := p.(type) {
		case *rtcp.ReceiverReport, *rtcp.SenderReport:
			sawReport = true
		case *rtcp.SourceDescription:
			for _, chunk := range pk.Chunks {
				if cname, ok := chunk.CNAME(); ok && string(cname) == "bridge-cname" {
					sawCNAME = true
				}
			}
		}
	}
	require.True(t, sawReport)
	require.True(t, sawCNAME)
}

func TestEngineBuildReportsRespectsMTU(t *testing.T) {
	e := New(Config{Strategy: StrategyBasic, LocalSSRC: 999, LocalCNAME: []byte("bridge"), MTU: 1280})
	for ssrc := uint32(1); ssrc <= 33; ssrc++ {
		rs := e.ReceiveStreamFor(ssrc, 0)
		rs.OnPacket(1, 0, 0, 0)
	}

	out, err := e.BuildReports(0)
	require.NoError(t, err)
	for _, compound := range out {
		require.LessOrEqual(t, len(compound), 1280)
	}
}

func TestEngineMaxThroughputForcesREMBSentinels(t *testing.T) {
	e := New(Config{Strategy: StrategyMaxThroughput, LocalSSRC: 999})
	e.SetBandwidthEstimate(1000)
	rs := e.ReceiveStreamFor(1, 0)
	rs.OnPacket(1, 0, 0, 0)

	out, err := e.BuildReports(0)
	require.NoError(t, err)
	require.NotEmpty(t, out)

	var found bool
	for _, compound := range out {
		packets, _, err := rtcp.ParseCompound(compound)
		require.NoError(t, err)
		for _, p := range packets {
			if remb, ok := p.(*rtcp.ReceiverEstimatedMaxBitrate); ok {
				found = true
				require.EqualValues(t, maxThroughputMantissa, remb.Mantissa)
				require.EqualValues(t, maxThroughputExp, remb.Exp)
			}
		}
	}
	require.True(t, found)
}

func TestReporterFiresOnceThenWaitsInterval(t *testing.T) {
	e := New(Config{Strategy: StrategyBasic, LocalSSRC: 999, LocalCNAME: []byte("bridge")})
	inj := &fakeInjector{}
	r := NewReporter(e, inj, 500, nil)

	r.Maybe(0)
	require.Equal(t, 1, inj.calls)

	r.Maybe(100)
	require.Equal(t, 1, inj.calls, "should not fire again before the interval elapses")

	r.Maybe(500)
	require.Equal(t, 2, inj.calls)
}

type fakeInjector struct{ calls int }

func (f *fakeInjector) InjectRTCP(_ []byte, _ bool) error {
	f.calls++
	return nil
}
