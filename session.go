package bridge

import (
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/jitsi/libjitsi-sub007/internal/bufferpool"
	"github.com/jitsi/libjitsi-sub007/internal/logx"
	"github.com/jitsi/libjitsi-sub007/pkg/dtls"
	"github.com/jitsi/libjitsi-sub007/pkg/mux"
	"github.com/jitsi/libjitsi-sub007/pkg/rtcpengine"
	"github.com/jitsi/libjitsi-sub007/pkg/srtp"
	"github.com/jitsi/libjitsi-sub007/pkg/transform"
)

// defaultProfiles is the offer/accept list a MediaSession negotiates when
// the caller doesn't narrow it, strongest authentication first.
var defaultProfiles = []srtp.ProtectionProfile{
	srtp.ProtectionProfileAes128CmHmacSha1_80,
	srtp.ProtectionProfileAes128CmHmacSha1_32,
}

// WireWriter is the one thing a MediaSession needs from its caller: a way
// to put a datagram on the wire of the already-demultiplexed ICE 5-tuple
// this session owns.
type WireWriter interface {
	WriteTo(buf []byte) error
}

// SessionParams is the per-call signaling and identity state a MediaSession
// needs beyond the ambient Config (spec §6's "signaling interface
// consumed").
type SessionParams struct {
	Signaling   SignalingParameters
	LocalSSRC   uint32
	LocalCNAME  string
	Strategy    rtcpengine.Strategy
	Certificate *dtls.Certificate
	Wire        WireWriter
}

// MediaSession is the top-level orchestration object this module exists to
// provide: it wires C1/C2's datagram adapter and DTLS handshake, C3/C4's
// SRTP cryptor and packet transformer, and C6-C9's RTCP termination engine
// and reporter timer into one object driven by a single ICE 5-tuple's
// inbound/outbound datagram flow.
type MediaSession struct {
	cfg    Config
	params SessionParams
	log    logging.LeveledLogger

	pool    *bufferpool.Pool
	adapter *dtls.Adapter
	dtlsSes *dtls.Session

	transformer *transform.Transformer
	engine      *rtcpengine.Engine
	reporter    *rtcpengine.Reporter

	counters Counters

	mu      sync.Mutex
	started bool
	keyed   bool
	keyedCh chan struct{}
}

// NewMediaSession builds a MediaSession ready to have Start called on it.
// The certificate must already be resolved (typically via a shared
// CertificateStore.Get) so multiple sessions can share one process-wide
// cert without each one triggering generation.
func NewMediaSession(cfg Config, params SessionParams) (*MediaSession, error) {
	if params.Certificate == nil {
		return nil, fmt.Errorf("bridge: NewMediaSession: certificate required")
	}
	if params.Wire == nil {
		return nil, fmt.Errorf("bridge: NewMediaSession: wire writer required")
	}

	log := logx.New(cfg.LoggerFactory, "bridge")

	ms := &MediaSession{
		cfg:     cfg,
		params:  params,
		log:     log,
		keyedCh: make(chan struct{}),
	}

	bufSize := cfg.MTU
	if bufSize <= 0 {
		bufSize = 1280
	}
	ms.pool = bufferpool.New(bufSize, cfg.ReceiveQueueCapacity)
	ms.adapter = dtls.NewAdapter(cfg.ReceiveQueueCapacity, bufSize, ms.pool, params.Wire.WriteTo)

	profiles := defaultProfiles
	role := dtls.RoleFromSetup(setupAttributeFrom(params.Signaling.Setup), params.Signaling.IceControlling)
	ms.dtlsSes = dtls.NewSession(ms.adapter, dtls.SessionConfig{
		Role:                 role,
		Certificate:          params.Certificate,
		RemoteFingerprints:   params.Signaling.RemoteFingerprints,
		LocalProfiles:        profiles,
		VerifyFingerprint:    cfg.VerifyAndValidateCertificate,
		Logger:               logx.New(cfg.LoggerFactory, "dtls"),
	})

	ms.transformer = transform.New(transform.Config{
		Adapter:              ms.adapter,
		HoldingQueueCapacity: cfg.HoldingQueueCapacity,
		DropUnencryptedPkts:  cfg.DropUnencryptedPkts,
		RTCPMux:              params.Signaling.RTCPMux,
		Logger:               logx.New(cfg.LoggerFactory, "transform"),
	})

	ms.engine = rtcpengine.New(rtcpengine.Config{
		Strategy:   params.Strategy,
		LocalSSRC:  params.LocalSSRC,
		LocalCNAME: []byte(params.LocalCNAME),
		MTU:        cfg.MTU,
		Percentile: cfg.Percentile,
		ExpireMs:   int64(60_000),
		Logger:     logx.New(cfg.LoggerFactory, "rtcpengine"),
	})
	ms.reporter = rtcpengine.NewReporter(ms.engine, ms, cfg.RTCPIntervalMs, logx.New(cfg.LoggerFactory, "rtcpengine"))

	return ms, nil
}

func setupAttributeFrom(role SetupRole) dtls.SetupAttribute {
	switch role {
	case SetupActive:
		return dtls.SetupActive
	case SetupPassive:
		return dtls.SetupPassive
	case SetupHoldconn:
		return dtls.SetupHoldconn
	default:
		return dtls.SetupActPass
	}
}

// Start launches the DTLS handshake on a background goroutine. Callers
// observe readiness either by polling Ready or blocking on WaitReady.
func (ms *MediaSession) Start() {
	ms.mu.Lock()
	if ms.started {
		ms.mu.Unlock()
		return
	}
	ms.started = true
	ms.mu.Unlock()

	go ms.runHandshake()
}

func (ms *MediaSession) runHandshake() {
	km, err := ms.dtlsSes.Start()
	if err != nil {
		ms.log.Errorf("bridge: handshake failed: %v", err)
		return
	}

	ms.transformer.InstallRTPKeys(km.Forward, km.Reverse)
	if !ms.params.Signaling.RTCPMux {
		ms.transformer.InstallRTCPKeys(km.Forward, km.Reverse)
	}

	ms.mu.Lock()
	ms.keyed = true
	close(ms.keyedCh)
	ms.mu.Unlock()

	ms.replayHeldTraffic()
}

// replayHeldTraffic flushes whatever the holding queues accumulated before
// keys were ready (spec §4.4: "flush the queue first"), pushing the
// results through the engine the same way freshly-arriving traffic would
// be, and re-encrypting anything that had been waiting to go out.
func (ms *MediaSession) replayHeldTraffic() {
	now := nowMs()
	for _, buf := range ms.transformer.FlushInbound(false) {
		if _, _, err := ms.transformer.ReverseTransform(buf, false); err != nil {
			ms.counters.SrtpAuthFailed.Add(1)
			ms.log.Debugf("bridge: dropping held inbound rtp: %v", err)
		}
	}
	for _, buf := range ms.transformer.FlushInbound(true) {
		if plain, _, err := ms.transformer.ReverseTransform(buf, true); err == nil && plain != nil {
			ms.handleInboundRTCPPlaintext(plain, now)
		} else if err != nil {
			ms.counters.SrtpAuthFailed.Add(1)
		}
	}
	for _, buf := range ms.transformer.FlushOutbound(false) {
		if out, ready, err := ms.transformer.Transform(buf, false, false); ready && err == nil {
			_ = ms.params.Wire.WriteTo(out)
		}
	}
	for _, buf := range ms.transformer.FlushOutbound(true) {
		if out, ready, err := ms.transformer.Transform(buf, true, false); ready && err == nil {
			_ = ms.params.Wire.WriteTo(out)
		}
	}
}

// WaitReady blocks until the handshake completes or the timeout elapses.
func (ms *MediaSession) WaitReady(timeout time.Duration) bool {
	select {
	case <-ms.keyedCh:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Ready reports whether SRTP keys have been installed.
func (ms *MediaSession) Ready() bool {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	return ms.keyed
}

// Counters exposes the session's error-taxonomy counters for export.
func (ms *MediaSession) Counters() *Counters { return &ms.counters }

// HandleInbound classifies and routes one datagram arriving on the wire:
// STUN is reported to the caller untouched (signaling/ICE owns it), DTLS
// records are consumed into the handshake, RTCP is decrypted and passed
// through the termination engine's inbound gateway, and RTP is decrypted
// and handed back for the media pipeline to consume.
func (ms *MediaSession) HandleInbound(buf []byte, isRTCP bool) (plaintext []byte, err error) {
	now := nowMs()

	if mux.MatchSTUN(buf) {
		return buf, nil
	}

	if transform.IsDTLS(buf) {
		_, _, err := ms.transformer.ReverseTransform(buf, isRTCP)
		return nil, err
	}

	plain, _, err := ms.transformer.ReverseTransform(buf, isRTCP)
	if err != nil {
		ms.counters.SrtpAuthFailed.Add(1)
		return nil, err
	}
	if plain == nil {
		return nil, nil
	}

	if !isRTCP {
		return plain, nil
	}

	return ms.handleInboundRTCPPlaintext(plain, now), nil
}

func (ms *MediaSession) handleInboundRTCPPlaintext(plain []byte, atMs int64) []byte {
	forward, _, err := ms.engine.ReverseTransform(plain, atMs)
	if err != nil {
		ms.log.Debugf("bridge: malformed rtcp: %v", err)
		return nil
	}
	return forward
}

// HandleOutboundRTP encrypts and sends one outbound RTP packet, feeding
// the reporter's hot-path timer so periodic RTCP fires on schedule without
// a dedicated ticker goroutine (spec §4.9).
func (ms *MediaSession) HandleOutboundRTP(payload []byte, ssrc uint32) error {
	out, ready, err := ms.transformer.Transform(payload, false, false)
	if err != nil {
		return err
	}
	ms.engine.SendStreamFor(ssrc).OnPacketSent(len(payload))
	if ready {
		if werr := ms.params.Wire.WriteTo(out); werr != nil {
			return werr
		}
	}
	ms.reporter.Maybe(nowMs())
	return nil
}

// InjectRTCP implements rtcpengine.Injector: it is how the Reporter and
// any other engine-driven path hand a freshly-built compound RTCP packet
// to the wire, encrypting it through the same SRTCP lane inbound traffic
// is decrypted through.
func (ms *MediaSession) InjectRTCP(packet []byte, isData bool) error {
	_ = isData
	out, ready, err := ms.transformer.Transform(packet, true, false)
	if err != nil {
		return err
	}
	if !ready {
		return nil // queued behind not-yet-installed keys; replayed once ready
	}
	return ms.params.Wire.WriteTo(out)
}

// Close tears down the adapter, unblocking any handshake goroutine still
// waiting on it.
func (ms *MediaSession) Close() error {
	return ms.adapter.Close()
}

// nowMs is the session's millisecond clock source: Unix-epoch wall-clock
// time, which the RTCP engine also converts to NTP timestamps for its SRs.
func nowMs() int64 {
	return time.Now().UnixMilli()
}
