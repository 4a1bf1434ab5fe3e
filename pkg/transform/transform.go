// Package transform implements the packet transformer (C4): the single
// entry point the RTP stack calls on every inbound and outbound datagram,
// dispatching each to the DTLS adapter or the SRTP cryptor and holding
// SRTP packets that arrive before keys are installed.
package transform

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"

	"github.com/jitsi/libjitsi-sub007/pkg/dtls"
	"github.com/jitsi/libjitsi-sub007/pkg/mux"
	"github.com/jitsi/libjitsi-sub007/pkg/srtp"
)

// Lane is one direction's worth of holding-queue state: inbound or
// outbound, for either the RTP or RTCP channel.
type Lane struct {
	mu       sync.Mutex
	holding  [][]byte
	capacity int
	dropped  atomic.Uint64
}

func newLane(capacity int) *Lane { return &Lane{capacity: capacity} }

// enqueue appends buf to the holding queue, dropping the oldest entry
// when full (spec §4.4 "holding queue of bounded capacity").
func (l *Lane) enqueue(buf []byte) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.holding) >= l.capacity {
		l.holding = l.holding[1:]
		l.dropped.Add(1)
	}
	l.holding = append(l.holding, buf)
}

// drain returns and clears everything queued, in arrival order.
func (l *Lane) drain() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := l.holding
	l.holding = nil
	return out
}

// Dropped reports how many holding-queue entries have been evicted by
// overflow.
func (l *Lane) Dropped() uint64 { return l.dropped.Load() }

// cryptor pairs the SRTP contexts C2 hands over once the handshake
// completes; a nil cryptor means "keys not ready yet".
type cryptor struct {
	forward *srtp.Context
	reverse *srtp.Context
}

// Transformer is C4: it classifies every datagram crossing the wire and
// drives either the DTLS adapter or the SRTP cryptor, queuing SRTP
// traffic until keys are installed.
type Transformer struct {
	adapter *dtls.Adapter

	rtpCryptor  atomic.Pointer[cryptor]
	rtcpCryptor atomic.Pointer[cryptor]

	rtpInbound   *Lane
	rtpOutbound  *Lane
	rtcpInbound  *Lane
	rtcpOutbound *Lane

	dropUnencrypted bool
	rtcpMux         bool

	log logging.LeveledLogger
}

// Config configures a Transformer.
type Config struct {
	Adapter             *dtls.Adapter
	HoldingQueueCapacity int
	DropUnencryptedPkts bool
	RTCPMux             bool
	Logger              logging.LeveledLogger
}

// New constructs a Transformer bound to adapter for the DTLS lane.
func New(cfg Config) *Transformer {
	if cfg.HoldingQueueCapacity <= 0 {
		cfg.HoldingQueueCapacity = 64
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefaultLoggerFactory().NewLogger("transform")
	}
	return &Transformer{
		adapter:         cfg.Adapter,
		rtpInbound:      newLane(cfg.HoldingQueueCapacity),
		rtpOutbound:     newLane(cfg.HoldingQueueCapacity),
		rtcpInbound:     newLane(cfg.HoldingQueueCapacity),
		rtcpOutbound:    newLane(cfg.HoldingQueueCapacity),
		dropUnencrypted: cfg.DropUnencryptedPkts,
		rtcpMux:         cfg.RTCPMux,
		log:             cfg.Logger,
	}
}

// InstallRTPKeys publishes the RTP lane's SRTP contexts; this happens-
// before any packet is processed with them, per spec §5's ordering
// guarantee, because atomic.Pointer provides the required memory-ordered
// store/load pair.
func (t *Transformer) InstallRTPKeys(forward, reverse *srtp.Context) {
	t.rtpCryptor.Store(&cryptor{forward: forward, reverse: reverse})
	if t.rtcpMux {
		t.rtcpCryptor.Store(&cryptor{forward: forward, reverse: reverse})
	}
}

// InstallRTCPKeys publishes the RTCP lane's own SRTCP contexts. Unused
// when RTCP-mux is enabled, since that lane inherits the RTP contexts.
func (t *Transformer) InstallRTCPKeys(forward, reverse *srtp.Context) {
	if t.rtcpMux {
		return
	}
	t.rtcpCryptor.Store(&cryptor{forward: forward, reverse: reverse})
}

// rtcpCryptorWithWait implements the RTCP-mux lane's bounded spin-yield
// wait for the RTP lane's keys (spec §4.4, §5): never holds a lock across
// the wait, and gives up rather than blocking forever.
func (t *Transformer) rtcpCryptorWithWait() *cryptor {
	if c := t.rtcpCryptor.Load(); c != nil {
		return c
	}
	if !t.rtcpMux {
		return nil
	}
	const spinBudget = 200
	for i := 0; i < spinBudget; i++ {
		if c := t.rtcpCryptor.Load(); c != nil {
			return c
		}
		runtime.Gosched()
	}
	return t.rtcpCryptor.Load()
}

// IsDTLS applies C4's dispatch rule (spec §4.4, grounded on
// mux.LooksLikeDTLSRecord's RFC 6347 record-header check).
func IsDTLS(buf []byte) bool { return mux.LooksLikeDTLSRecord(buf) }

// ReverseTransform processes one inbound datagram. DTLS records are
// handed to the adapter's receive queue and consumed (returns nil, true).
// SRTP/SRTCP records are decrypted if keys are ready, otherwise queued or
// dropped per policy, returning the decrypted payload when available.
func (t *Transformer) ReverseTransform(buf []byte, isRTCP bool) (decrypted []byte, consumed bool, err error) {
	if IsDTLS(buf) {
		if t.adapter != nil {
			t.adapter.Enqueue(buf)
		}
		return nil, true, nil
	}

	var c *cryptor
	if isRTCP {
		c = t.rtcpCryptorWithWait()
	} else {
		c = t.rtpCryptor.Load()
	}

	if c == nil {
		return t.handleUnready(buf, isRTCP, true), false, nil
	}

	if isRTCP {
		plain, err := srtp.DecryptRTCPPacket(c.reverse, buf)
		return plain, false, err
	}
	plain, err := srtp.DecryptRTPPacket(c.reverse, buf)
	return plain, false, err
}

// Transform processes one outbound datagram. Outbound DTLS (already-
// framed records from the adapter's Send) pass through unchanged; SRTP
// follows the same keys-ready/holding-queue policy as inbound, then is
// encrypted with the lane's forward context.
func (t *Transformer) Transform(buf []byte, isRTCP, isDTLS bool) (out []byte, ready bool, err error) {
	if isDTLS {
		return buf, true, nil
	}

	var c *cryptor
	if isRTCP {
		c = t.rtcpCryptorWithWait()
	} else {
		c = t.rtpCryptor.Load()
	}

	if c == nil {
		return t.handleUnready(buf, isRTCP, false), false, nil
	}

	if isRTCP {
		cipherText, err := srtp.EncryptRTCPPacket(c.forward, buf)
		return cipherText, true, err
	}
	cipherText, err := srtp.EncryptRTPPacket(c.forward, buf)
	return cipherText, true, err
}

// handleUnready applies the holding-queue/drop policy for a packet that
// arrived before its lane's keys were installed, returning nil always:
// the caller never gets a half-processed packet back from this path,
// only a later flush delivers it.
func (t *Transformer) handleUnready(buf []byte, isRTCP, inbound bool) []byte {
	if t.dropUnencrypted {
		return nil
	}
	t.laneFor(isRTCP, inbound).enqueue(buf)
	return nil
}

func (t *Transformer) laneFor(isRTCP, inbound bool) *Lane {
	switch {
	case isRTCP && inbound:
		return t.rtcpInbound
	case isRTCP && !inbound:
		return t.rtcpOutbound
	case !isRTCP && inbound:
		return t.rtpInbound
	default:
		return t.rtpOutbound
	}
}

// FlushInbound drains and returns everything queued on the given lane
// once its keys become available, in arrival order, so the caller can
// replay them through the now-ready cryptor before processing new
// traffic (spec §4.4: "flush the queue first, then process the new
// batch").
func (t *Transformer) FlushInbound(isRTCP bool) [][]byte {
	return t.laneFor(isRTCP, true).drain()
}

// FlushOutbound is FlushInbound's outbound counterpart.
func (t *Transformer) FlushOutbound(isRTCP bool) [][]byte {
	return t.laneFor(isRTCP, false).drain()
}
