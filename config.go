// Package bridge wires together the DTLS-SRTP transport adapter and RTCP
// termination engine that make up the media-plane security core of a
// selective-forwarding relay.
package bridge

import (
	"sync/atomic"

	"github.com/pion/logging"
)

// SetupRole is the signaled DTLS setup attribute (RFC 4145 / RFC 5763).
type SetupRole int

// Setup roles recognized from signaling.
const (
	SetupActive SetupRole = iota
	SetupPassive
	SetupActPass
	SetupHoldconn
)

// SignalingParameters is the signaling-plane interface consumed by the
// DTLS session: fingerprints to verify the peer against, the role that
// decides client/server, and whether RTP and RTCP share one 5-tuple.
type SignalingParameters struct {
	LocalFingerprint     string
	LocalFingerprintHash string // e.g. "sha-256"
	RemoteFingerprints   map[string]string
	Setup                SetupRole
	RTCPMux              bool
	// IceControlling breaks the tie when Setup is SetupActPass: the
	// controlling ICE agent takes the DTLS client role.
	IceControlling bool
}

// Config collects every tunable named in the external interface, plus the
// ambient knobs (logging, queue sizing) needed to construct a runnable
// session. Zero value is usable: DefaultConfig fills in the documented
// defaults.
type Config struct {
	// VerifyAndValidateCertificate disables fingerprint enforcement when
	// false: a mismatch is only logged as a warning.
	VerifyAndValidateCertificate bool
	// DropUnencryptedPkts drops (rather than queues) (S)RTP packets that
	// arrive before SRTP keys are installed.
	DropUnencryptedPkts bool
	// SignatureAlgorithm names a certificate self-signing algorithm. The
	// certificate store does not read it: generated certificates are
	// always signed with SHA-256 (x509.SHA256WithRSA).
	SignatureAlgorithm string
	// Percentile configures the HighestQuality termination strategy.
	Percentile int
	// RTCPIntervalMs is the reporter's firing period.
	RTCPIntervalMs int64
	// MTU bounds the size of any compound RTCP packet the termination
	// engine emits.
	MTU int

	// ReceiveQueueCapacity bounds the datagram adapter's inbound FIFO (C1).
	ReceiveQueueCapacity int
	// HoldingQueueCapacity bounds C4's pre-keying-material SRTP queues.
	HoldingQueueCapacity int
	// CertificateValidityDays is the self-signed certificate's validity
	// window length.
	CertificateValidityDays int
	// CertificateRefreshAfter is how long a cached certificate may age
	// before Refresh regenerates it.
	CertificateRefreshAfter int64 // hours

	LoggerFactory logging.LoggerFactory
}

// DefaultConfig returns the documented defaults from the external
// interface section: verification on, unencrypted packets queued (not
// dropped), SignatureAlgorithm "SHA1withRSA", 70th percentile, 500ms
// reporting, 1280-byte MTU.
func DefaultConfig() Config {
	return Config{
		VerifyAndValidateCertificate: true,
		DropUnencryptedPkts:          false,
		SignatureAlgorithm:           "SHA1withRSA",
		Percentile:                   70,
		RTCPIntervalMs:               500,
		MTU:                          1280,
		ReceiveQueueCapacity:         128,
		HoldingQueueCapacity:         64,
		CertificateValidityDays:      7,
		CertificateRefreshAfter:      24,
	}
}

// Counters tracks the error taxonomy's per-kind occurrence counts for
// export as metrics; safe for concurrent increment and snapshot.
type Counters struct {
	MalformedPacket atomic.Uint64
	SrtpAuthFailed  atomic.Uint64
	SrtpReplay      atomic.Uint64
	QueueOverflow   atomic.Uint64
}

// CountersSnapshot is a point-in-time copy of Counters, safe to pass by
// value to an exporter.
type CountersSnapshot struct {
	MalformedPacket uint64
	SrtpAuthFailed  uint64
	SrtpReplay      uint64
	QueueOverflow   uint64
}

// Snapshot copies the current counter values.
func (c *Counters) Snapshot() CountersSnapshot {
	return CountersSnapshot{
		MalformedPacket: c.MalformedPacket.Load(),
		SrtpAuthFailed:  c.SrtpAuthFailed.Load(),
		SrtpReplay:      c.SrtpReplay.Load(),
		QueueOverflow:   c.QueueOverflow.Load(),
	}
}
