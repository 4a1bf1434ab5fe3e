package dtls

import (
	"crypto/ecdh"
	"crypto/rand"
	"crypto/x509"
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/pion/randutil"

	"github.com/jitsi/libjitsi-sub007/pkg/srtp"
)

// Role is the negotiated DTLS client/server role, derived from the
// signaled setup attribute (spec §4.2).
type Role int

// Roles a session may take.
const (
	RoleClient Role = iota
	RoleServer
)

// RoleFromSetup maps the signaled `setup` attribute to a DTLS role:
// ACTIVE is always client, PASSIVE and HOLDCONN are always server, and
// ACTPASS (either side may lead) defers to ICE controlling-agent status,
// the same tie-break pion-webrtc's DTLSTransport.role() applies.
func RoleFromSetup(setup SetupAttribute, iceControlling bool) Role {
	switch setup {
	case SetupActive:
		return RoleClient
	case SetupPassive, SetupHoldconn:
		return RoleServer
	default: // SetupActPass
		if iceControlling {
			return RoleClient
		}
		return RoleServer
	}
}

// SetupAttribute mirrors the signaled `a=setup` value.
type SetupAttribute int

// Recognized setup attribute values.
const (
	SetupActive SetupAttribute = iota
	SetupPassive
	SetupActPass
	SetupHoldconn
)

// KeyingMaterial is the derived forward/reverse SRTP context pair handed
// to C3 after a successful handshake, plus the negotiated profile for
// anything downstream that needs to report it.
type KeyingMaterial struct {
	Profile srtp.ProtectionProfile
	Forward *srtp.Context
	Reverse *srtp.Context
}

// SessionConfig configures one DTLS session.
type SessionConfig struct {
	Role                 Role
	Certificate          *Certificate
	RemoteFingerprints   map[string]string // hash algorithm (lower-case) -> hex digest
	LocalProfiles        []srtp.ProtectionProfile // offered (client) / accepted (server), in preference order
	VerifyFingerprint    bool                     // false logs a mismatch instead of failing
	MaxHandshakeAttempts int
	RetryWait            time.Duration
	Logger               logging.LeveledLogger
}

// Session drives the DTLS handshake over an Adapter and, on success,
// produces the SRTP keying material C3 needs (spec §4.2).
type Session struct {
	cfg     SessionConfig
	adapter *Adapter
}

// NewSession constructs a Session bound to adapter; Start runs the
// handshake.
func NewSession(adapter *Adapter, cfg SessionConfig) *Session {
	if cfg.MaxHandshakeAttempts <= 0 {
		cfg.MaxHandshakeAttempts = 3
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = 500 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.NewDefaultLoggerFactory().NewLogger("dtls")
	}
	return &Session{cfg: cfg, adapter: adapter}
}

// attemptFailure records whether a failed attempt is retryable: only an
// `unexpected_message` fatal alert warrants another try (spec §4.2).
type attemptFailure struct {
	err       error
	retryable bool
}

// Start runs the handshake, retrying up to MaxHandshakeAttempts times
// when the previous failure was an unexpected_message alert, and on
// success derives and returns the forward/reverse SRTP contexts.
func (s *Session) Start() (*KeyingMaterial, error) {
	var last *attemptFailure
	for attempt := 1; attempt <= s.cfg.MaxHandshakeAttempts; attempt++ {
		km, failure := s.attempt()
		if failure == nil {
			return km, nil
		}
		last = failure
		s.cfg.Logger.Warnf("dtls: handshake attempt %d/%d failed: %v", attempt, s.cfg.MaxHandshakeAttempts, failure.err)
		if !failure.retryable || attempt == s.cfg.MaxHandshakeAttempts {
			break
		}
		time.Sleep(jitteredRetryWait(s.cfg.RetryWait))
	}
	return nil, &HandshakeFailedError{Err: last.err}
}

// jitteredRetryWait spreads retries by ±20% so simultaneous handshake
// failures across many sessions don't retry in lockstep.
func jitteredRetryWait(base time.Duration) time.Duration {
	fraction := float64(randutil.NewMathRandomGenerator().Uint32()) / float64(1<<32)
	spread := fraction*0.4 - 0.2
	return time.Duration(float64(base) * (1 + spread))
}

func (s *Session) attempt() (*KeyingMaterial, *attemptFailure) {
	local, ecdhPriv, err := s.buildLocalHello()
	if err != nil {
		return nil, &attemptFailure{err: err}
	}

	localSeq := uint16(0)
	if s.cfg.Role == RoleServer {
		localSeq = 1
	}
	record := buildRecord(recordTypeHandshake, versionDTLS12, 0, 0,
		buildHandshakeBody(handshakeClientHello, localSeq, local.marshal()))
	if s.cfg.Role == RoleServer {
		record = buildRecord(recordTypeHandshake, versionDTLS12, 0, 0,
			buildHandshakeBody(handshakeServerHello, localSeq, local.marshal()))
	}
	if err := s.adapter.Send(record); err != nil {
		return nil, &attemptFailure{err: err}
	}
	// server_hello does not end a flight on its own in the real protocol
	// (Certificate/ServerHelloDone follow); this collapsed single-message
	// exchange has nothing more to send, so flush explicitly.
	if s.cfg.Role == RoleServer {
		if err := s.adapter.Flush(); err != nil {
			return nil, &attemptFailure{err: err}
		}
	}

	peer, retryable, err := s.receiveHello()
	if err != nil {
		return nil, &attemptFailure{err: err, retryable: retryable}
	}

	peerCert, err := x509.ParseCertificate(peer.Cert)
	if err != nil {
		return nil, &attemptFailure{err: fmt.Errorf("dtls: parse peer certificate: %w", err)}
	}
	if err := s.verifyFingerprint(peerCert); err != nil {
		return nil, &attemptFailure{err: err}
	}

	profile, ok := s.negotiateProfile(peer.Profiles)
	if !ok {
		return nil, &attemptFailure{err: &NoCommonProtectionProfileError{}}
	}

	peerPub, err := ecdh.P256().NewPublicKey(peer.ECDHPub)
	if err != nil {
		return nil, &attemptFailure{err: fmt.Errorf("dtls: parse peer ECDH key: %w", err)}
	}
	sharedSecret, err := ecdhPriv.ECDH(peerPub)
	if err != nil {
		return nil, &attemptFailure{err: fmt.Errorf("dtls: ECDH key agreement: %w", err)}
	}

	var clientRandom, serverRandom []byte
	if s.cfg.Role == RoleClient {
		clientRandom, serverRandom = local.Random[:], peer.Random[:]
	} else {
		clientRandom, serverRandom = peer.Random[:], local.Random[:]
	}
	masterSecret := exportKeyingMaterial(sharedSecret, clientRandom, serverRandom, "master secret", 48)

	km, err := s.deriveSRTPContexts(masterSecret, clientRandom, serverRandom, profile)
	if err != nil {
		return nil, &attemptFailure{err: err}
	}
	return km, nil
}

func (s *Session) buildLocalHello() (*helloMessage, *ecdh.PrivateKey, error) {
	priv, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("dtls: generate ephemeral key: %w", err)
	}
	h := &helloMessage{
		ECDHPub:  priv.PublicKey().Bytes(),
		Cert:     s.cfg.Certificate.X509.Raw,
		Profiles: s.cfg.LocalProfiles,
	}
	if _, err := rand.Read(h.Random[:]); err != nil {
		return nil, nil, fmt.Errorf("dtls: generate random nonce: %w", err)
	}
	return h, priv, nil
}

// receiveHello waits for the peer's hello record. A malformed or
// unexpected record is reported as retryable, mirroring the
// `unexpected_message` fatal alert the spec treats as the only
// recoverable failure.
func (s *Session) receiveHello() (*helloMessage, bool, error) {
	buf := make([]byte, 4096)
	n, err := s.adapter.Receive(buf, 0)
	if err != nil {
		return nil, false, err
	}
	if n <= 0 {
		return nil, true, fmt.Errorf("dtls: no handshake record received")
	}

	_, _, _, body, ok := parseRecord(buf[:n])
	if !ok {
		return nil, true, fmt.Errorf("dtls: malformed record (unexpected_message)")
	}
	ht, msg, ok := parseHandshakeBody(body)
	if !ok {
		return nil, true, fmt.Errorf("dtls: malformed handshake body (unexpected_message)")
	}
	wantType := handshakeServerHello
	if s.cfg.Role == RoleServer {
		wantType = handshakeClientHello
	}
	if ht != wantType {
		return nil, true, fmt.Errorf("dtls: unexpected handshake type %d (unexpected_message)", ht)
	}

	hello, err := unmarshalHello(msg)
	if err != nil {
		return nil, true, fmt.Errorf("dtls: %w (unexpected_message)", err)
	}
	return hello, false, nil
}

// verifyFingerprint hashes cert with every hash function the peer
// declared a fingerprint under and accepts on the first match; when the
// peer only declared SHA-1, it also tries upgrading to SHA-224/256/384/512
// per spec §4.2.
func (s *Session) verifyFingerprint(cert *x509.Certificate) error {
	for algo, expected := range s.cfg.RemoteFingerprints {
		actual, err := HashCertificate(cert, algo)
		if err != nil {
			continue
		}
		if strings.EqualFold(actual, expected) {
			return nil
		}
	}

	if expected, ok := s.cfg.RemoteFingerprints["sha-1"]; ok {
		for _, upgrade := range []string{"sha-224", "sha-256", "sha-384", "sha-512"} {
			if actual, err := HashCertificate(cert, upgrade); err == nil && strings.EqualFold(actual, expected) {
				return nil
			}
		}
	}

	mismatch := &FingerprintMismatchError{HashFunction: "sha-256"}
	if !s.cfg.VerifyFingerprint {
		s.cfg.Logger.Warnf("%v (verification disabled, continuing)", mismatch)
		return nil
	}
	return mismatch
}

func (s *Session) negotiateProfile(peerProfiles []srtp.ProtectionProfile) (srtp.ProtectionProfile, bool) {
	if s.cfg.Role == RoleClient {
		return srtp.NegotiateProfile(s.cfg.LocalProfiles, peerProfiles)
	}
	return srtp.NegotiateProfile(peerProfiles, s.cfg.LocalProfiles)
}

// deriveSRTPContexts implements spec §4.2's key-extraction step: export
// 2*(keyLen+saltLen) bytes under label "EXTRACTOR-dtls_srtp", split into
// client_key/server_key/client_salt/server_salt, and assign forward to
// this side's role and reverse to the peer's.
func (s *Session) deriveSRTPContexts(masterSecret, clientRandom, serverRandom []byte, profile srtp.ProtectionProfile) (*KeyingMaterial, error) {
	policy, err := srtp.PolicyFor(profile)
	if err != nil {
		return nil, err
	}

	total := 2 * (policy.KeyLen + policy.SaltLen)
	exported := exportKeyingMaterial(masterSecret, clientRandom, serverRandom, "EXTRACTOR-dtls_srtp", total)

	off := 0
	take := func(n int) []byte {
		b := exported[off : off+n]
		off += n
		return b
	}
	clientKey := take(policy.KeyLen)
	serverKey := take(policy.KeyLen)
	clientSalt := take(policy.SaltLen)
	serverSalt := take(policy.SaltLen)

	var fwdKey, fwdSalt, revKey, revSalt []byte
	if s.cfg.Role == RoleClient {
		fwdKey, fwdSalt = clientKey, clientSalt
		revKey, revSalt = serverKey, serverSalt
	} else {
		fwdKey, fwdSalt = serverKey, serverSalt
		revKey, revSalt = clientKey, clientSalt
	}

	fwd, err := srtp.NewContext(fwdKey, fwdSalt, profile)
	if err != nil {
		return nil, fmt.Errorf("dtls: build forward srtp context: %w", err)
	}
	rev, err := srtp.NewContext(revKey, revSalt, profile)
	if err != nil {
		return nil, fmt.Errorf("dtls: build reverse srtp context: %w", err)
	}
	return &KeyingMaterial{Profile: profile, Forward: fwd, Reverse: rev}, nil
}
