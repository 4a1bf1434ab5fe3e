// Package dtls implements the datagram adapter and DTLS session that sit
// between the UDP mux and the SRTP key-extraction step: a connection-
// oriented byte-stream view over framed UDP datagrams (the Adapter), the
// handshake state machine driving it (the Session), and the process-wide
// self-signed certificate cache both depend on.
package dtls

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1" //nolint:gosec // digest selection, not a security boundary
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"fmt"
	"hash"
	"math/big"
	"strings"
	"sync"
	"time"
)

// Certificate pairs a self-signed X.509 certificate with its private key,
// grounded on pion-webrtc's Certificate but narrowed to the one signature
// algorithm the store actually issues (RSA-2048/SHA-256 by default).
type Certificate struct {
	PrivateKey crypto.Signer
	X509       *x509.Certificate
}

// Fingerprint is one (hash algorithm, digest) pair as published over
// signaling, e.g. {"sha-256", "AB:CD:..."}.
type Fingerprint struct {
	Algorithm string
	Value     string
}

// NotAfter reports when the certificate stops being valid.
func (c Certificate) NotAfter() time.Time {
	if c.X509 == nil {
		return time.Time{}
	}
	return c.X509.NotAfter
}

// fingerprintHashes lists the digest algorithms a fingerprint may be
// published under; SHA-256 is the one the store actually signs with, the
// rest exist so verification can satisfy a peer that only declared an
// older hash.
var fingerprintHashes = map[string]func() hash.Hash{
	"sha-1":   sha1.New,
	"sha-224": sha256.New224,
	"sha-256": sha256.New,
	"sha-384": sha512.New384,
	"sha-512": sha512.New,
}

// HashCertificate hashes cert's raw DER with the named algorithm and returns
// it as an uppercase colon-separated hex string, the RFC 4572 wire form.
func HashCertificate(cert *x509.Certificate, algorithm string) (string, error) {
	newHash, ok := fingerprintHashes[strings.ToLower(algorithm)]
	if !ok {
		return "", fmt.Errorf("dtls: unsupported fingerprint hash %q", algorithm)
	}
	h := newHash()
	h.Write(cert.Raw)
	sum := h.Sum(nil)

	parts := make([]string, len(sum))
	for i, b := range sum {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, ":"), nil
}

// generateCertificate issues a fresh self-signed RSA-2048 certificate
// valid from notBefore-1d to notBefore+validFor, grounded on
// certificate.go's GenerateCertificate but using RSA (the store's
// configured default) and a caller-supplied validity window.
func generateCertificate(notBefore time.Time, validFor time.Duration) (*Certificate, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, fmt.Errorf("dtls: generate certificate key: %w", err)
	}

	origin := make([]byte, 16)
	if _, err := rand.Read(origin); err != nil {
		return nil, fmt.Errorf("dtls: generate certificate serial entropy: %w", err)
	}

	maxSerial := new(big.Int).Sub(new(big.Int).Exp(big.NewInt(2), big.NewInt(130), nil), big.NewInt(1))
	serial, err := rand.Int(rand.Reader, maxSerial)
	if err != nil {
		return nil, fmt.Errorf("dtls: generate certificate serial: %w", err)
	}

	tpl := &x509.Certificate{
		SerialNumber:          serial,
		Subject:               pkix.Name{CommonName: hex.EncodeToString(origin)},
		NotBefore:             notBefore.Add(-24 * time.Hour),
		NotAfter:              notBefore.Add(validFor),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
		SignatureAlgorithm:    x509.SHA256WithRSA,
	}

	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, key.Public(), key)
	if err != nil {
		return nil, fmt.Errorf("dtls: create certificate: %w", err)
	}
	parsed, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("dtls: parse generated certificate: %w", err)
	}
	return &Certificate{PrivateKey: key, X509: parsed}, nil
}

// CertificateStore is the process-wide cache of the relay's self-signed
// certificate (spec §4.2 "Certificate lifecycle"): one certificate is
// shared across every DTLS session until it ages past RefreshAfter, at
// which point the next Get regenerates it.
type CertificateStore struct {
	mu          sync.Mutex
	ValidFor    time.Duration
	RefreshAfter time.Duration

	current    *Certificate
	generated  time.Time
}

// NewCertificateStore creates a store with the given validity window and
// refresh threshold (spec defaults: 7 days valid, refreshed after 1 day).
func NewCertificateStore(validFor, refreshAfter time.Duration) *CertificateStore {
	return &CertificateStore{ValidFor: validFor, RefreshAfter: refreshAfter}
}

// Get returns the cached certificate, generating or refreshing it first
// if it is absent or older than RefreshAfter.
func (s *CertificateStore) Get(now time.Time) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current == nil || now.Sub(s.generated) > s.RefreshAfter {
		cert, err := generateCertificate(now, s.ValidFor)
		if err != nil {
			return nil, err
		}
		s.current = cert
		s.generated = now
	}
	return s.current, nil
}

// Refresh forces regeneration regardless of age, per the store's explicit
// refresh entrypoint (C12).
func (s *CertificateStore) Refresh(now time.Time) (*Certificate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cert, err := generateCertificate(now, s.ValidFor)
	if err != nil {
		return nil, err
	}
	s.current = cert
	s.generated = now
	return s.current, nil
}
