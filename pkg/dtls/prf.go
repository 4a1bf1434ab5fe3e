package dtls

import (
	"crypto/hmac"
	"crypto/sha256"
)

// pHash is the TLS 1.2 P_hash construction (RFC 5246 §5) instantiated
// with HMAC-SHA256: it expands secret+seed into an arbitrary-length
// pseudorandom stream. DTLS 1.2's key exporter (RFC 5705, invoked here
// with label "EXTRACTOR-dtls_srtp" per spec §4.2) is defined in terms of
// exactly this PRF, so it doubles as the exporter itself once seeded with
// the label and both hellos' random values.
func pHash(secret, seed []byte, outLen int) []byte {
	out := make([]byte, 0, outLen)

	mac := hmac.New(sha256.New, secret)
	mac.Write(seed)
	a := mac.Sum(nil)

	for len(out) < outLen {
		mac.Reset()
		mac.Write(a)
		mac.Write(seed)
		out = append(out, mac.Sum(nil)...)

		mac.Reset()
		mac.Write(a)
		a = mac.Sum(nil)
	}
	return out[:outLen]
}

// exportKeyingMaterial derives label-bound keying material from the
// handshake's master secret and the client/server random nonces, the
// exporter shape RFC 5705 specifies and spec §4.2 invokes under the
// "EXTRACTOR-dtls_srtp" label.
func exportKeyingMaterial(masterSecret, clientRandom, serverRandom []byte, label string, length int) []byte {
	seed := append([]byte(label), append(append([]byte{}, clientRandom...), serverRandom...)...)
	return pHash(masterSecret, seed, length)
}
