package srtp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // mandated by RFC 3711/SRTP
	"encoding/binary"
	"sync"
)

// Context is a per-direction SRTP/SRTCP cryptographic state: the keys
// derived from one master key/salt pair, the rollover counter and
// highest-seen sequence number needed to reconstruct a full packet
// index, and a replay window. Exactly one Context exists per direction
// per stream after a successful DTLS-SRTP handshake (spec invariant);
// the replay window and ROC are single-writer.
type Context struct {
	mu sync.Mutex

	policy Policy
	keys   *sessionKeys

	roc           uint32
	highestSeq    uint16
	seqInit       bool
	rtcpIndex     uint32
	rtpReplay     replayWindow
	rtcpReplay    replayWindow
}

// NewContext derives session keys from a master key/salt pair under the
// given protection profile and returns a fresh, zeroed Context.
func NewContext(masterKey, masterSalt []byte, profile ProtectionProfile) (*Context, error) {
	policy, err := PolicyFor(profile)
	if err != nil {
		return nil, err
	}
	if len(masterKey) != policy.KeyLen || len(masterSalt) != policy.SaltLen {
		return nil, errKeyLengthMismatch
	}

	keys, err := deriveSessionKeys(masterKey, masterSalt, policy)
	if err != nil {
		return nil, err
	}
	return &Context{policy: policy, keys: keys}, nil
}

// Policy returns the protection policy this context was built with.
func (c *Context) Policy() Policy { return c.policy }

// updateROC advances the rollover counter when a 16-bit sequence number
// wraps relative to the last one observed from this direction.
func (c *Context) updateROC(seq uint16) {
	if !c.seqInit {
		c.highestSeq = seq
		c.seqInit = true
		return
	}
	// A large negative jump (new seq much smaller than the last one)
	// indicates the 16-bit counter wrapped.
	if int(seq)-int(c.highestSeq) < -(1 << 15) {
		c.roc++
	}
	if seq > c.highestSeq || int(seq)-int(c.highestSeq) < -(1<<15) {
		c.highestSeq = seq
	}
}

// guessROC reconstructs the most likely 48-bit RTP packet index for an
// inbound sequence number by trying ROC, ROC+1 and ROC-1 and picking the
// candidate numerically closest to the last accepted index, per the
// spec's "guessed-ROC" scheme.
func (c *Context) guessROC(seq uint16) uint64 {
	candidates := []uint32{c.roc, c.roc + 1}
	if c.roc > 0 {
		candidates = append(candidates, c.roc-1)
	}

	best := rtpIndex(candidates[0], seq)
	bestDist := distance(best, rtpIndex(c.roc, c.highestSeq))
	for _, roc := range candidates[1:] {
		idx := rtpIndex(roc, seq)
		d := distance(idx, rtpIndex(c.roc, c.highestSeq))
		if d < bestDist {
			best, bestDist = idx, d
		}
	}
	return best
}

func rtpIndex(roc uint32, seq uint16) uint64 { return uint64(roc)<<16 | uint64(seq) }

func distance(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return b - a
}

// EncryptRTP encrypts and authenticates one outbound RTP packet.
// header is the unencrypted 12+ byte RTP header (forwarded verbatim),
// payload is the portion to be ciphered. Returns header||ciphertext||tag.
func (c *Context) EncryptRTP(ssrc uint32, seq uint16, header, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updateROC(seq)
	index := rtpIndex(c.roc, seq)

	out := make([]byte, 0, len(header)+len(payload)+c.policy.RTPAuthTagLen)
	out = append(out, header...)

	cipherText, err := c.cipherRTPPayload(ssrc, index, payload)
	if err != nil {
		return nil, err
	}
	out = append(out, cipherText...)

	tag, err := c.authenticateRTP(out, c.roc)
	if err != nil {
		return nil, err
	}
	out = append(out, tag...)
	return out, nil
}

// DecryptRTP authenticates, replay-checks, and decrypts one inbound RTP
// packet. header is the packet's RTP header, body is ciphertext||tag.
func (c *Context) DecryptRTP(ssrc uint32, seq uint16, header, body []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tagLen := c.policy.RTPAuthTagLen
	if len(body) < tagLen {
		return nil, errPacketTooShort
	}
	cipherText, tag := body[:len(body)-tagLen], body[len(body)-tagLen:]

	index := c.guessROC(seq)
	roc := uint32(index >> 16)

	full := make([]byte, 0, len(header)+len(cipherText))
	full = append(full, header...)
	full = append(full, cipherText...)

	expectedTag, err := c.authenticateRTP(full, roc)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(expectedTag, tag) {
		return nil, errAuthFailed
	}

	if !c.rtpReplay.check(index) {
		return nil, errReplay
	}

	plain, err := c.cipherRTPPayload(ssrc, index, cipherText)
	if err != nil {
		return nil, err
	}

	c.rtpReplay.accept(index)
	if roc > c.roc || (roc == c.roc && seq > c.highestSeq) {
		c.roc = roc
		c.highestSeq = seq
	}
	return plain, nil
}

// cipherRTPPayload XORs payload with the AES-CM keystream for this SSRC
// and packet index; a NULL-cipher policy returns payload unchanged.
func (c *Context) cipherRTPPayload(ssrc uint32, index uint64, payload []byte) ([]byte, error) {
	if c.policy.CipherNull {
		return append([]byte(nil), payload...), nil
	}

	iv := rtpIV(c.keys.rtpSalt, ssrc, index)
	return ctrXOR(c.keys.rtpCipherKey, iv, payload)
}

// authenticateRTP computes the HMAC-SHA1 tag over packet||ROC, the RTP
// authentication scope per RFC 3711 §4.2.
func (c *Context) authenticateRTP(packet []byte, roc uint32) ([]byte, error) {
	mac := hmac.New(sha1.New, c.keys.rtpAuthKey)
	mac.Write(packet)
	var rocBuf [4]byte
	binary.BigEndian.PutUint32(rocBuf[:], roc)
	mac.Write(rocBuf[:])
	return mac.Sum(nil)[:c.policy.RTPAuthTagLen], nil
}

// EncryptRTCP encrypts and authenticates one outbound RTCP compound
// packet. Appends the SRTCP trailer: a 32-bit E-bit||index word and the
// HMAC tag.
func (c *Context) EncryptRTCP(ssrc uint32, packet []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	index := c.rtcpIndex & 0x7fffffff
	c.rtcpIndex++

	cipherText, err := c.cipherRTCPBody(ssrc, uint64(index), packet)
	if err != nil {
		return nil, err
	}

	var trailer [4]byte
	binary.BigEndian.PutUint32(trailer[:], index|0x80000000) // E-bit set: encrypted

	toAuth := append(append([]byte(nil), cipherText...), trailer[:]...)
	tag, err := c.authenticateRTCP(toAuth)
	if err != nil {
		return nil, err
	}

	out := append(cipherText, trailer[:]...)
	out = append(out, tag...)
	return out, nil
}

// DecryptRTCP authenticates, replay-checks, and decrypts one inbound
// SRTCP packet (the trailer is stripped from the returned plaintext).
func (c *Context) DecryptRTCP(ssrc uint32, packet []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	tagLen := c.policy.RTCPAuthTagLen
	if len(packet) < tagLen+4 {
		return nil, errPacketTooShort
	}

	body, trailer, tag := packet[:len(packet)-tagLen-4], packet[len(packet)-tagLen-4:len(packet)-tagLen], packet[len(packet)-tagLen:]
	trailerVal := binary.BigEndian.Uint32(trailer)
	encrypted := trailerVal&0x80000000 != 0
	index := uint64(trailerVal & 0x7fffffff)

	toAuth := append(append([]byte(nil), body...), trailer...)
	expectedTag, err := c.authenticateRTCP(toAuth)
	if err != nil {
		return nil, err
	}
	if !hmac.Equal(expectedTag, tag) {
		return nil, errAuthFailed
	}

	if !c.rtcpReplay.check(index) {
		return nil, errReplay
	}

	var plain []byte
	if encrypted && !c.policy.CipherNull {
		plain, err = c.cipherRTCPBody(ssrc, index, body)
		if err != nil {
			return nil, err
		}
	} else {
		plain = append([]byte(nil), body...)
	}

	c.rtcpReplay.accept(index)
	return plain, nil
}

func (c *Context) cipherRTCPBody(ssrc uint32, index uint64, body []byte) ([]byte, error) {
	if c.policy.CipherNull {
		return append([]byte(nil), body...), nil
	}
	iv := rtcpIV(c.keys.rtcpSalt, ssrc, index)
	return ctrXOR(c.keys.rtcpCipherKey, iv, body)
}

func (c *Context) authenticateRTCP(packet []byte) ([]byte, error) {
	mac := hmac.New(sha1.New, c.keys.rtcpAuthKey)
	mac.Write(packet)
	return mac.Sum(nil)[:c.policy.RTCPAuthTagLen], nil
}

// rtpIV builds the 16-byte AES-CM IV for an RTP packet: the session salt
// XORed with SSRC and the 48-bit packet index placed per RFC 3711 §4.1.1.
func rtpIV(salt []byte, ssrc uint32, index uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, salt)
	var ssrcBuf [4]byte
	binary.BigEndian.PutUint32(ssrcBuf[:], ssrc)
	for i := 0; i < 4; i++ {
		iv[4+i] ^= ssrcBuf[i]
	}
	var idxBuf [8]byte
	binary.BigEndian.PutUint64(idxBuf[:], index) // 48-bit index occupies the low 6 bytes, XORed into iv[8:14]
	for i := 2; i < 8; i++ {
		iv[8+i-2] ^= idxBuf[i]
	}
	return iv
}

// rtcpIV builds the AES-CM IV for an SRTCP packet from its independent
// 31-bit index rather than an RTP sequence-derived one.
func rtcpIV(salt []byte, ssrc uint32, index uint64) []byte {
	iv := make([]byte, aes.BlockSize)
	copy(iv, salt)
	var ssrcBuf [4]byte
	binary.BigEndian.PutUint32(ssrcBuf[:], ssrc)
	for i := 0; i < 4; i++ {
		iv[4+i] ^= ssrcBuf[i]
	}
	var idxBuf [4]byte
	binary.BigEndian.PutUint32(idxBuf[:], uint32(index))
	for i := 0; i < 4; i++ {
		iv[10+i] ^= idxBuf[i]
	}
	return iv
}

func ctrXOR(key, iv, in []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(in))
	cipher.NewCTR(block, iv).XORKeyStream(out, in)
	return out, nil
}
