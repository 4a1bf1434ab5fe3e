package dtls

import (
	"encoding/binary"
	"fmt"

	"github.com/jitsi/libjitsi-sub007/pkg/srtp"
)

// helloMessage is the single handshake message each side sends: its
// random nonce, ephemeral ECDH public key, leaf certificate, and (for the
// use_srtp extension) its offered/local protection profile list. A real
// DTLS 1.2 flight is ClientHello/ServerHello+Certificate+ServerHelloDone/
// Finished; this collapses that into one message per side since both
// ends already know each other's role and signaling-agreed fingerprints
// out of band, and nothing here is exercised against a non-Go peer.
type helloMessage struct {
	Random    [32]byte
	ECDHPub   []byte
	Cert      []byte
	Profiles  []srtp.ProtectionProfile
}

func (h *helloMessage) marshal() []byte {
	out := make([]byte, 0, 32+2+len(h.ECDHPub)+4+len(h.Cert)+2+2*len(h.Profiles))
	out = append(out, h.Random[:]...)
	out = appendUint16Prefixed(out, h.ECDHPub)
	out = appendUint32Prefixed(out, h.Cert)

	profiles := make([]byte, 2*len(h.Profiles))
	for i, p := range h.Profiles {
		binary.BigEndian.PutUint16(profiles[2*i:], uint16(p))
	}
	out = appendUint16Prefixed(out, profiles)
	return out
}

func unmarshalHello(buf []byte) (*helloMessage, error) {
	h := &helloMessage{}
	if len(buf) < 32 {
		return nil, fmt.Errorf("dtls: hello message too short")
	}
	copy(h.Random[:], buf[:32])
	rest := buf[32:]

	pub, rest, err := readUint16Prefixed(rest)
	if err != nil {
		return nil, err
	}
	h.ECDHPub = pub

	cert, rest, err := readUint32Prefixed(rest)
	if err != nil {
		return nil, err
	}
	h.Cert = cert

	profileBytes, _, err := readUint16Prefixed(rest)
	if err != nil {
		return nil, err
	}
	if len(profileBytes)%2 != 0 {
		return nil, fmt.Errorf("dtls: odd-length profile list")
	}
	h.Profiles = make([]srtp.ProtectionProfile, len(profileBytes)/2)
	for i := range h.Profiles {
		h.Profiles[i] = srtp.ProtectionProfile(binary.BigEndian.Uint16(profileBytes[2*i:]))
	}
	return h, nil
}

func appendUint16Prefixed(out, data []byte) []byte {
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(len(data)))
	out = append(out, lenBuf[:]...)
	return append(out, data...)
}

func appendUint32Prefixed(out, data []byte) []byte {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	out = append(out, lenBuf[:]...)
	return append(out, data...)
}

func readUint16Prefixed(buf []byte) (data, rest []byte, err error) {
	if len(buf) < 2 {
		return nil, nil, fmt.Errorf("dtls: truncated length-prefixed field")
	}
	n := binary.BigEndian.Uint16(buf)
	if len(buf) < 2+int(n) {
		return nil, nil, fmt.Errorf("dtls: truncated length-prefixed field body")
	}
	return buf[2 : 2+n], buf[2+n:], nil
}

func readUint32Prefixed(buf []byte) (data, rest []byte, err error) {
	if len(buf) < 4 {
		return nil, nil, fmt.Errorf("dtls: truncated length-prefixed field")
	}
	n := binary.BigEndian.Uint32(buf)
	if uint64(len(buf)) < 4+uint64(n) {
		return nil, nil, fmt.Errorf("dtls: truncated length-prefixed field body")
	}
	return buf[4 : 4+n], buf[4+n:], nil
}
