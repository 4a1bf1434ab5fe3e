package srtp

import (
	"crypto/aes"
	"crypto/cipher"
)

// SRTP key-derivation labels, RFC 3711 §4.3.2.
const (
	labelRTPEncryption  = 0x00
	labelRTPAuth        = 0x01
	labelRTPSalt        = 0x02
	labelRTCPEncryption = 0x03
	labelRTCPAuth       = 0x04
	labelRTCPSalt       = 0x05
)

// deriveKey implements the AES-CM key derivation function of RFC 3711
// §4.3: session keys are the AES-CTR keystream, keyed by the master key,
// from an IV built out of the master salt with the label XORed into the
// byte immediately preceding the counter field (key_derivation_rate is
// treated as always zero, the standard choice for SRTP-over-DTLS).
func deriveKey(masterKey, masterSalt []byte, label byte, outLen int) ([]byte, error) {
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}

	iv := make([]byte, aes.BlockSize)
	copy(iv, masterSalt)
	iv[7] ^= label

	stream := cipher.NewCTR(block, iv)
	out := make([]byte, outLen)
	stream.XORKeyStream(out, out)
	return out, nil
}

// sessionKeys is the full set of session key material derived from one
// (masterKey, masterSalt) pair for one direction.
type sessionKeys struct {
	rtpCipherKey, rtpAuthKey, rtpSalt    []byte
	rtcpCipherKey, rtcpAuthKey, rtcpSalt []byte
}

func deriveSessionKeys(masterKey, masterSalt []byte, policy Policy) (*sessionKeys, error) {
	sk := &sessionKeys{}
	var err error

	if sk.rtpCipherKey, err = deriveKey(masterKey, masterSalt, labelRTPEncryption, policy.KeyLen); err != nil {
		return nil, err
	}
	if sk.rtpAuthKey, err = deriveKey(masterKey, masterSalt, labelRTPAuth, policy.AuthKeyLen); err != nil {
		return nil, err
	}
	if sk.rtpSalt, err = deriveKey(masterKey, masterSalt, labelRTPSalt, policy.SaltLen); err != nil {
		return nil, err
	}
	if sk.rtcpCipherKey, err = deriveKey(masterKey, masterSalt, labelRTCPEncryption, policy.KeyLen); err != nil {
		return nil, err
	}
	if sk.rtcpAuthKey, err = deriveKey(masterKey, masterSalt, labelRTCPAuth, policy.AuthKeyLen); err != nil {
		return nil, err
	}
	if sk.rtcpSalt, err = deriveKey(masterKey, masterSalt, labelRTCPSalt, policy.SaltLen); err != nil {
		return nil, err
	}
	return sk, nil
}
