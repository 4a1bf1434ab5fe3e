package srtp

import "fmt"

// ProtectionProfile identifies one of the four SRTP protection profiles
// negotiable via the DTLS use_srtp extension (RFC 5764).
type ProtectionProfile uint16

// Profile IDs as carried on the wire by the use_srtp extension.
const (
	ProtectionProfileAes128CmHmacSha1_80 ProtectionProfile = 0x0001
	ProtectionProfileAes128CmHmacSha1_32 ProtectionProfile = 0x0002
	ProtectionProfileNullHmacSha1_80     ProtectionProfile = 0x0005
	ProtectionProfileNullHmacSha1_32     ProtectionProfile = 0x0006
)

func (p ProtectionProfile) String() string {
	switch p {
	case ProtectionProfileAes128CmHmacSha1_80:
		return "SRTP_AES128_CM_HMAC_SHA1_80"
	case ProtectionProfileAes128CmHmacSha1_32:
		return "SRTP_AES128_CM_HMAC_SHA1_32"
	case ProtectionProfileNullHmacSha1_80:
		return "SRTP_NULL_HMAC_SHA1_80"
	case ProtectionProfileNullHmacSha1_32:
		return "SRTP_NULL_HMAC_SHA1_32"
	default:
		return fmt.Sprintf("unknown(0x%04x)", uint16(p))
	}
}

// Policy is the set of derived lengths and algorithm choices a
// ProtectionProfile implies.
type Policy struct {
	Profile    ProtectionProfile
	CipherNull bool // true disables AES-CM encryption (NULL cipher, auth-only)
	KeyLen     int
	SaltLen    int
	AuthKeyLen int
	RTPAuthTagLen  int
	RTCPAuthTagLen int
}

// PolicyFor returns the Policy implied by profile, per the data model:
//
//	SRTP_AES128_CM_HMAC_SHA1_80: keyLen=16 saltLen=14 authKey=20 rtpTag=10 rtcpTag=10
//	SRTP_AES128_CM_HMAC_SHA1_32: same keys,                        rtpTag=4  rtcpTag=10
//	SRTP_NULL_HMAC_SHA1_80/_32:  cipher disabled, tags as above
func PolicyFor(profile ProtectionProfile) (Policy, error) {
	p := Policy{Profile: profile, KeyLen: 16, SaltLen: 14, AuthKeyLen: 20}
	switch profile {
	case ProtectionProfileAes128CmHmacSha1_80:
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 10, 10
	case ProtectionProfileAes128CmHmacSha1_32:
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 4, 10
	case ProtectionProfileNullHmacSha1_80:
		p.CipherNull = true
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 10, 10
	case ProtectionProfileNullHmacSha1_32:
		p.CipherNull = true
		p.RTPAuthTagLen, p.RTCPAuthTagLen = 4, 10
	default:
		return Policy{}, fmt.Errorf("srtp: unsupported protection profile 0x%04x", uint16(profile))
	}
	return p, nil
}

// NegotiateProfile intersects a client's offered profile list with the
// server's local list in client-preference order, as the use_srtp
// extension negotiation requires: the server picks the first profile
// from the client's offer that also appears in its own list.
func NegotiateProfile(clientOffer, serverLocal []ProtectionProfile) (ProtectionProfile, bool) {
	local := make(map[ProtectionProfile]bool, len(serverLocal))
	for _, p := range serverLocal {
		local[p] = true
	}
	for _, p := range clientOffer {
		if local[p] {
			return p, true
		}
	}
	return 0, false
}
