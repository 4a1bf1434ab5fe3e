package srtp

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testKeySalt() ([]byte, []byte) {
	key := bytes.Repeat([]byte{0x11}, 16)
	salt := bytes.Repeat([]byte{0x22}, 14)
	return key, salt
}

func TestNegotiateProfilePicksFirstFromClientOffer(t *testing.T) {
	offer := []ProtectionProfile{ProtectionProfileAes128CmHmacSha1_80, ProtectionProfileAes128CmHmacSha1_32}
	local := []ProtectionProfile{ProtectionProfileAes128CmHmacSha1_32, ProtectionProfileAes128CmHmacSha1_80}

	chosen, ok := NegotiateProfile(offer, local)
	require.True(t, ok)
	require.Equal(t, ProtectionProfileAes128CmHmacSha1_80, chosen)
}

func TestNegotiateProfileEmptyIntersection(t *testing.T) {
	_, ok := NegotiateProfile(
		[]ProtectionProfile{ProtectionProfileNullHmacSha1_80},
		[]ProtectionProfile{ProtectionProfileAes128CmHmacSha1_80},
	)
	require.False(t, ok)
}

func TestEncryptDecryptRTPRoundTrip(t *testing.T) {
	key, salt := testKeySalt()
	fwd, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	rev, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 0x42}
	payload := []byte("opus frame payload goes here")

	encrypted, err := fwd.EncryptRTP(0x42, 1, header, payload)
	require.NoError(t, err)
	require.NotEqual(t, payload, encrypted[len(header):len(header)+len(payload)])

	body := encrypted[len(header):]
	decrypted, err := rev.DecryptRTP(0x42, 1, header, body)
	require.NoError(t, err)
	require.Equal(t, payload, decrypted)
}

func TestDecryptRTPRejectsTamperedTag(t *testing.T) {
	key, salt := testKeySalt()
	fwd, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	rev, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 0x42}
	encrypted, err := fwd.EncryptRTP(0x42, 1, header, []byte("payload"))
	require.NoError(t, err)

	body := append([]byte(nil), encrypted[len(header):]...)
	body[0] ^= 0xff

	_, err = rev.DecryptRTP(0x42, 1, header, body)
	require.ErrorIs(t, err, errAuthFailed)
}

func TestReplayWindowBoundaryScenario(t *testing.T) {
	var w replayWindow
	for _, idx := range []uint64{100, 101, 103} {
		require.True(t, w.check(idx))
		w.accept(idx)
	}

	require.True(t, w.check(102), "gap fill must be accepted")
	require.False(t, w.check(100), "duplicate must be rejected")
	require.False(t, w.check(39), "64 or more below highest must be rejected as too old")
}

func TestEncryptDecryptRTCPRoundTrip(t *testing.T) {
	key, salt := testKeySalt()
	fwd, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)
	rev, err := NewContext(key, salt, ProtectionProfileAes128CmHmacSha1_80)
	require.NoError(t, err)

	compound := []byte("fake-compound-rtcp-bytes-001")
	encrypted, err := fwd.EncryptRTCP(0x99, compound)
	require.NoError(t, err)

	decrypted, err := rev.DecryptRTCP(0x99, encrypted)
	require.NoError(t, err)
	require.Equal(t, compound, decrypted)
}

func TestNullCipherLeavesPayloadPlaintext(t *testing.T) {
	key, salt := testKeySalt()
	ctx, err := NewContext(key, salt, ProtectionProfileNullHmacSha1_80)
	require.NoError(t, err)

	header := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 0x42}
	payload := []byte("plaintext under NULL cipher")
	out, err := ctx.EncryptRTP(0x42, 1, header, payload)
	require.NoError(t, err)
	require.True(t, bytes.Contains(out, payload))
}
