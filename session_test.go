package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jitsi/libjitsi-sub007/pkg/dtls"
	"github.com/jitsi/libjitsi-sub007/pkg/rtcpengine"
)

// loopbackWire delivers everything written to it straight into a peer
// MediaSession's HandleInbound, letting a full handshake and media flow
// run in-process without a real socket. peer is resolved through a
// pointer-to-pointer so the two sessions can reference each other before
// either has finished construction.
type loopbackWire struct {
	peer   **MediaSession
	isRTCP bool
}

func (w *loopbackWire) WriteTo(buf []byte) error {
	cp := append([]byte(nil), buf...)
	_, err := (*w.peer).HandleInbound(cp, w.isRTCP)
	return err
}

func newTestPair(t *testing.T) (client, server *MediaSession) {
	t.Helper()

	store := dtls.NewCertificateStore(7*24*time.Hour, 24*time.Hour)
	now := time.Unix(1_700_000_000, 0)
	clientCert, err := store.Get(now)
	require.NoError(t, err)
	serverCert, err := store.Refresh(now)
	require.NoError(t, err)

	clientFP, err := dtls.HashCertificate(clientCert.X509, "sha-256")
	require.NoError(t, err)
	serverFP, err := dtls.HashCertificate(serverCert.X509, "sha-256")
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.MTU = 1200

	client, err := NewMediaSession(cfg, SessionParams{
		Signaling: SignalingParameters{
			Setup:              SetupActive,
			RemoteFingerprints: map[string]string{"sha-256": serverFP},
			RTCPMux:            true,
		},
		LocalSSRC:   111,
		LocalCNAME:  "client-cname",
		Strategy:    rtcpengine.StrategyBasic,
		Certificate: clientCert,
		Wire:        &loopbackWire{peer: &server},
	})
	require.NoError(t, err)

	server, err = NewMediaSession(cfg, SessionParams{
		Signaling: SignalingParameters{
			Setup:              SetupPassive,
			RemoteFingerprints: map[string]string{"sha-256": clientFP},
			RTCPMux:            true,
		},
		LocalSSRC:   222,
		LocalCNAME:  "server-cname",
		Strategy:    rtcpengine.StrategyBasic,
		Certificate: serverCert,
		Wire:        &loopbackWire{peer: &client},
	})
	require.NoError(t, err)

	return client, server
}

func TestMediaSessionHandshakeAndRTPRoundTrip(t *testing.T) {
	client, server := newTestPair(t)

	client.Start()
	server.Start()

	require.True(t, client.WaitReady(5*time.Second))
	require.True(t, server.WaitReady(5*time.Second))

	payload := []byte{0x80, 0x60, 0x00, 0x01, 0, 0, 0, 1, 0, 0, 0, 111, 'h', 'i'}
	require.NoError(t, client.HandleOutboundRTP(payload, 111))
}

func TestMediaSessionRejectsMissingWire(t *testing.T) {
	cfg := DefaultConfig()
	store := dtls.NewCertificateStore(24*time.Hour, time.Hour)
	cert, err := store.Get(time.Unix(0, 0))
	require.NoError(t, err)

	_, err = NewMediaSession(cfg, SessionParams{Certificate: cert})
	require.Error(t, err)
}

func TestMediaSessionRejectsMissingCertificate(t *testing.T) {
	cfg := DefaultConfig()
	_, err := NewMediaSession(cfg, SessionParams{Wire: &loopbackWire{}})
	require.Error(t, err)
}
