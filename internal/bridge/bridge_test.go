package bridge

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/tenant"
)

// writeKeyPair writes a self-signed certificate usable as both the client
// pair and the CA bundle, so loadTLS succeeds and the supervisor reaches the
// connect loop.
func writeKeyPair(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	dir := t.TempDir()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "bridge-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})

	certFile = filepath.Join(dir, "client.crt")
	keyFile = filepath.Join(dir, "client.key")
	caFile = filepath.Join(dir, "ca.crt")
	require.NoError(t, os.WriteFile(certFile, certPEM, 0o600))
	require.NoError(t, os.WriteFile(keyFile, keyPEM, 0o600))
	require.NoError(t, os.WriteFile(caFile, certPEM, 0o600))
	return certFile, keyFile, caFile
}

func lifecycleBridge(t *testing.T, cert, key, ca string) *Bridge {
	t.Helper()
	dir := &aliasDirectory{
		tenants: map[string]*tenant.Tenant{
			"acme": {ID: "a1", Alias: "acme"},
		},
	}
	// Port 1 refuses connections, so the supervisor stays in its retry loop.
	return New(config.BridgeConfig{
		Enabled:     true,
		Endpoint:    "tcp://127.0.0.1:1",
		Aliases:     true,
		Certificate: cert,
		PrivateKey:  key,
		CA:          ca,
		Reconnect: config.ReconnectConfig{
			InitialInterval: 10 * time.Millisecond,
			MaxInterval:     50 * time.Millisecond,
			Multiplier:      2.0,
		},
	}, dir, nil, logger.NopLogger())
}

func disableWithin(t *testing.T, b *Bridge, timeout time.Duration) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		b.Disable()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		t.Fatal("Disable did not return while the supervisor was retrying")
	}
}

func TestEnableDisableLifecycle(t *testing.T) {
	cert, key, ca := writeKeyPair(t)
	b := lifecycleBridge(t, cert, key, ca)

	require.NoError(t, b.Enable(context.Background()))
	assert.Equal(t, StateConnecting, b.State())

	// Enable while already connecting is a no-op.
	require.NoError(t, b.Enable(context.Background()))
	assert.Equal(t, StateConnecting, b.State())

	// Disable must interrupt the backoff wait, not ride it out.
	disableWithin(t, b, 15*time.Second)
	assert.Equal(t, StateClosed, b.State())

	b.Disable()
	assert.Equal(t, StateClosed, b.State())

	// A closed bridge can be re-enabled; the supervisor is rebuilt.
	require.NoError(t, b.Enable(context.Background()))
	assert.Equal(t, StateConnecting, b.State())

	disableWithin(t, b, 15*time.Second)
	assert.Equal(t, StateClosed, b.State())
}

func TestEnableUnreadableCertificates(t *testing.T) {
	b := lifecycleBridge(t, "/nonexistent/client.crt", "/nonexistent/client.key", "/nonexistent/ca.crt")

	require.NoError(t, b.Enable(context.Background()))

	// Missing PEM files are a permanent failure; the supervisor gives up
	// instead of retrying.
	require.Eventually(t, func() bool { return b.State() == StateErrored },
		5*time.Second, 10*time.Millisecond)

	b.Disable()
	assert.Equal(t, StateClosed, b.State())
}
