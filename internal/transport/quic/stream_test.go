package quic

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelhdz45/interactive-collaboration-platform-in-AR/internal/transport"
)

func selfSigned(t *testing.T) tls.Certificate {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		DNSNames:     []string{"localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)

	return tls.Certificate{Certificate: [][]byte{der}, PrivateKey: key}
}

func TestStreamRoundTrip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	serverTLS := &tls.Config{Certificates: []tls.Certificate{selfSigned(t)}}
	ln, err := Listen("127.0.0.1:0", serverTLS, DefaultConfig(), nil)
	require.NoError(t, err)
	defer ln.Close()

	accepted := make(chan *Stream, 1)
	go func() {
		s, err := ln.Accept(ctx)
		if err != nil {
			close(accepted)
			return
		}
		accepted <- s
	}()

	client, err := Dial(ctx, ln.Addr(), &tls.Config{InsecureSkipVerify: true}, DefaultConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	server, ok := <-accepted
	require.True(t, ok, "accept failed")
	defer server.Close()

	require.NoError(t, client.SendBatch(ctx, []byte{2, 1, 2}))
	got, err := server.ReceiveBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 1, 2}, got)

	require.NoError(t, server.SendBatch(ctx, []byte{0}))
	got, err = client.ReceiveBatch(ctx)
	require.NoError(t, err)
	require.Equal(t, []byte{0}, got)

	require.NoError(t, client.Close())
	_, err = server.ReceiveBatch(ctx)
	require.Error(t, err)
	require.ErrorIs(t, client.SendBatch(ctx, []byte{0}), transport.ErrClosed)
	_, err = client.ReceiveBatch(ctx)
	require.ErrorIs(t, err, transport.ErrClosed)
}

func TestWithProto(t *testing.T) {
	conf := withProto(&tls.Config{})
	require.Equal(t, []string{NextProto}, conf.NextProtos)

	custom := withProto(&tls.Config{NextProtos: []string{"h3"}})
	require.Equal(t, []string{"h3"}, custom.NextProtos)
}

var _ io.Closer = (*Stream)(nil)
