package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"flag"
	"fmt"
	"math/big"
	"os"
	"time"

	"github.com/gilwalzer/s2n/pkg/handshake"
	"github.com/gilwalzer/s2n/pkg/metrics"
	"github.com/gilwalzer/s2n/pkg/protocol"
	"github.com/gilwalzer/s2n/pkg/record"
)

// demoCommand runs a complete client/server handshake in-process over a
// non-blocking memory pipe whose reads are capped at the -chunk size; write
// budgets are left unlimited.
func demoCommand(args []string) {
	fs := flag.NewFlagSet("demo", flag.ExitOnError)
	verbose := fs.Bool("v", false, "debug logging")
	ecdhe := fs.Bool("ecdhe", true, "prefer the ECDHE key exchange")
	chunk := fs.Int("chunk", 64, "transport read chunk size in bytes")
	fs.Parse(args)

	logger := metrics.NullLogger()
	if *verbose {
		logger = metrics.TestLogger(os.Stderr)
	}

	key, chain, err := selfSignedChain()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating demo certificate: %v\n", err)
		os.Exit(1)
	}

	prefs := protocol.DefaultCipherPreferences()
	if !*ecdhe {
		prefs = []protocol.CipherSuite{protocol.TLS_RSA_WITH_AES_128_GCM_SHA256}
	}

	clientTr, serverTr := record.MemoryPipe()
	clientTr.SetReadChunk(*chunk)
	serverTr.SetReadChunk(*chunk)

	clientCfg := handshake.DefaultConfig()
	clientCfg.CipherPreferences = prefs
	clientCfg.Logger = logger

	serverCfg := handshake.DefaultConfig()
	serverCfg.CipherPreferences = prefs
	serverCfg.CertificateChain = chain
	serverCfg.PrivateKey = key
	serverCfg.Logger = logger

	client := handshake.NewConn(handshake.RoleClient, clientTr, clientCfg)
	server := handshake.NewConn(handshake.RoleServer, serverTr, serverCfg)

	fmt.Println("=== s2n-handshake demo ===")
	start := time.Now()
	if err := pump(client, server); err != nil {
		fmt.Fprintf(os.Stderr, "handshake failed: %v\n", err)
		os.Exit(1)
	}

	version, _ := client.ActualProtocolVersion()
	fmt.Printf("handshake complete in %v\n", time.Since(start).Round(time.Microsecond))
	fmt.Printf("  version:       %s\n", version)
	fmt.Printf("  cipher suite:  %s\n", client.CipherSuite())
	fmt.Printf("  client state:  %s\n", client.State())
	fmt.Printf("  server state:  %s\n", server.State())
}

// pump alternates Negotiate on both endpoints until both complete.
func pump(client, server *handshake.Conn) error {
	ctx := context.Background()
	for i := 0; i < 10000; i++ {
		cb, err := client.Negotiate(ctx)
		if err != nil {
			return fmt.Errorf("client: %w", err)
		}
		sb, err := server.Negotiate(ctx)
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if cb == handshake.NotBlocked && sb == handshake.NotBlocked {
			return nil
		}
	}
	return fmt.Errorf("handshake did not converge")
}

// metricsCommand runs a batch of handshakes against one collector and
// prints the Prometheus text exposition.
func metricsCommand(args []string) {
	fs := flag.NewFlagSet("metrics", flag.ExitOnError)
	count := fs.Int("n", 10, "number of handshakes to run")
	fs.Parse(args)

	key, chain, err := selfSignedChain()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generating demo certificate: %v\n", err)
		os.Exit(1)
	}

	collector := metrics.NewCollector(metrics.Labels{"instance": "demo"})
	for i := 0; i < *count; i++ {
		clientTr, serverTr := record.MemoryPipe()

		clientCfg := handshake.DefaultConfig()
		clientCfg.Collector = collector

		serverCfg := handshake.DefaultConfig()
		serverCfg.CertificateChain = chain
		serverCfg.PrivateKey = key
		serverCfg.Collector = collector

		client := handshake.NewConn(handshake.RoleClient, clientTr, clientCfg)
		server := handshake.NewConn(handshake.RoleServer, serverTr, serverCfg)
		if err := pump(client, server); err != nil {
			fmt.Fprintf(os.Stderr, "handshake %d failed: %v\n", i, err)
			os.Exit(1)
		}
	}

	exporter := metrics.NewPrometheusExporter(collector, "s2n")
	exporter.WriteMetrics(os.Stdout)
}

// selfSignedChain generates an RSA key and a matching self-signed DER
// certificate for the demo server.
func selfSignedChain() (*rsa.PrivateKey, [][]byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}
	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "s2n-handshake demo"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	return key, [][]byte{der}, nil
}
