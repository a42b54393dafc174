// Package transport brings up the agent server's mTLS identity and
// listening socket (C7). Certificate/credential wiring is grounded on
// internal/lighthouse/connection.go's tls.Config + grpc/credentials
// plumbing, turned around from a client dialer to a server listener.
// Port selection follows internal/config/config.go's getEnvIntOrDefault
// env-var-with-default convention.
package transport

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/grpc/credentials"
)

// Mode is the mTLS bring-up mode selected at startup.
type Mode string

const (
	// ModeSandbox trusts a client CA supplied out-of-band (STAKPAK_MCP_CLIENT_CA).
	ModeSandbox Mode = "sandbox"
	// ModeSelfSigned generates an ephemeral CA and server cert, printing the
	// CA so an operator can configure a client to trust it.
	ModeSelfSigned Mode = "self-signed"
	// ModePlaintext disables TLS entirely (--disable-mcp-mtls).
	ModePlaintext Mode = "plaintext"
)

// ResolveMode picks the bring-up mode per spec.md §6: an explicit opt-out
// wins, then a supplied client CA selects sandbox mode, else self-signed.
func ResolveMode(clientCAPEM string, disableMTLS bool) Mode {
	if disableMTLS {
		return ModePlaintext
	}
	if clientCAPEM != "" {
		return ModeSandbox
	}
	return ModeSelfSigned
}

// Identity bundles what the server needs to listen for TLS connections
// and what it should print for the operator to copy to a client.
type Identity struct {
	Mode        Mode
	Credentials credentials.TransportCredentials // nil in ModePlaintext
	CAPEM       []byte                           // nil in ModePlaintext
}

// BuildIdentity produces server credentials for mode. clientCAPEM is the
// PEM-encoded client CA supplied via STAKPAK_MCP_CLIENT_CA (sandbox mode
// only); it is ignored otherwise.
func BuildIdentity(mode Mode, clientCAPEM string) (*Identity, error) {
	switch mode {
	case ModePlaintext:
		return &Identity{Mode: mode}, nil

	case ModeSandbox:
		clientCAPool := x509.NewCertPool()
		if !clientCAPool.AppendCertsFromPEM([]byte(clientCAPEM)) {
			return nil, fmt.Errorf("failed to parse client CA PEM from STAKPAK_MCP_CLIENT_CA")
		}
		serverCert, serverCAPEM, err := generateSelfSignedServerCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate sandbox server certificate: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{serverCert},
			ClientCAs:    clientCAPool,
			ClientAuth:   tls.RequireAndVerifyClientCert,
		}
		return &Identity{
			Mode:        mode,
			Credentials: credentials.NewTLS(tlsConfig),
			CAPEM:       serverCAPEM,
		}, nil

	case ModeSelfSigned:
		serverCert, serverCAPEM, err := generateSelfSignedServerCert()
		if err != nil {
			return nil, fmt.Errorf("failed to generate self-signed server certificate: %w", err)
		}
		tlsConfig := &tls.Config{
			Certificates: []tls.Certificate{serverCert},
		}
		return &Identity{
			Mode:        mode,
			Credentials: credentials.NewTLS(tlsConfig),
			CAPEM:       serverCAPEM,
		}, nil

	default:
		return nil, fmt.Errorf("unknown mTLS mode %q", mode)
	}
}

// generateSelfSignedServerCert creates an ephemeral CA and a server leaf
// certificate signed by it, following Go's standard crypto/tls +
// crypto/x509 self-signed-cert idiom.
func generateSelfSignedServerCert() (tls.Certificate, []byte, error) {
	caKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caSerial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caTemplate := &x509.Certificate{
		SerialNumber:          caSerial,
		Subject:               pkix.Name{CommonName: "stakpak agent-core CA"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	caDER, err := x509.CreateCertificate(rand.Reader, caTemplate, caTemplate, &caKey.PublicKey, caKey)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caCert, err := x509.ParseCertificate(caDER)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	serverKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	serverSerial, err := rand.Int(rand.Reader, big.NewInt(1<<62))
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	serverTemplate := &x509.Certificate{
		SerialNumber: serverSerial,
		Subject:      pkix.Name{CommonName: "stakpak agent-core server"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(10 * 365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.ParseIP("127.0.0.1"), net.ParseIP("::1")},
	}
	serverDER, err := x509.CreateCertificate(rand.Reader, serverTemplate, caCert, &serverKey.PublicKey, caKey)
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	serverCertPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: serverDER})
	caPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: caDER})
	serverKeyDER, err := x509.MarshalECPrivateKey(serverKey)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	serverKeyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: serverKeyDER})

	cert, err := tls.X509KeyPair(serverCertPEM, serverKeyPEM)
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	return cert, caPEM, nil
}

// ResolvePort reads name from the environment, falling back to
// defaultPort when unset. An invalid value is a fatal configuration
// error naming the offending value, per spec.md §7.
func ResolvePort(name string, defaultPort int) (int, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return defaultPort, nil
	}
	port, err := strconv.Atoi(raw)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("invalid %s value %q: must be a port number between 1 and 65535", name, raw)
	}
	return port, nil
}

// BindAddress chooses the listen address for port: containers bind every
// interface since the caller expects the mapped port to be reachable,
// bare-metal/dev runs stay on loopback.
func BindAddress(port int) string {
	if runningInContainer() {
		return fmt.Sprintf("0.0.0.0:%d", port)
	}
	return fmt.Sprintf("127.0.0.1:%d", port)
}

func runningInContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if data, err := os.ReadFile("/proc/1/cgroup"); err == nil {
		s := string(data)
		return strings.Contains(s, "docker") || strings.Contains(s, "kubepods") || strings.Contains(s, "containerd")
	}
	return false
}

// FreePort asks the OS for an unused TCP port, for tests and
// zero-configuration local runs.
func FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
