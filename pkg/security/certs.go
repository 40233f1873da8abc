package security

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"time"
)

const (
	// ClusterCertValidity is the lifetime of a newly generated cluster
	// certificate: 5 years
	ClusterCertValidity = 5 * 365 * 24 * time.Hour

	// Certificate rotation threshold: rotate when less than 30 days remaining
	certRotationThreshold = 30 * 24 * time.Hour

	clusterKeySize = 2048
)

// ErrPeerMismatch is returned when the peer does not present the cluster
// certificate
var ErrPeerMismatch = errors.New("peer did not present the cluster certificate")

// GenerateClusterCert creates the self-signed certificate shared by the
// master and every node agent. Possession of its key is what
// authenticates both ends of a connection.
func GenerateClusterCert(commonName string, validity time.Duration) (*tls.Certificate, error) {
	if validity <= 0 {
		validity = ClusterCertValidity
	}

	key, err := rsa.GenerateKey(rand.Reader, clusterKeySize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate cluster key: %w", err)
	}

	serialNumber, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return nil, fmt.Errorf("failed to generate serial number: %w", err)
	}

	now := time.Now()
	template := &x509.Certificate{
		SerialNumber: serialNumber,
		Subject: pkix.Name{
			Organization: []string{"Ganeti Cluster"},
			CommonName:   commonName,
		},
		NotBefore:             now.Add(-time.Minute),
		NotAfter:              now.Add(validity),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
		DNSNames:              []string{commonName},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cluster certificate: %w", err)
	}
	leaf, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, fmt.Errorf("failed to parse cluster certificate: %w", err)
	}

	return &tls.Certificate{
		Certificate: [][]byte{certDER},
		PrivateKey:  key,
		Leaf:        leaf,
	}, nil
}

// SaveClusterCert writes certificate and private key into a single PEM
// file readable only by the owner
func SaveClusterCert(cert *tls.Certificate, path string) error {
	key, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return fmt.Errorf("private key is not RSA")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create cert directory: %w", err)
	}

	var buf bytes.Buffer
	if err := pem.Encode(&buf, &pem.Block{Type: "CERTIFICATE", Bytes: cert.Certificate[0]}); err != nil {
		return err
	}
	if err := pem.Encode(&buf, &pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)}); err != nil {
		return err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write cluster certificate: %w", err)
	}
	return nil
}

// LoadClusterCert reads a PEM file written by SaveClusterCert
func LoadClusterCert(path string) (*tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cluster certificate: %w", err)
	}
	cert, err := tls.X509KeyPair(data, data)
	if err != nil {
		return nil, fmt.Errorf("failed to load cluster certificate %s: %w", path, err)
	}

	// Parse certificate to populate Leaf field
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return nil, fmt.Errorf("failed to parse certificate: %w", err)
		}
		cert.Leaf = leaf
	}
	return &cert, nil
}

// CertNeedsRotation returns true if the certificate should be rotated
// This happens when less than 30 days remain until expiry
func CertNeedsRotation(cert *x509.Certificate) bool {
	if cert == nil {
		return true
	}
	return time.Until(cert.NotAfter) < certRotationThreshold
}

// ServerTLSConfig accepts only clients presenting the cluster certificate
func ServerTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{*cert},
		ClientAuth:            tls.RequireAnyClientCert,
		VerifyPeerCertificate: verifyClusterPeer(cert),
		MinVersion:            tls.VersionTLS12,
	}
}

// ClientTLSConfig authenticates with the cluster certificate and expects
// the server to present the same one. Nodes are addressed by IP, so the
// host name is not checked; the certificate comparison replaces it.
func ClientTLSConfig(cert *tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates:          []tls.Certificate{*cert},
		InsecureSkipVerify:    true,
		VerifyPeerCertificate: verifyClusterPeer(cert),
		MinVersion:            tls.VersionTLS12,
	}
}

func verifyClusterPeer(cert *tls.Certificate) func([][]byte, [][]*x509.Certificate) error {
	want := cert.Certificate[0]
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 || !bytes.Equal(rawCerts[0], want) {
			return ErrPeerMismatch
		}
		if cert.Leaf != nil && time.Now().After(cert.Leaf.NotAfter) {
			return fmt.Errorf("cluster certificate expired at %s", cert.Leaf.NotAfter.Format(time.RFC3339))
		}
		return nil
	}
}

// CertInfo returns human-readable information about a certificate
func CertInfo(cert *x509.Certificate) map[string]interface{} {
	if cert == nil {
		return map[string]interface{}{"error": "certificate is nil"}
	}

	return map[string]interface{}{
		"subject":        cert.Subject.CommonName,
		"serial_number":  cert.SerialNumber.String(),
		"not_before":     cert.NotBefore.Format(time.RFC3339),
		"not_after":      cert.NotAfter.Format(time.RFC3339),
		"needs_rotation": CertNeedsRotation(cert),
	}
}
