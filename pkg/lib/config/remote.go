package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
)

// Environment variables understood by bistctl and the harness server.
const (
	EnvConfig  = "BIST_CONFIG"
	EnvCatalog = "BIST_CATALOG"
	EnvAddress = "BIST_ADDRESS"
	EnvTLSKey  = "BIST_TLS_KEY"
	EnvTLSCert = "BIST_TLS_CERT"
	EnvCACert  = "BIST_CA_TLS_CERT"
)

// DefaultConfigPath is used when neither a flag nor EnvConfig names a file.
const DefaultConfigPath = "bist.toml"

// DefaultAddress is where the harness server listens and bistctl dials by default.
const DefaultAddress = "localhost:50051"

// RemoteConfig is the harness server endpoint and its mTLS material.
// PEM blocks are taken inline from the environment, or read from the *_file keys.
type RemoteConfig struct {
	Address  string `toml:"address"`
	KeyFile  string `toml:"key_file"`
	CertFile string `toml:"cert_file"`
	CAFile   string `toml:"ca_file"`

	KeyPEM  string `toml:"-"`
	CertPEM string `toml:"-"`
	CAPEM   string `toml:"-"`
}

// ApplyEnv overrides r with whichever of the BIST_* variables are set.
func (r *RemoteConfig) ApplyEnv(getenv func(string) string) {
	set := func(dst *string, key string) {
		if v := getenv(key); strings.TrimSpace(v) != "" {
			*dst = v
		}
	}
	set(&r.Address, EnvAddress)
	set(&r.KeyPEM, EnvTLSKey)
	set(&r.CertPEM, EnvTLSCert)
	set(&r.CAPEM, EnvCACert)
}

// Addr returns the configured address or DefaultAddress.
func (r RemoteConfig) Addr() string {
	if strings.TrimSpace(r.Address) == "" {
		return DefaultAddress
	}
	return r.Address
}

// ClientTLS returns a TLS 1.3 client config presenting the configured certificate.
func (r RemoteConfig) ClientTLS() (*tls.Config, error) {
	cert, pool, err := r.material()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

// ServerTLS returns a TLS 1.3 server config that requires client certificates
// signed by the configured CA.
func (r RemoteConfig) ServerTLS() (*tls.Config, error) {
	cert, pool, err := r.material()
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS13,
	}, nil
}

func (r RemoteConfig) material() (tls.Certificate, *x509.CertPool, error) {
	keyPEM, err := pemFrom(r.KeyPEM, r.KeyFile, EnvTLSKey, "remote.key_file")
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	certPEM, err := pemFrom(r.CertPEM, r.CertFile, EnvTLSCert, "remote.cert_file")
	if err != nil {
		return tls.Certificate{}, nil, err
	}
	caPEM, err := pemFrom(r.CAPEM, r.CAFile, EnvCACert, "remote.ca_file")
	if err != nil {
		return tls.Certificate{}, nil, err
	}

	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return tls.Certificate{}, nil, fmt.Errorf("failed to parse TLS key pair: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return tls.Certificate{}, nil, fmt.Errorf("failed to parse CA certificate")
	}
	return cert, pool, nil
}

func pemFrom(inline, file, env, key string) ([]byte, error) {
	if strings.TrimSpace(inline) != "" {
		return []byte(inline), nil
	}
	if file == "" {
		return nil, fmt.Errorf("missing TLS material: set %s or %s", env, key)
	}
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, nil
}
