// Package transport holds QSEoW connection parameters and issues
// rate-limited, retrying HTTP calls against the Repository and Engine
// services (spec component C1: Session & Transport).
package transport

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/ctrl-q/ctrlq/errors"
)

// Default ports used by QSEoW's certificate-authenticated services.
const (
	DefaultEnginePort     = 4747
	DefaultRepositoryPort = 4242
)

// CertCredentials is the mutual-TLS credential triple used by the default
// QSEoW certificate-authentication scheme.
type CertCredentials struct {
	ClientCertPath string
	ClientKeyPath  string
	RootCertPath   string
}

// BearerCredentials authenticates with a pre-issued API token instead of
// mutual TLS (used when talking through a reverse proxy that terminates
// client certs itself).
type BearerCredentials struct {
	Token string
}

// Config holds everything the transport needs to build an authenticated
// request against a single QSEoW cluster. Exactly one of Cert/Bearer must
// be set; Validate (called by config.Config.TransportConfig) enforces that
// as a Configuration error before any network I/O, per spec.md §7.
type Config struct {
	Host               string
	EnginePort         int
	RepositoryPort     int
	VirtualProxyPrefix string
	Secure             bool // false disables server certificate verification
	SchemaVersion      string

	Cert   *CertCredentials
	Bearer *BearerCredentials
}

// TLSConfig builds the tls.Config implied by this Config's credentials and
// Secure flag. It always returns a non-nil config: InsecureSkipVerify is
// !Secure, and client/root certificates are loaded only when Cert is set.
func (c *Config) TLSConfig() (*tls.Config, error) {
	cfg := &tls.Config{InsecureSkipVerify: !c.Secure} //nolint:gosec // operator-controlled, documented flag

	if c.Cert == nil {
		return cfg, nil
	}

	certPEM, err := os.ReadFile(c.Cert.ClientCertPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading client certificate %s", c.Cert.ClientCertPath)
	}
	keyPEM, err := os.ReadFile(c.Cert.ClientKeyPath)
	if err != nil {
		return nil, errors.Wrapf(err, "reading client key %s", c.Cert.ClientKeyPath)
	}
	pair, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, errors.Wrap(err, "parsing client certificate/key pair")
	}
	cfg.Certificates = []tls.Certificate{pair}

	if c.Cert.RootCertPath != "" {
		rootPEM, err := os.ReadFile(c.Cert.RootCertPath)
		if err != nil {
			return nil, errors.Wrapf(err, "reading root certificate %s", c.Cert.RootCertPath)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(rootPEM) {
			return nil, errors.Newf("no certificates found in root certificate file %s", c.Cert.RootCertPath)
		}
		cfg.RootCAs = pool
	}

	return cfg, nil
}

// Validate checks the mutually-exclusive credential requirement and fills
// in port defaults. It is the Configuration-class check spec.md §7 requires
// to run fatally before any network I/O.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Cert == nil && c.Bearer == nil {
		return errors.New("either certificate or bearer credentials are required")
	}
	if c.Cert != nil && c.Bearer != nil {
		return errors.New("certificate and bearer credentials are mutually exclusive")
	}
	if c.Cert != nil {
		if c.Cert.ClientCertPath == "" || c.Cert.ClientKeyPath == "" {
			return errors.New("certificate auth requires both a client cert and client key path")
		}
	}
	if c.Bearer != nil && c.Bearer.Token == "" {
		return errors.New("bearer auth requires a non-empty token")
	}
	if c.EnginePort == 0 {
		c.EnginePort = DefaultEnginePort
	}
	if c.RepositoryPort == 0 {
		c.RepositoryPort = DefaultRepositoryPort
	}
	if c.SchemaVersion == "" {
		c.SchemaVersion = "12.612.0"
	}
	return nil
}
