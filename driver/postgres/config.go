package postgres

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"time"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/postgres/protocol"
)

// SSLMode controls TLS negotiation during connect.
type SSLMode string

const (
	// SSLDisable never negotiates TLS.
	SSLDisable SSLMode = "disable"
	// SSLPrefer negotiates TLS when the server supports it and falls back
	// to plaintext when it does not.
	SSLPrefer SSLMode = "prefer"
	// SSLRequire fails the connection unless the server accepts TLS. The
	// certificate is not verified, matching libpq.
	SSLRequire SSLMode = "require"
	// SSLVerifyCA additionally verifies the certificate chain against the
	// configured (or system) CA roots, but not the hostname.
	SSLVerifyCA SSLMode = "verify-ca"
	// SSLVerifyIdentity verifies both the chain and the hostname.
	SSLVerifyIdentity SSLMode = "verify-identity"
)

// requiresTLS reports whether a server refusing TLS fails the connection.
func (m SSLMode) requiresTLS() bool {
	return m == SSLRequire || m == SSLVerifyCA || m == SSLVerifyIdentity
}

// Config holds the connection parameters for a PostgreSQL server.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string

	// ApplicationName is reported to the server in the startup message.
	ApplicationName string

	SSLMode   SSLMode
	TLSConfig *tls.Config
	// RootCAs is the CA pool for verify-ca and verify-identity; nil uses
	// the system roots.
	RootCAs *x509.CertPool

	// ConnectTimeout bounds the dial plus handshake. Zero means no limit.
	ConnectTimeout time.Duration

	// MaxMessageSize caps a single backend message; zero uses the
	// protocol default of 8 MiB.
	MaxMessageSize int

	// RuntimeParams are extra startup parameters (search_path, timezone).
	RuntimeParams map[string]string
}

// withDefaults fills unset fields and validates the result.
func (c Config) withDefaults() (Config, error) {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5432
	}
	if c.User == "" {
		return c, core.Errorf(core.KindPoolConfig, "postgres: user is required")
	}
	if c.Database == "" {
		c.Database = c.User
	}
	if c.SSLMode == "" {
		c.SSLMode = SSLPrefer
	}
	switch c.SSLMode {
	case SSLDisable, SSLPrefer, SSLRequire, SSLVerifyCA, SSLVerifyIdentity:
	default:
		return c, core.Errorf(core.KindPoolConfig, "postgres: unknown sslmode %q", c.SSLMode)
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = protocol.DefaultMaxMessageSize
	}
	return c, nil
}

// tlsClientConfig builds the TLS client configuration for the configured
// mode. A caller-supplied TLSConfig wins outright.
func (c Config) tlsClientConfig() *tls.Config {
	if c.TLSConfig != nil {
		return c.TLSConfig
	}
	switch c.SSLMode {
	case SSLVerifyIdentity:
		return &tls.Config{ServerName: c.Host, RootCAs: c.RootCAs}
	case SSLVerifyCA:
		// chain verified by hand so the hostname check is skipped
		return &tls.Config{
			InsecureSkipVerify:    true,
			VerifyPeerCertificate: verifyChainOnly(c.RootCAs),
		}
	default:
		// prefer and require encrypt without verification, as libpq does
		return &tls.Config{InsecureSkipVerify: true}
	}
}

// verifyChainOnly validates the presented chain against roots without
// checking the hostname. Nil roots fall back to the system pool.
func verifyChainOnly(roots *x509.CertPool) func([][]byte, [][]*x509.Certificate) error {
	return func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
		if len(rawCerts) == 0 {
			return core.Errorf(core.KindConnectionSsl, "server presented no certificate")
		}
		certs := make([]*x509.Certificate, len(rawCerts))
		for i, raw := range rawCerts {
			cert, err := x509.ParseCertificate(raw)
			if err != nil {
				return core.WrapError(core.KindConnectionSsl, "parse server certificate", err)
			}
			certs[i] = cert
		}
		opts := x509.VerifyOptions{Roots: roots, Intermediates: x509.NewCertPool()}
		for _, cert := range certs[1:] {
			opts.Intermediates.AddCert(cert)
		}
		if _, err := certs[0].Verify(opts); err != nil {
			return core.WrapError(core.KindConnectionSsl, "verify server certificate", err)
		}
		return nil
	}
}

func (c Config) addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) startupParams() map[string]string {
	params := map[string]string{
		"user":            c.User,
		"database":        c.Database,
		"client_encoding": "UTF8",
	}
	if c.ApplicationName != "" {
		params["application_name"] = c.ApplicationName
	}
	for k, v := range c.RuntimeParams {
		params[k] = v
	}
	return params
}
