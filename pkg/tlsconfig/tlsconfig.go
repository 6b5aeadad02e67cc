// Package tlsconfig builds the crypto/tls configuration used by secured
// transports.
package tlsconfig

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
)

// VersionProfile is a pre-configured range of TLS protocol versions.
type VersionProfile struct {
	Min         uint16
	Max         uint16
	Description string
}

var (
	// ProfileModern - TLS 1.3 only
	ProfileModern = VersionProfile{
		Min:         tls.VersionTLS13,
		Max:         tls.VersionTLS13,
		Description: "TLS 1.3 only",
	}

	// ProfileSecure - TLS 1.2 and 1.3, the default
	ProfileSecure = VersionProfile{
		Min:         tls.VersionTLS12,
		Max:         tls.VersionTLS13,
		Description: "TLS 1.2+",
	}
)

// Config describes the TLS side of one client connection.
type Config struct {
	// ServerName is sent as SNI and used for certificate verification.
	ServerName string
	// InsecureSkipVerify disables certificate verification.
	InsecureSkipVerify bool
	// RootCAs holds extra PEM-encoded roots. When empty the system pool is used.
	RootCAs [][]byte
	// Profile selects the allowed protocol versions; the zero value means ProfileSecure.
	Profile VersionProfile
	// Base, if set, is cloned and only ServerName is filled in when empty.
	Base *tls.Config
}

// Build returns a *tls.Config for an HTTP/1.1 client connection.
func Build(cfg Config) (*tls.Config, error) {
	if cfg.Base != nil {
		c := cfg.Base.Clone()
		if c.ServerName == "" {
			c.ServerName = cfg.ServerName
		}
		return c, nil
	}

	profile := cfg.Profile
	if profile.Min == 0 {
		profile = ProfileSecure
	}

	c := &tls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify,
		MinVersion:         profile.Min,
		MaxVersion:         profile.Max,
		NextProtos:         []string{"http/1.1"},
	}

	if len(cfg.RootCAs) > 0 {
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		for i, pemData := range cfg.RootCAs {
			if !pool.AppendCertsFromPEM(pemData) {
				return nil, fmt.Errorf("root CA %d: no certificate found in PEM data", i)
			}
		}
		c.RootCAs = pool
	}

	return c, nil
}

// GetVersionName returns human-readable name for a TLS version
func GetVersionName(version uint16) string {
	switch version {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	default:
		return "Unknown"
	}
}
