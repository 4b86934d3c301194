package middleware

import (
	"crypto/tls"
	"net/http"
)

// TLSConfig returns a middleware that applies config to the underlying *http.Transport.
// If next is not an *http.Transport (for example a test double), it is returned unchanged.
func TLSConfig(config *tls.Config) func(http.RoundTripper) http.RoundTripper {
	return func(next http.RoundTripper) http.RoundTripper {
		if next == nil {
			next = http.DefaultTransport
		}

		transport, ok := next.(*http.Transport)
		if !ok {
			return next
		}

		transport = transport.Clone()
		transport.TLSClientConfig = config

		return transport
	}
}

// VerifyCertificate returns the TLS config for the verifyCertificate setting.
// BIG-IP ships with a self-signed certificate, so verification is commonly
// disabled for lab devices.
func VerifyCertificate(verify bool) *tls.Config {
	return &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: !verify, //nolint:gosec // Opt-in for devices with self-signed certificates
	}
}
