package client

import (
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"strings"
)

// Settings describes how to reach a controller.
type Settings struct {
	Protocol string `json:"protocol" validate:"required,oneof=http https"`
	Host     string `json:"host" validate:"required"`
	Port     int    `json:"port" validate:"required,min=1,max=65535"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`

	// AcceptInsecureCertificate pins the hex-encoded SHA-256 digest of
	// a server certificate that fails normal CA verification. When set
	// and the protocol is https, the digest replaces chain validation.
	AcceptInsecureCertificate string `json:"accept_insecure_certificate,omitempty"`
}

// Host returns the controller host as displayed to the user.
func (c *Client) Host() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Host
}

// SetHost replaces the controller host. The new value applies to
// queries dispatched after the call.
func (c *Client) SetHost(host string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Host = host
}

// Port returns the controller port.
func (c *Client) Port() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Port
}

// SetPort replaces the controller port.
func (c *Client) SetPort(port int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Port = port
}

// Protocol returns the transport protocol, http or https.
func (c *Client) Protocol() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.Protocol
}

// User returns the login used for basic authentication.
func (c *Client) User() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings.User
}

// SetPassword replaces the basic authentication password.
func (c *Client) SetPassword(password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.settings.Password = password
}

// URL returns the controller base URL in display form, including the
// user when one is configured.
func (c *Client) URL() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.settings.User != "" {
		return fmt.Sprintf("%s://%s@%s:%d", c.settings.Protocol, c.settings.User, c.settings.Host, c.settings.Port)
	}
	return fmt.Sprintf("%s://%s:%d", c.settings.Protocol, c.settings.Host, c.settings.Port)
}

// Connected reports whether the version handshake has succeeded.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Close marks the connection as down. The next query triggers a fresh
// handshake.
func (c *Client) Close() {
	c.connected.Store(false)
}

// bracketHost wraps IPv6 literals in brackets for use in a URL. An
// embedded zone id ("fe80::1%eth0") is stripped before parsing and
// discarded from the bracketed form. Anything that does not parse as
// IPv6 is returned untouched.
func bracketHost(host string) string {
	h := host
	if i := strings.LastIndex(h, "%"); i != -1 {
		h = h[:i]
	}

	addr, err := netip.ParseAddr(h)
	if err != nil || !addr.Is6() || addr.Is4In6() {
		return host
	}

	return "[" + h + "]"
}

// pinnedTransport returns an HTTP transport that accepts exactly one
// server certificate: the one whose SHA-256 digest matches the pinned
// value. Colons in the digest are ignored so OpenSSL-style output can
// be pasted as-is.
func pinnedTransport(digest string) *http.Transport {
	t, ok := http.DefaultTransport.(*http.Transport)
	if ok {
		t = t.Clone()
	} else {
		t = &http.Transport{}
	}

	want := strings.ToLower(strings.ReplaceAll(digest, ":", ""))
	t.TLSClientConfig = &tls.Config{
		InsecureSkipVerify: true,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			if len(rawCerts) == 0 {
				return errors.New("server presented no certificate")
			}

			sum := sha256.Sum256(rawCerts[0])
			if hex.EncodeToString(sum[:]) != want {
				return fmt.Errorf("server certificate digest %s does not match pinned digest %s",
					hex.EncodeToString(sum[:]), want)
			}

			return nil
		},
	}

	return t
}
