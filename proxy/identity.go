package proxy

import (
	"fmt"
	"net/url"
	"strings"
)

// Identity is one egress proxy. Endpoint is the proxy URL and is the key its
// statistics are recorded under; credentials are optional.
type Identity struct {
	Endpoint string `json:"endpoint" mapstructure:"server"`
	Username string `json:"username,omitempty" mapstructure:"username"`
	Password string `json:"-" mapstructure:"password"`
}

// ParseIdentity parses "scheme://[user:pass@]host:port". Credentials found in
// the URL move to Username/Password and are stripped from Endpoint. A bare
// "host:port" is treated as an http proxy.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Identity{}, fmt.Errorf("proxy: empty proxy address")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Identity{}, fmt.Errorf("proxy: parse %q: %w", redact(raw), err)
	}
	if u.Host == "" {
		return Identity{}, fmt.Errorf("proxy: missing host in %q", redact(raw))
	}
	switch u.Scheme {
	case "http", "https", "socks5", "socks5h":
	default:
		return Identity{}, fmt.Errorf("proxy: unsupported scheme %q", u.Scheme)
	}

	id := Identity{Endpoint: u.Scheme + "://" + u.Host}
	if u.User != nil {
		id.Username = u.User.Username()
		id.Password, _ = u.User.Password()
	}
	return id, nil
}

// URL returns the proxy URL with credentials applied. Credentials already
// embedded in Endpoint take precedence.
func (id Identity) URL() (*url.URL, error) {
	u, err := url.Parse(id.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("proxy: parse endpoint: %w", err)
	}
	if u.User == nil && id.Username != "" {
		u.User = url.UserPassword(id.Username, id.Password)
	}
	return u, nil
}

// String returns the endpoint with any password redacted.
func (id Identity) String() string {
	return redact(id.Endpoint)
}

// IsZero reports whether the identity is empty.
func (id Identity) IsZero() bool {
	return id.Endpoint == ""
}

// redact masks the password in raw. Gateway suffixes such as
// "_country-us_session-7" are kept so sticky sessions stay distinguishable.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	password, ok := u.User.Password()
	if !ok {
		return raw
	}
	masked := "xxxxx"
	if i := strings.Index(password, "_"); i >= 0 {
		masked += password[i:]
	}
	u.User = url.UserPassword(u.User.Username(), masked)
	return u.String()
}
