package proxy

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// ResidentialConfig describes a rotating residential proxy gateway that
// takes geo targeting and sticky sessions as password suffixes
// (e.g. "secret_country-us_session-abc").
type ResidentialConfig struct {
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Protocol string `mapstructure:"protocol" validate:"omitempty,oneof=http https socks5"`
	Country  string `mapstructure:"country"`
	State    string `mapstructure:"state"`
	City     string `mapstructure:"city"`
	// Sessions is the number of sticky sessions Pool creates.
	Sessions int `mapstructure:"sessions" validate:"gte=0"`
}

// Targeting narrows the exit location and pins a sticky session.
type Targeting struct {
	Country string
	State   string
	City    string
	Session string
}

// ApplyDefaults fills in the gateway defaults.
func (c *ResidentialConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "geo.iproyal.com"
	}
	if c.Port == 0 {
		c.Port = 12321
	}
	if c.Protocol == "" {
		c.Protocol = "http"
	}
	if c.Sessions <= 0 {
		c.Sessions = 5
	}
}

// IsConfigured reports whether credentials are present.
func (c *ResidentialConfig) IsConfigured() bool {
	return c.Username != "" && c.Password != ""
}

// URL builds the gateway URL for t. Location suffixes are only added when
// the configured password carries no targeting of its own.
func (c *ResidentialConfig) URL(t Targeting) (string, error) {
	if !c.IsConfigured() {
		return "", fmt.Errorf("proxy: residential credentials not configured")
	}

	password := c.Password
	targeted := strings.Contains(password, "_country-") ||
		strings.Contains(password, "_state-") ||
		strings.Contains(password, "_city-")

	if !targeted {
		if t.Country != "" {
			password += "_country-" + strings.ToLower(t.Country)
		}
		if t.State != "" {
			password += "_state-" + slug(t.State)
		}
		if t.City != "" {
			password += "_city-" + slug(t.City)
		}
	}
	if t.Session != "" {
		password += "_session-" + t.Session
	}

	return c.Protocol + "://" + c.Username + ":" + password + "@" + c.Host + ":" + strconv.Itoa(c.Port), nil
}

// Pool builds one identity per sticky session, session0..sessionN-1, all
// targeted at the configured location. Each session is a distinct endpoint
// with its own statistics record.
func (c *ResidentialConfig) Pool() ([]Identity, error) {
	if !c.IsConfigured() {
		return nil, nil
	}

	sessions := c.Sessions
	if sessions <= 0 {
		sessions = 5
	}

	pool := make([]Identity, 0, sessions)
	for i := 0; i < sessions; i++ {
		endpoint, err := c.URL(Targeting{
			Country: c.Country,
			State:   c.State,
			City:    c.City,
			Session: "session" + strconv.Itoa(i),
		})
		if err != nil {
			return nil, err
		}
		pool = append(pool, Identity{Endpoint: endpoint, Username: c.Username, Password: c.Password})
	}
	return pool, nil
}

// NewSessionID returns a random sticky session id suitable for Targeting.
func NewSessionID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func slug(s string) string {
	return strings.ReplaceAll(strings.ToLower(s), " ", "-")
}
