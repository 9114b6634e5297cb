package sync

import (
	"context"
	"net"
	"net/url"
	"time"

	"github.com/julianstephens/progressquest/internal/constants"
)

// Connectivity reports whether the goal service is reachable.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Static is a fixed answer, used for --offline and in tests.
type Static bool

func (s Static) Online(context.Context) bool {
	return bool(s)
}

// DialProbe treats a successful TCP connect to the server as online.
type DialProbe struct {
	Addr    string
	Timeout time.Duration
}

// NewDialProbe probes the host of serverURL, defaulting the port from the scheme.
func NewDialProbe(serverURL *url.URL) *DialProbe {
	host := serverURL.Hostname()
	port := serverURL.Port()
	if port == "" {
		port = "443"
		if serverURL.Scheme == "http" {
			port = "80"
		}
	}
	return &DialProbe{Addr: net.JoinHostPort(host, port), Timeout: constants.ConnectivityTimeout}
}

func (p *DialProbe) Online(ctx context.Context) bool {
	d := net.Dialer{Timeout: p.Timeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}
