// Package httpclient provides an outbound HTTP client for user-configured
// webhook targets that refuses to reach loopback and private networks.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/teranos/hireflow/errors"
)

// DefaultMaxRedirects bounds redirect chains followed by SaferClient
const DefaultMaxRedirects = 5

// Options tunes a SaferClient. Zero values take defaults.
type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	// AllowPrivate disables address filtering; tests against httptest servers need it
	AllowPrivate bool
}

// SaferClient wraps http.Client and validates every request URL, every
// redirect hop, and every resolved address before dialing.
type SaferClient struct {
	*http.Client
	opts Options
}

// New builds a SaferClient
func New(opts Options) *SaferClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}

	c := &SaferClient{Client: &http.Client{Timeout: opts.Timeout}, opts: opts}
	c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= c.opts.MaxRedirects {
			return errors.Newf("stopped after %d redirects", c.opts.MaxRedirects)
		}
		return errors.Wrap(c.Check(req.URL), "redirect blocked")
	}

	if !opts.AllowPrivate {
		dialer := &net.Dialer{Timeout: opts.Timeout, KeepAlive: 30 * time.Second}
		c.Transport = &http.Transport{
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				host, port, err := net.SplitHostPort(addr)
				if err != nil {
					return nil, errors.Wrap(err, "invalid address")
				}
				ips, err := net.DefaultResolver.LookupIP(ctx, "ip", host)
				if err != nil {
					return nil, errors.Wrapf(err, "resolve %q", host)
				}
				for _, ip := range ips {
					if IsPrivateIP(ip) {
						return nil, errors.Newf("private address blocked: %s", ip)
					}
				}
				// Dial the checked address so a second lookup cannot rebind
				return dialer.DialContext(ctx, network, net.JoinHostPort(ips[0].String(), port))
			},
			MaxIdleConns:        20,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		}
	}
	return c
}

// Check rejects URLs that are not plain http(s) to a public host
func (c *SaferClient) Check(u *url.URL) error {
	if u == nil {
		return errors.New("missing URL")
	}
	if !slices.Contains([]string{"http", "https"}, strings.ToLower(u.Scheme)) {
		return errors.Newf("scheme %q not allowed", u.Scheme)
	}
	if u.User != nil {
		return errors.New("URL must not carry credentials")
	}
	host := u.Hostname()
	if host == "" {
		return errors.New("URL missing hostname")
	}
	if c.opts.AllowPrivate {
		return nil
	}
	if isLocalhost(host) {
		return errors.New("localhost blocked")
	}
	if ip := net.ParseIP(host); ip != nil && IsPrivateIP(ip) {
		return errors.Newf("private address blocked: %s", host)
	}
	return nil
}

// Parse parses raw and runs Check on it
func (c *SaferClient) Parse(raw string) (*url.URL, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, errors.Wrap(err, "invalid URL")
	}
	if err := c.Check(u); err != nil {
		return nil, err
	}
	return u, nil
}

// Do checks the request URL and sends it
func (c *SaferClient) Do(req *http.Request) (*http.Response, error) {
	if err := c.Check(req.URL); err != nil {
		return nil, errors.Wrap(err, "request blocked")
	}
	return c.Client.Do(req)
}

var blockedNets = func() []*net.IPNet {
	var nets []*net.IPNet
	for _, cidr := range []string{
		"0.0.0.0/8", "10.0.0.0/8", "100.64.0.0/10", "127.0.0.0/8", "169.254.0.0/16",
		"172.16.0.0/12", "192.168.0.0/16", "224.0.0.0/4", "240.0.0.0/4",
		"fc00::/7", "fec0::/10", "2001:db8::/32",
	} {
		_, n, _ := net.ParseCIDR(cidr)
		nets = append(nets, n)
	}
	return nets
}()

// IsPrivateIP reports whether ip is loopback, private, link-local, multicast or reserved
func IsPrivateIP(ip net.IP) bool {
	if ip.IsLoopback() || ip.IsUnspecified() || ip.IsLinkLocalUnicast() || ip.IsMulticast() {
		return true
	}
	if v4 := ip.To4(); v4 != nil {
		ip = v4
	}
	for _, n := range blockedNets {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func isLocalhost(host string) bool {
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	return host == "localhost" || host == "localhost.localdomain" || strings.HasSuffix(host, ".localhost")
}
