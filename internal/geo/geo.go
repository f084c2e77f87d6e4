// Package geo resolves a visitor's country from their IP address. Lookups
// never fail: any problem yields Unknown.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	metrics "github.com/hashicorp/go-metrics"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

// Unknown is returned when the country cannot be determined.
const Unknown = "Unknown"

// Resolver maps an IP address to a country name.
type Resolver interface {
	Country(ctx context.Context, ip string) string
}

// Options configures an IPAPI resolver.
type Options struct {
	Endpoint   string // e.g. http://ip-api.com/json/
	Timeout    time.Duration
	CacheSize  int
	CacheTTL   time.Duration
	HTTPClient *http.Client
	Logger     hclog.Logger
}

// IPAPI resolves countries through an ip-api.com compatible JSON endpoint.
// Successful lookups are cached per IP; concurrent lookups for the same IP
// share one request.
type IPAPI struct {
	endpoint string
	client   *http.Client
	cache    *expirable.LRU[string, string]
	timeout  time.Duration
	group    singleflight.Group
	logger   hclog.Logger
}

type lookupResponse struct {
	Status  string `json:"status"`
	Country string `json:"country"`
	Message string `json:"message"`
}

// NewIPAPI returns a resolver for the given options.
func NewIPAPI(opts Options) *IPAPI {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = hclog.NewNullLogger()
	}
	r := &IPAPI{
		endpoint: opts.Endpoint,
		client:   opts.HTTPClient,
		timeout:  opts.Timeout,
		logger:   opts.Logger.Named("geo"),
	}
	if opts.CacheSize > 0 {
		r.cache = expirable.NewLRU[string, string](opts.CacheSize, nil, opts.CacheTTL)
	}
	return r
}

// Country implements Resolver. An empty ip asks the provider to resolve the
// caller's own address. A shared lookup is not cancelled with the caller that
// started it; a caller whose ctx ends first gets Unknown on its own.
func (r *IPAPI) Country(ctx context.Context, ip string) string {
	metrics.IncrCounter([]string{"geo", "lookup"}, 1)
	if r.cache != nil {
		if country, ok := r.cache.Get(ip); ok {
			return country
		}
	}

	ch := r.group.DoChan(ip, func() (any, error) {
		lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()

		country, err := r.lookup(lookupCtx, ip)
		if err != nil {
			r.logger.Warn("geolocation error", "ip", ip, "error", err)
			return Unknown, nil
		}
		if r.cache != nil && country != Unknown {
			r.cache.Add(ip, country)
		}
		return country, nil
	})

	select {
	case res := <-ch:
		return res.Val.(string)
	case <-ctx.Done():
		return Unknown
	}
}

func (r *IPAPI) lookup(ctx context.Context, ip string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+url.PathEscape(ip), nil)
	if err != nil {
		return "", err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if body.Status != "success" || body.Country == "" {
		r.logger.Debug("lookup unsuccessful", "ip", ip, "status", body.Status, "message", body.Message)
		return Unknown, nil
	}
	return body.Country, nil
}

// ClientIP extracts the visitor address from r: the first X-Forwarded-For
// entry if present, else the remote address. Loopback addresses map to the
// empty string.
func ClientIP(r *http.Request) string {
	ip := r.RemoteAddr
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	if ip == "::1" || ip == "127.0.0.1" {
		return ""
	}
	return ip
}

// Static always returns the same country. Useful for tests and offline runs.
type Static string

// Country implements Resolver.
func (s Static) Country(context.Context, string) string { return string(s) }
