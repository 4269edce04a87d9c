package probe

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/lookout-hq/lookout/internal/models"
)

const defaultUserAgent = "lookout-monitor/1.0"

// maxTimeout caps per-endpoint timeout overrides so a misconfigured endpoint
// cannot pin a worker.
const maxTimeout = 120 * time.Second

// Options configures the shared prober.
type Options struct {
	Workers     int           // sizes the connection pool at 2x workers
	Timeout     time.Duration // default per-request timeout
	RetryDelay  time.Duration // pause between the first attempt and the retry
	DNSCacheTTL time.Duration
}

// Prober performs HTTP checks for the whole worker pool through one
// connection-pooled client.
type Prober struct {
	client  *http.Client
	dns     *dnsCache
	timeout time.Duration
	delay   time.Duration
	logger  *slog.Logger
}

// New builds the prober. All workers share the returned instance; the
// transport caps total and per-host connections so a slow fleet cannot
// exhaust sockets.
func New(opts Options, logger *slog.Logger) *Prober {
	if opts.Workers <= 0 {
		opts.Workers = 12
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.DNSCacheTTL <= 0 {
		opts.DNSCacheTTL = 5 * time.Minute
	}

	dns := newDNSCache(opts.DNSCacheTTL)

	// Total concurrency is bounded by the worker count, since each worker
	// runs one check at a time. MaxIdleConns sizes the keep-alive pool, not
	// that bound; only MaxConnsPerHost limits live connections, per host.
	transport := &http.Transport{
		DialContext:         dns.DialContext,
		MaxConnsPerHost:     10,
		MaxIdleConns:        opts.Workers * 2,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}

	return &Prober{
		client:  &http.Client{Transport: transport},
		dns:     dns,
		timeout: opts.Timeout,
		delay:   opts.RetryDelay,
		logger:  logger,
	}
}

// Close releases the DNS cache and idle connections.
func (p *Prober) Close() {
	p.dns.stop()
	p.client.CloseIdleConnections()
}

// Check probes one endpoint and returns exactly one CheckResult, no matter
// how many attempts were made. A failed first attempt is retried once after
// the retry delay, unless the failure cannot succeed on retry (malformed
// URL, unresolvable host).
func (p *Prober) Check(ctx context.Context, rec models.EndpointRecord) models.CheckResult {
	result, retryable := p.attempt(ctx, rec)
	if result.Success || !retryable {
		return result
	}

	p.logger.Debug("check failed, retrying",
		slog.String("endpoint_id", rec.ID),
		slog.String("url", rec.URL))

	select {
	case <-time.After(p.delay):
	case <-ctx.Done():
		return result
	}

	result, _ = p.attempt(ctx, rec)
	return result
}

// attempt performs one HTTP request. The second return value reports whether
// a retry could plausibly change the outcome.
func (p *Prober) attempt(ctx context.Context, rec models.EndpointRecord) (models.CheckResult, bool) {
	result := models.CheckResult{
		EndpointID: rec.ID,
		CheckedAt:  time.Now(),
	}

	reqCtx, cancel := context.WithTimeout(ctx, p.timeoutFor(rec))
	defer cancel()

	method := rec.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(rec.Body) > 0 {
		body = bytes.NewReader(rec.Body)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(reqCtx, method, rec.URL, body)
	if err != nil {
		result.LatencyMS = time.Since(start).Milliseconds()
		msg := err.Error()
		result.Error = &msg
		return result, false
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	for k, v := range rec.Headers {
		req.Header.Set(k, v)
	}

	res, err := p.client.Do(req)
	result.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		msg := probeErrorMessage(err)
		result.Error = &msg
		return result, !permanent(err)
	}
	io.Copy(io.Discard, io.LimitReader(res.Body, 4096))
	res.Body.Close()

	code := res.StatusCode
	result.StatusCode = &code
	result.Success = statusOK(rec, code)
	if !result.Success {
		msg := "unexpected status " + res.Status
		result.Error = &msg
	}
	return result, true
}

func (p *Prober) timeoutFor(rec models.EndpointRecord) time.Duration {
	if rec.TimeoutSeconds <= 0 {
		return p.timeout
	}
	return min(time.Duration(rec.TimeoutSeconds)*time.Second, maxTimeout)
}

// statusOK: an explicit ExpectedStatus must match exactly; otherwise any 2xx
// counts as healthy.
func statusOK(rec models.EndpointRecord, code int) bool {
	if rec.ExpectedStatus > 0 {
		return code == rec.ExpectedStatus
	}
	return code >= 200 && code <= 299
}

func probeErrorMessage(err error) string {
	var urlErr *url.Error
	if errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &urlErr) && urlErr.Timeout()) {
		return "request timeout"
	}
	return err.Error()
}

// permanent reports failures no retry can fix: the host does not resolve.
func permanent(err error) bool {
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr) && dnsErr.IsNotFound
}
