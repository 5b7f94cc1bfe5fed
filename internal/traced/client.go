package traced

import (
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"
)

type NetworkMetrics struct {
	DNS        time.Duration
	ConnWait   time.Duration
	TCP        time.Duration
	TLS        time.Duration
	ReqHeaders time.Duration
	ReqBody    time.Duration
	TTFB       time.Duration
	Download   time.Duration
	Total      time.Duration
	ConnReused bool
}

func (m *NetworkMetrics) Sum() time.Duration {
	return m.ConnWait + m.DNS + m.TCP + m.TLS + m.ReqHeaders + m.ReqBody + m.TTFB + m.Download
}

func (m *NetworkMetrics) String() string {
	return fmt.Sprintf("total=%dms ttfb=%dms body=%dms reused=%v",
		m.Total.Milliseconds(), m.TTFB.Milliseconds(), m.ReqBody.Milliseconds(), m.ConnReused)
}

// FirstNonEmpty returns the first header value present among keys, or "?".
func FirstNonEmpty(h http.Header, keys ...string) string {
	for _, k := range keys {
		if v := h.Get(k); v != "" {
			return v
		}
	}
	return "?"
}

// Client wraps http.Client and records per-phase timings for every request.
type Client struct {
	client *http.Client
}

func NewClient() *Client {
	return &Client{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        4,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				ForceAttemptHTTP2:   true,
			},
		},
	}
}

type Response struct {
	Body       []byte
	StatusCode int
	Header     http.Header
	Metrics    *NetworkMetrics
}

// phaseTimer collects trace timestamps. Transport hooks fire on the
// connection's read and write goroutines, so every field is guarded by mu.
type phaseTimer struct {
	mu                                         sync.Mutex
	m                                          NetworkMetrics
	getConnStart, dnsStart, tcpStart, tlsStart time.Time
	gotConn, wroteHeaders, wroteRequest        time.Time
	firstByte                                  time.Time
}

func (p *phaseTimer) do(f func()) {
	p.mu.Lock()
	f()
	p.mu.Unlock()
}

func (p *phaseTimer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GetConn: func(_ string) { p.do(func() { p.getConnStart = time.Now() }) },
		GotConn: func(info httptrace.GotConnInfo) {
			p.do(func() {
				p.gotConn = time.Now()
				p.m.ConnWait = p.gotConn.Sub(p.getConnStart)
				p.m.ConnReused = info.Reused
			})
		},
		DNSStart:     func(_ httptrace.DNSStartInfo) { p.do(func() { p.dnsStart = time.Now() }) },
		DNSDone:      func(_ httptrace.DNSDoneInfo) { p.do(func() { p.m.DNS = time.Since(p.dnsStart) }) },
		ConnectStart: func(_, _ string) { p.do(func() { p.tcpStart = time.Now() }) },
		ConnectDone: func(_, _ string, _ error) {
			p.do(func() { p.m.TCP = time.Since(p.tcpStart) })
		},
		TLSHandshakeStart: func() { p.do(func() { p.tlsStart = time.Now() }) },
		TLSHandshakeDone: func(_ tls.ConnectionState, _ error) {
			p.do(func() { p.m.TLS = time.Since(p.tlsStart) })
		},
		WroteHeaders: func() {
			p.do(func() {
				p.wroteHeaders = time.Now()
				p.m.ReqHeaders = p.wroteHeaders.Sub(p.gotConn)
			})
		},
		WroteRequest: func(_ httptrace.WroteRequestInfo) {
			p.do(func() {
				p.wroteRequest = time.Now()
				p.m.ReqBody = p.wroteRequest.Sub(p.wroteHeaders)
			})
		},
		GotFirstResponseByte: func() {
			p.do(func() {
				p.firstByte = time.Now()
				p.m.TTFB = p.firstByte.Sub(p.wroteRequest)
			})
		},
	}
}

// finish stamps download and total time and returns a copy of the metrics.
func (p *phaseTimer) finish(reqStart time.Time) *NetworkMetrics {
	p.mu.Lock()
	defer p.mu.Unlock()
	m := p.m
	if !p.firstByte.IsZero() {
		m.Download = time.Since(p.firstByte)
	}
	m.Total = time.Since(reqStart)
	return &m
}

func (c *Client) Do(req *http.Request) (*Response, error) {
	timer := &phaseTimer{}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), timer.trace()))
	reqStart := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &Response{
		Body:       body,
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Metrics:    timer.finish(reqStart),
	}, nil
}

// Warm opens a connection to url so the first real request skips the
// handshake. It returns the TLS handshake time, or 0.
func (c *Client) Warm(url string) time.Duration {
	timer := &phaseTimer{}

	req, err := http.NewRequest(http.MethodHead, url, nil)
	if err != nil {
		return 0
	}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), timer.trace()))
	resp, err := c.client.Do(req)
	if err != nil {
		return 0
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return timer.finish(time.Now()).TLS
}
