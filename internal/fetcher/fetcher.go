// Package fetcher handles raw HTTP fetching with redirect tracking. It
// is the fallback path when JavaScript rendering is disabled or fails.
package fetcher

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/demoforge/mirror/internal/auth"
)

const (
	maxRedirects = 10
	maxBodySize  = 10 << 20
)

// Response represents the result of fetching a URL.
type Response struct {
	// Original requested URL
	RequestURL string

	// Final URL after redirects
	FinalURL string

	// HTTP status code of the final response
	StatusCode int

	// Content-Type without parameters
	ContentType string

	// Response body
	Body []byte

	// URLs visited through redirects, in order
	RedirectChain []string

	// Total fetch duration
	ResponseTime time.Duration

	// Error, if the fetch failed
	Error error

	// Whether the failure is transient (timeout, reset, 5xx)
	Transient bool
}

// Fetcher performs HTTP GETs with manual redirect tracking.
type Fetcher struct {
	client    *http.Client
	userAgent string
	creds     *auth.Credentials
}

// New creates a fetcher.
func New(timeout time.Duration, userAgent string) *Fetcher {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Fetcher{
		client: &http.Client{
			Transport: transport,
			Timeout:   timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects are followed manually to record the chain.
				return http.ErrUseLastResponse
			},
		},
		userAgent: userAgent,
	}
}

// Fetch fetches a URL, following redirects while recording the chain.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) *Response {
	start := time.Now()
	response := &Response{RequestURL: rawURL}

	currentURL := rawURL
	for i := 0; i <= maxRedirects; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, currentURL, nil)
		if err != nil {
			response.Error = fmt.Errorf("failed to create request: %w", err)
			response.FinalURL = currentURL
			return response
		}
		f.setHeaders(req)

		resp, err := f.client.Do(req)
		if err != nil {
			response.Error = categorizeError(err)
			response.Transient = isTransient(err)
			response.FinalURL = currentURL
			return response
		}

		if resp.StatusCode >= 300 && resp.StatusCode < 400 {
			location := resp.Header.Get("Location")
			resp.Body.Close()

			if location == "" {
				response.FinalURL = currentURL
				response.StatusCode = resp.StatusCode
				return response
			}
			next, err := resolveRedirect(currentURL, location)
			if err != nil {
				response.Error = fmt.Errorf("invalid redirect location: %w", err)
				response.FinalURL = currentURL
				response.StatusCode = resp.StatusCode
				return response
			}
			response.RedirectChain = append(response.RedirectChain, currentURL)
			currentURL = next
			continue
		}

		response.FinalURL = currentURL
		response.StatusCode = resp.StatusCode
		response.ContentType = stripParams(resp.Header.Get("Content-Type"))
		response.Transient = resp.StatusCode >= 500

		body, err := readBody(resp)
		resp.Body.Close()
		if err != nil {
			response.Error = fmt.Errorf("failed to read body: %w", err)
			response.Transient = true
		} else {
			response.Body = body
		}

		response.ResponseTime = time.Since(start)
		return response
	}

	response.Error = fmt.Errorf("max redirects (%d) exceeded", maxRedirects)
	response.FinalURL = currentURL
	return response
}

// SetCredentials attaches credentials applied to every request.
func (f *Fetcher) SetCredentials(creds *auth.Credentials) {
	f.creds = creds
}

func (f *Fetcher) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip")
	f.creds.Apply(req)
}

// Close releases idle connections.
func (f *Fetcher) Close() {
	if transport, ok := f.client.Transport.(*http.Transport); ok {
		transport.CloseIdleConnections()
	}
}

func readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode error: %w", err)
		}
		defer gzReader.Close()
		reader = gzReader
	}
	return io.ReadAll(io.LimitReader(reader, maxBodySize))
}

func resolveRedirect(baseURL, location string) (string, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	loc, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(loc).String(), nil
}

func stripParams(contentType string) string {
	if idx := strings.Index(contentType, ";"); idx != -1 {
		return strings.TrimSpace(contentType[:idx])
	}
	return strings.TrimSpace(contentType)
}

func categorizeError(err error) error {
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return fmt.Errorf("timeout: %w", err)
	}
	if _, ok := err.(*net.DNSError); ok {
		return fmt.Errorf("DNS error: %w", err)
	}
	return err
}

func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if netErr, ok := err.(net.Error); ok && netErr.Timeout() {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{"connection reset", "connection refused", "eof", "broken pipe"} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
