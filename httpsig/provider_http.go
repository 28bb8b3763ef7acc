package httpsig

import (
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/net/http/httpguts"
)

// RequestProviderFromHTTP returns a provider over a snapshot of r.
//
// Server-side requests carry only a path in r.URL, so the absolute target
// URI is rebuilt from r.Host (or r.URL.Host) and the connection's TLS state.
// net/http keeps the Host header out of r.Header; the snapshot restores it
// so "host" can be covered like any other field.
func RequestProviderFromHTTP(r *http.Request) (*RequestProvider, error) {
	if r.URL == nil {
		return nil, fmt.Errorf("%w: request has no URL", ErrInvalidMessage)
	}

	host := requestHost(r)
	if host != "" && !httpguts.ValidHostHeader(host) {
		return nil, fmt.Errorf("%w: invalid host %q", ErrInvalidMessage, host)
	}

	uri := *r.URL
	uri.Scheme = requestScheme(r)
	uri.Host = host
	uri.User = nil
	uri.Fragment = ""
	uri.RawFragment = ""

	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}

	if host != "" && len(header.Values("Host")) == 0 {
		header.Set("Host", host)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	return NewRequestProvider(method, &uri, header), nil
}

// ResponseProviderFromHTTP returns a provider over a snapshot of resp. When
// resp.Request is set it becomes the associated request, so req-tagged
// components resolve against it.
func ResponseProviderFromHTTP(resp *http.Response) (*ResponseProvider, error) {
	p := NewResponseProvider(resp.StatusCode, resp.Header.Clone())

	if resp.Request != nil {
		req, err := RequestProviderFromHTTP(resp.Request)
		if err != nil {
			return nil, err
		}

		p.SetRequestProvider(req)
	}

	return p, nil
}

// requestHost returns the authority (host[:port]) of the request.
func requestHost(r *http.Request) string {
	if r.Host != "" {
		return r.Host
	}

	return r.URL.Host
}

// requestScheme returns the request scheme (http or https).
func requestScheme(r *http.Request) string {
	if r.URL.Scheme != "" {
		return strings.ToLower(r.URL.Scheme)
	}

	if r.TLS != nil {
		return "https"
	}

	return "http"
}
