package httpsig

import (
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

// Kind tells request providers from response providers.
type Kind int

const (
	// KindRequest marks providers backed by an HTTP request.
	KindRequest Kind = iota + 1

	// KindResponse marks providers backed by an HTTP response.
	KindResponse
)

// String returns "request" or "response".
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Provider resolves component values from a single message snapshot.
//
// ComponentValue is the single resolution entry point used by
// CreateSignatureBase. It returns the value and true when the component is
// present, false when it is absent, and an error when the provider cannot
// serve the component at all.
//
// A Provider is a read-only view. The underlying message must not change
// while a signature base is being built from it.
type Provider interface {
	// Kind reports which message kind the provider serves.
	Kind() Kind

	// Field returns the combined value of an HTTP field. The lookup is
	// case-insensitive.
	Field(name string) (string, bool)

	// ComponentValue resolves a component identifier.
	ComponentValue(c Component) (string, bool, error)
}

// RequestProvider serves components of an HTTP request: all derived
// request components and header fields. @status is rejected.
type RequestProvider struct {
	method string
	uri    *url.URL
	header http.Header
}

// NewRequestProvider returns a provider for a request with the given method,
// absolute target URI and header fields. The URI and header are read, never
// modified.
func NewRequestProvider(method string, uri *url.URL, header http.Header) *RequestProvider {
	if uri == nil {
		uri = &url.URL{}
	}

	return &RequestProvider{
		method: method,
		uri:    uri,
		header: header,
	}
}

// Kind returns KindRequest.
func (p *RequestProvider) Kind() Kind { return KindRequest }

// Method returns the request method in uppercase.
func (p *RequestProvider) Method() string {
	return strings.ToUpper(p.method)
}

// Authority returns the lowercased authority (host[:port]) of the target URI.
func (p *RequestProvider) Authority() string {
	return strings.ToLower(p.uri.Host)
}

// Scheme returns the lowercased scheme of the target URI.
func (p *RequestProvider) Scheme() string {
	return strings.ToLower(p.uri.Scheme)
}

// TargetURI returns the full absolute target URI.
func (p *RequestProvider) TargetURI() string {
	return p.uri.String()
}

// Path returns the escaped URI path. An empty path is "/".
func (p *RequestProvider) Path() string {
	path := p.uri.EscapedPath()
	if path == "" {
		return "/"
	}

	return path
}

// Query returns "?" followed by the raw query string. The "?" is present
// even when the request has no query.
func (p *RequestProvider) Query() string {
	return "?" + p.uri.RawQuery
}

// RequestTarget returns the path followed by "?" and the raw query when the
// target URI carries a query.
func (p *RequestProvider) RequestTarget() string {
	if p.uri.RawQuery != "" || p.uri.ForceQuery {
		return p.Path() + "?" + p.uri.RawQuery
	}

	return p.Path()
}

// QueryParam decodes the query string as form-encoded pairs and returns the
// re-encoded value of the single pair called name. No match reports false;
// more than one match is an ErrAmbiguousQueryParam error.
//
// Pairs are split on "&" only. A pair that does not unescape is compared
// and returned in its raw form, so unrelated malformed pairs never fail the
// lookup.
func (p *RequestProvider) QueryParam(name string) (string, bool, error) {
	name = queryUnescape(name)

	var matches []string

	for pair := range strings.SplitSeq(p.uri.RawQuery, "&") {
		if pair == "" {
			continue
		}

		key, value, _ := strings.Cut(pair, "=")
		if queryUnescape(key) == name {
			matches = append(matches, queryUnescape(value))
		}
	}

	switch len(matches) {
	case 0:
		return "", false, nil
	case 1:
		return encodeQueryValue(matches[0]), true, nil
	default:
		return "", false, fmt.Errorf("%w: %d parameters named %q", ErrAmbiguousQueryParam, len(matches), name)
	}
}

// Field returns the combined value of the named header field.
func (p *RequestProvider) Field(name string) (string, bool) {
	return combineFieldValues(p.header, name)
}

// ComponentValue resolves c against the request.
func (p *RequestProvider) ComponentValue(c Component) (string, bool, error) {
	if err := c.Validate(); err != nil {
		return "", false, err
	}

	if c.IsRequestBound() {
		return "", false, fmt.Errorf("%w: %s is only valid on responses", ErrUnsupportedComponent, c)
	}

	if !c.IsDerived() {
		v, ok := p.Field(c.Name())
		return v, ok, nil
	}

	switch c.Name() {
	case ComponentMethod:
		return p.Method(), true, nil
	case ComponentAuthority:
		return p.Authority(), true, nil
	case ComponentScheme:
		return p.Scheme(), true, nil
	case ComponentTargetURI:
		return p.TargetURI(), true, nil
	case ComponentRequestTarget:
		return p.RequestTarget(), true, nil
	case ComponentPath:
		return p.Path(), true, nil
	case ComponentQuery:
		return p.Query(), true, nil
	case ComponentQueryParam:
		name, _ := c.Param(ParamName)
		return p.QueryParam(name.(string))
	case ComponentStatus:
		return "", false, fmt.Errorf("%w: derived component %s not supported on a request", ErrUnsupportedComponent, c.Name())
	default:
		return "", false, fmt.Errorf("%w: %s", ErrUnsupportedComponent, c.Name())
	}
}

// ResponseProvider serves components of an HTTP response: @status and
// header fields. Components tagged with req are delegated to the associated
// request provider.
type ResponseProvider struct {
	status  int
	header  http.Header
	request Provider
}

// NewResponseProvider returns a provider for a response with the given
// status code and header fields.
func NewResponseProvider(status int, header http.Header) *ResponseProvider {
	return &ResponseProvider{
		status: status,
		header: header,
	}
}

// SetRequestProvider links the request the response answers. The provider
// is referenced, not copied.
func (p *ResponseProvider) SetRequestProvider(req Provider) *ResponseProvider {
	p.request = req
	return p
}

// RequestProvider returns the associated request provider, or nil.
func (p *ResponseProvider) RequestProvider() Provider {
	return p.request
}

// Kind returns KindResponse.
func (p *ResponseProvider) Kind() Kind { return KindResponse }

// Status returns the decimal status code.
func (p *ResponseProvider) Status() string {
	return strconv.Itoa(p.status)
}

// Field returns the combined value of the named header field.
func (p *ResponseProvider) Field(name string) (string, bool) {
	return combineFieldValues(p.header, name)
}

// ComponentValue resolves c against the response, or against the
// associated request when c carries req.
func (p *ResponseProvider) ComponentValue(c Component) (string, bool, error) {
	if err := c.Validate(); err != nil {
		return "", false, err
	}

	if c.IsRequestBound() {
		if p.request == nil {
			return "", false, fmt.Errorf("%w: cannot resolve %s", ErrNoAssociatedRequest, c)
		}

		return p.request.ComponentValue(c.withoutParam(ParamReq))
	}

	if !c.IsDerived() {
		v, ok := p.Field(c.Name())
		return v, ok, nil
	}

	switch c.Name() {
	case ComponentStatus:
		return p.Status(), true, nil
	case ComponentMethod, ComponentAuthority, ComponentScheme, ComponentTargetURI,
		ComponentRequestTarget, ComponentPath, ComponentQuery, ComponentQueryParam:
		return "", false, fmt.Errorf("%w: derived component %s not supported on a response", ErrUnsupportedComponent, c.Name())
	default:
		return "", false, fmt.Errorf("%w: %s", ErrUnsupportedComponent, c.Name())
	}
}

// combineFieldValues joins every occurrence of a field with ", ", trimming
// optional whitespace from each occurrence. Values under the canonical key
// come first, in encounter order, followed by keys that were stored without
// canonicalization, sorted.
func combineFieldValues(h http.Header, name string) (string, bool) {
	canonical := http.CanonicalHeaderKey(name)
	values := append([]string(nil), h[canonical]...)

	var keys []string
	for k := range h {
		if k != canonical && strings.EqualFold(k, name) {
			keys = append(keys, k)
		}
	}

	slices.Sort(keys)

	for _, k := range keys {
		values = append(values, h[k]...)
	}

	if len(values) == 0 {
		return "", false
	}

	trimmed := make([]string, len(values))
	for i, v := range values {
		trimmed[i] = strings.Trim(v, " \t")
	}

	return strings.Join(trimmed, ", "), true
}

// queryUnescape decodes a form-encoded name or value, returning s unchanged
// when it carries an invalid escape.
func queryUnescape(s string) string {
	if decoded, err := url.QueryUnescape(s); err == nil {
		return decoded
	}

	return s
}

// encodeQueryValue percent-encodes everything but unreserved characters.
// Spaces become %20.
func encodeQueryValue(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}
