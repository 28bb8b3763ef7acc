package httpsig

import (
	"net/http"

	slogcontext "github.com/veqryn/slog-context"
)

// TransportConfig configures a signing Transport.
type TransportConfig struct {
	// Sign configures how outgoing requests are signed.
	Sign SignConfig

	// VerifyResponses, when set, verifies the signature of every response
	// before it is handed back. A response that fails verification is
	// closed and the error returned.
	VerifyResponses *VerifyConfig
}

// Transport is an http.RoundTripper that signs outgoing requests using
// HTTP Message Signatures (RFC 9421) and can verify signed responses.
type Transport struct {
	base   http.RoundTripper
	config TransportConfig
}

// NewTransport creates a signing Transport that delegates to base after
// signing each request. When base is nil, a clone of http.DefaultTransport
// is used, giving an independent connection pool with default proxy, TLS,
// and timeout settings.
//
//	base := &http.Transport{
//	    Proxy:           http.ProxyFromEnvironment,
//	    TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS13},
//	}
//	transport := httpsig.NewTransport(base, httpsig.TransportConfig{
//	    Sign: httpsig.SignConfig{Signer: signer},
//	})
func NewTransport(base http.RoundTripper, cfg TransportConfig) *Transport {
	if base == nil {
		base = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Transport{
		base:   base,
		config: cfg,
	}
}

// RoundTrip signs a clone of the request and delegates to the base
// transport. When GetBody is available, the clone receives its own body
// copy so that digest computation does not consume the caller's body.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if clone.Body != nil && req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}

		clone.Body = body
	}

	if err := SignRequest(clone, t.config.Sign); err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(clone)
	if err != nil {
		return nil, err
	}

	if t.config.VerifyResponses == nil {
		return resp, nil
	}

	if resp.Request == nil {
		resp.Request = clone
	}

	if err := VerifyResponse(resp, *t.config.VerifyResponses); err != nil {
		slogcontext.FromCtx(req.Context()).DebugContext(req.Context(), "httpsig: response rejected",
			"status", resp.StatusCode,
			"error", err,
		)

		resp.Body.Close()

		return nil, err
	}

	return resp, nil
}
