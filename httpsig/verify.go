package httpsig

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/dunglas/httpsfv"
	slogcontext "github.com/veqryn/slog-context"
)

// KeyResolver returns a Verifier for the given key ID and algorithm.
// It is called during verification to look up the appropriate key.
// The request is provided for context (e.g., to select keys based on
// the request host or path). When a response is verified, the request is
// the one the response answers and may be nil.
//
// alg is AlgorithmFromKey when the signature does not name an algorithm.
type KeyResolver func(r *http.Request, keyID string, alg Algorithm) (Verifier, error)

// VerifyConfig configures HTTP message signature verification per RFC 9421.
type VerifyConfig struct {
	// Resolver looks up a Verifier for a given key ID and algorithm.
	// Required.
	Resolver KeyResolver

	// Label identifies which signature to verify. When empty, the first
	// signature found in the Signature-Input header is used.
	Label string

	// RequiredComponents lists component identifiers that must be covered
	// by the signature. Bare names match any parameters; serialized
	// identifiers must match exactly.
	RequiredComponents []string

	// MaxAge is the maximum acceptable age of the signature. When non-zero,
	// signatures older than MaxAge are rejected. Requires the "created"
	// parameter in the signature.
	MaxAge time.Duration

	// RequireDigest, when true, requires a Content-Digest header and
	// verifies it against the body before signature verification.
	RequireDigest bool
}

// VerifyRequest verifies an HTTP request signature per RFC 9421.
func VerifyRequest(r *http.Request, cfg VerifyConfig) error {
	if cfg.Resolver == nil {
		return ErrNoResolver
	}

	if cfg.RequireDigest {
		if err := VerifyContentDigest(r); err != nil {
			return err
		}
	}

	provider, err := RequestProviderFromHTTP(r)
	if err != nil {
		return err
	}

	return verifyMessage(r.Context(), r, r.Header, provider, cfg)
}

// VerifyResponse verifies an HTTP response signature. When resp.Request is
// set, req-tagged components resolve against it.
func VerifyResponse(resp *http.Response, cfg VerifyConfig) error {
	if cfg.Resolver == nil {
		return ErrNoResolver
	}

	if cfg.RequireDigest {
		if err := VerifyResponseContentDigest(resp); err != nil {
			return err
		}
	}

	provider, err := ResponseProviderFromHTTP(resp)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if resp.Request != nil {
		ctx = resp.Request.Context()
	}

	return verifyMessage(ctx, resp.Request, resp.Header, provider, cfg)
}

func verifyMessage(ctx context.Context, r *http.Request, h http.Header, provider Provider, cfg VerifyConfig) error {
	inputs := h.Values(HeaderSignatureInput)
	if len(inputs) == 0 {
		return ErrSignatureNotFound
	}

	inputDict, err := httpsfv.UnmarshalDictionary(inputs)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedInput, HeaderSignatureInput, err)
	}

	label := cfg.Label
	if label == "" {
		names := inputDict.Names()
		if len(names) == 0 {
			return ErrSignatureNotFound
		}

		label = names[0]
	}

	params, err := FromDictionaryEntry(inputDict, label)
	if err != nil {
		return err
	}

	if err := checkRequiredComponents(params, cfg.RequiredComponents); err != nil {
		return err
	}

	if err := checkTimes(params, cfg.MaxAge); err != nil {
		return err
	}

	sig, err := signatureValue(h, label)
	if err != nil {
		return err
	}

	alg, ok := params.Alg()
	if !ok {
		alg = AlgorithmFromKey
	}

	keyID, _ := params.KeyID()

	verifier, err := cfg.Resolver(r, keyID, alg)
	if err != nil {
		return err
	}

	if verifier == nil {
		return fmt.Errorf("%w: resolver returned no verifier for %q", ErrInvalidKey, keyID)
	}

	if !alg.IsDerived() && !verifier.Algorithm().IsDerived() && verifier.Algorithm() != alg {
		return fmt.Errorf("%w: signature uses %s, key uses %s", ErrAlgorithmNotAllowed, alg, verifier.Algorithm())
	}

	base, err := CreateSignatureBase(params, provider)
	if err != nil {
		return err
	}

	logger := slogcontext.FromCtx(ctx).With(
		"kind", provider.Kind().String(),
		"label", label,
		"keyid", keyID,
	)

	valid, err := verifier.Verify(base, sig)
	if err != nil {
		return err
	}

	if !valid {
		logger.DebugContext(ctx, "httpsig: signature mismatch", "signature_base", string(base))
		return fmt.Errorf("%w: signature %q", ErrSignatureInvalid, label)
	}

	logger.DebugContext(ctx, "httpsig: signature verified")

	return nil
}

func checkRequiredComponents(params *Parameters, required []string) error {
	for _, name := range required {
		c, err := parseCoveredComponent(name)
		if err != nil {
			return err
		}

		covered := params.ContainsComponent(c.Name())
		if len(c.ParamNames()) > 0 {
			covered = params.ContainsComponentIdentifier(c)
		}

		if !covered {
			return fmt.Errorf("%w: %s", ErrComponentNotCovered, c)
		}
	}

	return nil
}

func checkTimes(params *Parameters, maxAge time.Duration) error {
	now := time.Now()

	if expires, ok := params.Expires(); ok && now.After(expires) {
		return ErrSignatureExpired
	}

	if maxAge > 0 {
		created, ok := params.Created()
		if !ok {
			return ErrCreatedRequired
		}

		age := now.Sub(created)
		if age < 0 || age > maxAge {
			return ErrSignatureExpired
		}
	}

	return nil
}

// signatureValue returns the decoded byte sequence of signature label.
func signatureValue(h http.Header, label string) ([]byte, error) {
	values := h.Values(HeaderSignature)
	if len(values) == 0 {
		return nil, ErrSignatureNotFound
	}

	dict, err := httpsfv.UnmarshalDictionary(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, HeaderSignature, err)
	}

	member, ok := dict.Get(label)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrSignatureNotFound, label)
	}

	item, ok := member.(httpsfv.Item)
	if !ok {
		return nil, fmt.Errorf("%w: signature %q must be a byte sequence", ErrMalformedInput, label)
	}

	sig, ok := item.Value.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: signature %q must be a byte sequence", ErrMalformedInput, label)
	}

	return sig, nil
}
