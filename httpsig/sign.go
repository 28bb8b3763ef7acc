package httpsig

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"net/http"
	"strings"
	"time"

	slogcontext "github.com/veqryn/slog-context"
)

// nonceSize is the number of random bytes used to generate a nonce.
const nonceSize = 16

// defaultRequestComponents are signed when SignConfig.CoveredComponents is
// empty and a request is signed.
var defaultRequestComponents = []string{ComponentMethod, ComponentAuthority, ComponentPath}

// defaultResponseComponents are signed when SignConfig.CoveredComponents is
// empty and a response is signed.
var defaultResponseComponents = []string{ComponentStatus}

// GenerateNonce returns a cryptographically random nonce string suitable
// for use in SignConfig.Nonce. The returned value is 16 random bytes
// encoded as unpadded base64url (22 characters).
func GenerateNonce() (string, error) {
	b := make([]byte, nonceSize)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// SignConfig configures HTTP message signing per RFC 9421.
type SignConfig struct {
	// Signer produces signatures. Required.
	Signer Signer

	// Label identifies the signature in Signature/Signature-Input headers.
	// When empty, IDGenerator picks one.
	Label string

	// IDGenerator generates a label when Label is empty. Defaults to
	// RandomID.
	IDGenerator IDGenerator

	// CoveredComponents lists the component identifiers to include in the
	// signature base, in order. Entries are either bare names ("@method",
	// "Content-Type") or serialized identifiers (`"@query-param";name="id"`,
	// `"content-digest";req`). Defaults to [@method @authority @path] for
	// requests and [@status] for responses.
	CoveredComponents []string

	// Nonce is an optional nonce value included in signature parameters.
	Nonce string

	// NonceFunc, when Nonce is empty, is called once per signed message to
	// produce its nonce. GenerateNonce is the usual choice.
	NonceFunc func() (string, error)

	// Tag is an optional application-specific tag for the signature.
	Tag string

	// Created sets the signature creation time. When zero, time.Now() is
	// used.
	Created time.Time

	// Expires sets the signature expiration time. When zero, no expiration
	// is set.
	Expires time.Time

	// ExpiresIn, when Expires is zero, sets expires relative to the
	// creation time of each signature.
	ExpiresIn time.Duration

	// DigestAlgorithm, when set, computes a Content-Digest header (RFC 9530)
	// and covers it. The "content-digest" component is added to the covered
	// components if not already present. The header is written only once
	// the signature has been attached.
	DigestAlgorithm DigestAlgorithm
}

// SignRequest signs an HTTP request in-place by adding Signature and
// Signature-Input headers per RFC 9421. Existing signatures are kept.
func SignRequest(r *http.Request, cfg SignConfig) error {
	if cfg.Signer == nil {
		return ErrNoSigner
	}

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	components := cfg.coveredComponents(defaultRequestComponents)

	digest, err := cfg.digest(&r.Body)
	if err != nil {
		return err
	}

	provider, err := RequestProviderFromHTTP(r)
	if err != nil {
		return err
	}

	if digest != "" {
		provider.header.Set(HeaderContentDigest, digest)
	}

	if err := signMessage(r.Context(), r.Header, provider, cfg, components); err != nil {
		return err
	}

	if digest != "" {
		r.Header.Set(HeaderContentDigest, digest)
	}

	return nil
}

// SignResponse signs an HTTP response in-place. When resp.Request is set,
// req-tagged components resolve against it.
func SignResponse(resp *http.Response, cfg SignConfig) error {
	if cfg.Signer == nil {
		return ErrNoSigner
	}

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	components := cfg.coveredComponents(defaultResponseComponents)

	digest, err := cfg.digest(&resp.Body)
	if err != nil {
		return err
	}

	provider, err := ResponseProviderFromHTTP(resp)
	if err != nil {
		return err
	}

	if digest != "" {
		provider.header.Set(HeaderContentDigest, digest)
	}

	ctx := context.Background()
	if resp.Request != nil {
		ctx = resp.Request.Context()
	}

	if err := signMessage(ctx, resp.Header, provider, cfg, components); err != nil {
		return err
	}

	if digest != "" {
		resp.Header.Set(HeaderContentDigest, digest)
	}

	return nil
}

// digest returns the Content-Digest value for body, or "" when digest
// generation is off. The body is replaced by an equivalent in-memory copy.
func (cfg SignConfig) digest(body *io.ReadCloser) (string, error) {
	if cfg.DigestAlgorithm == "" {
		return "", nil
	}

	return bodyDigest(body, cfg.DigestAlgorithm)
}

func signMessage(ctx context.Context, h http.Header, provider Provider, cfg SignConfig, components []string) error {
	params, err := cfg.parameters(components)
	if err != nil {
		return err
	}

	base, err := CreateSignatureBase(params, provider)
	if err != nil {
		return err
	}

	sig, err := cfg.Signer.Sign(base)
	if err != nil {
		return err
	}

	label, err := NewHeaderWrapper(h, cfg.IDGenerator).AddSignature(cfg.Label, params, sig)
	if err != nil {
		return err
	}

	slogcontext.FromCtx(ctx).DebugContext(ctx, "httpsig: message signed",
		"kind", provider.Kind().String(),
		"label", label,
		"keyid", cfg.Signer.KeyID(),
		"alg", cfg.Signer.Algorithm().String(),
		"signature_base", string(base),
	)

	return nil
}

// coveredComponents returns the configured components, or def, with
// content-digest appended when digest generation is enabled.
func (cfg SignConfig) coveredComponents(def []string) []string {
	components := cfg.CoveredComponents
	if len(components) == 0 {
		components = def
	}

	components = append([]string(nil), components...)

	if cfg.DigestAlgorithm != "" && !containsName(components, "content-digest") {
		components = append(components, "content-digest")
	}

	return components
}

// parameters builds the signature parameters in the order alg, created,
// expires, keyid, nonce, tag.
func (cfg SignConfig) parameters(components []string) (*Parameters, error) {
	params := NewParameters()

	for _, name := range components {
		c, err := parseCoveredComponent(name)
		if err != nil {
			return nil, err
		}

		params.AddComponentIdentifier(c)
	}

	created := cfg.Created
	if created.IsZero() {
		created = time.Now()
	}

	params.SetAlg(cfg.Signer.Algorithm())
	params.SetCreated(created)

	switch {
	case !cfg.Expires.IsZero():
		params.SetExpires(cfg.Expires)
	case cfg.ExpiresIn > 0:
		params.SetExpires(created.Add(cfg.ExpiresIn))
	}

	if keyID := cfg.Signer.KeyID(); keyID != "" {
		params.SetKeyID(keyID)
	}

	nonce := cfg.Nonce
	if nonce == "" && cfg.NonceFunc != nil {
		var err error
		if nonce, err = cfg.NonceFunc(); err != nil {
			return nil, err
		}
	}

	if nonce != "" {
		params.SetNonce(nonce)
	}

	if cfg.Tag != "" {
		params.SetTag(cfg.Tag)
	}

	return params, nil
}

// parseCoveredComponent accepts a bare component name or a serialized
// component identifier. Bare field names are lowercased.
func parseCoveredComponent(s string) (Component, error) {
	var (
		c   Component
		err error
	)

	if strings.HasPrefix(s, `"`) {
		c, err = ParseComponent(s)
		if err != nil {
			return Component{}, err
		}
	} else {
		if !strings.HasPrefix(s, "@") {
			s = strings.ToLower(s)
		}

		c = NewComponent(s)
	}

	if err := c.Validate(); err != nil {
		return Component{}, err
	}

	return c, nil
}

// containsName reports whether names covers a component called name,
// accepting both bare and serialized forms.
func containsName(names []string, name string) bool {
	for _, n := range names {
		c, err := parseCoveredComponent(n)
		if err == nil && c.Name() == name && len(c.ParamNames()) == 0 {
			return true
		}
	}

	return false
}
