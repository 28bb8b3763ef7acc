package httpsig

import "errors"

// Component resolution errors.
var (
	// ErrUnsupportedComponent is returned when a component identifier cannot
	// be served by the provider it is resolved against: a derived component
	// on the wrong message kind, an unknown derived name, or an identifier
	// parameter that is not implemented.
	ErrUnsupportedComponent = errors.New("httpsig: unsupported component")

	// ErrMissingComponent is returned when a covered component has no value
	// in the message.
	ErrMissingComponent = errors.New("httpsig: missing required component")

	// ErrAmbiguousQueryParam is returned when more than one query parameter
	// matches the name selected by an @query-param component.
	ErrAmbiguousQueryParam = errors.New("httpsig: ambiguous query parameter")

	// ErrNoAssociatedRequest is returned when a req-tagged component is
	// resolved against a response without an associated request.
	ErrNoAssociatedRequest = errors.New("httpsig: no associated request")

	// ErrInvalidComponent is returned when a component identifier is
	// syntactically invalid (bad field name, missing name parameter).
	ErrInvalidComponent = errors.New("httpsig: invalid component identifier")

	// ErrInvalidMessage is returned when message data cannot be read by a
	// component provider (invalid host, undecodable query string).
	ErrInvalidMessage = errors.New("httpsig: invalid message")
)

// Signature input errors.
var (
	// ErrMalformedInput is returned when a Signature-Input or Signature
	// value cannot be decoded into signature parameters.
	ErrMalformedInput = errors.New("httpsig: malformed signature input")

	// ErrSignatureNotFound is returned when the requested signature id is
	// not present in the Signature-Input or Signature dictionary.
	ErrSignatureNotFound = errors.New("httpsig: signature not found")

	// ErrDuplicateSignatureID is returned when a signature is attached under
	// an id that the message already carries.
	ErrDuplicateSignatureID = errors.New("httpsig: duplicate signature id")
)

// Algorithm and key errors.
var (
	// ErrKeyMismatch is returned when the key kind does not match the
	// requested algorithm.
	ErrKeyMismatch = errors.New("httpsig: key does not match algorithm")

	// ErrInvalidKey is returned when key material is invalid (nil, wrong
	// curve, insufficient size, etc.).
	ErrInvalidKey = errors.New("httpsig: invalid key material")

	// ErrUnsupportedAlgorithm is returned for algorithm tokens outside the
	// supported set, and for derive-from-key mode when the key carries no
	// usable algorithm.
	ErrUnsupportedAlgorithm = errors.New("httpsig: unsupported algorithm")

	// ErrMalformedSignature is returned when signature bytes are structurally
	// invalid for the algorithm (wrong length).
	ErrMalformedSignature = errors.New("httpsig: malformed signature")
)

// Signing errors.
var (
	// ErrNoSigner is returned when SignConfig has no Signer configured.
	ErrNoSigner = errors.New("httpsig: signer must not be nil")
)

// Verification errors.
var (
	// ErrNoResolver is returned when VerifyConfig has no KeyResolver configured.
	ErrNoResolver = errors.New("httpsig: key resolver must not be nil")

	// ErrSignatureInvalid is returned by the message-level verification
	// helpers when the signature does not match the signature base.
	ErrSignatureInvalid = errors.New("httpsig: signature verification failed")

	// ErrSignatureExpired is returned when the signature has exceeded its
	// maximum allowed age or its expires time.
	ErrSignatureExpired = errors.New("httpsig: signature expired")

	// ErrCreatedRequired is returned when MaxAge is set but the signature
	// does not contain a created parameter.
	ErrCreatedRequired = errors.New("httpsig: created parameter required when MaxAge is set")

	// ErrComponentNotCovered is returned when a required component is absent
	// from the signature's covered components.
	ErrComponentNotCovered = errors.New("httpsig: required component not covered by signature")

	// ErrAlgorithmNotAllowed is returned when the signature names an
	// algorithm that differs from the one the resolved verifier uses.
	ErrAlgorithmNotAllowed = errors.New("httpsig: algorithm not allowed")
)

// Digest errors.
var (
	// ErrDigestMismatch is returned when Content-Digest verification fails.
	ErrDigestMismatch = errors.New("httpsig: content digest mismatch")

	// ErrDigestNotFound is returned when Content-Digest header is required
	// but not present.
	ErrDigestNotFound = errors.New("httpsig: content digest not found")

	// ErrUnsupportedDigest is returned when the digest algorithm is not
	// supported.
	ErrUnsupportedDigest = errors.New("httpsig: unsupported digest algorithm")
)

// Profile errors.
var (
	// ErrInvalidProfile is returned when a signing profile cannot be decoded
	// or contains invalid values.
	ErrInvalidProfile = errors.New("httpsig: invalid profile")
)
