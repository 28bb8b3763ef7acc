package httpsig

import (
	"fmt"
	"strings"
)

// Algorithm identifies the HTTP message signature algorithm per RFC 9421
// Section 3.3. Two algorithms are equal when their tokens are equal, which
// makes Algorithm usable as a map key.
//
// AlgorithmFromKey is the derive-from-key sentinel: it carries no token, is
// never written to the wire, and asks Sign and Verify to take the algorithm
// from the key's own metadata.
type Algorithm string

const (
	// AlgorithmRSAPSSSHA512 is RSASSA-PSS using SHA-512.
	AlgorithmRSAPSSSHA512 Algorithm = "rsa-pss-sha512"

	// AlgorithmRSAv15SHA256 is RSASSA-PKCS1-v1_5 using SHA-256.
	AlgorithmRSAv15SHA256 Algorithm = "rsa-v1_5-sha256"

	// AlgorithmHMACSHA256 is HMAC using SHA-256.
	AlgorithmHMACSHA256 Algorithm = "hmac-sha256"

	// AlgorithmECDSAP256SHA256 is ECDSA using curve P-256 and SHA-256.
	AlgorithmECDSAP256SHA256 Algorithm = "ecdsa-p256-sha256"

	// AlgorithmEd25519 is Edwards-Curve Digital Signature Algorithm
	// using curve 25519.
	AlgorithmEd25519 Algorithm = "ed25519"

	// AlgorithmFromKey derives the algorithm from the signing key's
	// metadata. It is omitted from serialized signature parameters.
	AlgorithmFromKey Algorithm = ""
)

// joseAlgorithms maps JWA signature names onto HTTP signature algorithms.
var joseAlgorithms = map[string]Algorithm{
	"PS512":   AlgorithmRSAPSSSHA512,
	"RS256":   AlgorithmRSAv15SHA256,
	"HS256":   AlgorithmHMACSHA256,
	"ES256":   AlgorithmECDSAP256SHA256,
	"EdDSA":   AlgorithmEd25519,
	"Ed25519": AlgorithmEd25519,
}

// ParseAlgorithm returns the Algorithm for a wire token. Unknown tokens are
// accepted as explicit algorithms for forward compatibility; the
// case-insensitive name "jose" selects AlgorithmFromKey. An empty token is
// rejected because derive-from-key mode has no wire form.
func ParseAlgorithm(token string) (Algorithm, error) {
	if token == "" {
		return "", fmt.Errorf("%w: empty algorithm token", ErrMalformedInput)
	}

	if strings.EqualFold(token, "jose") {
		return AlgorithmFromKey, nil
	}

	return Algorithm(token), nil
}

// AlgorithmFromJOSE maps a JWA algorithm name (as found in a JWK "alg"
// member) to the matching HTTP signature algorithm.
func AlgorithmFromJOSE(name string) (Algorithm, error) {
	alg, ok := joseAlgorithms[name]
	if !ok {
		return "", fmt.Errorf("%w: jose algorithm %q", ErrUnsupportedAlgorithm, name)
	}

	return alg, nil
}

// String returns the string representation of the algorithm as registered
// in the HTTP Signature Algorithms Registry. AlgorithmFromKey returns an
// empty string.
func (a Algorithm) String() string {
	return string(a)
}

// IsDerived reports whether a is the derive-from-key sentinel.
func (a Algorithm) IsDerived() bool {
	return a == AlgorithmFromKey
}

// Explicit returns the wire token and true, or false for AlgorithmFromKey.
func (a Algorithm) Explicit() (string, bool) {
	if a.IsDerived() {
		return "", false
	}

	return string(a), true
}

// Signer creates signatures over HTTP message signature base strings.
type Signer interface {
	// Sign produces a signature over the given message bytes.
	Sign(message []byte) ([]byte, error)

	// Algorithm returns the algorithm identifier for this signer.
	Algorithm() Algorithm

	// KeyID returns the key identifier included in signature parameters.
	KeyID() string
}

// Verifier validates signatures over HTTP message signature base strings.
type Verifier interface {
	// Verify reports whether signature is valid for the given message
	// bytes. A cryptographic mismatch returns false with a nil error;
	// structurally invalid input returns an error.
	Verify(message, signature []byte) (bool, error)

	// Algorithm returns the algorithm identifier for this verifier.
	Algorithm() Algorithm

	// KeyID returns the key identifier for this verifier.
	KeyID() string
}
