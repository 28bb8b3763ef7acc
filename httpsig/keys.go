package httpsig

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

type keySigner struct {
	alg   Algorithm
	keyID string
	key   any
}

// NewSigner returns a Signer that signs with key under alg. The key kind is
// checked up front so that a mismatch surfaces before the first request.
// Keys are used read-only; callers must not mutate them afterwards.
func NewSigner(alg Algorithm, keyID string, key any) (Signer, error) {
	s, raw, err := resolveSuite(alg, key)
	if err != nil {
		return nil, err
	}

	if err := s.checkSigningKey(raw); err != nil {
		return nil, err
	}

	return &keySigner{alg: alg, keyID: keyID, key: key}, nil
}

func (s *keySigner) Sign(message []byte) ([]byte, error) {
	return Sign(s.alg, s.key, message)
}

func (s *keySigner) Algorithm() Algorithm { return s.alg }
func (s *keySigner) KeyID() string        { return s.keyID }

type keyVerifier struct {
	alg   Algorithm
	keyID string
	key   any
}

// NewVerifier returns a Verifier that checks signatures with key under alg.
func NewVerifier(alg Algorithm, keyID string, key any) (Verifier, error) {
	s, raw, err := resolveSuite(alg, key)
	if err != nil {
		return nil, err
	}

	if err := s.checkVerifyingKey(raw); err != nil {
		return nil, err
	}

	return &keyVerifier{alg: alg, keyID: keyID, key: key}, nil
}

func (v *keyVerifier) Verify(message, signature []byte) (bool, error) {
	return Verify(v.alg, v.key, message, signature)
}

func (v *keyVerifier) Algorithm() Algorithm { return v.alg }
func (v *keyVerifier) KeyID() string        { return v.keyID }

// NewEd25519Signer creates a Signer using Ed25519.
func NewEd25519Signer(keyID string, key ed25519.PrivateKey) (Signer, error) {
	return NewSigner(AlgorithmEd25519, keyID, key)
}

// NewEd25519Verifier creates a Verifier using Ed25519.
func NewEd25519Verifier(keyID string, key ed25519.PublicKey) (Verifier, error) {
	return NewVerifier(AlgorithmEd25519, keyID, key)
}

// NewECDSAP256Signer creates a Signer using ECDSA with curve P-256 and SHA-256.
func NewECDSAP256Signer(keyID string, key *ecdsa.PrivateKey) (Signer, error) {
	return NewSigner(AlgorithmECDSAP256SHA256, keyID, key)
}

// NewECDSAP256Verifier creates a Verifier using ECDSA with curve P-256 and SHA-256.
func NewECDSAP256Verifier(keyID string, key *ecdsa.PublicKey) (Verifier, error) {
	return NewVerifier(AlgorithmECDSAP256SHA256, keyID, key)
}

// NewRSAPSSSigner creates a Signer using RSASSA-PSS with SHA-512.
func NewRSAPSSSigner(keyID string, key *rsa.PrivateKey) (Signer, error) {
	return NewSigner(AlgorithmRSAPSSSHA512, keyID, key)
}

// NewRSAPSSVerifier creates a Verifier using RSASSA-PSS with SHA-512.
func NewRSAPSSVerifier(keyID string, key *rsa.PublicKey) (Verifier, error) {
	return NewVerifier(AlgorithmRSAPSSSHA512, keyID, key)
}

// NewRSAv15Signer creates a Signer using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSAv15Signer(keyID string, key *rsa.PrivateKey) (Signer, error) {
	return NewSigner(AlgorithmRSAv15SHA256, keyID, key)
}

// NewRSAv15Verifier creates a Verifier using RSASSA-PKCS1-v1_5 with SHA-256.
func NewRSAv15Verifier(keyID string, key *rsa.PublicKey) (Verifier, error) {
	return NewVerifier(AlgorithmRSAv15SHA256, keyID, key)
}

// NewHMACSHA256Signer creates a Signer using HMAC-SHA256.
// The key must be at least 32 bytes and is copied.
func NewHMACSHA256Signer(keyID string, key []byte) (Signer, error) {
	return NewSigner(AlgorithmHMACSHA256, keyID, copyBytes(key))
}

// NewHMACSHA256Verifier creates a Verifier using HMAC-SHA256.
// The key must be at least 32 bytes and is copied.
func NewHMACSHA256Verifier(keyID string, key []byte) (Verifier, error) {
	return NewVerifier(AlgorithmHMACSHA256, keyID, copyBytes(key))
}

// NewJWKSigner creates a Signer from a JWK. The key id is taken from the
// JWK "kid" member. The algorithm is derived from the JWK "alg" member and
// omitted from the signature parameters.
func NewJWKSigner(key jwk.Key) (Signer, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: jwk must not be nil", ErrInvalidKey)
	}

	kid, _ := key.KeyID()

	return NewSigner(AlgorithmFromKey, kid, key)
}

// NewJWKVerifier creates a Verifier from a JWK, deriving the algorithm from
// its "alg" member.
func NewJWKVerifier(key jwk.Key) (Verifier, error) {
	if key == nil {
		return nil, fmt.Errorf("%w: jwk must not be nil", ErrInvalidKey)
	}

	kid, _ := key.KeyID()

	return NewVerifier(AlgorithmFromKey, kid, key)
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}

	out := make([]byte, len(b))
	copy(out, b)

	return out
}
