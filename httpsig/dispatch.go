package httpsig

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"math/big"

	"github.com/lestrrat-go/jwx/v3/jwk"
)

const (
	// Minimum RSA key size in bits.
	minRSAKeyBits = 2048

	// Minimum HMAC key size in bytes.
	minHMACKeyBytes = 32

	// RSASSA-PSS salt length in bytes, equal to the SHA-512 digest size.
	pssSaltLength = 64

	// ECDSA P-256 signatures are the fixed-width concatenation r||s.
	ecdsaP256IntLen = 32
	ecdsaP256SigLen = ecdsaP256IntLen * 2
)

// suite binds one algorithm to its signing and verification primitives.
// The key check functions validate key kinds without performing any
// cryptographic operation.
type suite struct {
	checkSigningKey   func(key any) error
	checkVerifyingKey func(key any) error
	sign              func(key any, message []byte) ([]byte, error)
	verify            func(key any, message, signature []byte) (bool, error)
}

var suites = map[Algorithm]suite{
	AlgorithmRSAPSSSHA512: {
		checkSigningKey:   func(key any) error { _, err := rsaPrivateKey(key); return err },
		checkVerifyingKey: func(key any) error { _, err := rsaPublicKey(key); return err },
		sign:              signRSAPSS,
		verify:            verifyRSAPSS,
	},
	AlgorithmRSAv15SHA256: {
		checkSigningKey:   func(key any) error { _, err := rsaPrivateKey(key); return err },
		checkVerifyingKey: func(key any) error { _, err := rsaPublicKey(key); return err },
		sign:              signRSAv15,
		verify:            verifyRSAv15,
	},
	AlgorithmHMACSHA256: {
		checkSigningKey:   func(key any) error { _, err := hmacKey(key); return err },
		checkVerifyingKey: func(key any) error { _, err := hmacKey(key); return err },
		sign:              signHMAC,
		verify:            verifyHMAC,
	},
	AlgorithmECDSAP256SHA256: {
		checkSigningKey:   func(key any) error { _, err := ecdsaPrivateKey(key); return err },
		checkVerifyingKey: func(key any) error { _, err := ecdsaPublicKey(key); return err },
		sign:              signECDSA,
		verify:            verifyECDSA,
	},
	AlgorithmEd25519: {
		checkSigningKey:   func(key any) error { _, err := ed25519PrivateKey(key); return err },
		checkVerifyingKey: func(key any) error { _, err := ed25519PublicKey(key); return err },
		sign:              signEd25519,
		verify:            verifyEd25519,
	},
}

// Sign signs base with key using alg.
//
// Accepted keys are *rsa.PrivateKey (RSA algorithms), []byte (HMAC),
// *ecdsa.PrivateKey on P-256, ed25519.PrivateKey, and jwk.Key wrapping any
// of these. With AlgorithmFromKey the key must be a jwk.Key whose "alg"
// member names the algorithm. A key of the wrong kind fails with
// ErrKeyMismatch.
func Sign(alg Algorithm, key any, base []byte) ([]byte, error) {
	s, key, err := resolveSuite(alg, key)
	if err != nil {
		return nil, err
	}

	return s.sign(key, base)
}

// Verify reports whether signature is valid for base under key and alg.
// A cryptographic mismatch returns false and a nil error. Structurally
// invalid input (wrong key kind, malformed signature encoding) returns an
// error.
//
// Verification accepts the public key types matching Sign, or the private
// keys themselves.
func Verify(alg Algorithm, key any, base, signature []byte) (bool, error) {
	s, key, err := resolveSuite(alg, key)
	if err != nil {
		return false, err
	}

	return s.verify(key, base, signature)
}

// resolveSuite picks the suite for alg and unwraps JWK keys into raw key
// material. Derive-from-key mode reads the algorithm from the JWK.
func resolveSuite(alg Algorithm, key any) (suite, any, error) {
	if jk, ok := key.(jwk.Key); ok {
		if alg.IsDerived() {
			derived, err := algorithmFromJWK(jk)
			if err != nil {
				return suite{}, nil, err
			}

			alg = derived
		}

		var raw any
		if err := jwk.Export(jk, &raw); err != nil {
			return suite{}, nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
		}

		key = raw
	} else if alg.IsDerived() {
		return suite{}, nil, fmt.Errorf("%w: derive-from-key requires a JWK, got %T", ErrUnsupportedAlgorithm, key)
	}

	s, ok := suites[alg]
	if !ok {
		return suite{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedAlgorithm, alg)
	}

	return s, key, nil
}

// algorithmFromJWK maps the key's "alg" member to an HTTP signature
// algorithm.
func algorithmFromJWK(key jwk.Key) (Algorithm, error) {
	name, ok := key.Algorithm()
	if !ok {
		return "", fmt.Errorf("%w: key has no alg member", ErrUnsupportedAlgorithm)
	}

	return AlgorithmFromJOSE(name.String())
}

// --- key extraction ---

func rsaPrivateKey(key any) (*rsa.PrivateKey, error) {
	k, ok := key.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want *rsa.PrivateKey, got %T", ErrKeyMismatch, key)
	}

	if k == nil || k.N == nil {
		return nil, fmt.Errorf("%w: rsa private key must not be nil", ErrInvalidKey)
	}

	if k.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return k, nil
}

func rsaPublicKey(key any) (*rsa.PublicKey, error) {
	var k *rsa.PublicKey

	switch v := key.(type) {
	case *rsa.PublicKey:
		k = v
	case *rsa.PrivateKey:
		if v != nil {
			k = &v.PublicKey
		}
	default:
		return nil, fmt.Errorf("%w: want *rsa.PublicKey, got %T", ErrKeyMismatch, key)
	}

	if k == nil || k.N == nil {
		return nil, fmt.Errorf("%w: rsa public key must not be nil", ErrInvalidKey)
	}

	if k.N.BitLen() < minRSAKeyBits {
		return nil, fmt.Errorf("%w: rsa key must be at least %d bits", ErrInvalidKey, minRSAKeyBits)
	}

	return k, nil
}

func hmacKey(key any) ([]byte, error) {
	k, ok := key.([]byte)
	if !ok {
		return nil, fmt.Errorf("%w: want []byte, got %T", ErrKeyMismatch, key)
	}

	if len(k) < minHMACKeyBytes {
		return nil, fmt.Errorf("%w: hmac key must be at least %d bytes", ErrInvalidKey, minHMACKeyBytes)
	}

	return k, nil
}

func ecdsaPrivateKey(key any) (*ecdsa.PrivateKey, error) {
	k, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want *ecdsa.PrivateKey, got %T", ErrKeyMismatch, key)
	}

	if k == nil {
		return nil, fmt.Errorf("%w: ecdsa private key must not be nil", ErrInvalidKey)
	}

	if k.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: key curve must be P-256", ErrKeyMismatch)
	}

	return k, nil
}

func ecdsaPublicKey(key any) (*ecdsa.PublicKey, error) {
	var k *ecdsa.PublicKey

	switch v := key.(type) {
	case *ecdsa.PublicKey:
		k = v
	case *ecdsa.PrivateKey:
		if v != nil {
			k = &v.PublicKey
		}
	default:
		return nil, fmt.Errorf("%w: want *ecdsa.PublicKey, got %T", ErrKeyMismatch, key)
	}

	if k == nil {
		return nil, fmt.Errorf("%w: ecdsa public key must not be nil", ErrInvalidKey)
	}

	if k.Curve != elliptic.P256() {
		return nil, fmt.Errorf("%w: key curve must be P-256", ErrKeyMismatch)
	}

	return k, nil
}

func ed25519PrivateKey(key any) (ed25519.PrivateKey, error) {
	k, ok := key.(ed25519.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: want ed25519.PrivateKey, got %T", ErrKeyMismatch, key)
	}

	if len(k) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}

	return k, nil
}

func ed25519PublicKey(key any) (ed25519.PublicKey, error) {
	switch v := key.(type) {
	case ed25519.PublicKey:
		if len(v) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("%w: ed25519 public key must be %d bytes", ErrInvalidKey, ed25519.PublicKeySize)
		}

		return v, nil
	case ed25519.PrivateKey:
		if len(v) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("%w: ed25519 private key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
		}

		return v.Public().(ed25519.PublicKey), nil
	default:
		return nil, fmt.Errorf("%w: want ed25519.PublicKey, got %T", ErrKeyMismatch, key)
	}
}

// --- RSA-PSS SHA-512 ---

func signRSAPSS(key any, message []byte) ([]byte, error) {
	k, err := rsaPrivateKey(key)
	if err != nil {
		return nil, err
	}

	digest := sha512.Sum512(message)

	return rsa.SignPSS(rand.Reader, k, crypto.SHA512, digest[:], &rsa.PSSOptions{
		SaltLength: pssSaltLength,
		Hash:       crypto.SHA512,
	})
}

func verifyRSAPSS(key any, message, signature []byte) (bool, error) {
	k, err := rsaPublicKey(key)
	if err != nil {
		return false, err
	}

	if len(signature) != k.Size() {
		return false, fmt.Errorf("%w: rsa signature must be %d bytes", ErrMalformedSignature, k.Size())
	}

	digest := sha512.Sum512(message)

	err = rsa.VerifyPSS(k, crypto.SHA512, digest[:], signature, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthAuto,
		Hash:       crypto.SHA512,
	})

	return err == nil, nil
}

// --- RSA v1.5 SHA-256 ---

func signRSAv15(key any, message []byte) ([]byte, error) {
	k, err := rsaPrivateKey(key)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(message)

	return rsa.SignPKCS1v15(rand.Reader, k, crypto.SHA256, digest[:])
}

func verifyRSAv15(key any, message, signature []byte) (bool, error) {
	k, err := rsaPublicKey(key)
	if err != nil {
		return false, err
	}

	if len(signature) != k.Size() {
		return false, fmt.Errorf("%w: rsa signature must be %d bytes", ErrMalformedSignature, k.Size())
	}

	digest := sha256.Sum256(message)

	return rsa.VerifyPKCS1v15(k, crypto.SHA256, digest[:], signature) == nil, nil
}

// --- HMAC SHA-256 ---

func signHMAC(key any, message []byte) ([]byte, error) {
	k, err := hmacKey(key)
	if err != nil {
		return nil, err
	}

	return computeHMAC(k, message), nil
}

func verifyHMAC(key any, message, signature []byte) (bool, error) {
	k, err := hmacKey(key)
	if err != nil {
		return false, err
	}

	if len(signature) != sha256.Size {
		return false, fmt.Errorf("%w: hmac-sha256 signature must be %d bytes", ErrMalformedSignature, sha256.Size)
	}

	return hmac.Equal(computeHMAC(k, message), signature), nil
}

func computeHMAC(key, message []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(message)

	return h.Sum(nil)
}

// --- ECDSA P-256 ---

func signECDSA(key any, message []byte) ([]byte, error) {
	k, err := ecdsaPrivateKey(key)
	if err != nil {
		return nil, err
	}

	digest := sha256.Sum256(message)

	r, s, err := ecdsa.Sign(rand.Reader, k, digest[:])
	if err != nil {
		return nil, err
	}

	sig := make([]byte, ecdsaP256SigLen)
	r.FillBytes(sig[:ecdsaP256IntLen])
	s.FillBytes(sig[ecdsaP256IntLen:])

	return sig, nil
}

func verifyECDSA(key any, message, signature []byte) (bool, error) {
	k, err := ecdsaPublicKey(key)
	if err != nil {
		return false, err
	}

	if len(signature) != ecdsaP256SigLen {
		return false, fmt.Errorf("%w: ecdsa-p256 signature must be %d bytes", ErrMalformedSignature, ecdsaP256SigLen)
	}

	r := new(big.Int).SetBytes(signature[:ecdsaP256IntLen])
	s := new(big.Int).SetBytes(signature[ecdsaP256IntLen:])

	digest := sha256.Sum256(message)

	return ecdsa.Verify(k, digest[:], r, s), nil
}

// --- Ed25519 ---

func signEd25519(key any, message []byte) ([]byte, error) {
	k, err := ed25519PrivateKey(key)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(k, message), nil
}

func verifyEd25519(key any, message, signature []byte) (bool, error) {
	k, err := ed25519PublicKey(key)
	if err != nil {
		return false, err
	}

	if len(signature) != ed25519.SignatureSize {
		return false, fmt.Errorf("%w: ed25519 signature must be %d bytes", ErrMalformedSignature, ed25519.SignatureSize)
	}

	return ed25519.Verify(k, message, signature), nil
}
