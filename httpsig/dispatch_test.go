package httpsig

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v3/jwa"
	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testKeys struct {
	rsa     *rsa.PrivateKey
	ecdsa   *ecdsa.PrivateKey
	ed25519 ed25519.PrivateKey
	hmac    []byte
}

func newTestKeys(t *testing.T) testKeys {
	t.Helper()

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	_, edKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	secret := make([]byte, 32)
	_, err = rand.Read(secret)
	require.NoError(t, err)

	return testKeys{rsa: rsaKey, ecdsa: ecKey, ed25519: edKey, hmac: secret}
}

func TestSignVerifyDispatch(t *testing.T) {
	keys := newTestKeys(t)

	tests := []struct {
		alg    Algorithm
		signer any
		public any
		sigLen int
	}{
		{alg: AlgorithmRSAPSSSHA512, signer: keys.rsa, public: &keys.rsa.PublicKey, sigLen: 256},
		{alg: AlgorithmRSAv15SHA256, signer: keys.rsa, public: &keys.rsa.PublicKey, sigLen: 256},
		{alg: AlgorithmHMACSHA256, signer: keys.hmac, public: keys.hmac, sigLen: 32},
		{alg: AlgorithmECDSAP256SHA256, signer: keys.ecdsa, public: &keys.ecdsa.PublicKey, sigLen: 64},
		{alg: AlgorithmEd25519, signer: keys.ed25519, public: keys.ed25519.Public(), sigLen: 64},
	}

	base := []byte(`"@signature-params": ();created=1618884473;keyid="test-key-rsa-pss";nonce="b3k2pp5k7z-50gnwp.yemd"`)

	for _, tt := range tests {
		t.Run(tt.alg.String(), func(t *testing.T) {
			sig, err := Sign(tt.alg, tt.signer, base)
			require.NoError(t, err)
			assert.Len(t, sig, tt.sigLen)

			ok, err := Verify(tt.alg, tt.public, base, sig)
			require.NoError(t, err)
			assert.True(t, ok)

			t.Run("private key verifies", func(t *testing.T) {
				ok, err := Verify(tt.alg, tt.signer, base, sig)
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("tampered base is false not error", func(t *testing.T) {
				ok, err := Verify(tt.alg, tt.public, append([]byte("x"), base...), sig)
				require.NoError(t, err)
				assert.False(t, ok)
			})

			t.Run("truncated signature is malformed", func(t *testing.T) {
				_, err := Verify(tt.alg, tt.public, base, sig[:len(sig)-1])
				assert.ErrorIs(t, err, ErrMalformedSignature)
			})
		})
	}
}

func TestSignVerifyKeyMismatch(t *testing.T) {
	keys := newTestKeys(t)
	base := []byte("base")

	tests := []struct {
		name string
		alg  Algorithm
		key  any
	}{
		{name: "rsa with ecdsa key", alg: AlgorithmRSAPSSSHA512, key: keys.ecdsa},
		{name: "rsa-v1_5 with hmac key", alg: AlgorithmRSAv15SHA256, key: keys.hmac},
		{name: "hmac with rsa key", alg: AlgorithmHMACSHA256, key: keys.rsa},
		{name: "ecdsa with ed25519 key", alg: AlgorithmECDSAP256SHA256, key: keys.ed25519},
		{name: "ed25519 with rsa key", alg: AlgorithmEd25519, key: keys.rsa},
		{name: "string key", alg: AlgorithmHMACSHA256, key: "secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Sign(tt.alg, tt.key, base)
			assert.ErrorIs(t, err, ErrKeyMismatch)

			_, err = Verify(tt.alg, tt.key, base, make([]byte, 64))
			assert.ErrorIs(t, err, ErrKeyMismatch)
		})
	}

	t.Run("public key cannot sign", func(t *testing.T) {
		_, err := Sign(AlgorithmRSAPSSSHA512, &keys.rsa.PublicKey, base)
		assert.ErrorIs(t, err, ErrKeyMismatch)
	})

	t.Run("unknown algorithm", func(t *testing.T) {
		_, err := Sign(Algorithm("rsa-pss-sha256"), keys.rsa, base)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("ecdsa p-384 is not offered", func(t *testing.T) {
		p384, err := ecdsa.GenerateKey(elliptic.P384(), rand.Reader)
		require.NoError(t, err)

		_, err = Sign(Algorithm("ecdsa-p384-sha384"), p384, base)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)

		_, err = NewSigner(Algorithm("ecdsa-p384-sha384"), "p384", p384)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})

	t.Run("derive from key needs a jwk", func(t *testing.T) {
		_, err := Sign(AlgorithmFromKey, keys.rsa, base)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestSignVerifyJWK(t *testing.T) {
	keys := newTestKeys(t)
	base := []byte("jwk base")

	tests := []struct {
		name string
		raw  any
		alg  jwa.SignatureAlgorithm
		want Algorithm
	}{
		{name: "PS512", raw: keys.rsa, alg: jwa.PS512(), want: AlgorithmRSAPSSSHA512},
		{name: "RS256", raw: keys.rsa, alg: jwa.RS256(), want: AlgorithmRSAv15SHA256},
		{name: "HS256", raw: keys.hmac, alg: jwa.HS256(), want: AlgorithmHMACSHA256},
		{name: "ES256", raw: keys.ecdsa, alg: jwa.ES256(), want: AlgorithmECDSAP256SHA256},
		{name: "EdDSA", raw: keys.ed25519, alg: jwa.EdDSA(), want: AlgorithmEd25519},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, err := jwk.Import(tt.raw)
			require.NoError(t, err)
			require.NoError(t, key.Set(jwk.AlgorithmKey, tt.alg))

			sig, err := Sign(AlgorithmFromKey, key, base)
			require.NoError(t, err)

			t.Run("derived verify", func(t *testing.T) {
				ok, err := Verify(AlgorithmFromKey, key, base, sig)
				require.NoError(t, err)
				assert.True(t, ok)
			})

			t.Run("explicit verify with raw key", func(t *testing.T) {
				ok, err := Verify(tt.want, tt.raw, base, sig)
				require.NoError(t, err)
				assert.True(t, ok)
			})
		})
	}

	t.Run("explicit algorithm with jwk key", func(t *testing.T) {
		key, err := jwk.Import(keys.ed25519)
		require.NoError(t, err)

		sig, err := Sign(AlgorithmEd25519, key, base)
		require.NoError(t, err)

		ok, err := Verify(AlgorithmEd25519, keys.ed25519.Public(), base, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unsupported jose algorithm", func(t *testing.T) {
		key, err := jwk.Import(keys.ecdsa)
		require.NoError(t, err)
		require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.ES384()))

		_, err = Sign(AlgorithmFromKey, key, base)
		assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	})
}

func TestRSAPSSMinimalScenario(t *testing.T) {
	keys := newTestKeys(t)

	params := NewParameters().
		SetCreated(time.Unix(testCreated, 0)).
		SetKeyID("test-key-rsa-pss").
		SetNonce("b3k2pp5k7z-50gnwp.yemd")

	base, err := CreateSignatureBase(params, newTestRequestProvider(t))
	require.NoError(t, err)

	signer, err := NewRSAPSSSigner("test-key-rsa-pss", keys.rsa)
	require.NoError(t, err)

	verifier, err := NewRSAPSSVerifier("test-key-rsa-pss", &keys.rsa.PublicKey)
	require.NoError(t, err)

	sig, err := signer.Sign(base)
	require.NoError(t, err)

	ok, err := verifier.Verify(base, sig)
	require.NoError(t, err)
	assert.True(t, ok)
}
