package httpsig

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateNonce(t *testing.T) {
	t.Run("returns 22-char base64url string", func(t *testing.T) {
		nonce, err := GenerateNonce()
		require.NoError(t, err)
		assert.Len(t, nonce, 22)
	})

	t.Run("successive calls produce unique values", func(t *testing.T) {
		seen := make(map[string]bool)
		for range 100 {
			nonce, err := GenerateNonce()
			require.NoError(t, err)
			assert.False(t, seen[nonce], "duplicate nonce: %s", nonce)
			seen[nonce] = true
		}
	})
}

type errSigner struct {
	err error
}

func (s errSigner) Sign([]byte) ([]byte, error) { return nil, s.err }
func (s errSigner) Algorithm() Algorithm        { return AlgorithmEd25519 }
func (s errSigner) KeyID() string               { return "err-key" }

// recordingSigner returns a fixed signature and keeps the last base.
type recordingSigner struct {
	alg  Algorithm
	base []byte
}

func (s *recordingSigner) Sign(message []byte) ([]byte, error) {
	s.base = append([]byte(nil), message...)
	return []byte{0x01, 0x02, 0x03}, nil
}

func (s *recordingSigner) Algorithm() Algorithm { return s.alg }
func (s *recordingSigner) KeyID() string        { return "rec-key" }

func TestSignRequest(t *testing.T) {
	created := time.Unix(testCreated, 0)

	t.Run("nil signer returns error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{})
		assert.ErrorIs(t, err, ErrNoSigner)
	})

	t.Run("default components", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmEd25519}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/api/items", nil)

		err := SignRequest(req, SignConfig{Signer: signer, Label: "sig1", Created: created})
		require.NoError(t, err)

		wantInput := `("@method" "@authority" "@path");alg="ed25519";created=1618884473;keyid="rec-key"`
		assert.Equal(t, "sig1="+wantInput, req.Header.Get(HeaderSignatureInput))
		assert.Equal(t, "sig1=:AQID:", req.Header.Get(HeaderSignature))

		want := strings.Join([]string{
			`"@method": POST`,
			`"@authority": example.com`,
			`"@path": /api/items`,
			`"@signature-params": ` + wantInput,
		}, "\n")
		assert.Equal(t, want, string(signer.base))
	})

	t.Run("generated label", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmEd25519}
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:      signer,
			IDGenerator: func() (string, error) { return "gen", nil },
		})
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(req.Header.Get(HeaderSignatureInput), "gen=("))
	})

	t.Run("serialized components and field names", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmHMACSHA256}
		req := newTestRequest()

		err := SignRequest(req, SignConfig{
			Signer:            signer,
			Label:             "sig1",
			Created:           created,
			CoveredComponents: []string{ComponentAuthority, "Content-Digest", `"@query-param";name="Pet"`},
			Tag:               "header-example",
			Nonce:             "n1",
		})
		require.NoError(t, err)

		want := strings.Join([]string{
			`"@authority": example.com`,
			`"content-digest": ` + testRequestDigest,
			`"@query-param";name="Pet": dog`,
			`"@signature-params": ("@authority" "content-digest" "@query-param";name="Pet");alg="hmac-sha256";created=1618884473;keyid="rec-key";nonce="n1";tag="header-example"`,
		}, "\n")
		assert.Equal(t, want, string(signer.base))
	})

	t.Run("expires", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmEd25519}
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:  signer,
			Label:   "sig1",
			Created: created,
			Expires: created.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.Contains(t, req.Header.Get(HeaderSignatureInput), ";created=1618884473;expires=1618884533;")
	})

	t.Run("derived algorithm is omitted", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmFromKey}
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{Signer: signer, Label: "sig1", Created: created})
		require.NoError(t, err)
		assert.NotContains(t, req.Header.Get(HeaderSignatureInput), "alg=")
	})

	t.Run("missing covered field fails", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:            &recordingSigner{alg: AlgorithmEd25519},
			CoveredComponents: []string{"x-missing"},
		})
		assert.ErrorIs(t, err, ErrMissingComponent)
		assert.Empty(t, req.Header.Get(HeaderSignature))
	})

	t.Run("failed signing leaves no digest behind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("payload"))

		err := SignRequest(req, SignConfig{
			Signer:            &recordingSigner{alg: AlgorithmEd25519},
			CoveredComponents: []string{"x-missing"},
			DigestAlgorithm:   DigestSHA256,
		})
		assert.ErrorIs(t, err, ErrMissingComponent)
		assert.Empty(t, req.Header.Get(HeaderContentDigest))
		assert.Empty(t, req.Header.Get(HeaderSignatureInput))

		body, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))
	})

	t.Run("signer error leaves no digest behind", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("payload"))

		boom := errors.New("hsm offline")

		err := SignRequest(req, SignConfig{Signer: errSigner{err: boom}, DigestAlgorithm: DigestSHA256})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, req.Header.Get(HeaderContentDigest))
	})

	t.Run("expires relative to created", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:    &recordingSigner{alg: AlgorithmEd25519},
			Label:     "sig1",
			Created:   created,
			ExpiresIn: time.Minute,
		})
		require.NoError(t, err)
		assert.Contains(t, req.Header.Get(HeaderSignatureInput), ";created=1618884473;expires=1618884533;")
	})

	t.Run("nonce func per message", func(t *testing.T) {
		calls := 0
		cfg := SignConfig{
			Signer:  &recordingSigner{alg: AlgorithmEd25519},
			Label:   "sig1",
			Created: created,
			NonceFunc: func() (string, error) {
				calls++
				return fmt.Sprintf("n%d", calls), nil
			},
		}

		for i := 1; i <= 2; i++ {
			req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)
			require.NoError(t, SignRequest(req, cfg))
			assert.Contains(t, req.Header.Get(HeaderSignatureInput), fmt.Sprintf(`nonce="n%d"`, i))
		}
	})

	t.Run("fixed nonce wins over nonce func", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:    &recordingSigner{alg: AlgorithmEd25519},
			Nonce:     "fixed",
			NonceFunc: func() (string, error) { return "generated", nil },
		})
		require.NoError(t, err)
		assert.Contains(t, req.Header.Get(HeaderSignatureInput), `nonce="fixed"`)
	})

	t.Run("nonce func error", func(t *testing.T) {
		boom := errors.New("entropy exhausted")
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:    &recordingSigner{alg: AlgorithmEd25519},
			NonceFunc: func() (string, error) { return "", boom },
		})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, req.Header.Get(HeaderSignature))
	})

	t.Run("invalid component fails", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{
			Signer:            &recordingSigner{alg: AlgorithmEd25519},
			CoveredComponents: []string{ComponentQueryParam},
		})
		assert.ErrorIs(t, err, ErrInvalidComponent)
	})

	t.Run("signer error propagates", func(t *testing.T) {
		boom := errors.New("hsm offline")
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		err := SignRequest(req, SignConfig{Signer: errSigner{err: boom}})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("content digest is added and covered", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmEd25519}
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader(`{"hello": "world"}`))

		err := SignRequest(req, SignConfig{
			Signer:          signer,
			Label:           "sig1",
			DigestAlgorithm: DigestSHA512,
		})
		require.NoError(t, err)

		assert.Equal(t, testRequestDigest, req.Header.Get(HeaderContentDigest))
		assert.Contains(t, req.Header.Get(HeaderSignatureInput), `"@path" "content-digest")`)
		assert.Contains(t, string(signer.base), `"content-digest": `+testRequestDigest+"\n")
	})

	t.Run("content digest not duplicated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("x"))

		err := SignRequest(req, SignConfig{
			Signer:            &recordingSigner{alg: AlgorithmEd25519},
			CoveredComponents: []string{"content-digest", ComponentMethod},
			DigestAlgorithm:   DigestSHA256,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, strings.Count(req.Header.Get(HeaderSignatureInput), "content-digest"))
	})

	t.Run("unsupported digest", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "https://example.com/", strings.NewReader("x"))

		err := SignRequest(req, SignConfig{
			Signer:          &recordingSigner{alg: AlgorithmEd25519},
			DigestAlgorithm: DigestAlgorithm("unsupported"),
		})
		assert.ErrorIs(t, err, ErrUnsupportedDigest)
	})

	t.Run("second signature is appended", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "https://example.com/", nil)

		require.NoError(t, SignRequest(req, SignConfig{Signer: &recordingSigner{alg: AlgorithmEd25519}, Label: "a"}))
		require.NoError(t, SignRequest(req, SignConfig{Signer: &recordingSigner{alg: AlgorithmEd25519}, Label: "b"}))

		input := req.Header.Get(HeaderSignatureInput)
		assert.True(t, strings.HasPrefix(input, "a=("))
		assert.Contains(t, input, ", b=(")

		err := SignRequest(req, SignConfig{Signer: &recordingSigner{alg: AlgorithmEd25519}, Label: "a"})
		assert.ErrorIs(t, err, ErrDuplicateSignatureID)
	})

	t.Run("all algorithms sign successfully", func(t *testing.T) {
		for _, s := range createAllSigners(t) {
			t.Run(s.Algorithm().String(), func(t *testing.T) {
				req := httptest.NewRequest(http.MethodGet, "https://example.com/api", nil)

				err := SignRequest(req, SignConfig{Signer: s})
				require.NoError(t, err)

				assert.NotEmpty(t, req.Header.Get(HeaderSignature))
				assert.NotEmpty(t, req.Header.Get(HeaderSignatureInput))
			})
		}
	})
}

func TestSignResponse(t *testing.T) {
	created := time.Unix(1618884479, 0)

	t.Run("default components", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmECDSAP256SHA256}
		resp := newTestResponse()

		err := SignResponse(resp, SignConfig{Signer: signer, Label: "sig1", Created: created})
		require.NoError(t, err)

		assert.Equal(t,
			`sig1=("@status");alg="ecdsa-p256-sha256";created=1618884479;keyid="rec-key"`,
			resp.Header.Get(HeaderSignatureInput))
		assert.True(t, strings.HasPrefix(string(signer.base), `"@status": 200`+"\n"))
	})

	t.Run("request-bound components", func(t *testing.T) {
		signer := &recordingSigner{alg: AlgorithmECDSAP256SHA256}
		resp := newTestResponse()
		resp.Request = newTestRequest()

		err := SignResponse(resp, SignConfig{
			Signer:            signer,
			Label:             "sig1",
			Created:           created,
			CoveredComponents: []string{ComponentStatus, `"@method";req`, `"content-digest";req`},
		})
		require.NoError(t, err)

		want := strings.Join([]string{
			`"@status": 200`,
			`"@method";req: POST`,
			`"content-digest";req: ` + testRequestDigest,
		}, "\n")
		assert.True(t, strings.HasPrefix(string(signer.base), want+"\n"))
	})

	t.Run("request-bound without request", func(t *testing.T) {
		err := SignResponse(newTestResponse(), SignConfig{
			Signer:            &recordingSigner{alg: AlgorithmEd25519},
			CoveredComponents: []string{`"@method";req`},
		})
		assert.ErrorIs(t, err, ErrNoAssociatedRequest)
	})

	t.Run("nil header is created", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusNoContent}

		err := SignResponse(resp, SignConfig{Signer: &recordingSigner{alg: AlgorithmEd25519}})
		require.NoError(t, err)
		assert.NotEmpty(t, resp.Header.Get(HeaderSignature))
	})

	t.Run("nil signer", func(t *testing.T) {
		assert.ErrorIs(t, SignResponse(newTestResponse(), SignConfig{}), ErrNoSigner)
	})
}

// createAllSigners creates one signer per algorithm for testing.
func createAllSigners(t *testing.T) []Signer {
	t.Helper()

	signers := make([]Signer, 0, 5)

	_, edPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	edSigner, err := NewEd25519Signer("ed-key", edPriv)
	require.NoError(t, err)
	signers = append(signers, edSigner)

	ecKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	ecSigner, err := NewECDSAP256Signer("ec256-key", ecKey)
	require.NoError(t, err)
	signers = append(signers, ecSigner)

	rsaKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	rsaPSSSigner, err := NewRSAPSSSigner("rsa-pss-key", rsaKey)
	require.NoError(t, err)
	signers = append(signers, rsaPSSSigner)

	rsaV15Signer, err := NewRSAv15Signer("rsa-v15-key", rsaKey)
	require.NoError(t, err)
	signers = append(signers, rsaV15Signer)

	secret := make([]byte, 32)
	_, err = rand.Read(secret)
	require.NoError(t, err)
	hmacSigner, err := NewHMACSHA256Signer("hmac-key", secret)
	require.NoError(t, err)
	signers = append(signers, hmacSigner)

	return signers
}
