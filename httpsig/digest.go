package httpsig

import (
	"bytes"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"fmt"
	"io"
	"net/http"

	"github.com/dunglas/httpsfv"
)

// HeaderContentDigest is the RFC 9530 integrity field.
const HeaderContentDigest = "Content-Digest"

// DigestAlgorithm identifies the hash algorithm for Content-Digest
// per RFC 9530.
type DigestAlgorithm string

const (
	// DigestSHA256 uses SHA-256 for content digest.
	DigestSHA256 DigestAlgorithm = "sha-256"

	// DigestSHA512 uses SHA-512 for content digest.
	DigestSHA512 DigestAlgorithm = "sha-512"
)

// SetContentDigest reads the request body, sets the Content-Digest header
// and replaces the body so it can be read again.
func SetContentDigest(r *http.Request, alg DigestAlgorithm) error {
	value, err := bodyDigest(&r.Body, alg)
	if err != nil {
		return err
	}

	if r.Header == nil {
		r.Header = make(http.Header)
	}

	r.Header.Set(HeaderContentDigest, value)

	return nil
}

// SetResponseContentDigest is SetContentDigest for responses.
func SetResponseContentDigest(resp *http.Response, alg DigestAlgorithm) error {
	value, err := bodyDigest(&resp.Body, alg)
	if err != nil {
		return err
	}

	if resp.Header == nil {
		resp.Header = make(http.Header)
	}

	resp.Header.Set(HeaderContentDigest, value)

	return nil
}

// VerifyContentDigest verifies the Content-Digest header against the
// request body. The header may carry several digests; the first one with a
// supported algorithm is checked.
func VerifyContentDigest(r *http.Request) error {
	return verifyDigest(r.Header, &r.Body)
}

// VerifyResponseContentDigest is VerifyContentDigest for responses.
func VerifyResponseContentDigest(resp *http.Response) error {
	return verifyDigest(resp.Header, &resp.Body)
}

// ContentDigest returns the Content-Digest field value for body.
func ContentDigest(body []byte, alg DigestAlgorithm) (string, error) {
	sum, err := computeDigest(body, alg)
	if err != nil {
		return "", err
	}

	dict := httpsfv.NewDictionary()
	dict.Add(string(alg), httpsfv.NewItem(sum))

	return httpsfv.Marshal(dict)
}

// bodyDigest drains *body, restores it and returns its Content-Digest value.
func bodyDigest(body *io.ReadCloser, alg DigestAlgorithm) (string, error) {
	data, err := readAndRestore(body)
	if err != nil {
		return "", err
	}

	return ContentDigest(data, alg)
}

func verifyDigest(h http.Header, body *io.ReadCloser) error {
	values := h.Values(HeaderContentDigest)
	if len(values) == 0 {
		return ErrDigestNotFound
	}

	dict, err := httpsfv.UnmarshalDictionary(values)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedInput, HeaderContentDigest, err)
	}

	data, err := readAndRestore(body)
	if err != nil {
		return err
	}

	for _, name := range dict.Names() {
		alg := DigestAlgorithm(name)
		if alg != DigestSHA256 && alg != DigestSHA512 {
			continue
		}

		member, _ := dict.Get(name)

		item, ok := member.(httpsfv.Item)
		if !ok {
			return fmt.Errorf("%w: %s must be a byte sequence", ErrMalformedInput, name)
		}

		actual, ok := item.Value.([]byte)
		if !ok {
			return fmt.Errorf("%w: %s must be a byte sequence", ErrMalformedInput, name)
		}

		expected, err := computeDigest(data, alg)
		if err != nil {
			return err
		}

		if subtle.ConstantTimeCompare(expected, actual) != 1 {
			return ErrDigestMismatch
		}

		return nil
	}

	return ErrUnsupportedDigest
}

func computeDigest(data []byte, alg DigestAlgorithm) ([]byte, error) {
	switch alg {
	case DigestSHA256:
		h := sha256.Sum256(data)
		return h[:], nil
	case DigestSHA512:
		h := sha512.Sum512(data)
		return h[:], nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDigest, alg)
	}
}

// readAndRestore drains *body and replaces it with an in-memory reader so
// downstream consumers can read it again.
func readAndRestore(body *io.ReadCloser) ([]byte, error) {
	if *body == nil || *body == http.NoBody {
		return nil, nil
	}

	data, err := io.ReadAll(*body)
	if err != nil {
		return nil, err
	}

	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))

	return data, nil
}
