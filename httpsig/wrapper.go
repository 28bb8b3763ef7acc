package httpsig

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"net/http"

	"github.com/dunglas/httpsfv"
	"github.com/google/uuid"
)

// Header field names carrying signatures per RFC 9421 Section 4.
const (
	HeaderSignature      = "Signature"
	HeaderSignatureInput = "Signature-Input"
)

// randomIDLength is the length of ids produced by RandomID.
const randomIDLength = 5

const randomIDAlphabet = "abcdefghijklmnopqrstuvwxyz"

// IDGenerator returns a new signature id (the dictionary key shared by the
// Signature and Signature-Input fields). Any unique label is valid.
type IDGenerator func() (string, error)

// RandomID returns a short random lowercase alphabetic id.
func RandomID() (string, error) {
	b := make([]byte, randomIDLength)
	max := big.NewInt(int64(len(randomIDAlphabet)))

	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}

		b[i] = randomIDAlphabet[n.Int64()]
	}

	return string(b), nil
}

// UUIDv4ID returns a "sig-" prefixed UUID v4 id. The prefix keeps the id a
// valid structured-field key, which must not start with a digit.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.4
func UUIDv4ID() (string, error) {
	return "sig-" + uuid.New().String(), nil
}

// UUIDv7ID returns a "sig-" prefixed, time-ordered UUID v7 id.
//
// Spec reference: https://www.rfc-editor.org/rfc/rfc9562#section-5.7
func UUIDv7ID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	return "sig-" + id.String(), nil
}

// MessageWrapper attaches a signing result to an outbound message.
type MessageWrapper interface {
	// AddSignature attaches signature under id. When id is empty an id is
	// generated. It returns the id used.
	AddSignature(id string, params *Parameters, signature []byte) (string, error)
}

// HeaderWrapper attaches signatures to an http.Header, which covers both
// requests and responses. Existing Signature and Signature-Input members
// are kept, so a message can carry several signatures.
type HeaderWrapper struct {
	header     http.Header
	generateID IDGenerator
}

// NewHeaderWrapper returns a wrapper over h. When generate is nil,
// RandomID is used.
func NewHeaderWrapper(h http.Header, generate IDGenerator) *HeaderWrapper {
	if generate == nil {
		generate = RandomID
	}

	return &HeaderWrapper{header: h, generateID: generate}
}

// AddSignature sets the Signature-Input member id to the serialized
// parameters and the Signature member id to the byte-sequence signature.
// An id already present in either field is rejected with
// ErrDuplicateSignatureID.
func (w *HeaderWrapper) AddSignature(id string, params *Parameters, signature []byte) (string, error) {
	if id == "" {
		generated, err := w.generateID()
		if err != nil {
			return "", err
		}

		id = generated
	}

	inputDict, err := existingDictionary(w.header, HeaderSignatureInput)
	if err != nil {
		return "", err
	}

	sigDict, err := existingDictionary(w.header, HeaderSignature)
	if err != nil {
		return "", err
	}

	_, hasInput := inputDict.Get(id)
	_, hasSig := sigDict.Get(id)
	if hasInput || hasSig {
		return "", fmt.Errorf("%w: %q", ErrDuplicateSignatureID, id)
	}

	inputDict.Add(id, params.ComponentValue())
	sigDict.Add(id, httpsfv.NewItem(signature))

	input, err := httpsfv.Marshal(inputDict)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	sig, err := httpsfv.Marshal(sigDict)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	w.header.Set(HeaderSignatureInput, input)
	w.header.Set(HeaderSignature, sig)

	return id, nil
}

// existingDictionary decodes a dictionary field, or returns an empty one
// when the field is absent.
func existingDictionary(h http.Header, name string) (*httpsfv.Dictionary, error) {
	values := h.Values(name)
	if len(values) == 0 {
		return httpsfv.NewDictionary(), nil
	}

	dict, err := httpsfv.UnmarshalDictionary(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedInput, name, err)
	}

	return dict, nil
}
