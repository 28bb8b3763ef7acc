package httpsig

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dunglas/httpsfv"
)

// Signature metadata parameter names per RFC 9421 Section 2.3.
const (
	ParamAlg     = "alg"
	ParamCreated = "created"
	ParamExpires = "expires"
	ParamKeyID   = "keyid"
	ParamNonce   = "nonce"
	ParamTag     = "tag"
)

type metaKind int

const (
	metaAlg metaKind = iota + 1
	metaTime
	metaString
	metaRaw
)

// metaValue is a tagged union over the metadata value types. Recognized
// keys hold typed values; unrecognized keys read from the wire keep their
// serialized text alongside the decoded bare item.
type metaValue struct {
	kind metaKind
	alg  Algorithm
	time time.Time
	str  string
	bare any
}

type metaParam struct {
	key   string
	value metaValue
}

// Parameters holds the covered component identifiers and the signature
// metadata of one signature. Component order is the line order of the
// signature base; metadata keys serialize in the order they were first set.
//
// The zero value is ready to use.
type Parameters struct {
	components []Component
	meta       []metaParam
}

// NewParameters returns empty signature parameters.
func NewParameters() *Parameters {
	return &Parameters{}
}

// AddComponent adds a component without parameters. Field names are
// lowercased; derived names (starting with "@") are stored verbatim.
func (p *Parameters) AddComponent(name string) *Parameters {
	if !strings.HasPrefix(name, "@") {
		name = strings.ToLower(name)
	}

	return p.AddComponentIdentifier(NewComponent(name))
}

// AddComponentIdentifier adds c verbatim. Field names are expected to be
// lowercase already.
func (p *Parameters) AddComponentIdentifier(c Component) *Parameters {
	p.components = append(p.components, c)
	return p
}

// Components returns the covered component identifiers in order.
func (p *Parameters) Components() []Component {
	return slices.Clone(p.components)
}

// ContainsComponent reports whether a component with the given name is
// covered, ignoring parameters.
func (p *Parameters) ContainsComponent(name string) bool {
	return slices.ContainsFunc(p.components, func(c Component) bool {
		return c.Name() == name
	})
}

// ContainsComponentIdentifier reports whether c is covered with exactly the
// same parameter set.
func (p *Parameters) ContainsComponentIdentifier(c Component) bool {
	return slices.ContainsFunc(p.components, c.Equal)
}

// SetAlg sets the alg parameter. AlgorithmFromKey keeps its position in the
// metadata but is omitted from serialization.
func (p *Parameters) SetAlg(alg Algorithm) *Parameters {
	p.set(ParamAlg, metaValue{kind: metaAlg, alg: alg})
	return p
}

// SetCreated sets the created parameter.
func (p *Parameters) SetCreated(t time.Time) *Parameters {
	p.set(ParamCreated, metaValue{kind: metaTime, time: t})
	return p
}

// SetExpires sets the expires parameter.
func (p *Parameters) SetExpires(t time.Time) *Parameters {
	p.set(ParamExpires, metaValue{kind: metaTime, time: t})
	return p
}

// SetKeyID sets the keyid parameter.
func (p *Parameters) SetKeyID(keyID string) *Parameters {
	p.set(ParamKeyID, metaValue{kind: metaString, str: keyID})
	return p
}

// SetNonce sets the nonce parameter.
func (p *Parameters) SetNonce(nonce string) *Parameters {
	p.set(ParamNonce, metaValue{kind: metaString, str: nonce})
	return p
}

// SetTag sets the tag parameter.
func (p *Parameters) SetTag(tag string) *Parameters {
	p.set(ParamTag, metaValue{kind: metaString, str: tag})
	return p
}

// SetExtension sets an application-defined string parameter. It is
// serialized as a structured-field string.
func (p *Parameters) SetExtension(key, value string) *Parameters {
	p.set(key, metaValue{kind: metaString, str: value})
	return p
}

func (p *Parameters) set(key string, v metaValue) {
	for i := range p.meta {
		if p.meta[i].key == key {
			p.meta[i].value = v
			return
		}
	}

	p.meta = append(p.meta, metaParam{key: key, value: v})
}

func (p *Parameters) get(key string) (metaValue, bool) {
	for _, m := range p.meta {
		if m.key == key {
			return m.value, true
		}
	}

	return metaValue{}, false
}

// Alg returns the alg parameter.
func (p *Parameters) Alg() (Algorithm, bool) {
	v, ok := p.get(ParamAlg)
	if !ok || v.kind != metaAlg {
		return "", false
	}

	return v.alg, true
}

// Created returns the created parameter.
func (p *Parameters) Created() (time.Time, bool) {
	return p.timeParam(ParamCreated)
}

// Expires returns the expires parameter.
func (p *Parameters) Expires() (time.Time, bool) {
	return p.timeParam(ParamExpires)
}

func (p *Parameters) timeParam(key string) (time.Time, bool) {
	v, ok := p.get(key)
	if !ok || v.kind != metaTime {
		return time.Time{}, false
	}

	return v.time, true
}

// KeyID returns the keyid parameter.
func (p *Parameters) KeyID() (string, bool) {
	return p.stringParam(ParamKeyID)
}

// Nonce returns the nonce parameter.
func (p *Parameters) Nonce() (string, bool) {
	return p.stringParam(ParamNonce)
}

// Tag returns the tag parameter.
func (p *Parameters) Tag() (string, bool) {
	return p.stringParam(ParamTag)
}

// Extension returns a parameter outside the recognized set. Values set with
// SetExtension are returned as given; values decoded from the wire are
// returned as their serialized structured-field text (a string extension
// keeps its quotes).
func (p *Parameters) Extension(key string) (string, bool) {
	return p.stringParam(key)
}

func (p *Parameters) stringParam(key string) (string, bool) {
	v, ok := p.get(key)
	if !ok || (v.kind != metaString && v.kind != metaRaw) {
		return "", false
	}

	return v.str, true
}

// Keys returns the metadata parameter names in insertion order.
func (p *Parameters) Keys() []string {
	keys := make([]string, len(p.meta))
	for i, m := range p.meta {
		keys[i] = m.key
	}

	return keys
}

// ComponentIdentifier returns the @signature-params identifier that labels
// the metadata line of the signature base.
func (p *Parameters) ComponentIdentifier() Component {
	return NewComponent(ComponentSignatureParams)
}

// ComponentValue returns the canonical inner list: the covered component
// identifiers followed by the metadata in insertion order. This is both the
// Signature-Input member value and the value of the @signature-params line.
func (p *Parameters) ComponentValue() httpsfv.InnerList {
	list := httpsfv.InnerList{
		Items:  make([]httpsfv.Item, 0, len(p.components)),
		Params: httpsfv.NewParams(),
	}

	for _, c := range p.components {
		list.Items = append(list.Items, c.Item())
	}

	for _, m := range p.meta {
		switch m.value.kind {
		case metaAlg:
			if token, ok := m.value.alg.Explicit(); ok {
				list.Params.Add(m.key, token)
			}
		case metaTime:
			list.Params.Add(m.key, m.value.time.Unix())
		case metaString:
			list.Params.Add(m.key, m.value.str)
		case metaRaw:
			list.Params.Add(m.key, m.value.bare)
		}
	}

	return list
}

// Serialize returns the structured-field serialization of ComponentValue.
func (p *Parameters) Serialize() (string, error) {
	s, err := httpsfv.Marshal(p.ComponentValue())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return s, nil
}

// ParseSignatureInput decodes Signature-Input field lines and returns the
// parameters of signature id.
func ParseSignatureInput(values []string, id string) (*Parameters, error) {
	dict, err := httpsfv.UnmarshalDictionary(values)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedInput, err)
	}

	return FromDictionaryEntry(dict, id)
}

// FromDictionaryEntry rebuilds the parameters of signature id from a
// decoded Signature-Input dictionary.
func FromDictionaryEntry(dict *httpsfv.Dictionary, id string) (*Parameters, error) {
	member, ok := dict.Get(id)
	if !ok {
		serialized, _ := httpsfv.Marshal(dict)
		return nil, fmt.Errorf("%w: could not find %q in dictionary %s", ErrSignatureNotFound, id, serialized)
	}

	var list httpsfv.InnerList
	switch m := member.(type) {
	case httpsfv.InnerList:
		list = m
	case *httpsfv.InnerList:
		list = *m
	default:
		return nil, fmt.Errorf("%w: signature %q must be an inner list", ErrMalformedInput, id)
	}

	p := NewParameters()

	for _, item := range list.Items {
		c, err := componentFromItem(item)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %q: %v", ErrMalformedInput, id, err)
		}

		p.AddComponentIdentifier(c)
	}

	if list.Params == nil {
		return p, nil
	}

	for _, key := range list.Params.Names() {
		v, _ := list.Params.Get(key)
		if err := p.decodeParam(key, v); err != nil {
			return nil, fmt.Errorf("%w: signature %q: %v", ErrMalformedInput, id, err)
		}
	}

	return p, nil
}

func (p *Parameters) decodeParam(key string, v any) error {
	switch key {
	case ParamAlg:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}

		alg, err := ParseAlgorithm(s)
		if err != nil {
			return err
		}

		p.SetAlg(alg)

	case ParamCreated, ParamExpires:
		ts, ok := v.(int64)
		if !ok {
			return fmt.Errorf("%s must be an integer", key)
		}

		p.set(key, metaValue{kind: metaTime, time: time.Unix(ts, 0)})

	case ParamKeyID, ParamNonce, ParamTag:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("%s must be a string", key)
		}

		p.set(key, metaValue{kind: metaString, str: s})

	default:
		raw, err := httpsfv.Marshal(httpsfv.NewItem(v))
		if err != nil {
			return fmt.Errorf("%s: %v", key, err)
		}

		p.set(key, metaValue{kind: metaRaw, str: raw, bare: v})
	}

	return nil
}
