package httpsig

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/dunglas/httpsfv"
	"golang.org/x/net/http/httpguts"
)

// Derived component identifiers per RFC 9421 Section 2.2.
const (
	ComponentMethod        = "@method"
	ComponentAuthority     = "@authority"
	ComponentScheme        = "@scheme"
	ComponentTargetURI     = "@target-uri"
	ComponentRequestTarget = "@request-target"
	ComponentPath          = "@path"
	ComponentQuery         = "@query"
	ComponentQueryParam    = "@query-param"
	ComponentStatus        = "@status"

	// ComponentSignatureParams labels the final line of the signature base.
	ComponentSignatureParams = "@signature-params"
)

// Component identifier parameters.
const (
	// ParamName selects the query parameter for @query-param.
	ParamName = "name"

	// ParamReq resolves a component against the request associated with
	// a response.
	ParamReq = "req"
)

// unimplementedParams are identifier parameters defined by RFC 9421 whose
// serialization rules are not implemented. Identifiers carrying them are
// rejected rather than resolved with guessed semantics.
var unimplementedParams = []string{"sf", "bs", "key", "tr"}

// Component is a component identifier: a name plus an ordered set of
// parameters. Names starting with "@" are derived components; all other
// names are HTTP field names and are expected in lowercase.
//
// A Component is immutable; WithParam returns a modified copy.
type Component struct {
	name   string
	params *httpsfv.Params
}

// NewComponent returns a component identifier with the given name and no
// parameters. The name is stored verbatim.
func NewComponent(name string) Component {
	return Component{name: name, params: httpsfv.NewParams()}
}

// ParseComponent parses a serialized component identifier such as
// `"@query-param";name="Pet"`.
func ParseComponent(s string) (Component, error) {
	item, err := httpsfv.UnmarshalItem([]string{s})
	if err != nil {
		return Component{}, fmt.Errorf("%w: %q: %v", ErrInvalidComponent, s, err)
	}

	return componentFromItem(item)
}

func componentFromItem(item httpsfv.Item) (Component, error) {
	name, ok := item.Value.(string)
	if !ok {
		return Component{}, fmt.Errorf("%w: identifier must be a string item", ErrInvalidComponent)
	}

	c := NewComponent(name)
	if item.Params != nil {
		for _, k := range item.Params.Names() {
			v, _ := item.Params.Get(k)
			c.params.Add(k, v)
		}
	}

	return c, nil
}

// WithParam returns a copy of c with parameter key set to value. Setting an
// existing key updates it in place; new keys are appended, so parameters
// serialize in the order they were set. Values must be bool, int64,
// float64, string, httpsfv.Token or []byte.
func (c Component) WithParam(key string, value any) Component {
	out := NewComponent(c.name)
	for _, k := range c.ParamNames() {
		v, _ := c.params.Get(k)
		out.params.Add(k, v)
	}

	if i, ok := value.(int); ok {
		value = int64(i)
	}

	out.params.Add(key, value)

	return out
}

// Name returns the component name.
func (c Component) Name() string {
	return c.name
}

// Param returns the value of parameter key.
func (c Component) Param(key string) (any, bool) {
	if c.params == nil {
		return nil, false
	}

	return c.params.Get(key)
}

// ParamNames returns the parameter names in serialization order.
func (c Component) ParamNames() []string {
	if c.params == nil {
		return nil
	}

	return c.params.Names()
}

// IsDerived reports whether c names a derived component.
func (c Component) IsDerived() bool {
	return strings.HasPrefix(c.name, "@")
}

// IsRequestBound reports whether c carries a truthy req parameter.
func (c Component) IsRequestBound() bool {
	v, ok := c.Param(ParamReq)
	if !ok {
		return false
	}

	b, ok := v.(bool)

	return ok && b
}

// withoutParam returns a copy of c without parameter key.
func (c Component) withoutParam(key string) Component {
	out := NewComponent(c.name)
	for _, k := range c.ParamNames() {
		if k == key {
			continue
		}

		v, _ := c.params.Get(k)
		out.params.Add(k, v)
	}

	return out
}

// Equal reports whether c and o have the same name and the same parameter
// set. Parameter order is ignored.
func (c Component) Equal(o Component) bool {
	if c.name != o.name {
		return false
	}

	names := c.ParamNames()
	if len(names) != len(o.ParamNames()) {
		return false
	}

	for _, k := range names {
		a, _ := c.Param(k)
		b, ok := o.Param(k)
		if !ok || !bareItemEqual(a, b) {
			return false
		}
	}

	return true
}

// Item returns c as a structured-field string item.
func (c Component) Item() httpsfv.Item {
	item := httpsfv.NewItem(c.name)
	for _, k := range c.ParamNames() {
		v, _ := c.params.Get(k)
		item.Params.Add(k, v)
	}

	return item
}

// Serialize returns the canonical structured-field serialization of c, as
// used on signature base lines.
func (c Component) Serialize() (string, error) {
	s, err := httpsfv.Marshal(c.Item())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidComponent, err)
	}

	return s, nil
}

// String implements fmt.Stringer. Identifiers that cannot be serialized
// fall back to a Go-quoted name.
func (c Component) String() string {
	s, err := c.Serialize()
	if err != nil {
		return strconv.Quote(c.name)
	}

	return s
}

// Validate checks that c is well formed: a non-empty name, a lowercase
// token for field names, a string name parameter for @query-param, a
// boolean req parameter, and no unimplemented parameters.
func (c Component) Validate() error {
	if c.name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidComponent)
	}

	if !c.IsDerived() {
		if !httpguts.ValidHeaderFieldName(c.name) {
			return fmt.Errorf("%w: %q is not a valid field name", ErrInvalidComponent, c.name)
		}

		if c.name != strings.ToLower(c.name) {
			return fmt.Errorf("%w: field name %q must be lowercase", ErrInvalidComponent, c.name)
		}
	}

	for _, k := range unimplementedParams {
		if _, ok := c.Param(k); ok {
			return fmt.Errorf("%w: parameter %q on %s", ErrUnsupportedComponent, k, c)
		}
	}

	if v, ok := c.Param(ParamReq); ok {
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("%w: req parameter must be boolean", ErrInvalidComponent)
		}
	}

	if c.name == ComponentQueryParam {
		v, ok := c.Param(ParamName)
		if !ok {
			return fmt.Errorf("%w: %s requires a name parameter", ErrInvalidComponent, ComponentQueryParam)
		}

		if _, isString := v.(string); !isString {
			return fmt.Errorf("%w: %s name parameter must be a string", ErrInvalidComponent, ComponentQueryParam)
		}
	}

	return nil
}

// bareItemEqual compares two structured-field bare item values.
func bareItemEqual(a, b any) bool {
	switch av := a.(type) {
	case []byte:
		bv, ok := b.([]byte)
		return ok && bytes.Equal(av, bv)
	case bool, int64, float64, string, httpsfv.Token:
		if _, isBytes := b.([]byte); isBytes {
			return false
		}

		return a == b
	default:
		return false
	}
}
