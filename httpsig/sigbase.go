package httpsig

import (
	"fmt"
	"strings"
)

// CreateSignatureBase constructs the signature base per RFC 9421
// Section 2.5. Each covered component produces a line
// `<component-id>: <value>\n` in covered order, and the final line is
// `"@signature-params": <params>` with no trailing newline.
//
// A covered component without a value aborts construction with
// ErrMissingComponent; a partial base is never returned.
func CreateSignatureBase(params *Parameters, provider Provider) ([]byte, error) {
	var base strings.Builder

	for _, c := range params.components {
		id, err := c.Serialize()
		if err != nil {
			return nil, err
		}

		val, ok, err := provider.ComponentValue(c)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingComponent, id)
		}

		base.WriteString(id)
		base.WriteString(": ")
		base.WriteString(val)
		base.WriteByte('\n')
	}

	id, err := params.ComponentIdentifier().Serialize()
	if err != nil {
		return nil, err
	}

	value, err := params.Serialize()
	if err != nil {
		return nil, err
	}

	base.WriteString(id)
	base.WriteString(": ")
	base.WriteString(value)

	return []byte(base.String()), nil
}
