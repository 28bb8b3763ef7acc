package httpsig

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// IDStrategy names the IDGenerator a Profile uses for signature labels.
type IDStrategy string

// Supported label strategies.
const (
	IDStrategyRandom IDStrategy = "random"
	IDStrategyUUIDv4 IDStrategy = "uuid4"
	IDStrategyUUIDv7 IDStrategy = "uuid7"
)

// UnmarshalYAML accepts the strategy name in any letter case.
func (s *IDStrategy) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("id strategy must be a scalar, got line %d", node.Line)
	}

	*s = IDStrategy(strings.ToLower(strings.TrimSpace(node.Value)))

	return nil
}

func (s IDStrategy) generator() (IDGenerator, error) {
	switch s {
	case "", IDStrategyRandom:
		return RandomID, nil
	case IDStrategyUUIDv4:
		return UUIDv4ID, nil
	case IDStrategyUUIDv7:
		return UUIDv7ID, nil
	default:
		return nil, fmt.Errorf("%w: unknown id strategy %q", ErrInvalidProfile, s)
	}
}

// Profile is a declarative signing and verification policy, typically
// shipped as YAML next to the service configuration:
//
//	label: sig1
//	components: ["@method", "@authority", "@path", "content-type"]
//	tag: app-123
//	nonce: true
//	expires_in: 5m
//	digest: sha-256
//	verify:
//	  required: ["@method", "@authority"]
//	  max_age: 10m
//	  require_digest: true
type Profile struct {
	// Label of produced signatures. When empty, IDStrategy picks one.
	Label string `yaml:"label,omitempty"`

	// IDStrategy selects the label generator: random, uuid4 or uuid7.
	IDStrategy IDStrategy `yaml:"id_strategy,omitempty"`

	// Components are the covered components, in signature base order.
	Components []string `yaml:"components,omitempty"`

	// Tag is the application-specific signature tag.
	Tag string `yaml:"tag,omitempty"`

	// Nonce adds a fresh random nonce to each signature.
	Nonce bool `yaml:"nonce,omitempty"`

	// ExpiresIn sets expires relative to the signing time.
	ExpiresIn time.Duration `yaml:"expires_in,omitempty"`

	// Digest adds a Content-Digest field computed with this algorithm.
	Digest DigestAlgorithm `yaml:"digest,omitempty"`

	Verify VerifyProfile `yaml:"verify,omitempty"`
}

// VerifyProfile is the verification half of a Profile.
type VerifyProfile struct {
	Label         string        `yaml:"label,omitempty"`
	Required      []string      `yaml:"required,omitempty"`
	MaxAge        time.Duration `yaml:"max_age,omitempty"`
	RequireDigest bool          `yaml:"require_digest,omitempty"`
}

// LoadProfile decodes and validates a YAML profile. Unknown keys are
// rejected.
func LoadProfile(r io.Reader) (*Profile, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var p Profile
	if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProfile, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// ParseProfile is LoadProfile over an in-memory document.
func ParseProfile(data []byte) (*Profile, error) {
	return LoadProfile(strings.NewReader(string(data)))
}

// Validate checks component identifiers, the digest algorithm, the id
// strategy and durations.
func (p *Profile) Validate() error {
	for _, list := range [][]string{p.Components, p.Verify.Required} {
		for _, name := range list {
			if _, err := parseCoveredComponent(name); err != nil {
				return fmt.Errorf("%w: component %q: %v", ErrInvalidProfile, name, err)
			}
		}
	}

	if p.Digest != "" {
		if _, err := computeDigest(nil, p.Digest); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidProfile, err)
		}
	}

	if _, err := p.IDStrategy.generator(); err != nil {
		return err
	}

	if p.ExpiresIn < 0 || p.Verify.MaxAge < 0 {
		return fmt.Errorf("%w: durations must not be negative", ErrInvalidProfile)
	}

	return nil
}

// Marshal encodes the profile as YAML.
func (p *Profile) Marshal() ([]byte, error) {
	return yaml.Marshal(p)
}

// SignConfig returns the signing configuration. Creation time, nonce and
// expiry are computed for each signed message, so one config can back a
// long-lived Transport.
func (p *Profile) SignConfig(signer Signer) (SignConfig, error) {
	gen, err := p.IDStrategy.generator()
	if err != nil {
		return SignConfig{}, err
	}

	cfg := SignConfig{
		Signer:            signer,
		Label:             p.Label,
		IDGenerator:       gen,
		CoveredComponents: append([]string(nil), p.Components...),
		Tag:               p.Tag,
		ExpiresIn:         p.ExpiresIn,
		DigestAlgorithm:   p.Digest,
	}

	if p.Nonce {
		cfg.NonceFunc = GenerateNonce
	}

	return cfg, nil
}

// VerifyConfig returns the verification configuration.
func (p *Profile) VerifyConfig(resolver KeyResolver) VerifyConfig {
	return VerifyConfig{
		Resolver:           resolver,
		Label:              p.Verify.Label,
		RequiredComponents: append([]string(nil), p.Verify.Required...),
		MaxAge:             p.Verify.MaxAge,
		RequireDigest:      p.Verify.RequireDigest,
	}
}
