// Package agecli implements the client side of the aging flow: profile
// loading, local image preparation, and the HTTP calls against the API.
package agecli

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"ageme/internal/ageparams"
	"ageme/internal/imageprep"
)

// Behavior when local normalization fails.
const (
	OnPrepareErrorFail     = "fail"
	OnPrepareErrorOriginal = "original"
)

// DefaultEndpoint is used when neither the profile nor the flag names one.
const DefaultEndpoint = "http://localhost:8080"

// Profile is the optional yaml configuration file. Every member is optional;
// a missing file yields the zero Profile and built-in defaults apply.
type Profile struct {
	Endpoint            string        `yaml:"endpoint"`
	NormalizationPolicy string        `yaml:"normalization_policy"`
	MaskPolicy          string        `yaml:"mask_policy"`
	OnPrepareError      string        `yaml:"on_prepare_error"`
	Defaults            ParamDefaults `yaml:"defaults"`
}

// ParamDefaults overrides the built-in parameter defaults. Pointers keep an
// absent member distinguishable from an explicit zero.
type ParamDefaults struct {
	AgeDelta         *int     `yaml:"age_delta"`
	Intensity        *float64 `yaml:"intensity"`
	HairColor        *string  `yaml:"hair_color"`
	Glasses          *string  `yaml:"glasses"`
	Baldness         *float64 `yaml:"baldness"`
	BlemishFix       *float64 `yaml:"blemish_fix"`
	SkinTexture      *float64 `yaml:"skin_texture"`
	Quality          *string  `yaml:"quality"`
	PreserveIdentity *bool    `yaml:"preserve_identity"`
}

// LoadProfile reads the yaml profile at path. An empty path is not an error
// and yields the zero profile.
func LoadProfile(path string) (*Profile, error) {
	p := &Profile{}
	if path == "" {
		return p, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("agecli: read profile: %w", err)
	}
	if err := yaml.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("agecli: parse profile: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Profile) validate() error {
	switch p.OnPrepareError {
	case "", OnPrepareErrorFail, OnPrepareErrorOriginal:
	default:
		return fmt.Errorf("agecli: on_prepare_error must be %q or %q, got %q",
			OnPrepareErrorFail, OnPrepareErrorOriginal, p.OnPrepareError)
	}
	if _, err := imageprep.ParseNormalizationPolicy(p.NormalizationPolicy); err != nil {
		return fmt.Errorf("agecli: %w", err)
	}
	if _, err := imageprep.ParseMaskPolicy(p.MaskPolicy); err != nil {
		return fmt.Errorf("agecli: %w", err)
	}
	return nil
}

// ResolveEndpoint picks the effective endpoint: explicit flag, then profile,
// then the built-in default.
func (p *Profile) ResolveEndpoint(flag string) string {
	if flag != "" {
		return flag
	}
	if p.Endpoint != "" {
		return p.Endpoint
	}
	return DefaultEndpoint
}

// OnError returns the effective normalization failure policy.
func (p *Profile) OnError() string {
	if p.OnPrepareError == "" {
		return OnPrepareErrorFail
	}
	return p.OnPrepareError
}

// ApplyDefaults overlays the profile's parameter defaults onto params,
// skipping any member the caller set explicitly (named in explicit).
func (p *Profile) ApplyDefaults(params *ageparams.AgeParams, explicit map[string]bool) {
	d := p.Defaults
	if d.AgeDelta != nil && !explicit["age_delta"] {
		params.AgeDelta = *d.AgeDelta
	}
	if d.Intensity != nil && !explicit["intensity"] {
		params.Intensity = *d.Intensity
	}
	if d.HairColor != nil && !explicit["hair_color"] {
		params.HairColor = *d.HairColor
	}
	if d.Glasses != nil && !explicit["glasses"] {
		params.Glasses = *d.Glasses
	}
	if d.Baldness != nil && !explicit["baldness"] {
		params.Baldness = *d.Baldness
	}
	if d.BlemishFix != nil && !explicit["blemish_fix"] {
		params.BlemishFix = *d.BlemishFix
	}
	if d.SkinTexture != nil && !explicit["skin_texture"] {
		params.SkinTexture = *d.SkinTexture
	}
	if d.Quality != nil && !explicit["quality"] {
		params.Quality = *d.Quality
	}
	if d.PreserveIdentity != nil && !explicit["preserve_identity"] {
		params.PreserveIdentity = *d.PreserveIdentity
	}
}
