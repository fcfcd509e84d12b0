package ageparams

import (
	"fmt"
	"strconv"
	"strings"
)

// PromptPolicy selects the wording variant for the generated instruction.
// Exactly one policy is active per deployment; both render the same clause
// order, the emphatic one adds a visibility clause after the age clause.
type PromptPolicy string

const (
	PromptEmphatic PromptPolicy = "emphatic"
	PromptPlain    PromptPolicy = "plain"
)

// ParsePromptPolicy maps a configuration string onto a policy.
func ParsePromptPolicy(s string) (PromptPolicy, error) {
	switch PromptPolicy(strings.TrimSpace(strings.ToLower(s))) {
	case PromptEmphatic, "":
		return PromptEmphatic, nil
	case PromptPlain:
		return PromptPlain, nil
	default:
		return "", fmt.Errorf("unknown prompt policy %q", s)
	}
}

// BuildPrompt renders a validated parameter set into the upstream editing
// instruction. The output is deterministic: identical params always yield a
// byte-identical string, which is the only contract the caller relies on.
func BuildPrompt(p AgeParams, policy PromptPolicy) string {
	direction := "older"
	if p.AgeDelta < 0 {
		direction = "younger"
	}
	years := p.AgeDelta
	if years < 0 {
		years = -years
	}

	parts := []string{
		"Edit the provided portrait photo.",
		fmt.Sprintf("Make the subject appear %d years %s with intensity %.2f.", years, direction, p.Intensity),
	}
	if policy == PromptEmphatic {
		parts = append(parts, "The age transformation must be clearly visible and noticeable at first glance.")
	}
	parts = append(parts,
		"Apply realistic age cues (skin detail, facial contours, hair aging/de-aging cues) consistent with the requested direction.",
		"Hair color: "+p.HairColor+".",
		"Glasses: "+p.Glasses+".",
		"Baldness level: "+num(p.Baldness)+"/100.",
		"Blemish correction level: "+num(p.BlemishFix)+"/100.",
		"Skin texture shift: "+num(p.SkinTexture)+" on a scale from -100 to 100.",
		"Requested output quality profile: "+p.Quality+".",
	)
	if p.PreserveIdentity {
		parts = append(parts, "Preserve identity and expression, but do not under-apply the requested age change.")
	} else {
		parts = append(parts, "Allow moderate identity changes while keeping a photorealistic result.")
	}
	parts = append(parts, "Do not add extra people, text, logos, or stylization. Keep it photorealistic.")

	return strings.Join(parts, " ")
}

// num renders a level the way the sliders report it: no exponent, no
// trailing zeros.
func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
