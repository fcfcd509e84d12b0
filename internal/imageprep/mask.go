package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"strings"

	"ageme/internal/ageparams"
)

// MaskPolicy derives the edit mask sent alongside the upload. Opaque black
// pixels mean "preserve", fully transparent pixels mean "editable". Regions
// are hard-edged; the upstream edit semantics do not need feathering.
type MaskPolicy interface {
	Name() string
	BuildMask(w, h int, p ageparams.AgeParams) *image.NRGBA
}

// RegionMask punches editable regions matching the requested parameters:
// the eye band for glasses edits, the central face otherwise, plus the upper
// hair region when age, hair color, or baldness changes are requested. Each
// rule is evaluated independently and the regions are unioned.
type RegionMask struct{}

func (RegionMask) Name() string { return "region" }

func (RegionMask) BuildMask(w, h int, p ageparams.AgeParams) *image.NRGBA {
	m := newOpaqueMask(w, h)
	fw, fh := float64(w), float64(h)

	if p.Glasses == ageparams.GlassesAdd || p.Glasses == ageparams.GlassesRemove {
		clearRect(m, int(0.24*fw), int(0.33*fh), int(0.76*fw), int(0.53*fh))
	} else {
		clearEllipse(m, 0.50*fw, 0.50*fh, 0.28*fw, 0.34*fh)
	}
	if p.AgeDelta != 0 || p.HairColor != ageparams.HairPreserve || p.Baldness > 0 {
		clearEllipse(m, 0.50*fw, 0.24*fh, 0.26*fw, 0.16*fh)
	}
	return m
}

// FullEditMask marks every pixel editable. It is the no-op deployment
// profile for upstream models that behave better without region hints.
type FullEditMask struct{}

func (FullEditMask) Name() string { return "full-edit" }

func (FullEditMask) BuildMask(w, h int, _ ageparams.AgeParams) *image.NRGBA {
	// The zero NRGBA value is already fully transparent.
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

// ParseMaskPolicy maps a configuration string onto a policy. The empty name
// selects the region mask; "none" disables masking entirely and returns nil.
func ParseMaskPolicy(name string) (MaskPolicy, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "region":
		return RegionMask{}, nil
	case "full-edit":
		return FullEditMask{}, nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown mask policy %q", name)
	}
}

// EncodeMaskPNG renders a built mask into the PNG payload the transport
// expects.
func EncodeMaskPNG(m *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		return nil, fmt.Errorf("failed to encode mask: %w", err)
	}
	return buf.Bytes(), nil
}

func newOpaqueMask(w, h int) *image.NRGBA {
	m := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(m, m.Bounds(), image.NewUniform(color.NRGBA{A: 0xff}), image.Point{}, draw.Src)
	return m
}

func clearRect(m *image.NRGBA, x0, y0, x1, y1 int) {
	clear := color.NRGBA{}
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			m.SetNRGBA(x, y, clear)
		}
	}
}

func clearEllipse(m *image.NRGBA, cx, cy, rx, ry float64) {
	if rx <= 0 || ry <= 0 {
		return
	}
	clear := color.NRGBA{}
	bounds := m.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		dy := (float64(y) + 0.5 - cy) / ry
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dx := (float64(x) + 0.5 - cx) / rx
			if dx*dx+dy*dy <= 1 {
				m.SetNRGBA(x, y, clear)
			}
		}
	}
}
