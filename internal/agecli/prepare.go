package agecli

import (
	"bytes"
	"fmt"
	"image"

	"ageme/internal/ageparams"
	"ageme/internal/imageprep"
)

// PrepareOptions selects the local pipeline for one upload.
type PrepareOptions struct {
	Normalization imageprep.NormalizationPolicy
	Mask          imageprep.MaskPolicy // nil skips mask generation
	OnError       string               // OnPrepareErrorFail or OnPrepareErrorOriginal
}

// Prepared is the output of the local pipeline: the upload image plus an
// optional PNG mask sized to it.
type Prepared struct {
	Image        imageprep.Normalized
	MaskPNG      []byte
	MaskPolicy   string
	UsedOriginal bool
}

// Prepare runs source checks, normalization, and mask generation for one
// file. When normalization fails and OnError is "original", the untouched
// source is used instead, provided it still decodes to a known raster type.
func Prepare(src []byte, declaredMIME, filename string, params ageparams.AgeParams, opts PrepareOptions) (*Prepared, error) {
	if err := imageprep.CheckSource(declaredMIME, int64(len(src))); err != nil {
		return nil, err
	}

	out := &Prepared{}
	norm, err := opts.Normalization.Normalize(src, filename)
	switch {
	case err == nil:
		out.Image = *norm
	case opts.OnError == OnPrepareErrorOriginal:
		cfg, format, derr := image.DecodeConfig(bytes.NewReader(src))
		if derr != nil {
			return nil, fmt.Errorf("agecli: normalization failed (%v) and source is not decodable: %w", err, derr)
		}
		out.Image = imageprep.Normalized{
			Data:     src,
			MIME:     "image/" + format,
			Filename: filename,
			Width:    cfg.Width,
			Height:   cfg.Height,
		}
		out.UsedOriginal = true
	default:
		return nil, err
	}

	if opts.Mask != nil {
		mask := opts.Mask.BuildMask(out.Image.Width, out.Image.Height, params)
		encoded, err := imageprep.EncodeMaskPNG(mask)
		if err != nil {
			return nil, err
		}
		out.MaskPNG = encoded
		out.MaskPolicy = opts.Mask.Name()
	}
	return out, nil
}

// DebugSummary describes what Prepare did, for the --debug flag and the
// prepare subcommand's report.
func (p *Prepared) DebugSummary(sourceBytes int, sourceMIME string) map[string]any {
	summary := map[string]any{
		"source_bytes":  sourceBytes,
		"source_type":   sourceMIME,
		"upload_name":   p.Image.Filename,
		"upload_type":   p.Image.MIME,
		"upload_bytes":  len(p.Image.Data),
		"upload_width":  p.Image.Width,
		"upload_height": p.Image.Height,
		"used_original": p.UsedOriginal,
	}
	if p.MaskPNG != nil {
		summary["mask_policy"] = p.MaskPolicy
		summary["mask_bytes"] = len(p.MaskPNG)
	}
	return summary
}
