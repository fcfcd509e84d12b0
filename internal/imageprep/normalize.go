package imageprep

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"math"
	"path"
	"strings"

	"golang.org/x/image/draw"

	_ "image/gif"
	_ "golang.org/x/image/webp"
)

// Normalized is an upload-ready file produced from an arbitrary source image.
type Normalized struct {
	Data     []byte
	MIME     string
	Filename string
	Width    int
	Height   int
}

// NormalizationPolicy converts a decoded source image into the canonical
// upload format. Policies never upscale; an input already within bounds
// passes through at its own resolution.
type NormalizationPolicy interface {
	Name() string
	Normalize(data []byte, filename string) (*Normalized, error)
}

// MaxEdgeJPEG downscales so the longer edge fits MaxEdge and re-encodes as
// JPEG at a fixed quality.
type MaxEdgeJPEG struct {
	MaxEdge int
	Quality int
}

// DefaultMaxEdgeJPEG mirrors the browser client's canvas policy.
func DefaultMaxEdgeJPEG() MaxEdgeJPEG {
	return MaxEdgeJPEG{MaxEdge: 2048, Quality: 92}
}

func (MaxEdgeJPEG) Name() string { return "max-edge-jpeg" }

func (p MaxEdgeJPEG) Normalize(data []byte, filename string) (*Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode uploaded image: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	scale := 1.0
	if longer := max(w, h); longer > p.MaxEdge {
		scale = float64(p.MaxEdge) / float64(longer)
	}
	tw := max(1, int(math.Round(float64(w)*scale)))
	th := max(1, int(math.Round(float64(h)*scale)))

	out := src
	if tw != w || th != h {
		resized := image.NewRGBA(image.Rect(0, 0, tw, th))
		draw.CatmullRom.Scale(resized, resized.Bounds(), src, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: p.Quality}); err != nil {
		return nil, fmt.Errorf("failed to re-encode image for upload: %w", err)
	}
	return &Normalized{
		Data:     buf.Bytes(),
		MIME:     "image/jpeg",
		Filename: renameExt(filename, ".jpg"),
		Width:    tw,
		Height:   th,
	}, nil
}

// SquarePNG fits the image onto a centered square canvas, trying each
// candidate size in order until the encoded PNG is at or under MaxBytes.
// The upstream edit endpoint wants square PNG under a hard byte budget, so
// this is the default deployment policy.
type SquarePNG struct {
	Candidates []int
	MaxBytes   int
}

// DefaultSquarePNG mirrors the upstream constraints of the reference
// deployment.
func DefaultSquarePNG() SquarePNG {
	return SquarePNG{Candidates: []int{1024, 768, 512, 256}, MaxBytes: 4 * 1024 * 1024}
}

func (SquarePNG) Name() string { return "square-png" }

func (p SquarePNG) Normalize(data []byte, filename string) (*Normalized, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("could not decode uploaded image: %w", err)
	}
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	for _, size := range p.Candidates {
		scale := 1.0
		if longer := max(w, h); longer > size {
			scale = float64(size) / float64(longer)
		}
		tw := max(1, int(math.Round(float64(w)*scale)))
		th := max(1, int(math.Round(float64(h)*scale)))

		canvas := image.NewRGBA(image.Rect(0, 0, size, size))
		offset := image.Pt((size-tw)/2, (size-th)/2)
		target := image.Rectangle{Min: offset, Max: offset.Add(image.Pt(tw, th))}
		draw.CatmullRom.Scale(canvas, target, src, bounds, draw.Over, nil)

		var buf bytes.Buffer
		if err := png.Encode(&buf, canvas); err != nil {
			return nil, fmt.Errorf("failed to re-encode image for upload: %w", err)
		}
		if buf.Len() <= p.MaxBytes {
			return &Normalized{
				Data:     buf.Bytes(),
				MIME:     "image/png",
				Filename: renameExt(filename, ".png"),
				Width:    size,
				Height:   size,
			}, nil
		}
	}
	return nil, fmt.Errorf("no candidate size fits within %d bytes", p.MaxBytes)
}

// ParseNormalizationPolicy maps a configuration string onto a policy.
func ParseNormalizationPolicy(name string) (NormalizationPolicy, error) {
	switch strings.TrimSpace(strings.ToLower(name)) {
	case "", "square-png":
		return DefaultSquarePNG(), nil
	case "max-edge-jpeg":
		return DefaultMaxEdgeJPEG(), nil
	default:
		return nil, fmt.Errorf("unknown normalization policy %q", name)
	}
}

func renameExt(filename, ext string) string {
	base := strings.TrimSpace(filename)
	if base == "" {
		base = "upload"
	}
	if old := path.Ext(base); old != "" {
		base = base[:len(base)-len(old)]
	}
	return base + ext
}
