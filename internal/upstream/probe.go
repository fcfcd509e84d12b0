package upstream

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
)

// probePNGBase64 is a fixed 1x1 PNG used for the live compatibility check.
// Small enough that an opted-in probe costs the cheapest possible generation.
const probePNGBase64 = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mP8/x8AAwMCAO7Zb+0AAAAASUVORK5CYII="

const (
	probePrompt = "Slightly adjust brightness while preserving the same tiny image."
	probeSize   = "256x256"
)

// ProbeOutput summarizes what the probe got back without surfacing the image.
type ProbeOutput struct {
	ReturnedImage bool   `json:"returned_image"`
	MIMEType      string `json:"mime_type,omitempty"`
	Base64Length  int    `json:"base64_length,omitempty"`
}

// ProbeResult reports one live round-trip against the upstream endpoint.
type ProbeResult struct {
	Available    bool         `json:"available"`
	Executed     bool         `json:"executed"`
	OK           bool         `json:"ok"`
	ElapsedMS    int64        `json:"elapsed_ms,omitempty"`
	Status       int          `json:"upstream_status,omitempty"`
	StatusText   string       `json:"upstream_status_text,omitempty"`
	RequestID    string       `json:"upstream_request_id,omitempty"`
	ProcessingMS string       `json:"upstream_processing_ms,omitempty"`
	ErrorDetail  *ErrorDetail `json:"upstream_error,omitempty"`
	Error        string       `json:"error,omitempty"`
	Output       *ProbeOutput `json:"output,omitempty"`
}

// Probe performs exactly one live round-trip with the embedded probe image
// and reports compatibility metadata. It never returns the generated image.
func (c *Client) Probe(ctx context.Context) ProbeResult {
	result := ProbeResult{Available: true}
	if !c.HasCredentials() {
		result.Error = "Missing OPENAI_API_KEY"
		return result
	}

	probeBytes, err := base64.StdEncoding.DecodeString(probePNGBase64)
	if err != nil {
		result.Error = "probe image corrupt"
		return result
	}

	result.Executed = true
	image := Part{Filename: "probe.png", MIME: "image/png", Data: probeBytes}
	body, trace, err := c.submit(ctx, image, nil, probePrompt, probeSize, "")
	if err != nil {
		var ue *UpstreamError
		if errors.As(err, &ue) {
			result.fillTrace(ue.Trace)
			result.Error = ue.Message
			return result
		}
		result.Error = err.Error()
		return result
	}

	result.fillTrace(*trace)
	result.OK = trace.Status >= http.StatusOK && trace.Status < http.StatusMultipleChoices

	if payload := extractImage(body); payload != nil {
		cleaned := cleanBase64(payload.b64)
		result.Output = &ProbeOutput{
			ReturnedImage: true,
			MIMEType:      SniffBase64MIME(cleaned, payload.mime),
			Base64Length:  len(cleaned),
		}
	} else {
		result.Output = &ProbeOutput{ReturnedImage: false}
	}
	return result
}

func (r *ProbeResult) fillTrace(trace CallTrace) {
	r.ElapsedMS = trace.Elapsed.Milliseconds()
	r.Status = trace.Status
	r.StatusText = trace.StatusText
	r.RequestID = trace.RequestID
	r.ProcessingMS = trace.ProcessingMS
	r.ErrorDetail = trace.ErrorDetail
}
