// Package debug carries the optional per-request diagnostic echo. A Recorder
// is attached to the request context only when the caller opted in; handlers
// record into it unconditionally through the nil-safe methods, and the
// recorded trace is merged into the response body at write time. Recording
// has no effect on control flow or status codes.
package debug

import (
	"time"
)

// InputInfo summarizes the inbound upload for the debug echo.
type InputInfo struct {
	Image     *FileInfo `json:"image"`
	Mask      *FileInfo `json:"mask"`
	Params    any       `json:"params"`
	Timestamp string    `json:"timestamp"`
}

// FileInfo describes one uploaded file part.
type FileInfo struct {
	Name string `json:"name"`
	Type string `json:"type"`
	Size int64  `json:"size"`
}

// UpstreamInfo mirrors the transport-level view of the one upstream call.
type UpstreamInfo struct {
	Status       int    `json:"upstream_status"`
	StatusText   string `json:"upstream_status_text"`
	RequestID    string `json:"upstream_request_id,omitempty"`
	ProcessingMS string `json:"upstream_processing_ms,omitempty"`
	Error        any    `json:"upstream_error"`
}

// OutputInfo summarizes the normalized result without carrying the image.
type OutputInfo struct {
	MIMEType     string `json:"mime_type"`
	Base64Length int    `json:"base64_length"`
}

// Recorder accumulates the diagnostic trace for a single request. A nil
// Recorder is valid and records nothing.
type Recorder struct {
	input    *InputInfo
	upstream *UpstreamInfo
	output   *OutputInfo
}

// NewRecorder returns an enabled recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Enabled reports whether the request opted into the debug echo.
func (r *Recorder) Enabled() bool {
	return r != nil
}

// SetInput records the inbound upload summary.
func (r *Recorder) SetInput(image, mask *FileInfo, params any) {
	if r == nil {
		return
	}
	r.input = &InputInfo{
		Image:     image,
		Mask:      mask,
		Params:    params,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// SetUpstream records the upstream call trace.
func (r *Recorder) SetUpstream(info UpstreamInfo) {
	if r == nil {
		return
	}
	r.upstream = &info
}

// SetOutput records the normalized output summary.
func (r *Recorder) SetOutput(mimeType string, base64Length int) {
	if r == nil {
		return
	}
	r.output = &OutputInfo{MIMEType: mimeType, Base64Length: base64Length}
}

// Snapshot renders the recorded sections for inclusion in a response body.
// It returns nil when nothing was recorded.
func (r *Recorder) Snapshot() map[string]any {
	if r == nil {
		return nil
	}
	if r.input == nil && r.upstream == nil && r.output == nil {
		return nil
	}
	out := make(map[string]any, 3)
	if r.input != nil {
		out["input"] = r.input
	}
	if r.upstream != nil {
		out["upstream"] = r.upstream
	}
	if r.output != nil {
		out["output"] = r.output
	}
	return out
}
