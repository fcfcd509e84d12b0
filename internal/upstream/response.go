package upstream

import (
	"encoding/base64"
	"strings"
)

// editResponse is the raw upstream body. The shape is heterogeneous across
// model variants; only data[0].b64_json is load-bearing.
type editResponse struct {
	ID      string `json:"id"`
	Created int64  `json:"created"`
	Data    []struct {
		B64JSON  string `json:"b64_json"`
		MIMEType string `json:"mime_type"`
		URL      string `json:"url"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
		Param   string `json:"param"`
	} `json:"error"`
}

// ErrorDetail is the upstream-declared failure detail, echoed into the
// diagnostic trace.
type ErrorDetail struct {
	Message string `json:"message,omitempty"`
	Type    string `json:"type,omitempty"`
	Code    string `json:"code,omitempty"`
	Param   string `json:"param,omitempty"`
}

func (r *editResponse) errorMessage() string {
	if r == nil || r.Error == nil {
		return ""
	}
	return strings.TrimSpace(r.Error.Message)
}

func (r *editResponse) errorDetail() *ErrorDetail {
	if r == nil || r.Error == nil {
		return nil
	}
	return &ErrorDetail{
		Message: r.Error.Message,
		Type:    r.Error.Type,
		Code:    r.Error.Code,
		Param:   r.Error.Param,
	}
}

type imagePayload struct {
	b64  string
	mime string
}

// extractImage locates the first generated image record in the result list.
func extractImage(r *editResponse) *imagePayload {
	if r == nil || len(r.Data) == 0 {
		return nil
	}
	first := r.Data[0]
	if first.B64JSON == "" {
		return nil
	}
	mime := first.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return &imagePayload{b64: first.B64JSON, mime: mime}
}

// cleanBase64 strips all whitespace; upstream sometimes wraps lines.
func cleanBase64(b64 string) string {
	return strings.Join(strings.Fields(b64), "")
}

// SniffMIME determines the true image type from leading bytes. Strict
// priority order: magic-number match, then the upstream-declared type when it
// is an image type, then image/png. The declared type is not always
// trustworthy, and downstream rendering depends on getting this right.
func SniffMIME(data []byte, declared string) string {
	switch {
	case len(data) >= 4 && data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4e && data[3] == 0x47:
		return "image/png"
	case len(data) >= 3 && data[0] == 0xff && data[1] == 0xd8 && data[2] == 0xff:
		return "image/jpeg"
	case len(data) >= 12 &&
		data[0] == 'R' && data[1] == 'I' && data[2] == 'F' && data[3] == 'F' &&
		data[8] == 'W' && data[9] == 'E' && data[10] == 'B' && data[11] == 'P':
		return "image/webp"
	}
	if strings.HasPrefix(declared, "image/") {
		return declared
	}
	return "image/png"
}

// SniffBase64MIME decodes just enough of a cleaned base64 payload to apply
// SniffMIME.
func SniffBase64MIME(cleaned, declared string) string {
	prefix := cleaned
	if len(prefix) > 64 {
		prefix = prefix[:64]
	}
	// Trim to a whole quantum so the prefix decodes on its own.
	prefix = prefix[:len(prefix)-len(prefix)%4]
	head, err := base64.StdEncoding.DecodeString(prefix)
	if err != nil {
		head = nil
	}
	return SniffMIME(head, declared)
}
