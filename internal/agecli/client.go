package agecli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"ageme/internal/ageparams"
)

// Client talks to the aging API. State is explicit; construct one per
// invocation.
type Client struct {
	Endpoint   string
	Debug      bool
	HTTPClient *http.Client
}

// NewClient builds a client for the given endpoint base URL.
func NewClient(endpoint string, debug bool) *Client {
	return &Client{
		Endpoint:   strings.TrimRight(endpoint, "/"),
		Debug:      debug,
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// GenerateResponse is the success envelope of the aging route.
type GenerateResponse struct {
	ID           string `json:"id"`
	ImageBase64  string `json:"image_base64"`
	MIMEType     string `json:"mime_type"`
	ImageDataURL string `json:"image_data_url"`
	Meta         struct {
		Model     string `json:"model"`
		Quality   string `json:"quality"`
		ElapsedMS int64  `json:"elapsed_ms"`
	} `json:"meta"`
	Debug json.RawMessage `json:"debug,omitempty"`
}

// ImageBytes decodes the base64 payload.
func (g *GenerateResponse) ImageBytes() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(g.ImageBase64)
	if err != nil {
		return nil, fmt.Errorf("agecli: decode result image: %w", err)
	}
	return data, nil
}

// APIError is a non-2xx answer from the API, carrying its error taxonomy.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("agecli: %s: %s (HTTP %d)", e.Code, e.Message, e.Status)
}

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// AgeFace posts the prepared image, optional mask, and parameters, and
// decodes the envelope. It sends exactly one request; retrying is the
// caller's decision.
func (c *Client) AgeFace(ctx context.Context, prep *Prepared, params ageparams.AgeParams) (*GenerateResponse, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)

	if err := writeFormFile(form, "image", prep.Image.Filename, prep.Image.MIME, prep.Image.Data); err != nil {
		return nil, err
	}
	if prep.MaskPNG != nil {
		if err := writeFormFile(form, "mask", "mask.png", "image/png", prep.MaskPNG); err != nil {
			return nil, err
		}
	}
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("agecli: encode params: %w", err)
	}
	if err := form.WriteField("params", string(paramsJSON)); err != nil {
		return nil, fmt.Errorf("agecli: write params field: %w", err)
	}
	if err := form.Close(); err != nil {
		return nil, fmt.Errorf("agecli: close form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint+"/api/age-face", &buf)
	if err != nil {
		return nil, fmt.Errorf("agecli: build request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	if c.Debug {
		req.Header.Set("x-ageme-debug", "1")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agecli: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agecli: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}

	var out GenerateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("agecli: decode response: %w", err)
	}
	return &out, nil
}

// Capabilities fetches the introspection route, optionally with a live
// probe, and returns the raw JSON body for pretty-printing.
func (c *Client) Capabilities(ctx context.Context, probe bool) (json.RawMessage, error) {
	url := c.Endpoint + "/api/capabilities"
	if probe {
		url += "?probe=1"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("agecli: build request: %w", err)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("agecli: request failed: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("agecli: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

func decodeAPIError(status int, body []byte) error {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error.Message != "" {
		return &APIError{Status: status, Code: env.Error.Code, Message: env.Error.Message}
	}
	return &APIError{Status: status, Code: "UNKNOWN", Message: strings.TrimSpace(string(body))}
}

func writeFormFile(form *multipart.Writer, field, filename, mime string, data []byte) error {
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename))
	header.Set("Content-Type", mime)
	part, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("agecli: create %s part: %w", field, err)
	}
	if _, err := part.Write(data); err != nil {
		return fmt.Errorf("agecli: write %s part: %w", field, err)
	}
	return nil
}
