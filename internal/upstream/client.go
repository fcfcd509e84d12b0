// Package upstream talks to the external image-edit service. The service is
// treated as an opaque black box: one multipart submission per invocation, no
// retries, and a normalization step that turns its heterogeneous response
// shape into a stable envelope.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"

	"ageme/internal/infra"
)

const (
	// DefaultBaseURL and friends mirror the reference deployment.
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "dall-e-2"
	DefaultSize    = "1024x1024"

	editsPath = "/images/edits"
)

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("openai: api key is required")

// Options configures the image-edit client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Size        string
	SendQuality bool
	HTTPClient  *http.Client
	Logger      *infra.Logger
	Timeout     time.Duration
}

// Client performs HTTP calls to the images/edits endpoint.
type Client struct {
	apiKey      string
	baseURL     string
	model       string
	size        string
	sendQuality bool
	httpClient  *http.Client
	logger      *infra.Logger
}

// NewClient constructs a client with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModel
	}
	size := strings.TrimSpace(opts.Size)
	if size == "" {
		size = DefaultSize
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		apiKey:      strings.TrimSpace(opts.APIKey),
		baseURL:     base,
		model:       model,
		size:        size,
		sendQuality: opts.SendQuality,
		httpClient:  client,
		logger:      opts.Logger,
	}
}

// HasCredentials reports whether an API key was configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// Model returns the configured upstream model identifier.
func (c *Client) Model() string {
	if c == nil {
		return DefaultModel
	}
	return c.model
}

// Endpoint returns the full images/edits URL, for introspection.
func (c *Client) Endpoint() string {
	if c == nil {
		return DefaultBaseURL + editsPath
	}
	return c.baseURL + editsPath
}

// SendsQuality reports whether the quality hint is forwarded upstream. Not
// every upstream model accepts the field, so it is configuration.
func (c *Client) SendsQuality() bool {
	return c != nil && c.sendQuality
}

// Part is one file payload of the multipart submission.
type Part struct {
	Filename string
	MIME     string
	Data     []byte
}

// EditRequest carries the prepared inputs for a single edit call.
type EditRequest struct {
	Image   Part
	Mask    *Part
	Prompt  string
	Quality string
}

// EditResult is the normalized success outcome.
type EditResult struct {
	ID      string
	Base64  string
	MIME    string
	DataURL string
	Model   string
	Trace   CallTrace
}

// CallTrace captures the transport-level view of the one upstream call, for
// the diagnostic echo.
type CallTrace struct {
	Status       int
	StatusText   string
	RequestID    string
	ProcessingMS string
	ErrorDetail  *ErrorDetail
	Elapsed      time.Duration
}

// UpstreamError is an HTTP-level upstream failure. Status preserves the
// upstream status code where meaningful; a transport-successful call that
// produced no usable image reports 502.
type UpstreamError struct {
	Status  int
	Message string
	Trace   CallTrace
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("openai: %s (http %d)", e.Message, e.Status)
}

// Edit submits image (+ optional mask) and prompt upstream, exactly once,
// and normalizes the result. Failures are never retried.
func (c *Client) Edit(ctx context.Context, req EditRequest) (*EditResult, error) {
	if c == nil {
		return nil, errors.New("openai: client not configured")
	}
	if c.apiKey == "" {
		return nil, ErrMissingAPIKey
	}
	quality := ""
	if c.sendQuality {
		quality = strings.TrimSpace(req.Quality)
	}

	body, trace, err := c.submit(ctx, req.Image, req.Mask, req.Prompt, c.size, quality)
	if err != nil {
		return nil, err
	}

	payload := extractImage(body)
	if payload == nil {
		return nil, &UpstreamError{
			Status:  http.StatusBadGateway,
			Message: "No image output returned by model",
			Trace:   *trace,
		}
	}

	cleaned := cleanBase64(payload.b64)
	mime := SniffBase64MIME(cleaned, payload.mime)

	id := strings.TrimSpace(body.ID)
	if id == "" {
		id = uuid.NewString()
	}

	return &EditResult{
		ID:      id,
		Base64:  cleaned,
		MIME:    mime,
		DataURL: "data:" + mime + ";base64," + cleaned,
		Model:   c.model,
		Trace:   *trace,
	}, nil
}

// submit performs the single multipart POST and decodes the upstream body.
// Non-2xx statuses come back as *UpstreamError carrying the trace.
func (c *Client) submit(ctx context.Context, image Part, mask *Part, prompt, size, quality string) (*editResponse, *CallTrace, error) {
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	_ = form.WriteField("model", c.model)
	_ = form.WriteField("prompt", prompt)
	if err := writeFilePart(form, "image", image); err != nil {
		return nil, nil, err
	}
	if mask != nil {
		if err := writeFilePart(form, "mask", *mask); err != nil {
			return nil, nil, err
		}
	}
	_ = form.WriteField("size", size)
	_ = form.WriteField("response_format", "b64_json")
	if quality != "" {
		_ = form.WriteField("quality", quality)
	}
	if err := form.Close(); err != nil {
		return nil, nil, fmt.Errorf("openai: build form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+editsPath, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("openai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	elapsed := time.Since(started)
	if err != nil {
		return nil, nil, fmt.Errorf("openai: read response: %w", err)
	}

	var body editResponse
	// Tolerate non-JSON bodies on error statuses; the raw status is enough.
	_ = json.Unmarshal(raw, &body)

	trace := &CallTrace{
		Status:       resp.StatusCode,
		StatusText:   http.StatusText(resp.StatusCode),
		RequestID:    resp.Header.Get("x-request-id"),
		ProcessingMS: resp.Header.Get("openai-processing-ms"),
		ErrorDetail:  body.errorDetail(),
		Elapsed:      elapsed,
	}

	if c.logger != nil {
		c.logger.Debug().
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Str("upstream_request_id", trace.RequestID).
			Msg("openai images/edits call")
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		message := body.errorMessage()
		if message == "" {
			message = "OpenAI request failed"
		}
		return nil, nil, &UpstreamError{Status: resp.StatusCode, Message: message, Trace: *trace}
	}
	return &body, trace, nil
}

func writeFilePart(form *multipart.Writer, field string, part Part) error {
	name := strings.TrimSpace(part.Filename)
	if name == "" {
		name = field + ".png"
	}
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	mime := strings.TrimSpace(part.MIME)
	if mime == "" {
		mime = "application/octet-stream"
	}
	header.Set("Content-Type", mime)
	w, err := form.CreatePart(header)
	if err != nil {
		return fmt.Errorf("openai: build %s part: %w", field, err)
	}
	if _, err := w.Write(part.Data); err != nil {
		return fmt.Errorf("openai: write %s part: %w", field, err)
	}
	return nil
}
