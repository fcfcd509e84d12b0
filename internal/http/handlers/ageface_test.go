package handlers_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"ageme/internal/http/handlers"
	"ageme/internal/http/httpapi"
	"ageme/internal/infra"
	"ageme/internal/upstream"
)

type upstreamStub struct {
	status int
	body   string
	calls  atomic.Int64
}

func (s *upstreamStub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.calls.Add(1)
	w.Header().Set("x-request-id", "stub-req-1")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(s.status)
	_, _ = io.WriteString(w, s.body)
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 0x80, G: 0x60, B: 0x40, A: 0xff})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func successUpstreamBody(t *testing.T) string {
	t.Helper()
	b64 := base64.StdEncoding.EncodeToString(encodePNG(t, 1, 1))
	body, err := json.Marshal(map[string]any{
		"data": []map[string]any{{"b64_json": b64}},
	})
	if err != nil {
		t.Fatalf("marshal upstream body: %v", err)
	}
	return string(body)
}

func newTestRouter(t *testing.T, stub *upstreamStub, apiKey string) http.Handler {
	t.Helper()
	server := httptest.NewServer(stub)
	t.Cleanup(server.Close)

	cfg := &infra.Config{
		AppEnv:        "test",
		PromptPolicy:  "emphatic",
		CORSOrigins:   []string{"*"},
		MaxImageBytes: infra.DefaultMaxImageBytes,
	}
	editor := upstream.NewClient(upstream.Options{
		APIKey:  apiKey,
		BaseURL: server.URL,
	})
	logger := zerolog.Nop()
	app, err := handlers.NewApp(cfg, logger, editor)
	if err != nil {
		t.Fatalf("NewApp returned error: %v", err)
	}
	return httpapi.NewRouter(app, nil)
}

func validParamsJSON() string {
	return `{"age_delta":10,"intensity":0.5,"hair_color":"preserve","glasses":"preserve","baldness":0,"blemish_fix":0,"skin_texture":0,"quality":"medium","preserve_identity":true}`
}

type formFile struct {
	field, name, mime string
	data              []byte
}

func multipartBody(t *testing.T, params string, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	for _, f := range files {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		header.Set("Content-Type", f.mime)
		part, err := form.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(f.data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if params != "" {
		if err := form.WriteField("params", params); err != nil {
			t.Fatalf("write params: %v", err)
		}
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	return &buf, form.FormDataContentType()
}

func postAgeFace(t *testing.T, router http.Handler, body *bytes.Buffer, contentType string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/age-face", body)
	req.Header.Set("Content-Type", contentType)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("response not JSON: %v: %s", err, rr.Body.String())
	}
	return body
}

func errorCode(t *testing.T, body map[string]any) string {
	t.Helper()
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("missing error object: %#v", body)
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestAgeFaceSuccess(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 500, 500)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	resp := decodeBody(t, rr)
	if resp["mime_type"] != "image/png" {
		t.Fatalf("mime_type = %v", resp["mime_type"])
	}
	dataURL, _ := resp["image_data_url"].(string)
	if !strings.HasPrefix(dataURL, "data:image/png;base64,") {
		t.Fatalf("image_data_url = %q", dataURL)
	}
	if id, _ := resp["id"].(string); id == "" {
		t.Fatalf("missing id")
	}
	meta, _ := resp["meta"].(map[string]any)
	if meta["model"] != "dall-e-2" || meta["quality"] != "medium" {
		t.Fatalf("meta = %#v", meta)
	}
	if _, hasDebug := resp["debug"]; hasDebug {
		t.Fatalf("debug must not appear unless requested")
	}
	if got := stub.calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want 1", got)
	}
}

func TestAgeFaceMissingParamField(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	params := `{"age_delta":10,"intensity":0.5,"hair_color":"preserve","baldness":0,"blemish_fix":0,"skin_texture":0,"quality":"medium","preserve_identity":true}`
	body, ct := multipartBody(t, params,
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if code := errorCode(t, resp); code != handlers.CodeInvalidInput {
		t.Fatalf("code = %q", code)
	}
	errObj := resp["error"].(map[string]any)
	if msg, _ := errObj["message"].(string); !strings.Contains(msg, "glasses") {
		t.Fatalf("message should name glasses: %q", msg)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Fatalf("validation failures must not reach upstream, calls = %d", got)
	}
}

func TestAgeFaceUpstreamRateLimitPassthrough(t *testing.T) {
	stub := &upstreamStub{
		status: http.StatusTooManyRequests,
		body:   `{"error":{"message":"Rate limit exceeded","type":"requests"}}`,
	}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rr.Code)
	}
	resp := decodeBody(t, rr)
	if code := errorCode(t, resp); code != handlers.CodeUpstreamError {
		t.Fatalf("code = %q", code)
	}
	errObj := resp["error"].(map[string]any)
	if errObj["message"] != "Rate limit exceeded" {
		t.Fatalf("message = %v", errObj["message"])
	}
	if got := stub.calls.Load(); got != 1 {
		t.Fatalf("upstream calls = %d, want exactly 1 (no retry)", got)
	}
}

func TestAgeFaceNoImageOutputIs502(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: `{"data":[]}`}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rr.Code)
	}
	if code := errorCode(t, decodeBody(t, rr)); code != handlers.CodeUpstreamError {
		t.Fatalf("code = %q", code)
	}
}

func TestAgeFaceRejectsNonPNGImage(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.jpg", mime: "image/png", data: []byte("\xff\xd8\xffnot really")})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := errorCode(t, decodeBody(t, rr)); code != handlers.CodeInvalidInput {
		t.Fatalf("code = %q", code)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Fatalf("upstream calls = %d, want 0", got)
	}
}

func TestAgeFaceMissingImage(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON())
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	errObj := resp["error"].(map[string]any)
	if msg, _ := errObj["message"].(string); !strings.Contains(msg, "image is required") {
		t.Fatalf("message = %q", msg)
	}
}

func TestAgeFaceMaskDimensionMismatch(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)},
		formFile{field: "mask", name: "mask.png", mime: "image/png", data: encodePNG(t, 32, 32)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	errObj := resp["error"].(map[string]any)
	if msg, _ := errObj["message"].(string); !strings.Contains(msg, "mask dimensions") {
		t.Fatalf("message = %q", msg)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Fatalf("upstream calls = %d, want 0", got)
	}
}

func TestAgeFaceRejectsMaskAsPlainField(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	var buf bytes.Buffer
	form := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="image"; filename="face.png"`)
	header.Set("Content-Type", "image/png")
	part, err := form.CreatePart(header)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	if _, err := part.Write(encodePNG(t, 64, 64)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := form.WriteField("mask", "not-a-file"); err != nil {
		t.Fatalf("write mask field: %v", err)
	}
	if err := form.WriteField("params", validParamsJSON()); err != nil {
		t.Fatalf("write params: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	rr := postAgeFace(t, router, &buf, form.FormDataContentType(), nil)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if code := errorCode(t, resp); code != handlers.CodeInvalidInput {
		t.Fatalf("code = %q", code)
	}
	errObj := resp["error"].(map[string]any)
	if msg, _ := errObj["message"].(string); msg != "mask must be a file when provided" {
		t.Fatalf("message = %q", msg)
	}
	if got := stub.calls.Load(); got != 0 {
		t.Fatalf("upstream calls = %d, want 0", got)
	}
}

func TestAgeFaceMatchingMaskForwarded(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)},
		formFile{field: "mask", name: "mask.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
}

func TestAgeFaceMissingCredential(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, nil)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rr.Code)
	}
	if code := errorCode(t, decodeBody(t, rr)); code != handlers.CodeConfigError {
		t.Fatalf("code = %q", code)
	}
}

func TestAgeFaceDebugEchoOptIn(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	body, ct := multipartBody(t, validParamsJSON(),
		formFile{field: "image", name: "face.png", mime: "image/png", data: encodePNG(t, 64, 64)})
	rr := postAgeFace(t, router, body, ct, map[string]string{"x-ageme-debug": "1"})

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	dbg, ok := resp["debug"].(map[string]any)
	if !ok {
		t.Fatalf("debug echo missing: %#v", resp)
	}
	if _, ok := dbg["input"]; !ok {
		t.Fatalf("debug.input missing: %#v", dbg)
	}
	up, ok := dbg["upstream"].(map[string]any)
	if !ok {
		t.Fatalf("debug.upstream missing: %#v", dbg)
	}
	if up["upstream_request_id"] != "stub-req-1" {
		t.Fatalf("upstream_request_id = %v", up["upstream_request_id"])
	}
	out, ok := dbg["output"].(map[string]any)
	if !ok || out["mime_type"] != "image/png" {
		t.Fatalf("debug.output = %#v", out)
	}
}

func TestNotFoundEnvelope(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	req := httptest.NewRequest(http.MethodGet, "/api/unknown", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if code := errorCode(t, resp); code != handlers.CodeNotFound {
		t.Fatalf("code = %q", code)
	}
	if _, ok := resp["available_routes"]; !ok {
		t.Fatalf("available_routes missing")
	}
}

func TestCORSPreflight(t *testing.T) {
	stub := &upstreamStub{status: http.StatusOK, body: successUpstreamBody(t)}
	router := newTestRouter(t, stub, "sk-test")

	req := httptest.NewRequest(http.MethodOptions, "/api/age-face", nil)
	req.Header.Set("Origin", "https://ageme.app")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rr.Code)
	}
	if rr.Body.Len() != 0 {
		t.Fatalf("preflight body should be empty: %q", rr.Body.String())
	}
	if rr.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("allow-origin = %q", rr.Header().Get("Access-Control-Allow-Origin"))
	}
}
