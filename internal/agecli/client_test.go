package agecli

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"ageme/internal/imageprep"
)

func preparedFixture(t *testing.T) *Prepared {
	t.Helper()
	prep, err := Prepare(pngBytes(t, 64, 64), "image/png", "face.png", testParams(), PrepareOptions{
		Normalization: imageprep.DefaultSquarePNG(),
		Mask:          imageprep.RegionMask{},
		OnError:       OnPrepareErrorFail,
	})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return prep
}

func TestAgeFacePostsMultipartAndDecodesEnvelope(t *testing.T) {
	resultPNG := pngBytes(t, 1, 1)
	var gotDebugHeader string
	var gotFields map[string]bool

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/age-face" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotDebugHeader = r.Header.Get("x-ageme-debug")
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotFields = map[string]bool{
			"params": r.FormValue("params") != "",
		}
		for _, field := range []string{"image", "mask"} {
			_, _, err := r.FormFile(field)
			gotFields[field] = err == nil
		}
		var decoded map[string]any
		if err := json.Unmarshal([]byte(r.FormValue("params")), &decoded); err != nil {
			t.Errorf("params not JSON: %v", err)
		}
		if decoded["glasses"] != "preserve" {
			t.Errorf("params glasses = %v", decoded["glasses"])
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":             "resp-1",
			"image_base64":   base64.StdEncoding.EncodeToString(resultPNG),
			"mime_type":      "image/png",
			"image_data_url": "data:image/png;base64,xx",
			"meta":           map[string]any{"model": "dall-e-2", "quality": "medium", "elapsed_ms": 42},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, true)
	resp, err := client.AgeFace(context.Background(), preparedFixture(t), testParams())
	if err != nil {
		t.Fatalf("AgeFace returned error: %v", err)
	}
	if gotDebugHeader != "1" {
		t.Fatalf("debug header = %q, want %q", gotDebugHeader, "1")
	}
	for _, field := range []string{"image", "mask", "params"} {
		if !gotFields[field] {
			t.Fatalf("form field %q missing", field)
		}
	}
	if resp.ID != "resp-1" || resp.Meta.Model != "dall-e-2" {
		t.Fatalf("envelope = %+v", resp)
	}
	data, err := resp.ImageBytes()
	if err != nil {
		t.Fatalf("ImageBytes: %v", err)
	}
	if len(data) != len(resultPNG) {
		t.Fatalf("decoded %d bytes, want %d", len(data), len(resultPNG))
	}
}

func TestAgeFaceSurfacesAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = io.WriteString(w, `{"error":{"code":"UPSTREAM_ERROR","message":"Rate limit exceeded"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	_, err := client.AgeFace(context.Background(), preparedFixture(t), testParams())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Status != http.StatusTooManyRequests || apiErr.Code != "UPSTREAM_ERROR" {
		t.Fatalf("apiErr = %+v", apiErr)
	}
	if apiErr.Message != "Rate limit exceeded" {
		t.Fatalf("message = %q", apiErr.Message)
	}
}

func TestCapabilitiesPassesProbeFlag(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"openai":{"model":"dall-e-2"}}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, false)
	raw, err := client.Capabilities(context.Background(), true)
	if err != nil {
		t.Fatalf("Capabilities: %v", err)
	}
	if gotQuery != "probe=1" {
		t.Fatalf("query = %q", gotQuery)
	}
	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}

	if _, err := client.Capabilities(context.Background(), false); err != nil {
		t.Fatalf("Capabilities without probe: %v", err)
	}
	if gotQuery != "" {
		t.Fatalf("query = %q, want empty", gotQuery)
	}
}
