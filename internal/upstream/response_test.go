package upstream

import (
	"encoding/base64"
	"testing"
)

func TestSniffMIMESignatureBeatsDeclared(t *testing.T) {
	pngHead := []byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a}
	if got := SniffMIME(pngHead, "image/jpeg"); got != "image/png" {
		t.Fatalf("mime = %q, want image/png", got)
	}
	jpegHead := []byte{0xff, 0xd8, 0xff, 0xe0}
	if got := SniffMIME(jpegHead, "image/png"); got != "image/jpeg" {
		t.Fatalf("mime = %q, want image/jpeg", got)
	}
	webpHead := []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}
	if got := SniffMIME(webpHead, "image/png"); got != "image/webp" {
		t.Fatalf("mime = %q, want image/webp", got)
	}
}

func TestSniffMIMEFallsBackToDeclaredImageType(t *testing.T) {
	if got := SniffMIME([]byte{0x00, 0x01, 0x02, 0x03}, "image/gif"); got != "image/gif" {
		t.Fatalf("mime = %q, want declared image/gif", got)
	}
}

func TestSniffMIMEDefaultsToPNG(t *testing.T) {
	if got := SniffMIME(nil, "application/json"); got != "image/png" {
		t.Fatalf("mime = %q, want image/png", got)
	}
	if got := SniffMIME([]byte{1, 2, 3, 4}, ""); got != "image/png" {
		t.Fatalf("mime = %q, want image/png", got)
	}
}

func TestSniffBase64MIME(t *testing.T) {
	png := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 1, 2, 3})
	if got := SniffBase64MIME(png, "image/jpeg"); got != "image/png" {
		t.Fatalf("mime = %q, want image/png", got)
	}
	if got := SniffBase64MIME("!!!not base64!!!", "image/webp"); got != "image/webp" {
		t.Fatalf("mime = %q, want declared fallback", got)
	}
}

func TestCleanBase64StripsWhitespace(t *testing.T) {
	if got := cleanBase64("AAAA\nBBBB\r\n  CCCC\tDDDD"); got != "AAAABBBBCCCCDDDD" {
		t.Fatalf("cleaned = %q", got)
	}
}

func TestExtractImage(t *testing.T) {
	var empty editResponse
	if extractImage(&empty) != nil {
		t.Fatalf("empty data should yield nil")
	}

	var noB64 editResponse
	noB64.Data = append(noB64.Data, struct {
		B64JSON  string `json:"b64_json"`
		MIMEType string `json:"mime_type"`
		URL      string `json:"url"`
	}{URL: "https://cdn.example.com/x.png"})
	if extractImage(&noB64) != nil {
		t.Fatalf("record without b64_json should yield nil")
	}

	var ok editResponse
	ok.Data = append(ok.Data, struct {
		B64JSON  string `json:"b64_json"`
		MIMEType string `json:"mime_type"`
		URL      string `json:"url"`
	}{B64JSON: "QUJD", MIMEType: "image/jpeg"})
	payload := extractImage(&ok)
	if payload == nil || payload.b64 != "QUJD" || payload.mime != "image/jpeg" {
		t.Fatalf("payload = %#v", payload)
	}
}
