package handlers

import (
	"net/http"
	"strings"
)

// Capabilities answers static route/constraint metadata at zero upstream
// cost. With ?probe=1 it additionally runs exactly one live compatibility
// round-trip against the configured upstream.
func (a *App) Capabilities(w http.ResponseWriter, r *http.Request) {
	acceptedParams := []string{"model", "prompt", "image", "mask", "size", "response_format"}
	rejectedExamples := []string{"quality"}
	if a.Editor.SendsQuality() {
		acceptedParams = append(acceptedParams, "quality")
		rejectedExamples = nil
	}

	body := map[string]any{
		"api": map[string]any{
			"routes": availableRoutes(),
		},
		"openai": map[string]any{
			"endpoint": a.Editor.Endpoint(),
			"model":    a.Editor.Model(),
		},
		"constraints": map[string]any{
			"supported_input_mime_types":   []string{"image/png"},
			"accepted_params_for_upstream": acceptedParams,
			"rejected_param_examples":      rejectedExamples,
			"max_image_bytes":              a.Config.MaxImageBytes,
		},
	}

	if !probeRequested(r.URL.Query().Get("probe")) {
		body["probe"] = map[string]any{
			"available": true,
			"executed":  false,
			"note":      "Use ?probe=1 for a live upstream compatibility check (may incur image generation cost).",
		}
		a.json(w, r, http.StatusOK, body)
		return
	}

	result := a.Editor.Probe(r.Context())
	body["probe"] = result

	status := http.StatusOK
	switch {
	case !result.Executed:
		status = http.StatusInternalServerError
	case !result.OK:
		status = http.StatusBadGateway
	}
	a.json(w, r, status, body)
}

func probeRequested(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}
