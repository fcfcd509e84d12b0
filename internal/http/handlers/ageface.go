package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/gabriel-vasile/mimetype"

	"ageme/internal/ageparams"
	"ageme/internal/debug"
	"ageme/internal/upstream"

	_ "image/png"
)

// maxMultipartMemory caps the in-memory portion of multipart parsing; larger
// parts spill to disk and are rejected by the byte ceiling anyway.
const maxMultipartMemory = 32 << 20

// AgeFace is the edit endpoint: validate everything, build the instruction,
// make exactly one upstream call, normalize the result. All validation
// failures are settled before any upstream cost.
func (a *App) AgeFace(w http.ResponseWriter, r *http.Request) {
	rec := debug.FromContext(r.Context())

	if !a.Editor.HasCredentials() {
		a.error(w, r, http.StatusInternalServerError, CodeConfigError, "Missing OPENAI_API_KEY")
		return
	}

	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		a.error(w, r, http.StatusBadRequest, CodeInvalidInput, "request must be multipart/form-data")
		return
	}

	var imageInfo, maskInfo *debug.FileInfo
	invalid := func(message string) {
		rec.SetInput(imageInfo, maskInfo, nil)
		a.error(w, r, http.StatusBadRequest, CodeInvalidInput, message)
	}

	imageData, imageHeader, err := readFilePart(r, "image", a.Config.MaxImageBytes)
	if err != nil {
		if errors.Is(err, errPartMissing) {
			invalid("image is required")
		} else {
			invalid("image " + err.Error())
		}
		return
	}
	imageInfo = fileInfo(imageHeader)

	if detected := mimetype.Detect(imageData); !detected.Is("image/png") {
		invalid("image must be image/png for this model")
		return
	}
	imageCfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		invalid("image could not be decoded")
		return
	}

	var maskPart *upstream.Part
	maskData, maskHeader, err := readFilePart(r, "mask", a.Config.MaxImageBytes)
	switch {
	case errors.Is(err, errPartMissing):
		if r.FormValue("mask") != "" {
			invalid("mask must be a file when provided")
			return
		}
		// mask is optional
	case err != nil:
		invalid("mask " + err.Error())
		return
	default:
		maskInfo = fileInfo(maskHeader)
		if detected := mimetype.Detect(maskData); !detected.Is("image/png") {
			invalid("mask must be image/png")
			return
		}
		maskCfg, _, err := image.DecodeConfig(bytes.NewReader(maskData))
		if err != nil {
			invalid("mask could not be decoded")
			return
		}
		if maskCfg.Width != imageCfg.Width || maskCfg.Height != imageCfg.Height {
			invalid(fmt.Sprintf("mask dimensions %dx%d must match image dimensions %dx%d",
				maskCfg.Width, maskCfg.Height, imageCfg.Width, imageCfg.Height))
			return
		}
		maskPart = &upstream.Part{Filename: maskHeader.Filename, MIME: "image/png", Data: maskData}
	}

	rawParams := r.FormValue("params")
	if rawParams == "" {
		invalid("params must be a JSON string")
		return
	}
	params, err := ageparams.Parse([]byte(rawParams))
	if err != nil {
		invalid(err.Error())
		return
	}
	rec.SetInput(imageInfo, maskInfo, params)

	prompt := ageparams.BuildPrompt(*params, a.promptPolicy)

	result, err := a.Editor.Edit(r.Context(), upstream.EditRequest{
		Image:   upstream.Part{Filename: imageHeader.Filename, MIME: "image/png", Data: imageData},
		Mask:    maskPart,
		Prompt:  prompt,
		Quality: params.Quality,
	})
	if err != nil {
		var ue *upstream.UpstreamError
		switch {
		case errors.As(err, &ue):
			rec.SetUpstream(upstreamInfo(ue.Trace))
			a.error(w, r, ue.Status, CodeUpstreamError, ue.Message)
		case errors.Is(err, upstream.ErrMissingAPIKey):
			a.error(w, r, http.StatusInternalServerError, CodeConfigError, "Missing OPENAI_API_KEY")
		default:
			a.Logger.Error().Err(err).Msg("age-face request failed")
			a.error(w, r, http.StatusInternalServerError, CodeInternalError, err.Error())
		}
		return
	}

	rec.SetUpstream(upstreamInfo(result.Trace))
	rec.SetOutput(result.MIME, len(result.Base64))

	a.json(w, r, http.StatusOK, map[string]any{
		"id":             result.ID,
		"image_base64":   result.Base64,
		"mime_type":      result.MIME,
		"image_data_url": result.DataURL,
		"meta": map[string]any{
			"model":      result.Model,
			"quality":    params.Quality,
			"elapsed_ms": result.Trace.Elapsed.Milliseconds(),
		},
	})
}

var errPartMissing = errors.New("part missing")

func readFilePart(r *http.Request, field string, maxBytes int64) ([]byte, *multipart.FileHeader, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil, errPartMissing
		}
		return nil, nil, errors.New("could not be read")
	}
	defer file.Close()
	if header.Size > maxBytes {
		return nil, header, fmt.Errorf("exceeds %d bytes", maxBytes)
	}
	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, header, errors.New("could not be read")
	}
	if int64(len(data)) > maxBytes {
		return nil, header, fmt.Errorf("exceeds %d bytes", maxBytes)
	}
	return data, header, nil
}

func fileInfo(header *multipart.FileHeader) *debug.FileInfo {
	if header == nil {
		return nil
	}
	return &debug.FileInfo{
		Name: header.Filename,
		Type: header.Header.Get("Content-Type"),
		Size: header.Size,
	}
}

func upstreamInfo(trace upstream.CallTrace) debug.UpstreamInfo {
	info := debug.UpstreamInfo{
		Status:       trace.Status,
		StatusText:   trace.StatusText,
		RequestID:    trace.RequestID,
		ProcessingMS: trace.ProcessingMS,
	}
	if trace.ErrorDetail != nil {
		info.Error = trace.ErrorDetail
	}
	return info
}
