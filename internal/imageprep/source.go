// Package imageprep prepares a user-supplied photo for upload: source
// acceptance checks, normalization into the canonical upload format, and
// edit-mask construction. It is the client half of the pipeline; the server
// re-validates everything it receives.
package imageprep

import (
	"errors"
	"fmt"
	"strings"
)

// MaxSourceBytes is the acceptance ceiling for the original photo, before
// normalization shrinks it under the upstream budget.
const MaxSourceBytes = 8 * 1024 * 1024

// ErrNotAnImage and ErrTooLarge surface as user-facing messages, not as
// server faults.
var (
	ErrNotAnImage = errors.New("please upload a valid image file")
	ErrTooLarge   = fmt.Errorf("file exceeds %d MB, please use a smaller image", MaxSourceBytes/(1024*1024))
)

// CheckSource rejects files whose declared type is not an image type or whose
// size exceeds the source ceiling.
func CheckSource(declaredMIME string, size int64) error {
	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(declaredMIME)), "image/") {
		return ErrNotAnImage
	}
	if size > MaxSourceBytes {
		return ErrTooLarge
	}
	return nil
}
