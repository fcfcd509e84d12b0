package debug

import "context"

type contextKey string

const recorderKey contextKey = "debug_recorder"

// WithRecorder attaches a recorder to the context.
func WithRecorder(ctx context.Context, r *Recorder) context.Context {
	return context.WithValue(ctx, recorderKey, r)
}

// FromContext returns the recorder for the request, or nil when the request
// did not opt in. The nil recorder is safe to record into.
func FromContext(ctx context.Context) *Recorder {
	if r, ok := ctx.Value(recorderKey).(*Recorder); ok {
		return r
	}
	return nil
}
