package vistream

import "context"

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "vistream_request_id"
	ctxKeySubject   ctxKey = "vistream_subject"
)

// WithRequestID stores a request identifier on the context. The transport
// sends it as X-Request-Id; absent one, it mints its own.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, requestID)
}

// RequestIDFromContext extracts the request identifier from the context.
func RequestIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeyRequestID).(string)
	return v
}

// WithSubject stores the authenticated subject (user ID) on the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, ctxKeySubject, subject)
}

// SubjectFromContext extracts the authenticated subject from the context.
func SubjectFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ctxKeySubject).(string)
	return v
}
