package flight

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/metadata"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey int

const (
	metaKey contextKey = iota
)

// Metadata header keys read from incoming requests.
const (
	// HeaderAuthorization is the gRPC metadata header for the bearer token.
	HeaderAuthorization = "authorization"
	// HeaderTraceID is the gRPC metadata header for a distributed trace identifier.
	HeaderTraceID = "entityfilter-trace-id"
	// HeaderSessionID is the gRPC metadata header for a client session identifier.
	HeaderSessionID = "entityfilter-session-id"
)

// ContextMeta holds request metadata extracted from gRPC headers.
type ContextMeta struct {
	Authorization string
	TraceID       string
	SessionID     string
}

func WithContextMeta(ctx context.Context, meta ContextMeta) context.Context {
	return context.WithValue(ctx, metaKey, &meta)
}

func MetaFromContext(ctx context.Context) *ContextMeta {
	meta, _ := ctx.Value(metaKey).(*ContextMeta)
	return meta
}

// AuthorizationFromContext retrieves the authorization header from context.
// Returns empty string if not set.
func AuthorizationFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.Authorization
	}
	return ""
}

// TraceIDFromContext returns the trace ID from context, or empty string if not set.
func TraceIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.TraceID
	}
	return ""
}

// SessionIDFromContext returns the session ID from context, or empty string if not set.
func SessionIDFromContext(ctx context.Context) string {
	if meta := MetaFromContext(ctx); meta != nil {
		return meta.SessionID
	}
	return ""
}

// EnrichContextMetadata extracts metadata from the gRPC context and
// returns a new context with it stored.
// If the context is already enriched, it is returned unchanged.
func EnrichContextMetadata(ctx context.Context) context.Context {
	if MetaFromContext(ctx) != nil {
		return ctx
	}
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx
	}

	var meta ContextMeta
	if values := md.Get(HeaderAuthorization); len(values) > 0 {
		meta.Authorization = values[0]
	}
	if values := md.Get(HeaderTraceID); len(values) > 0 {
		meta.TraceID = values[0]
	}
	if values := md.Get(HeaderSessionID); len(values) > 0 {
		meta.SessionID = values[0]
	}
	return WithContextMeta(ctx, meta)
}

// requestLogger returns the server logger annotated with the request's
// trace and session identifiers.
func (s *Server) requestLogger(ctx context.Context) *slog.Logger {
	logger := s.logger
	if id := TraceIDFromContext(ctx); id != "" {
		logger = logger.With("trace_id", id)
	}
	if id := SessionIDFromContext(ctx); id != "" {
		logger = logger.With("session_id", id)
	}
	return logger
}
