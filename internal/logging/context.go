package logging

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ContextFields extracts correlation data from context.
func ContextFields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 8)

	// Trace correlation (from OpenTelemetry)
	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		sc := span.SpanContext()
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
		if sc.IsSampled() {
			fields = append(fields, zap.Bool("trace_sampled", true))
		}
	}

	// Cleaning pass
	if passID := PassIDFromContext(ctx); passID != "" {
		fields = append(fields, zap.String("pass.id", passID))
	}
	if category := CategoryFromContext(ctx); category != "" {
		fields = append(fields, zap.String("category", category))
	}

	// Message sender
	if senderID := SenderIDFromContext(ctx); senderID != "" {
		fields = append(fields, zap.String("sender.id", senderID))
	}

	// Request ID
	if requestID := RequestIDFromContext(ctx); requestID != "" {
		fields = append(fields, zap.String("request.id", requestID))
	}

	return fields
}

// Context key types
type passCtxKey struct{}
type categoryCtxKey struct{}
type senderCtxKey struct{}
type requestCtxKey struct{}

// Validation constants
const (
	maxCategoryLen = 32
	maxIDLen       = 128
)

var (
	// categoryPattern allows lower-case letters, digits and dots
	categoryPattern = regexp.MustCompile(`^[a-z0-9.]+$`)
	// idPattern allows alphanumeric, hyphen, underscore
	idPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// validateCategory validates a cleaning category name.
func validateCategory(category string) error {
	if category == "" {
		return fmt.Errorf("category cannot be empty")
	}
	if len(category) > maxCategoryLen {
		return fmt.Errorf("category exceeds max length %d", maxCategoryLen)
	}
	if !categoryPattern.MatchString(category) {
		return fmt.Errorf("category contains invalid characters (must be lower-case alphanumeric or dot)")
	}
	return nil
}

// validateID validates a pass or request ID.
func validateID(id, name string) error {
	if id == "" {
		return fmt.Errorf("%s cannot be empty", name)
	}
	if !utf8.ValidString(id) {
		return fmt.Errorf("%s contains invalid UTF-8", name)
	}
	if len(id) > maxIDLen {
		return fmt.Errorf("%s exceeds max length %d", name, maxIDLen)
	}
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%s contains invalid characters (must be alphanumeric, hyphen, underscore)", name)
	}
	return nil
}

// IsValidID reports whether id is accepted by WithPassID and WithRequestID.
func IsValidID(id string) bool {
	return validateID(id, "id") == nil
}

// PassIDFromContext extracts cleaning pass ID from context.
func PassIDFromContext(ctx context.Context) string {
	if p, ok := ctx.Value(passCtxKey{}).(string); ok {
		return p
	}
	return ""
}

// WithPassID adds cleaning pass ID to context.
// Panics if passID is empty or contains invalid characters.
func WithPassID(ctx context.Context, passID string) context.Context {
	if err := validateID(passID, "passID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, passCtxKey{}, passID)
}

// CategoryFromContext extracts cleaning category from context.
func CategoryFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(categoryCtxKey{}).(string); ok {
		return c
	}
	return ""
}

// WithCategory adds cleaning category to context.
// Panics if category is empty or contains invalid characters.
func WithCategory(ctx context.Context, category string) context.Context {
	if err := validateCategory(category); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, categoryCtxKey{}, category)
}

// SenderIDFromContext extracts message sender ID from context.
func SenderIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(senderCtxKey{}).(string); ok {
		return s
	}
	return ""
}

// WithSenderID adds message sender ID to context.
//
// Sender IDs come from untrusted peers, so invalid input is sanitized
// instead of rejected: non-printable runes are dropped and the value is
// truncated to the max ID length. An empty result leaves ctx unchanged.
func WithSenderID(ctx context.Context, senderID string) context.Context {
	cleaned := sanitizeSenderID(senderID)
	if cleaned == "" {
		return ctx
	}
	return context.WithValue(ctx, senderCtxKey{}, cleaned)
}

func sanitizeSenderID(s string) string {
	if !utf8.ValidString(s) {
		s = strings.ToValidUTF8(s, "")
	}
	var b strings.Builder
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			continue
		}
		if b.Len()+utf8.RuneLen(r) > maxIDLen {
			break
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RequestIDFromContext extracts request ID from context.
func RequestIDFromContext(ctx context.Context) string {
	if r, ok := ctx.Value(requestCtxKey{}).(string); ok {
		return r
	}
	return ""
}

// WithRequestID adds request ID to context.
// Panics if requestID is empty or contains invalid characters.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if err := validateID(requestID, "requestID"); err != nil {
		panic(fmt.Sprintf("logging: %v", err))
	}
	return context.WithValue(ctx, requestCtxKey{}, requestID)
}

// loggerCtxKey is the context key for Logger.
type loggerCtxKey struct{}

// WithLogger stores logger in context.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerCtxKey{}, logger)
}

// FromContext retrieves logger from context.
// Returns a default nop logger if not found.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerCtxKey{}).(*Logger); ok {
		return l
	}
	return NewNop()
}
