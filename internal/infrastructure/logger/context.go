package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	jobKey        contextKey = "job"
	customerIDKey contextKey = "customer_id"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}

// WithRequestID tags the context with an HTTP request id
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithJob tags the context with the batch job that is running
func WithJob(ctx context.Context, job string) context.Context {
	return context.WithValue(ctx, jobKey, job)
}

// WithCustomerID tags the context with the customer being processed
func WithCustomerID(ctx context.Context, customerID string) context.Context {
	return context.WithValue(ctx, customerIDKey, customerID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetJob retrieves the job name from context
func GetJob(ctx context.Context) string {
	v, _ := ctx.Value(jobKey).(string)
	return v
}

// GetCustomerID retrieves the customer id from context
func GetCustomerID(ctx context.Context) string {
	v, _ := ctx.Value(customerIDKey).(string)
	return v
}

// ContextLogger logs with the correlation fields carried by a context:
// trace_id/span_id from the active span plus request_id, job and customer_id.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L returns a ContextLogger for ctx.
// Usage: logger.L(ctx).Info("payment applied", zap.String("receipt", r))
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// WithLogger returns a ContextLogger that uses l instead of the context logger
func WithLogger(ctx context.Context, l *zap.Logger) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: l}
}

func (cl *ContextLogger) enriched() *zap.Logger {
	l := cl.logger
	if l == nil {
		l = zap.NewNop()
	}

	if sc := trace.SpanContextFromContext(cl.ctx); sc.IsValid() {
		l = l.With(
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	if v := GetRequestID(cl.ctx); v != "" {
		l = l.With(zap.String("request_id", v))
	}
	if v := GetJob(cl.ctx); v != "" {
		l = l.With(zap.String("job", v))
	}
	if v := GetCustomerID(cl.ctx); v != "" {
		l = l.With(zap.String("customer_id", v))
	}
	return l
}

// With creates a child ContextLogger with additional fields
func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	base := cl.logger
	if base == nil {
		base = zap.NewNop()
	}
	return &ContextLogger{ctx: cl.ctx, logger: base.With(fields...)}
}

// Debug logs a debug level message
func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) {
	cl.enriched().Debug(msg, fields...)
}

// Info logs an info level message
func (cl *ContextLogger) Info(msg string, fields ...zap.Field) {
	cl.enriched().Info(msg, fields...)
}

// Warn logs a warning level message
func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) {
	cl.enriched().Warn(msg, fields...)
}

// Error logs an error level message
func (cl *ContextLogger) Error(msg string, fields ...zap.Field) {
	cl.enriched().Error(msg, fields...)
}

// Zap returns the enriched zap.Logger
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.enriched()
}
