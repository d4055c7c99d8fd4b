package kafka

import (
	"context"
	"fmt"
	"time"

	applogger "AriaPull/pkg/logger"

	"github.com/segmentio/kafka-go"
)

type ctxKey string

const (
	// CtxStartTime holds the time.Time handling started.
	CtxStartTime ctxKey = "kafka_hook_start_time"
	// CtxTraceID holds the correlation id taken from headers.
	CtxTraceID ctxKey = "kafka_hook_trace_id"
)

// traceHeader carries the correlation id in and out of the pipeline.
const traceHeader = "trace_id"

func WithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, CtxStartTime, t)
}

// WithTraceID attaches id to ctx. An empty id leaves ctx unchanged.
func WithTraceID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, CtxTraceID, id)
}

// TraceIDFrom returns the trace id set by WithTraceID, or "".
func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(CtxTraceID).(string)
	return id
}

// ExtractTraceID returns the first non-empty trace_id header.
func ExtractTraceID(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == traceHeader && len(h.Value) > 0 {
			return string(h.Value)
		}
	}
	return ""
}

// TraceHook stamps the start time and the trace_id header into the context.
type TraceHook struct{ NoopHook }

func (TraceHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	ctx = WithStartTime(ctx, time.Now())
	return WithTraceID(ctx, ExtractTraceID(km)), km, data, nil
}

// PayloadGuardHook rejects empty or oversized payloads before they reach the
// handler. Rejections are permanent so they go straight to the DLQ.
type PayloadGuardHook struct {
	NoopHook
	MaxBytes int
}

func (g PayloadGuardHook) BeforeHandle(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
	switch {
	case len(data) == 0:
		return ctx, km, data, Permanent(&HookError{Code: "ERR_EMPTY_PAYLOAD"})
	case g.MaxBytes > 0 && len(data) > g.MaxBytes:
		return ctx, km, data, Permanent(&HookError{
			Code: "ERR_PAYLOAD_TOO_LARGE",
			Err:  fmt.Errorf("%d bytes exceeds %d", len(data), g.MaxBytes),
		})
	}
	return ctx, km, data, nil
}

// LoggingHook logs every failed attempt with its partition and offset.
type LoggingHook struct {
	NoopHook
	Log *applogger.Logger
}

func (h LoggingHook) OnError(ctx context.Context, topic string, km kafka.Message, _ []byte, err error) {
	if h.Log == nil {
		return
	}
	fields := []applogger.Field{
		applogger.String("topic", topic),
		applogger.Int("partition", km.Partition),
		applogger.Int64("offset", km.Offset),
		applogger.Bool("permanent", IsPermanent(err)),
		applogger.Error(err),
	}
	if id := TraceIDFrom(ctx); id != "" {
		fields = append(fields, applogger.String("trace_id", id))
	}
	if t, ok := ctx.Value(CtxStartTime).(time.Time); ok {
		fields = append(fields, applogger.Duration("elapsed", time.Since(t)))
	}
	h.Log.Warn("kafka message failed", fields...)
}
