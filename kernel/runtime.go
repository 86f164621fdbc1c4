package kernel

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

type spanCtxPair struct {
	span trace.Span
	ctx  context.Context
}

// RequestRuntime carries the per-request span stack, database handle and
// error state through a handler chain.
type RequestRuntime struct {
	AppRuntime *AppRuntime
	DB         *gorm.DB

	RequestContext *gin.Context
	Span           trace.Span
	SpanContext    context.Context

	Error error

	stack []*spanCtxPair
}

func InitRequest(art *AppRuntime, rctx *gin.Context) *RequestRuntime {
	ctx := rctx.Request.Context()
	span, ctx := art.Diagnostic.BeginTracing(ctx, rctx.FullPath())

	log.Debug().Str("uri", rctx.Request.RequestURI).Msg("initializing request")

	return &RequestRuntime{
		AppRuntime: art,
		DB:         art.DatabaseClient,

		RequestContext: rctx,
		Span:           span,
		SpanContext:    ctx,
	}
}

// NewChildTracer opens a child span and makes it current until the matching
// EndBlock.
func (rt *RequestRuntime) NewChildTracer(spanName string) *RequestRuntime {
	ctx, span := rt.AppRuntime.Diagnostic.Tracer.Start(rt.SpanContext, spanName)
	rt.stack = append(rt.stack, &spanCtxPair{span: rt.Span, ctx: rt.SpanContext})
	rt.Span = span
	rt.SpanContext = ctx
	return rt
}

// EndBlock closes the current span and restores its parent.
func (rt *RequestRuntime) EndBlock() {
	if rt.Span.IsRecording() {
		rt.Span.End()
	}
	n := len(rt.stack)
	if n == 0 {
		return
	}
	pair := rt.stack[n-1]
	rt.stack = rt.stack[:n-1]
	rt.Span = pair.span
	rt.SpanContext = pair.ctx
}

// Finish unwinds whatever spans a handler left open, root included.
func (rt *RequestRuntime) Finish() {
	for len(rt.stack) > 0 {
		rt.EndBlock()
	}
	if rt.Span.IsRecording() {
		rt.Span.End()
	}
}
