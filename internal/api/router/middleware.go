package router

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"talent-copilot/internal/constants"
	"talent-copilot/internal/logger"
	"talent-copilot/internal/tracing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/common/utils"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
	"github.com/google/uuid"
	"github.com/hertz-contrib/keyauth"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errInvalidToken = errors.New("invalid api token")

// Tracing 为每个请求创建服务端 span，4xx/5xx 记为错误
func Tracing() app.HandlerFunc {
	tracer := tracing.Tracer("http")
	return func(ctx context.Context, c *app.RequestContext) {
		route := c.FullPath()
		if route == "" {
			route = string(c.Path())
		}
		ctx, span := tracer.Start(ctx, string(c.Method())+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.method", string(c.Method())),
				attribute.String("http.route", route),
			),
		)
		defer span.End()

		c.Next(ctx)

		status := c.Response.StatusCode()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= consts.StatusBadRequest {
			tracing.RecordHTTPError(span, fmt.Errorf("HTTP %d", status), status)
		}
	}
}

// RequestID 透传或生成请求 ID，并把带 request_id 的日志挂到上下文上
func RequestID() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		id := string(c.GetHeader(constants.RequestIDHeader))
		if id == "" {
			id = uuid.New().String()
		}
		c.Header(constants.RequestIDHeader, id)

		l := logger.Logger.With().Str("request_id", id).Logger()
		c.Next(l.WithContext(ctx))
	}
}

// AccessLog 记录每个请求的方法、路径、状态码和耗时
func AccessLog() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		start := time.Now()
		c.Next(ctx)
		logger.Ctx(ctx).Info().
			Str("method", string(c.Method())).
			Str("path", string(c.Path())).
			Int("status", c.Response.StatusCode()).
			Dur("latency", time.Since(start)).
			Msg("请求完成")
	}
}

// TokenAuth 校验 Authorization: Bearer <token>
func TokenAuth(token string) app.HandlerFunc {
	return keyauth.New(
		keyauth.WithKeyLookUp("header:Authorization", "Bearer"),
		keyauth.WithValidator(func(ctx context.Context, c *app.RequestContext, key string) (bool, error) {
			if subtle.ConstantTimeCompare([]byte(key), []byte(token)) == 1 {
				return true, nil
			}
			return false, errInvalidToken
		}),
		keyauth.WithErrorHandler(func(ctx context.Context, c *app.RequestContext, err error) {
			logger.Ctx(ctx).Warn().Err(err).Str("path", string(c.Path())).Msg("API Token 校验失败")
			c.AbortWithStatusJSON(consts.StatusUnauthorized, utils.H{"error": "unauthorized"})
		}),
	)
}
