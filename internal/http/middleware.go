package http

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"wanderweb/app/internal/preferences"
)

const (
	rateLimitMessage  = "You're wandering a bit too quickly. Please wait a moment and try again."
	visitorCookieName = "wanderweb_visitor"
	visitorCookieAge  = 365 * 24 * time.Hour
	requestIDHeader   = "X-Request-ID"
)

func (s *Server) requestIDMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		reqID := strings.TrimSpace(ctx.Header(requestIDHeader))
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		goCtx := context.WithValue(ctx.Context(), requestIDContextKey, reqID)
		if req, _ := humago.Unwrap(ctx); req != nil {
			goCtx = context.WithValue(goCtx, requestURLContextKey, req.URL)
		}
		ctx = huma.WithContext(ctx, goCtx)
		ctx.SetHeader(requestIDHeader, reqID)

		if hub := sentry.GetHubFromContext(goCtx); hub != nil {
			hub.Scope().SetTag("request_id", reqID)
		}

		next(ctx)
	}
}

// visitorMiddleware binds the visitor id from the cookie to the request, issuing a new one when absent.
func (s *Server) visitorMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		visitorID := ""
		if cookie, err := req.Cookie(visitorCookieName); err == nil {
			if parsed, parseErr := uuid.Parse(cookie.Value); parseErr == nil {
				visitorID = parsed.String()
			}
		}

		if visitorID == "" {
			visitorID = uuid.NewString()
			cookie := &stdhttp.Cookie{
				Name:     visitorCookieName,
				Value:    visitorID,
				Path:     "/",
				MaxAge:   int(visitorCookieAge / time.Second),
				HttpOnly: true,
				Secure:   req.TLS != nil || strings.EqualFold(req.Header.Get("X-Forwarded-Proto"), "https"),
				SameSite: stdhttp.SameSiteLaxMode,
			}
			ctx.AppendHeader("Set-Cookie", cookie.String())
		}

		if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
			hub.Scope().SetUser(sentry.User{ID: visitorID})
		}

		ctx = huma.WithContext(ctx, preferences.WithVisitorID(ctx.Context(), visitorID))
		next(ctx)
	}
}

func (s *Server) rateLimitMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.rateLimiter == nil {
			next(ctx)
			return
		}

		op := ctx.Operation()
		if op != nil && op.Path == healthPath {
			next(ctx)
			return
		}

		req, _ := humago.Unwrap(ctx)
		if req == nil {
			next(ctx)
			return
		}

		ip := clientIPFromRequest(req)
		allowed, wait := s.rateLimiter.Allow(ip)
		if allowed {
			next(ctx)
			return
		}

		fields := logrus.Fields{
			"ip":   ip,
			"path": req.URL.Path,
		}
		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}
		if s.logger != nil {
			s.logger.WithError(eris.New("rate limit exceeded")).WithFields(fields).Warn("request rate limited")
		}

		ctx.SetHeader("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
		s.writeFailure(ctx, stdhttp.StatusTooManyRequests, rateLimitMessage)
	}
}

// writeFailure answers from inside a middleware: problem JSON under the API prefix, the HTML
// error page everywhere else.
func (s *Server) writeFailure(ctx huma.Context, status int, message string) {
	if op := ctx.Operation(); op != nil && strings.HasPrefix(op.Path, apiPrefix) {
		writeProblem(ctx, status, message)
		return
	}

	resp, err := s.renderErrorResponse(ctx.Context(), status, message, "", "")
	if err != nil && s.logger != nil {
		s.logger.WithError(err).WithField("status", status).Error("rendering middleware response failed")
	}

	if resp != nil && resp.ContentType != "" {
		ctx.SetHeader("Content-Type", resp.ContentType)
	}
	ctx.SetStatus(status)
	if resp != nil && len(resp.Body) > 0 {
		_, _ = ctx.BodyWriter().Write(resp.Body)
	}
}

func (s *Server) loggingMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.logger == nil {
			next(ctx)
			return
		}

		start := time.Now()
		next(ctx)

		status := ctx.Status()
		if status == 0 {
			status = stdhttp.StatusOK
		}

		fields := logrus.Fields{
			"method":      ctx.Method(),
			"status":      status,
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		}

		if op := ctx.Operation(); op != nil {
			fields["route"] = op.Path
		}

		if req, _ := humago.Unwrap(ctx); req != nil {
			fields["path"] = req.URL.Path
			fields["remote_addr"] = req.RemoteAddr
		}

		if requestID := RequestIDFromContext(ctx.Context()); requestID != "" {
			fields["request_id"] = requestID
		}
		if visitorID := preferences.VisitorIDFromContext(ctx.Context()); visitorID != "" {
			fields["visitor_id"] = visitorID
		}

		entry := s.logger.WithFields(fields)
		if status >= 500 {
			entry.Error("request failed")
		} else {
			entry.Info("request completed")
		}
	}
}

func (s *Server) recoveryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		defer func() {
			if rec := recover(); rec != nil {
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("panic: %v", v)
				}

				s.recordError(ctx.Context(), err, "panic recovered", nil)

				if hub := sentry.GetHubFromContext(ctx.Context()); hub != nil {
					hub.RecoverWithContext(ctx.Context(), rec)
					hub.Flush(2 * time.Second)
				}

				s.writeFailure(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage)
			}
		}()

		next(ctx)
	}
}

func (s *Server) sentryMiddleware() func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		if s.sentry == nil {
			next(ctx)
			return
		}

		hub := s.sentry.Clone()
		scope := hub.Scope()
		scope.SetTag("http.method", ctx.Method())
		if op := ctx.Operation(); op != nil {
			scope.SetTag("http.route", op.Path)
		}
		if req, _ := humago.Unwrap(ctx); req != nil {
			scope.SetRequest(req)
		}

		goCtx := sentry.SetHubOnContext(ctx.Context(), hub)
		ctx = huma.WithContext(ctx, goCtx)

		defer hub.Flush(2 * time.Second)

		next(ctx)
	}
}

// writeProblem writes an RFC 9457 body in the shape huma uses for its own errors.
func writeProblem(ctx huma.Context, status int, detail string) {
	body, _ := json.Marshal(huma.ErrorModel{
		Title:  stdhttp.StatusText(status),
		Status: status,
		Detail: detail,
	})

	ctx.SetHeader("Content-Type", "application/problem+json")
	ctx.SetStatus(status)
	_, _ = ctx.BodyWriter().Write(body)
}

func clientIPFromRequest(req *stdhttp.Request) string {
	if req == nil {
		return ""
	}

	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if len(parts) > 0 {
			candidate := strings.TrimSpace(parts[0])
			if candidate != "" {
				return candidate
			}
		}
	}

	if realIP := strings.TrimSpace(req.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}
