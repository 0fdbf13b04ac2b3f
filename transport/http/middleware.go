package http

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-Id"

// OriginPolicy decides which browser origins may call the API
type OriginPolicy struct {
	exact    map[string]bool
	patterns []*regexp.Regexp
}

// NewOriginPolicy parses entries such as "https://app.example.com" or
// "https://*.vercel.app". Empty entries are ignored.
func NewOriginPolicy(entries []string) *OriginPolicy {
	p := &OriginPolicy{exact: make(map[string]bool)}
	for _, e := range entries {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !strings.Contains(e, "*") {
			p.exact[e] = true
			continue
		}
		expr := "^" + strings.ReplaceAll(regexp.QuoteMeta(e), `\*`, ".*") + "$"
		p.patterns = append(p.patterns, regexp.MustCompile(expr))
	}
	return p
}

// Allowed reports whether a request carrying origin may proceed. Requests
// without an Origin header come from non-browser clients and are allowed.
func (p *OriginPolicy) Allowed(origin string) bool {
	if origin == "" {
		return true
	}
	if p.exact[origin] {
		return true
	}
	for _, re := range p.patterns {
		if re.MatchString(origin) {
			return true
		}
	}
	return false
}

// CORSMiddleware rejects disallowed origins before any route runs
func CORSMiddleware(policy *OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if !policy.Allowed(origin) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "CORS: origin not allowed"})
			return
		}

		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
			c.Header("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Range")
			c.Header("Access-Control-Max-Age", "600")
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// RequestLogger logs one line per request and tags it with a request id
func RequestLogger(logger *zap.Logger, metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqID := c.GetHeader(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Header(requestIDHeader, reqID)
		c.Set("requestID", reqID)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		metrics.requests.WithLabelValues(route, strconv.Itoa(status)).Inc()

		fields := []zap.Field{
			zap.String("request_id", reqID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		if status >= http.StatusInternalServerError {
			logger.Warn("request failed", fields...)
			return
		}
		logger.Info("request", fields...)
	}
}

// Recovery converts panics into a generic 500 without leaking details
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic while handling request",
					zap.Any("panic", r),
					zap.String("request_id", c.GetString("requestID")),
					zap.Stack("stack"))
				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
					return
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
